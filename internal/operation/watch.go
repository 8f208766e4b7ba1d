package operation

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// RepoWatcher triggers a Sync cycle when a tenant's knowledge repo
// working tree changes underneath the running process — the on-demand
// complement to calling Surface.SyncNow on a timer. Grounded on the
// debounced fsnotify loop shape codenerd uses to watch its own
// mangle/ directory for edits: one watcher, a per-path debounce map, a
// single goroutine multiplexing events/errors/ticks/stop.
type RepoWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	surface     *Surface
	tenantID    string
	layer       mkctypes.KnowledgeLayer
	ids         mkctypes.Identifiers
	debounce    time.Duration
	pending     bool
	log         *zap.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
	runningOnce sync.Once
}

// NewRepoWatcher builds a watcher for one (tenant, knowledge-layer)
// repo directory. debounce coalesces a burst of filesystem events
// (e.g. a multi-file commit checkout) into a single Sync call.
func NewRepoWatcher(surface *Surface, tenantID string, layer mkctypes.KnowledgeLayer, ids mkctypes.Identifiers, debounce time.Duration, log *zap.Logger) (*RepoWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &RepoWatcher{
		watcher:  w,
		surface:  surface,
		tenantID: tenantID,
		layer:    layer,
		ids:      ids,
		debounce: debounce,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch adds repoPath and each directory in subdirs to the watch set;
// subdirectories are not added recursively. Call before Start.
func (w *RepoWatcher) Watch(repoPath string, subdirs ...string) error {
	if err := w.watcher.Add(repoPath); err != nil {
		return err
	}
	for _, d := range subdirs {
		if err := w.watcher.Add(d); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the debounced event loop until ctx is cancelled or Stop
// is called.
func (w *RepoWatcher) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *RepoWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("repo watcher error", zap.Error(err))

		case <-ticker.C:
			w.mu.Lock()
			due := w.pending
			w.pending = false
			w.mu.Unlock()
			if !due {
				continue
			}
			if _, err := w.surface.SyncNow(ctx, SyncRequest{TenantID: w.tenantID, Layers: []mkctypes.KnowledgeLayer{w.layer}, Ids: w.ids}); err != nil {
				w.log.Warn("on-demand sync failed", zap.String("tenant", w.tenantID), zap.Error(err))
			}
		}
	}
}

// Stop halts the event loop and closes the underlying fsnotify watcher.
func (w *RepoWatcher) Stop() {
	w.runningOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
	_ = w.watcher.Close()
}
