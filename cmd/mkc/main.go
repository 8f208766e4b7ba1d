// Command mkc wires the Memory-Knowledge Core's components into a
// running process: load configuration, open the provider backends,
// construct the Memory Manager, Knowledge Store, Constraint Engine and
// Sync Bridge, and run the sync scheduler. The operation surface itself
// is consumed in-process by embedding callers; no network/CLI surface
// is built here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/config"
	"github.com/mkc-dev/mkc/internal/constraint"
	"github.com/mkc-dev/mkc/internal/embedding"
	"github.com/mkc-dev/mkc/internal/knowledge"
	"github.com/mkc-dev/mkc/internal/logging"
	"github.com/mkc-dev/mkc/internal/memory"
	"github.com/mkc-dev/mkc/internal/operation"
	"github.com/mkc-dev/mkc/internal/provider/cache"
	"github.com/mkc-dev/mkc/internal/provider/factstore"
	"github.com/mkc-dev/mkc/internal/provider/git"
	"github.com/mkc-dev/mkc/internal/provider/ordereddoc"
	"github.com/mkc-dev/mkc/internal/provider/vectorstore"
	"github.com/mkc-dev/mkc/internal/syncbridge"
	"github.com/mkc-dev/mkc/internal/tenant"
)

func main() {
	configPath := flag.String("config", "mkc.yaml", "path to configuration file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkc: failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(*verbose || cfg.Logging.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkc: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	surface, closeFn, err := buildSurface(cfg, log)
	if err != nil {
		log.Fatal("failed to build operation surface", zap.Error(err))
	}
	defer closeFn()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("mkc core ready", zap.String("name", cfg.Name), zap.String("version", cfg.Version))
	runSyncScheduler(ctx, surface, cfg, log)
}

// buildSurface wires every provider adapter and component together,
// following the teacher's "one New per layer, composed bottom-up in
// main" convention.
func buildSurface(cfg *config.Config, log *zap.Logger) (*operation.Surface, func(), error) {
	router := tenant.New(cfg.Tenant.NamespacePrefix)

	dbDir := filepath.Dir(cfg.Memory.DatabasePath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("prepare database dir: %w", err)
	}

	// Separate files: the vector store's sqlite-vec extension and the
	// ordered-doc store's pure-Go driver cannot safely share one sqlite
	// file under concurrent writers.
	base := filepath.Base(cfg.Memory.DatabasePath)
	vs, err := vectorstore.Open(filepath.Join(dbDir, "vector-"+base), logging.Component(log, logging.ComponentProvider))
	if err != nil {
		return nil, nil, fmt.Errorf("open vector store: %w", err)
	}
	od, err := ordereddoc.Open(filepath.Join(dbDir, "doc-"+base))
	if err != nil {
		return nil, nil, fmt.Errorf("open ordered-doc store: %w", err)
	}
	c, err := cache.New(cfg.Memory.WorkingCapacity)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	fs := factstore.New()

	eng, err := embedding.New(cfg.Embedding.ToEngineConfig(), logging.Component(log, logging.ComponentEmbedding))
	if err != nil {
		return nil, nil, fmt.Errorf("build embedding engine: %w", err)
	}

	mm := memory.New(router, memory.Backends{Vector: vs, OrderedDoc: od, Cache: c, Fact: fs}, eng, cfg.Memory, logging.Component(log, logging.ComponentMemory))

	ks := knowledge.New(router, git.New(), cfg.Knowledge, logging.Component(log, logging.ComponentKnowledge))
	ce := constraint.New()

	state := syncbridge.NewStateStore(c)
	sb := syncbridge.New(ks, mm, state, logging.Component(log, logging.ComponentSync))

	closeFn := func() {
		_ = vs.Close()
		_ = od.Close()
	}

	return operation.New(mm, ks, ce, sb, logging.Component(log, logging.ComponentOperation)), closeFn, nil
}

// runSyncScheduler ticks on cfg.Sync.Interval until ctx is cancelled.
// Each tick only logs a debug line: this entrypoint has no tenant
// registry to enumerate, so it does not call Surface.SyncNow itself.
func runSyncScheduler(ctx context.Context, surface *operation.Surface, cfg *config.Config, log *zap.Logger) {
	interval, err := time.ParseDuration(cfg.Sync.Interval)
	if err != nil || interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			log.Debug("sync tick skipped: no multi-tenant registry wired in this entrypoint")
		}
	}
}
