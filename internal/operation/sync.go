package operation

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mkc-dev/mkc/internal/mkctypes"
	"github.com/mkc-dev/mkc/internal/syncbridge"
)

// syncMany runs one Sync cycle per layer concurrently and aggregates
// the per-layer results into a single totals struct (spec §6 `syncNow`
// returns one combined {added, updated, deleted, unchanged, failures}).
// Layers are independent by construction (syncbridge's own
// per-(tenant,layer) lock already serializes anything that touches the
// same key), so fanning the cycle out over an errgroup is pure wall-clock
// win with no added contention.
func syncMany(ctx context.Context, bridge *syncbridge.Bridge, tenantID string, layers []mkctypes.KnowledgeLayer, ids mkctypes.Identifiers) (syncbridge.Result, error) {
	if len(layers) == 0 {
		layers = []mkctypes.KnowledgeLayer{mkctypes.KLProject, mkctypes.KLTeam, mkctypes.KLOrg, mkctypes.KLCompany}
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	total := syncbridge.Result{}

	for _, layer := range layers {
		layer := layer
		g.Go(func() error {
			res, err := bridge.Sync(gctx, tenantID, layer, ids)
			if err != nil {
				return err
			}
			mu.Lock()
			total.Added += res.Added
			total.Updated += res.Updated
			total.Deleted += res.Deleted
			total.Unchanged += res.Unchanged
			total.Failures += res.Failures
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return total, err
	}
	return total, nil
}
