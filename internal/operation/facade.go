package operation

import (
	"context"

	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/constraint"
	"github.com/mkc-dev/mkc/internal/knowledge"
	"github.com/mkc-dev/mkc/internal/memory"
	"github.com/mkc-dev/mkc/internal/mkctypes"
	"github.com/mkc-dev/mkc/internal/syncbridge"
)

// Surface is the Operation Surface (spec §6): the single entry point
// the runtime calls, wrapping the Memory Manager, Knowledge Store,
// Constraint Engine and Sync Bridge with the retry policy of spec §5.
type Surface struct {
	memory     *memory.Manager
	knowledge  *knowledge.Store
	constraint *constraint.Engine
	sync       *syncbridge.Bridge
	log        *zap.Logger
}

func New(mm *memory.Manager, ks *knowledge.Store, ce *constraint.Engine, sb *syncbridge.Bridge, log *zap.Logger) *Surface {
	return &Surface{memory: mm, knowledge: ks, constraint: ce, sync: sb, log: log}
}

// --- Memory operations (spec §6 "Memory operations") ---

func (s *Surface) MemoryAdd(ctx context.Context, layer mkctypes.Layer, ids mkctypes.Identifiers, content string, meta mkctypes.Metadata) (string, error) {
	var id string
	err := retry(ctx, func() error {
		var err error
		id, err = s.memory.Add(ctx, layer, ids, content, meta)
		return err
	})
	return id, err
}

// MemorySearch passes limit straight through to memory.Manager.Search:
// negative means unspecified (use the configured default), zero is an
// explicit request for no results.
func (s *Surface) MemorySearch(ctx context.Context, query string, layers []mkctypes.Layer, ids mkctypes.Identifiers, limit int, threshold float64) (*memory.SearchOutput, error) {
	var out *memory.SearchOutput
	err := retry(ctx, func() error {
		var err error
		out, err = s.memory.Search(ctx, query, layers, ids, limit, threshold)
		return err
	})
	return out, err
}

func (s *Surface) MemoryGet(ctx context.Context, layer mkctypes.Layer, tenantID, id string) (*mkctypes.Entry, error) {
	var entry *mkctypes.Entry
	err := retry(ctx, func() error {
		var err error
		entry, err = s.memory.Get(ctx, layer, tenantID, id)
		return err
	})
	return entry, err
}

func (s *Surface) MemoryUpdate(ctx context.Context, layer mkctypes.Layer, tenantID, id string, content *string, meta *mkctypes.Metadata) error {
	return retry(ctx, func() error {
		return s.memory.Update(ctx, layer, tenantID, id, content, meta)
	})
}

func (s *Surface) MemoryDelete(ctx context.Context, layer mkctypes.Layer, tenantID, id string) error {
	return retry(ctx, func() error {
		return s.memory.Delete(ctx, layer, tenantID, id)
	})
}

func (s *Surface) MemoryList(ctx context.Context, layer mkctypes.Layer, ids mkctypes.Identifiers, limit int) ([]mkctypes.Entry, error) {
	var entries []mkctypes.Entry
	err := retry(ctx, func() error {
		var err error
		entries, err = s.memory.List(ctx, layer, ids, limit)
		return err
	})
	return entries, err
}

// --- Knowledge operations (spec §6 "Knowledge operations") ---

func (s *Surface) Propose(ctx context.Context, tenantID string, itemType mkctypes.ItemType, layer mkctypes.KnowledgeLayer, scopeID, title, summary, content string, severity mkctypes.Severity, constraints []mkctypes.Constraint, tags []string, supersedes string) (mkctypes.Item, error) {
	var item mkctypes.Item
	err := retry(ctx, func() error {
		var err error
		item, err = s.knowledge.Propose(ctx, tenantID, itemType, layer, scopeID, title, summary, content, severity, constraints, tags, supersedes)
		return err
	})
	return item, err
}

func (s *Surface) UpdateStatus(ctx context.Context, tenantID, id string, newStatus mkctypes.Status, reason string) (mkctypes.Item, error) {
	var item mkctypes.Item
	err := retry(ctx, func() error {
		var err error
		item, err = s.knowledge.UpdateStatus(ctx, tenantID, id, newStatus, reason)
		return err
	})
	return item, err
}

func (s *Surface) Query(ctx context.Context, tenantID string, filter knowledge.QueryFilter) ([]mkctypes.Item, error) {
	var items []mkctypes.Item
	err := retry(ctx, func() error {
		var err error
		items, err = s.knowledge.Query(ctx, tenantID, filter)
		return err
	})
	return items, err
}

// ItemDetail is the spec §6 `get(id, {includeConstraints?,
// includeHistory?})` return shape.
type ItemDetail struct {
	Item    mkctypes.Item
	History []mkctypes.Commit
}

func (s *Surface) GetItem(ctx context.Context, tenantID, id string, includeHistory bool, historyLimit int) (*ItemDetail, error) {
	detail := &ItemDetail{}
	err := retry(ctx, func() error {
		item, err := s.knowledge.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		detail.Item = item
		if includeHistory {
			hist, err := s.knowledge.GetHistory(ctx, tenantID, id, historyLimit)
			if err != nil {
				return err
			}
			detail.History = hist
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// CheckConstraintsRequest is the spec §6 `checkConstraints` input.
type CheckConstraintsRequest struct {
	TenantID         string
	KnowledgeLayer   mkctypes.KnowledgeLayer
	Files            []mkctypes.File
	Dependencies     []mkctypes.Dependency
	Identifiers      mkctypes.Identifiers
	KnowledgeItemIDs []string
	MinSeverity      mkctypes.Severity
}

// CheckConstraints gathers the constraint-bearing items named in req (or
// every Accepted item at req.KnowledgeLayer if no ids are given) and
// evaluates them against the supplied evaluation context.
// Constraint violations are data, not errors (spec §7 "Propagation") —
// only lookup/backend failures are returned as error.
func (s *Surface) CheckConstraints(ctx context.Context, req CheckConstraintsRequest) (mkctypes.EvalResult, error) {
	var result mkctypes.EvalResult
	err := retry(ctx, func() error {
		items, err := s.constraintItems(ctx, req)
		if err != nil {
			return err
		}
		evalCtx := mkctypes.EvalContext{Files: req.Files, Dependencies: req.Dependencies, Identifiers: req.Identifiers}
		result = s.constraint.Check(items, evalCtx, req.MinSeverity)
		return nil
	})
	return result, err
}

func (s *Surface) constraintItems(ctx context.Context, req CheckConstraintsRequest) ([]mkctypes.Item, error) {
	if len(req.KnowledgeItemIDs) > 0 {
		items := make([]mkctypes.Item, 0, len(req.KnowledgeItemIDs))
		for _, id := range req.KnowledgeItemIDs {
			item, err := s.knowledge.Get(ctx, req.TenantID, id)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	}
	return s.knowledge.Query(ctx, req.TenantID, knowledge.QueryFilter{
		Layer:  req.KnowledgeLayer,
		Status: mkctypes.StatusAccepted,
	})
}

// --- Sync operations (spec §6 "Sync operations") ---

// SyncRequest is the spec §6 `syncNow({force?, types?, layers?})` input.
type SyncRequest struct {
	TenantID string
	Layers   []mkctypes.KnowledgeLayer
	Ids      mkctypes.Identifiers
}

// SyncNow runs one sync cycle per requested (tenant, knowledge-layer),
// concurrently — each layer's lock (syncbridge.locks) already makes
// cross-layer cycles independent, so running them on an errgroup costs
// nothing beyond the goroutines themselves.
func (s *Surface) SyncNow(ctx context.Context, req SyncRequest) (syncbridge.Result, error) {
	return syncMany(ctx, s.sync, req.TenantID, req.Layers, req.Ids)
}

// SyncStatusReport is the spec §6 `syncStatus` return shape.
type SyncStatusReport struct {
	Healthy     bool
	LastSyncAt  map[mkctypes.KnowledgeLayer]string
	FailedItems int
}

// SyncStatus reports the last persisted sync record per layer for
// tenantID. "Healthy" means every requested layer has synced at least
// once; a layer that has never synced is reported with a zero
// timestamp rather than failing the call.
func (s *Surface) SyncStatus(tenantID string, layers []mkctypes.KnowledgeLayer) SyncStatusReport {
	if len(layers) == 0 {
		layers = []mkctypes.KnowledgeLayer{mkctypes.KLProject, mkctypes.KLTeam, mkctypes.KLOrg, mkctypes.KLCompany}
	}
	report := SyncStatusReport{Healthy: true, LastSyncAt: map[mkctypes.KnowledgeLayer]string{}}
	for _, layer := range layers {
		st, ok := s.sync.Status(tenantID, layer)
		if !ok {
			report.Healthy = false
			report.LastSyncAt[layer] = ""
			continue
		}
		report.LastSyncAt[layer] = st.LastSyncAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return report
}
