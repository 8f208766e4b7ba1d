package syncbridge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/knowledge"
	"github.com/mkc-dev/mkc/internal/memory"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// Result is the outcome of one Sync call (spec §6 "syncNow").
type Result struct {
	Added     int
	Updated   int
	Deleted   int
	Unchanged int
	Failures  int
}

// memoryLayerFor maps a knowledge layer to the memory layer its pointer
// entries live in (spec §4.5 step 4: "Project→Project, Team→Team,
// Org→Org, Company→Company").
func memoryLayerFor(layer mkctypes.KnowledgeLayer) mkctypes.Layer {
	switch layer {
	case mkctypes.KLProject:
		return mkctypes.LayerProject
	case mkctypes.KLTeam:
		return mkctypes.LayerTeam
	case mkctypes.KLOrg:
		return mkctypes.LayerOrg
	case mkctypes.KLCompany:
		return mkctypes.LayerCompany
	default:
		return ""
	}
}

// Bridge is the Sync Bridge (spec §4.5): it keeps memory pointer entries
// converged with the Knowledge Store's committed items.
type Bridge struct {
	knowledge *knowledge.Store
	memory    *memory.Manager
	state     *StateStore
	log       *zap.Logger
	locks     locks
	now       func() time.Time
}

func New(ks *knowledge.Store, mm *memory.Manager, state *StateStore, log *zap.Logger) *Bridge {
	return &Bridge{knowledge: ks, memory: mm, state: state, log: log, now: time.Now}
}

// Status returns the last persisted sync record for (tenantID, layer),
// as consumed by spec §6's `syncStatus` operation. ok is false if no
// sync has ever run for this key.
func (b *Bridge) Status(tenantID string, layer mkctypes.KnowledgeLayer) (State, bool) {
	return b.state.Get(tenantID, layer)
}

// Sync runs one sync cycle for (tenantID, layer), implementing spec
// §4.5's five-step algorithm. It is single-writer per (tenant,
// knowledge-layer): a concurrent call for the same key blocks until the
// in-flight one finishes (spec §5 "single-writer per (tenant,
// knowledge-layer)").
func (b *Bridge) Sync(ctx context.Context, tenantID string, layer mkctypes.KnowledgeLayer, ids mkctypes.Identifiers) (Result, error) {
	lock := b.locks.forKey(tenantID, layer)
	lock.Lock()
	defer lock.Unlock()

	result := Result{}
	prior, _ := b.state.Get(tenantID, layer)

	// Step 1: walk commits since last-synced hash, collect affected ids.
	commits, err := b.knowledge.CommitsSince(ctx, tenantID, prior.LastCommitHash)
	if err != nil {
		return result, err
	}

	affected := map[string]bool{}
	for _, c := range commits {
		if c.AffectedItemID != "" {
			affected[c.AffectedItemID] = true
		}
	}
	if len(affected) == 0 {
		return result, nil
	}

	mLayer := memoryLayerFor(layer)

	for itemID := range affected {
		// Step 2: resolve current item or deletion.
		item, getErr := b.knowledge.Get(ctx, tenantID, itemID)
		exists := getErr == nil
		if exists && item.Layer != layer {
			// Items of other knowledge layers are reconciled by their own
			// layer's Sync, into their own memory layer.
			continue
		}

		// Step 3: reconcile any existing pointer entry for this item.
		pointerEntry, found, err := b.findPointerEntry(ctx, mLayer, tenantID, ids, itemID)
		if err != nil {
			result.Failures++
			b.log.Warn("sync: failed to look up pointer entry", zap.String("item", itemID), zap.Error(err))
			continue
		}

		switch {
		case found && exists && item.ContentHash != pointerEntry.Metadata.Pointer.HashAtSync:
			if err := b.overwritePointer(ctx, mLayer, tenantID, pointerEntry, item); err != nil {
				result.Failures++
				continue
			}
			result.Updated++

		case found && exists:
			result.Unchanged++

		case found && !exists:
			if err := b.markOrphan(ctx, mLayer, tenantID, pointerEntry); err != nil {
				result.Failures++
				continue
			}
			result.Deleted++

		case !found && exists && item.Status == mkctypes.StatusAccepted:
			// Step 4: newly-Accepted item not yet pointed to.
			if err := b.createPointer(ctx, mLayer, ids, item); err != nil {
				result.Failures++
				continue
			}
			result.Added++

		default:
			result.Unchanged++
		}
	}

	// Step 5: update sync state only after all steps succeed for this
	// commit range — if any item failed, do not advance the hash, so the
	// next cycle retries it.
	if result.Failures == 0 && len(commits) > 0 {
		newest := commits[len(commits)-1].Hash
		if err := b.state.Set(tenantID, layer, State{LastCommitHash: newest, LastSyncAt: b.now()}); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (b *Bridge) findPointerEntry(ctx context.Context, layer mkctypes.Layer, tenantID string, ids mkctypes.Identifiers, itemID string) (*mkctypes.Entry, bool, error) {
	entries, err := b.memory.List(ctx, layer, ids, 0)
	if err != nil {
		return nil, false, err
	}
	for i := range entries {
		e := entries[i]
		if e.Metadata.Pointer != nil && e.Metadata.Pointer.SourceID == itemID {
			return &e, true, nil
		}
	}
	return nil, false, nil
}

func (b *Bridge) overwritePointer(ctx context.Context, layer mkctypes.Layer, tenantID string, entry *mkctypes.Entry, item mkctypes.Item) error {
	content := item.Summary
	meta := entry.Metadata
	meta.Pointer = &mkctypes.KnowledgePointer{
		SourceType: "knowledge_item",
		SourceID:   item.ID,
		HashAtSync: item.ContentHash,
		SyncedAt:   b.now(),
	}
	return b.memory.Update(ctx, layer, tenantID, entry.ID, &content, &meta)
}

func (b *Bridge) markOrphan(ctx context.Context, layer mkctypes.Layer, tenantID string, entry *mkctypes.Entry) error {
	meta := entry.Metadata
	ptr := *meta.Pointer
	ptr.Orphan = true
	meta.Pointer = &ptr
	return b.memory.Update(ctx, layer, tenantID, entry.ID, nil, &meta)
}

func (b *Bridge) createPointer(ctx context.Context, layer mkctypes.Layer, ids mkctypes.Identifiers, item mkctypes.Item) error {
	meta := mkctypes.Metadata{
		Source: &mkctypes.Source{Type: "pointer", ID: uuid.NewString()},
		Pointer: &mkctypes.KnowledgePointer{
			SourceType: "knowledge_item",
			SourceID:   item.ID,
			HashAtSync: item.ContentHash,
			SyncedAt:   b.now(),
		},
	}
	_, err := b.memory.Add(ctx, layer, ids, item.Summary, meta)
	return err
}

