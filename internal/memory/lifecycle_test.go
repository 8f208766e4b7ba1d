package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

func TestDecayArchivesEntriesBelowThreshold(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	ids := mkctypes.Identifiers{Tenant: "acme", User: "u1"}

	id, err := m.Add(ctx, mkctypes.LayerUser, ids, "old note", mkctypes.Metadata{})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(365 * 24 * time.Hour) }
	archived, err := m.Decay(ctx, mkctypes.LayerUser, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	entry, err := m.Get(ctx, mkctypes.LayerUser, "acme", id)
	require.NoError(t, err)
	assert.Equal(t, mkctypes.StateArchived, entry.State)
}

func TestDecaySkipsFactLayer(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	ids := mkctypes.Identifiers{Tenant: "acme", Team: "t1"}
	_, err := m.Add(ctx, mkctypes.LayerTeam, ids, "procedural fact", mkctypes.Metadata{})
	require.NoError(t, err)

	archived, err := m.Decay(ctx, mkctypes.LayerTeam, ids)
	require.NoError(t, err)
	assert.Equal(t, 0, archived)
}

func TestPromoteSkipsBelowOccurrenceThreshold(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	ids := mkctypes.Identifiers{Tenant: "acme", User: "u1", Session: "s1"}
	id, err := m.Add(ctx, mkctypes.LayerSession, ids, "recurring note", mkctypes.Metadata{})
	require.NoError(t, err)
	entry, err := m.Get(ctx, mkctypes.LayerSession, "acme", id)
	require.NoError(t, err)

	candidate := PromotionCandidate{Entry: *entry, DistinctScopes: 1}
	err = m.Promote(ctx, candidate, 3, mkctypes.LayerUser, mkctypes.Identifiers{Tenant: "acme", User: "u1"})
	require.NoError(t, err)

	_, err = m.Get(ctx, mkctypes.LayerSession, "acme", id) // still there, not promoted
	require.NoError(t, err)
}

func TestPromoteMovesEntryToTargetLayer(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	ids := mkctypes.Identifiers{Tenant: "acme", User: "u1", Session: "s1"}
	id, err := m.Add(ctx, mkctypes.LayerSession, ids, "recurring note", mkctypes.Metadata{})
	require.NoError(t, err)
	entry, err := m.Get(ctx, mkctypes.LayerSession, "acme", id)
	require.NoError(t, err)

	candidate := PromotionCandidate{Entry: *entry, DistinctScopes: 5}
	require.NoError(t, m.Promote(ctx, candidate, 3, mkctypes.LayerUser, mkctypes.Identifiers{Tenant: "acme", User: "u1"}))

	_, err = m.Get(ctx, mkctypes.LayerSession, "acme", id)
	assert.Error(t, err) // original deleted

	promoted, err := m.Get(ctx, mkctypes.LayerUser, "acme", id)
	require.NoError(t, err)
	assert.Equal(t, mkctypes.LayerUser, promoted.Layer)
}

func TestConsolidateMergesSimilarEntriesWhenOverCap(t *testing.T) {
	m := newTestManager(t)
	m.cfg.ConsolidationCap = 1
	m.cfg.ConsolidationSimThreshold = 0.0 // force everything to be considered similar
	ctx := context.Background()
	ids := mkctypes.Identifiers{Tenant: "acme", User: "u1"}

	_, err := m.Add(ctx, mkctypes.LayerUser, ids, "fact one", mkctypes.Metadata{Tags: []string{"a"}})
	require.NoError(t, err)
	_, err = m.Add(ctx, mkctypes.LayerUser, ids, "fact two", mkctypes.Metadata{Tags: []string{"b"}})
	require.NoError(t, err)

	merged, err := m.Consolidate(ctx, mkctypes.LayerUser, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	entries, err := m.List(ctx, mkctypes.LayerUser, ids, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries[0].Content, "fact one")
	assert.Contains(t, entries[0].Content, "fact two")
	assert.ElementsMatch(t, []string{"a", "b"}, entries[0].Metadata.Tags)
}
