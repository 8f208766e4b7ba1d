package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

func TestSearchLayerPrecedenceOverridesBroaderLayer(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, mkctypes.LayerCompany, mkctypes.Identifiers{Tenant: "acme", Company: "acme-co"}, "Use 4-space indentation", mkctypes.Metadata{})
	require.NoError(t, err)
	_, err = m.Add(ctx, mkctypes.LayerProject, mkctypes.Identifiers{Tenant: "acme", Project: "p"}, "Use tabs", mkctypes.Metadata{})
	require.NoError(t, err)

	out, err := m.Search(ctx, "indentation", []mkctypes.Layer{mkctypes.LayerCompany, mkctypes.LayerProject},
		mkctypes.Identifiers{Tenant: "acme", Project: "p", Company: "acme-co"}, 1, 0)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, mkctypes.LayerProject, out.Results[0].Entry.Layer)
}

func TestSearchSortsByLayerRankThenSimilarity(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, mkctypes.LayerUser, mkctypes.Identifiers{Tenant: "acme", User: "u1"}, "alpha content", mkctypes.Metadata{})
	require.NoError(t, err)
	_, err = m.Add(ctx, mkctypes.LayerCompany, mkctypes.Identifiers{Tenant: "acme", Company: "c1"}, "alpha content variant", mkctypes.Metadata{})
	require.NoError(t, err)

	out, err := m.Search(ctx, "alpha", []mkctypes.Layer{mkctypes.LayerUser, mkctypes.LayerCompany},
		mkctypes.Identifiers{Tenant: "acme", User: "u1", Company: "c1"}, 10, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out.Results), 1)
	assert.Equal(t, mkctypes.LayerUser, out.Results[0].Entry.Layer)
}

func TestSearchLimitZeroReturnsEmptyWithSearchedLayersPopulated(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, mkctypes.LayerUser, mkctypes.Identifiers{Tenant: "acme", User: "u1"}, "content", mkctypes.Metadata{})
	require.NoError(t, err)

	out, err := m.Search(ctx, "content", []mkctypes.Layer{mkctypes.LayerUser}, mkctypes.Identifiers{Tenant: "acme", User: "u1"}, 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, out.SearchedLayers)
	assert.Empty(t, out.Results)
	assert.Equal(t, 0, out.TotalCount)
}

func TestSearchNegativeLimitFallsBackToConfiguredDefault(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	_, err := m.Add(ctx, mkctypes.LayerUser, mkctypes.Identifiers{Tenant: "acme", User: "u1"}, "content", mkctypes.Metadata{})
	require.NoError(t, err)

	out, err := m.Search(ctx, "content", []mkctypes.Layer{mkctypes.LayerUser}, mkctypes.Identifiers{Tenant: "acme", User: "u1"}, -1, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Results)
}

func TestMergeSearchResultsDedupsKeepingHigherPrecedence(t *testing.T) {
	vec := []float32{1, 0, 0}
	results := []SearchResult{
		{Entry: mkctypes.Entry{ID: "broad", Layer: mkctypes.LayerCompany, Content: "same", Vector: vec}, Similarity: 0.9},
		{Entry: mkctypes.Entry{ID: "specific", Layer: mkctypes.LayerUser, Content: "same", Vector: vec}, Similarity: 0.8},
	}
	merged := mergeSearchResults(results, 0.95)
	require.Len(t, merged, 1)
	assert.Equal(t, "specific", merged[0].Entry.ID)
}

func TestMergeSearchResultsKeepsDistinctContent(t *testing.T) {
	results := []SearchResult{
		{Entry: mkctypes.Entry{ID: "a", Layer: mkctypes.LayerUser, Content: "one", Vector: []float32{1, 0}}, Similarity: 0.9},
		{Entry: mkctypes.Entry{ID: "b", Layer: mkctypes.LayerUser, Content: "two", Vector: []float32{0, 1}}, Similarity: 0.8},
	}
	merged := mergeSearchResults(results, 0.95)
	assert.Len(t, merged, 2)
}
