package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/provider"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "vec.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := provider.VectorRecord{ID: "m1", Vector: []float32{1, 0, 0}, Payload: map[string]string{"layer": "user"}}
	require.NoError(t, s.Upsert(ctx, "mkc_acme_user", rec))

	got, ok, err := s.Get(ctx, "mkc_acme_user", "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Vector, got.Vector)
	assert.Equal(t, "user", got.Payload["layer"])
}

func TestSearchOrdersBySimilarityDescending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "c", provider.VectorRecord{ID: "close", Vector: []float32{1, 0}}))
	require.NoError(t, s.Upsert(ctx, "c", provider.VectorRecord{ID: "far", Vector: []float32{0, 1}}))

	matches, err := s.Search(ctx, "c", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "close", matches[0].Record.ID)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestSearchRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Upsert(ctx, "c", provider.VectorRecord{ID: string(rune('a' + i)), Vector: []float32{float32(i), 1}}))
	}
	matches, err := s.Search(ctx, "c", []float32{1, 1}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "c", provider.VectorRecord{ID: "m1", Vector: []float32{1}}))
	require.NoError(t, s.Delete(ctx, "c", "m1"))
	_, ok, err := s.Get(ctx, "c", "m1")
	require.NoError(t, err)
	assert.False(t, ok)
}
