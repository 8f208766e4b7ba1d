package ordereddoc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "mkc_acme_project", "doc-1", []byte(`{"a":1}`)))
	doc, ok, err := s.Get(ctx, "mkc_acme_project", "doc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"a":1}`), doc.Payload)
}

func TestListOrdersBySequence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "t", "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "t", "b", []byte("2")))
	require.NoError(t, s.Put(ctx, "t", "c", []byte("3")))

	docs, err := s.List(ctx, "t", 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "c", docs[2].ID)
}

func TestDeleteRemovesDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "t", "a", []byte("1")))
	require.NoError(t, s.Delete(ctx, "t", "a"))
	_, ok, err := s.Get(ctx, "t", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMissingDocumentReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), "t", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
