package git

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitAndReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := New()
	ctx := WithCommitTime(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, b.EnsureRepo(ctx, dir))
	hash, err := b.Commit(ctx, dir, map[string][]byte{
		"adr/0001.md": []byte("# Decision\ncontent"),
	}, "propose ADR-0001", "mkc", "mkc@localhost")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	data, err := b.ReadFile(ctx, dir, "adr/0001.md")
	require.NoError(t, err)
	assert.Equal(t, "# Decision\ncontent", string(data))
}

func TestLogReturnsCommitsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	b := New()
	ctx := WithCommitTime(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, b.EnsureRepo(ctx, dir))

	_, err := b.Commit(ctx, dir, map[string][]byte{"a.md": []byte("1")}, "first", "mkc", "mkc@localhost")
	require.NoError(t, err)
	_, err = b.Commit(ctx, dir, map[string][]byte{"b.md": []byte("2")}, "second", "mkc", "mkc@localhost")
	require.NoError(t, err)

	entries, err := b.Log(ctx, dir, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
}

func TestReadFileMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	b := New()
	ctx := context.Background()
	require.NoError(t, b.EnsureRepo(ctx, dir))
	_, err := b.Commit(ctx, dir, map[string][]byte{"a.md": []byte("1")}, "first", "mkc", "mkc@localhost")
	require.NoError(t, err)

	_, err = b.ReadFile(ctx, dir, "missing.md")
	assert.Error(t, err)
}

func TestListFilesReturnsSortedTrackedPaths(t *testing.T) {
	dir := t.TempDir()
	b := New()
	ctx := WithCommitTime(context.Background(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, b.EnsureRepo(ctx, dir))

	_, err := b.Commit(ctx, dir, map[string][]byte{
		"b/two.md": []byte("2"),
		"a/one.md": []byte("1"),
	}, "seed", "mkc", "mkc@localhost")
	require.NoError(t, err)

	paths, err := b.ListFiles(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/one.md", "b/two.md"}, paths)
}
