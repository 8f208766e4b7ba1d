package operation

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/config"
	"github.com/mkc-dev/mkc/internal/constraint"
	"github.com/mkc-dev/mkc/internal/knowledge"
	"github.com/mkc-dev/mkc/internal/memory"
	"github.com/mkc-dev/mkc/internal/mkctypes"
	"github.com/mkc-dev/mkc/internal/provider/cache"
	"github.com/mkc-dev/mkc/internal/provider/factstore"
	"github.com/mkc-dev/mkc/internal/provider/git"
	"github.com/mkc-dev/mkc/internal/provider/ordereddoc"
	"github.com/mkc-dev/mkc/internal/provider/vectorstore"
	"github.com/mkc-dev/mkc/internal/syncbridge"
	"github.com/mkc-dev/mkc/internal/tenant"
)

type fakeEngine struct{ dims int }

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dims)
	for i, c := range text {
		v[i%f.dims] += float32(c)
	}
	return v, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return f.dims }
func (f *fakeEngine) Name() string    { return "fake" }

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	dir := t.TempDir()
	router := tenant.New("mkc")

	kcfg := config.KnowledgeConfig{RepoBaseDir: filepath.Join(dir, "knowledge"), AuthorName: "mkc", AuthorEmail: "mkc@localhost"}
	ks := knowledge.New(router, git.New(), kcfg, zap.NewNop())

	vs, err := vectorstore.Open(filepath.Join(dir, "vec.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vs.Close() })
	od, err := ordereddoc.Open(filepath.Join(dir, "doc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = od.Close() })
	c, err := cache.New(1000)
	require.NoError(t, err)
	fs := factstore.New()

	mcfg := config.MemoryConfig{
		MaxContentBytes:           65536,
		MaxQueryBytes:             4096,
		DefaultSearchLimit:        10,
		MaxSearchLimit:            100,
		DecayRatePerDay:           0.1,
		DecayArchiveThreshold:     0.1,
		ConsolidationCap:          1000,
		ConsolidationSimThreshold: 0.9,
		DedupSimilarityThreshold:  0.95,
	}
	mm := memory.New(router, memory.Backends{Vector: vs, OrderedDoc: od, Cache: c, Fact: fs}, &fakeEngine{dims: 8}, mcfg, zap.NewNop())

	state := syncbridge.NewStateStore(c)
	sb := syncbridge.New(ks, mm, state, zap.NewNop())

	return New(mm, ks, constraint.New(), sb, zap.NewNop())
}

func TestMemoryAddGetRoundTripThroughSurface(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()
	ids := mkctypes.Identifiers{Tenant: "acme", User: "u1"}

	id, err := s.MemoryAdd(ctx, mkctypes.LayerUser, ids, "likes go", mkctypes.Metadata{})
	require.NoError(t, err)

	entry, err := s.MemoryGet(ctx, mkctypes.LayerUser, "acme", id)
	require.NoError(t, err)
	assert.Equal(t, "likes go", entry.Content)
}

func TestMemoryAddRejectsMissingIdentifierWithoutRetrying(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()

	_, err := s.MemoryAdd(ctx, mkctypes.LayerUser, mkctypes.Identifiers{Tenant: "acme"}, "x", mkctypes.Metadata{})
	require.Error(t, err)
}

func TestProposeAndCheckConstraintsAcrossAcceptedItems(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()

	constraints := []mkctypes.Constraint{
		{ID: "c1", Operator: mkctypes.MustUse, Target: mkctypes.TargetDependency, Pattern: "go.uber.org/zap", Severity: mkctypes.SeverityBlock, Message: "must use zap for logging"},
	}
	item, err := s.Propose(ctx, "acme", mkctypes.ItemPolicy, mkctypes.KLProject, "p1",
		"Use zap", "structured logging required", "full content",
		mkctypes.SeverityBlock, constraints, nil, "")
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, "acme", item.ID, mkctypes.StatusProposed, "")
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, "acme", item.ID, mkctypes.StatusAccepted, "")
	require.NoError(t, err)

	result, err := s.CheckConstraints(ctx, CheckConstraintsRequest{
		TenantID:       "acme",
		KnowledgeLayer: mkctypes.KLProject,
		Dependencies:   []mkctypes.Dependency{{Name: "go.uber.org/zap", Version: "v1.27.0", Type: "direct"}},
		MinSeverity:    mkctypes.SeverityInfo,
	})
	require.NoError(t, err)
	assert.True(t, result.Passed)

	resultMissing, err := s.CheckConstraints(ctx, CheckConstraintsRequest{
		TenantID:       "acme",
		KnowledgeLayer: mkctypes.KLProject,
		MinSeverity:    mkctypes.SeverityInfo,
	})
	require.NoError(t, err)
	assert.False(t, resultMissing.Passed)
	require.Len(t, resultMissing.Violations, 1)
}

func TestSyncNowFansOutAcrossLayersAndAggregates(t *testing.T) {
	s := newTestSurface(t)
	ctx := context.Background()

	project, err := s.Propose(ctx, "acme", mkctypes.ItemADR, mkctypes.KLProject, "p1",
		"Use Go modules", "summary", "content", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, "acme", project.ID, mkctypes.StatusProposed, "")
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, "acme", project.ID, mkctypes.StatusAccepted, "")
	require.NoError(t, err)

	team, err := s.Propose(ctx, "acme", mkctypes.ItemPolicy, mkctypes.KLTeam, "t1",
		"Review required", "summary", "content", mkctypes.SeverityWarn, nil, nil, "")
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, "acme", team.ID, mkctypes.StatusProposed, "")
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, "acme", team.ID, mkctypes.StatusAccepted, "")
	require.NoError(t, err)

	ids := mkctypes.Identifiers{Tenant: "acme", Project: "p1", Team: "t1"}
	result, err := s.SyncNow(ctx, SyncRequest{
		TenantID: "acme",
		Layers:   []mkctypes.KnowledgeLayer{mkctypes.KLProject, mkctypes.KLTeam},
		Ids:      ids,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 0, result.Failures)

	status := s.SyncStatus("acme", []mkctypes.KnowledgeLayer{mkctypes.KLProject, mkctypes.KLTeam})
	assert.True(t, status.Healthy)
	assert.NotEmpty(t, status.LastSyncAt[mkctypes.KLProject])
	assert.NotEmpty(t, status.LastSyncAt[mkctypes.KLTeam])
}

func TestRetryGivesUpImmediatelyOnNonRetryableError(t *testing.T) {
	ctx := context.Background()
	calls := 0
	start := time.Now()
	err := retry(ctx, func() error {
		calls++
		return &nonRetryableErr{}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

type nonRetryableErr struct{}

func (e *nonRetryableErr) Error() string { return "boom" }
