package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/config"
	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
	"github.com/mkc-dev/mkc/internal/provider/git"
	"github.com/mkc-dev/mkc/internal/tenant"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := config.KnowledgeConfig{RepoBaseDir: dir, AuthorName: "mkc", AuthorEmail: "mkc@localhost"}
	s := New(tenant.New("mkc"), git.New(), cfg, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestProposeThenGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item, err := s.Propose(ctx, "acme", mkctypes.ItemADR, mkctypes.KLProject, "p1",
		"Use Go", "summary", "full content", mkctypes.SeverityInfo, nil, []string{"lang"}, "")
	require.NoError(t, err)
	assert.Equal(t, mkctypes.StatusDraft, item.Status)
	assert.NotEmpty(t, item.ContentHash)

	fetched, err := s.Get(ctx, "acme", item.ID)
	require.NoError(t, err)
	assert.Equal(t, "full content", fetched.Content)
	assert.Equal(t, item.ContentHash, fetched.ContentHash)
}

func TestProposeRejectsIllegalConstraintPair(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Propose(context.Background(), "acme", mkctypes.ItemPolicy, mkctypes.KLTeam, "t1",
		"title", "sum", "content", mkctypes.SeverityWarn,
		[]mkctypes.Constraint{{ID: "c1", Operator: mkctypes.MustExist, Target: mkctypes.TargetCode, Pattern: "x"}},
		nil, "")
	require.Error(t, err)
	assert.True(t, mkcerr.Is(err, mkcerr.ConstraintSyntaxError))
}

func TestUpdateRejectsImmutableADR(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item, err := s.Propose(ctx, "acme", mkctypes.ItemADR, mkctypes.KLCompany, "",
		"title", "sum", "v1", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	_, err = s.Update(ctx, "acme", item.ID, "v2", "")
	require.Error(t, err)
	assert.True(t, mkcerr.Is(err, mkcerr.InvalidStatusTransition))
}

func TestUpdateMutatesPolicyInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item, err := s.Propose(ctx, "acme", mkctypes.ItemPolicy, mkctypes.KLTeam, "t1",
		"title", "sum", "v1", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	updated, err := s.Update(ctx, "acme", item.ID, "v2", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Content)
	assert.NotEqual(t, item.ContentHash, updated.ContentHash)
}

func TestStatusAutomatonRejectsIllegalTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item, err := s.Propose(ctx, "acme", mkctypes.ItemADR, mkctypes.KLCompany, "",
		"title", "sum", "v1", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, "acme", item.ID, mkctypes.StatusAccepted, "")
	require.Error(t, err)
	assert.True(t, mkcerr.Is(err, mkcerr.InvalidStatusTransition))
}

func TestStatusAutomatonAllowsLegalPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item, err := s.Propose(ctx, "acme", mkctypes.ItemADR, mkctypes.KLCompany, "",
		"title", "sum", "v1", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	item2, err := s.UpdateStatus(ctx, "acme", item.ID, mkctypes.StatusProposed, "")
	require.NoError(t, err)
	item3, err := s.UpdateStatus(ctx, "acme", item2.ID, mkctypes.StatusAccepted, "")
	require.NoError(t, err)
	assert.Equal(t, mkctypes.StatusAccepted, item3.Status)
}

func TestSupersedeRequiresAcceptedSource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item, err := s.Propose(ctx, "acme", mkctypes.ItemADR, mkctypes.KLCompany, "",
		"title", "sum", "v1", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	_, err = s.Supersede(ctx, "acme", item.ID, "title2", "sum2", "v2", mkctypes.SeverityInfo, nil, nil)
	require.Error(t, err)
	assert.True(t, mkcerr.Is(err, mkcerr.InvalidStatusTransition))
}

func TestSupersedeAcceptedADRCreatesNewAndMarksOldSuperseded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item, err := s.Propose(ctx, "acme", mkctypes.ItemADR, mkctypes.KLCompany, "",
		"title", "sum", "v1", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)
	item, err = s.UpdateStatus(ctx, "acme", item.ID, mkctypes.StatusProposed, "")
	require.NoError(t, err)
	item, err = s.UpdateStatus(ctx, "acme", item.ID, mkctypes.StatusAccepted, "")
	require.NoError(t, err)

	next, err := s.Supersede(ctx, "acme", item.ID, "title v2", "sum v2", "v2", mkctypes.SeverityInfo, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, item.ID, next.Supersedes)

	old, err := s.Get(ctx, "acme", item.ID)
	require.NoError(t, err)
	assert.Equal(t, mkctypes.StatusSuperseded, old.Status)
	assert.Equal(t, next.ID, old.SupersededBy)
}

func TestQueryFiltersByTypeAndTag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Propose(ctx, "acme", mkctypes.ItemADR, mkctypes.KLCompany, "",
		"adr1", "sum", "content", mkctypes.SeverityInfo, nil, []string{"infra"}, "")
	require.NoError(t, err)
	_, err = s.Propose(ctx, "acme", mkctypes.ItemPolicy, mkctypes.KLTeam, "t1",
		"policy1", "sum", "content", mkctypes.SeverityInfo, nil, []string{"style"}, "")
	require.NoError(t, err)

	results, err := s.Query(ctx, "acme", QueryFilter{Type: mkctypes.ItemADR})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "adr1", results[0].Title)

	results, err = s.Query(ctx, "acme", QueryFilter{Tag: "style"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "policy1", results[0].Title)
}

func TestQuerySortsByLayerRankThenID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Propose(ctx, "acme", mkctypes.ItemPolicy, mkctypes.KLCompany, "",
		"company policy", "sum", "content", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)
	_, err = s.Propose(ctx, "acme", mkctypes.ItemPolicy, mkctypes.KLProject, "p1",
		"project policy", "sum", "content", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	results, err := s.Query(ctx, "acme", QueryFilter{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, mkctypes.KLProject, results[0].Layer) // Project ranks higher than Company
}

func TestGetHistoryReturnsCommitsAffectingItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item, err := s.Propose(ctx, "acme", mkctypes.ItemPolicy, mkctypes.KLTeam, "t1",
		"title", "sum", "v1", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)
	_, err = s.Update(ctx, "acme", item.ID, "v2", "")
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, "acme", item.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTenantsAreIsolatedOnDisk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item, err := s.Propose(ctx, "acme", mkctypes.ItemPolicy, mkctypes.KLTeam, "t1",
		"title", "sum", "content", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	_, err = s.Get(ctx, "other-tenant", item.ID)
	require.Error(t, err)
	assert.True(t, mkcerr.Is(err, mkcerr.ItemNotFound))
}
