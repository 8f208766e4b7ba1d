package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkc-dev/mkc/internal/mkctypes"
)

func TestFederateCreatesMissingUpstreamItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	upstream := newTestStore(t)
	up, err := upstream.Propose(ctx, "hq", mkctypes.ItemPolicy, mkctypes.KLCompany, "",
		"shared policy", "sum", "content", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	result, err := s.Federate(ctx, "acme", FederationSource{RepoPath: upstream.repoPath("hq"), Tenant: "hq"},
		[]mkctypes.KnowledgeLayer{mkctypes.KLCompany}, map[string]string{})
	require.NoError(t, err)
	assert.Contains(t, result.Created, up.ID)

	adopted, err := s.Get(ctx, "acme", up.ID)
	require.NoError(t, err)
	assert.Equal(t, up.ContentHash, adopted.ContentHash)
}

func TestFederateSkipsUnchangedItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	upstream := newTestStore(t)

	up, err := upstream.Propose(ctx, "hq", mkctypes.ItemPolicy, mkctypes.KLCompany, "",
		"shared policy", "sum", "content", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	source := FederationSource{RepoPath: upstream.repoPath("hq"), Tenant: "hq"}
	_, err = s.Federate(ctx, "acme", source, []mkctypes.KnowledgeLayer{mkctypes.KLCompany}, map[string]string{})
	require.NoError(t, err)

	result, err := s.Federate(ctx, "acme", source, []mkctypes.KnowledgeLayer{mkctypes.KLCompany},
		map[string]string{up.ID: up.ContentHash})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged)
	assert.Empty(t, result.Created)
}

func TestFederateIgnoresLayersNotInSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	upstream := newTestStore(t)

	_, err := upstream.Propose(ctx, "hq", mkctypes.ItemPolicy, mkctypes.KLTeam, "t1",
		"team policy", "sum", "content", mkctypes.SeverityInfo, nil, nil, "")
	require.NoError(t, err)

	result, err := s.Federate(ctx, "acme", FederationSource{RepoPath: upstream.repoPath("hq"), Tenant: "hq"},
		[]mkctypes.KnowledgeLayer{mkctypes.KLCompany}, map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
}
