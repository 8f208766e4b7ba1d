package tenant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

func TestValidateTenantID(t *testing.T) {
	r := New("mkc")

	require.NoError(t, r.ValidateTenantID("tenant-a"))
	require.Error(t, r.ValidateTenantID(""))
	require.Error(t, r.ValidateTenantID("has a space"))
	require.Error(t, r.ValidateTenantID("has/slash"))
}

func TestAuthorizeCrossTenant(t *testing.T) {
	r := New("mkc")

	err := r.Authorize(mkctypes.TenantContext{TenantID: "a"}, "a")
	require.NoError(t, err)

	err = r.Authorize(mkctypes.TenantContext{TenantID: "a"}, "b")
	require.Error(t, err)
	require.True(t, mkcerr.Is(err, mkcerr.CrossTenantAccess))
	require.False(t, mkcerr.Retryable(err))
}

func TestVectorCollectionNamespacing(t *testing.T) {
	r := New("mkc")
	a := r.VectorCollection("tenant-a", mkctypes.LayerProject)
	b := r.VectorCollection("tenant-b", mkctypes.LayerProject)
	require.NotEqual(t, a, b)
}

func TestScopeReleaseIsIdempotentAndBlocksReuse(t *testing.T) {
	r := New("mkc")
	scope, err := r.Acquire("tenant-a")
	require.NoError(t, err)

	id, err := scope.TenantID()
	require.NoError(t, err)
	require.Equal(t, "tenant-a", id)

	scope.Release()
	scope.Release() // idempotent

	_, err = scope.TenantID()
	require.Error(t, err)
}
