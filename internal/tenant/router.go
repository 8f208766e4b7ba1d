// Package tenant implements the Tenant Router & Isolation Layer (spec
// §4.4): it maps (tenant_id, layer) to concrete storage namespaces across
// backend classes, validates every request's tenant_id, and hands out a
// scoped, explicitly-released session context in place of a process-wide
// global — the same discipline codenerd's TransactionManager uses for its
// mutex-guarded critical sections (internal/core/transaction_manager.go:
// acquire, do the work, release on every exit path).
package tenant

import (
	"fmt"
	"regexp"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/mkctypes"
)

// tenantIDPattern bounds tenant_id to a charset/length safe to embed in a
// vector-store collection name or a cache key (spec §4.4 "prevents
// injection into namespace names").
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

// Router owns the naming scheme used by every provider adapter.
type Router struct {
	prefix string // collection/namespace prefix, e.g. "mkc"
}

// New creates a Router with the given namespace prefix.
func New(prefix string) *Router {
	if prefix == "" {
		prefix = "mkc"
	}
	return &Router{prefix: prefix}
}

// ValidateTenantID enforces the charset/length check from spec §4.4.
func (r *Router) ValidateTenantID(tenantID string) error {
	if tenantID == "" || !tenantIDPattern.MatchString(tenantID) {
		return mkcerr.New(mkcerr.CrossTenantAccess, "tenant.ValidateTenantID",
			fmt.Sprintf("invalid tenant_id %q", tenantID))
	}
	return nil
}

// Authorize checks that the caller's tenant matches the object's tenant,
// per spec §3 "Tenant Context": "Cross-tenant references fail with a
// security error before any backend call." Authorize never retries.
func (r *Router) Authorize(caller mkctypes.TenantContext, objectTenantID string) error {
	if err := r.ValidateTenantID(caller.TenantID); err != nil {
		return err
	}
	if caller.TenantID != objectTenantID {
		return mkcerr.New(mkcerr.CrossTenantAccess, "tenant.Authorize",
			fmt.Sprintf("caller tenant %q does not own object tenant %q", caller.TenantID, objectTenantID))
	}
	return nil
}

// VectorCollection names the per-tenant vector-store collection for a
// memory layer: "{prefix}_{tenant}_{layer}".
func (r *Router) VectorCollection(tenantID string, layer mkctypes.Layer) string {
	return fmt.Sprintf("%s_%s_%s", r.prefix, tenantID, layer)
}

// CacheKey names a working/session cache key (spec §4.4: every key is
// "{tenant}:{logical_key}").
func (r *Router) CacheKey(tenantID, logicalKey string) string {
	return tenantID + ":" + logicalKey
}

// OrderedTable names an episodic/relational table or row-level partition
// for a tenant+layer pair.
func (r *Router) OrderedTable(tenantID string, layer mkctypes.Layer) string {
	return fmt.Sprintf("%s_%s_%s", r.prefix, tenantID, layer)
}

// KnowledgeRepoPath names the on-disk root for a tenant's knowledge repo.
func (r *Router) KnowledgeRepoPath(baseDir, tenantID string) string {
	return fmt.Sprintf("%s/%s", baseDir, tenantID)
}
