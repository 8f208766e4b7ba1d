package tenant

import (
	"sync/atomic"

	"github.com/mkc-dev/mkc/internal/mkcerr"
)

// Scope is a task-local handle carrying the tenant's row-level filter
// predicate (spec §4.4, §5: "The Tenant Router's session variable ... is
// strictly thread-local / task-local; leaking it across tasks is a
// critical bug guarded by explicit scoped acquisition with guaranteed
// release on all exit paths"). It is never stored in a package-level
// variable; callers acquire one per operation and release it with defer,
// mirroring the acquire/defer-release discipline of codenerd's
// TransactionManager mutex sections.
type Scope struct {
	tenantID string
	released atomic.Bool
}

// Acquire hands out a fresh Scope for tenantID after validating it.
// Callers must `defer scope.Release()` immediately.
func (r *Router) Acquire(tenantID string) (*Scope, error) {
	if err := r.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	return &Scope{tenantID: tenantID}, nil
}

// TenantID returns the scope's tenant, or an error if the scope has
// already been released (use-after-release is the "leak across tasks"
// failure mode this type exists to catch).
func (s *Scope) TenantID() (string, error) {
	if s.released.Load() {
		return "", mkcerr.New(mkcerr.CrossTenantAccess, "tenant.Scope.TenantID",
			"scope already released")
	}
	return s.tenantID, nil
}

// Release marks the scope as no longer valid. Idempotent: releasing
// twice is a no-op, so a deferred Release after an early explicit
// Release (e.g. on an error path) is always safe.
func (s *Scope) Release() {
	s.released.Store(true)
}
