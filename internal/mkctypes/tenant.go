package mkctypes

// TenantContext is carried on every operation (spec §3 "Tenant Context").
type TenantContext struct {
	TenantID string
	CallerID string
	Roles    []string
}

// HasRole reports whether the caller carries the given role.
func (t TenantContext) HasRole(role string) bool {
	for _, r := range t.Roles {
		if r == role {
			return true
		}
	}
	return false
}
