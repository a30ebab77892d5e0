package authz

import "fmt"

// AuthorizeTenant decides whether a validated token may act in the requested
// tenant context. A denied validation result denies immediately; otherwise
// the tenant must be an exact byte-wise member of the claim's tenant list.
func AuthorizeTenant(res Result, tenant string) error {
	if !res.Valid() {
		return res.Err
	}
	if !res.Claim.HasTenant(tenant) {
		return fmt.Errorf("%w: %q", ErrTenantMismatch, tenant)
	}
	return nil
}
