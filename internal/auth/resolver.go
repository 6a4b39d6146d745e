package auth

import (
	"context"
	"errors"
	"strings"
)

// ResolveTenant decides which tenant, if any, a session is scoped to.
//
// The rules form a closed table over (principal kind, key presence, key
// resolution); callers must not re-branch on tenant keys anywhere else.
//
//	system, no key          -> unscoped
//	system, key resolves    -> unscoped (the key is only a scoping hint;
//	                           system principals bypass tenant binding)
//	system, key unresolved  -> ErrTenantKeyInvalid
//	bound,  no key          -> ErrTenantKeyRequired
//	bound,  key unresolved  -> ErrTenantKeyInvalid
//	bound,  foreign tenant  -> ErrTenantAccessDenied
//	bound,  own tenant      -> scoped to that tenant
//
// A resolved own tenant that has been deactivated also fails with
// ErrTenantAccessDenied: deactivation blocks every session scoped to it.
func ResolveTenant(ctx context.Context, tenants TenantStore, user *User, tenantKey string) (*Tenant, error) {
	tenantKey = strings.TrimSpace(tenantKey)

	if user.System() {
		if tenantKey == "" {
			return nil, nil
		}
		if _, err := tenants.FindByKey(ctx, tenantKey); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrTenantKeyInvalid
			}
			return nil, err
		}
		return nil, nil
	}

	if tenantKey == "" {
		return nil, ErrTenantKeyRequired
	}
	tenant, err := tenants.FindByKey(ctx, tenantKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTenantKeyInvalid
		}
		return nil, err
	}
	if tenant.ID != user.TenantID {
		return nil, ErrTenantAccessDenied
	}
	if tenant.Status != TenantStatusActive {
		return nil, ErrTenantAccessDenied
	}
	return tenant, nil
}
