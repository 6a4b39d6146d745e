package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
// Implementations live against the control-plane database; tenant business
// data never flows through these interfaces.
type Store interface {
	Users() UserStore
	Tenants() TenantStore
	Roles() RoleStore
	RefreshTokens() RefreshTokenStore
	Impersonations() ImpersonationStore
	Audit() AuditStore
}

// UserStore manages principals.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*User, error)
	UpdateStatus(ctx context.Context, userID, status string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// TenantStore manages tenants and their data-store pointers.
type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	Find(ctx context.Context, id string) (*Tenant, error)
	FindByKey(ctx context.Context, key string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
	SetStatus(ctx context.Context, id, status string) error
}

// RoleStore manages roles, capability grants and assignments.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Role, error)
	RolesForUser(ctx context.Context, userID string) ([]*Role, error)
	Assign(ctx context.Context, a RoleAssignment) error
	Unassign(ctx context.Context, userID, roleID string) error
	GrantsForRole(ctx context.Context, roleID string) ([]Grant, error)
	SetGrants(ctx context.Context, roleID string, grants []Grant) error
	EnsureCapabilities(ctx context.Context, caps []Capability) error
	ListCapabilities(ctx context.Context) ([]Capability, error)
}

// RefreshTokenStore manages refresh token lifecycle. Rotate is the single
// atomic read-modify-write guarding against replay: it revokes the row only
// if it is still live, and reports ErrConflict when another rotation (or a
// revoke) already claimed it.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	Rotate(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// ImpersonationStore manages impersonation sessions.
type ImpersonationStore interface {
	Create(ctx context.Context, s *ImpersonationSession) error
	FindActiveByTokenID(ctx context.Context, tokenID string) (*ImpersonationSession, error)
	End(ctx context.Context, id string, at time.Time) error
}

// AuditStore appends immutable entries.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
}
