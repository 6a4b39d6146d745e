package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"

	TenantStatusActive   = "active"
	TenantStatusDisabled = "disabled"
)

// Effect is the polarity of a role-to-capability grant.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Tenant is an isolated customer boundary with its own data store.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Key       string    `json:"-"`
	DBHost    string    `json:"db_host"`
	DBName    string    `json:"db_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a human or service account. A user with an empty TenantID is a
// system-level principal and is not bound to any tenant.
type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// System reports whether the user is a system-level principal.
func (u *User) System() bool { return u.TenantID == "" }

// Role groups capability grants within a tenant. System roles carry an
// empty TenantID.
type Role struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Capability is a fine-grained permission atom.
type Capability struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Grant binds a capability to a role with an effect.
type Grant struct {
	Capability string `json:"capability"`
	Effect     Effect `json:"effect"`
}

// RoleAssignment gives a user a role.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshToken is a persisted single-use refresh credential. The secret half
// of the presented token is stored hashed; the row is revoked on rotation
// and never reused.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// ImpersonationSession binds an actor to a target for the lifetime of one
// impersonation token.
type ImpersonationSession struct {
	ID        string     `json:"id"`
	ActorID   string     `json:"actor_id"`
	TargetID  string     `json:"target_id"`
	TokenID   string     `json:"-"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// AuditEntry is an append-only record of a critical action.
type AuditEntry struct {
	ID         string
	OccurredAt time.Time
	ActorID    string
	TenantID   string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]string
}

// Principal is a verified identity with resolved scope and capabilities.
// It is derived solely from a verified access token.
type Principal struct {
	ID           string
	Email        string
	TenantID     string
	Roles        []string
	Capabilities map[string]struct{}

	// ActorID is set when this principal is being impersonated; it names the
	// privileged user acting as the target. TokenID is the jti of the access
	// token the principal was derived from.
	ActorID string
	TokenID string
}

// HasCapability reports whether the capability is present in the effective
// set. Unknown capabilities are absent and therefore denied.
func (p Principal) HasCapability(key string) bool {
	_, ok := p.Capabilities[key]
	return ok
}

// Impersonated reports whether the principal was minted by an impersonation
// session rather than a normal login.
func (p Principal) Impersonated() bool { return p.ActorID != "" }

// System reports whether the principal is unscoped (no tenant binding).
func (p Principal) System() bool { return p.TenantID == "" }
