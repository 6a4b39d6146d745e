package auth

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory Store for service tests. All methods are
// mutex-guarded so concurrency tests exercise real interleavings.
type memStore struct {
	mu sync.Mutex

	users          map[string]*User
	tenants        map[string]*Tenant
	roles          map[string]*Role
	assignments    []RoleAssignment
	grants         map[string][]Grant
	capabilities   map[string]Capability
	tokens         map[string]*RefreshToken
	impersonations map[string]*ImpersonationSession
	audit          []AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		users:          make(map[string]*User),
		tenants:        make(map[string]*Tenant),
		roles:          make(map[string]*Role),
		grants:         make(map[string][]Grant),
		capabilities:   make(map[string]Capability),
		tokens:         make(map[string]*RefreshToken),
		impersonations: make(map[string]*ImpersonationSession),
	}
}

func (m *memStore) Users() UserStore                   { return (*memUsers)(m) }
func (m *memStore) Tenants() TenantStore               { return (*memTenants)(m) }
func (m *memStore) Roles() RoleStore                   { return (*memRoles)(m) }
func (m *memStore) RefreshTokens() RefreshTokenStore   { return (*memTokens)(m) }
func (m *memStore) Impersonations() ImpersonationStore { return (*memSessions)(m) }
func (m *memStore) Audit() AuditStore                  { return (*memAudit)(m) }

type memUsers memStore

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) ListByTenant(_ context.Context, tenantID string) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*User
	for _, u := range m.users {
		if u.TenantID == tenantID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsers) UpdateStatus(_ context.Context, userID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type memTenants memStore

func (m *memTenants) Create(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *memTenants) Find(_ context.Context, id string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTenants) FindByKey(_ context.Context, key string) (*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Key == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memTenants) List(_ context.Context) ([]*Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Tenant
	for _, t := range m.tenants {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memTenants) SetStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	return nil
}

type memRoles memStore

func (m *memRoles) Create(_ context.Context, role *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Find(_ context.Context, id string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (m *memRoles) ListByTenant(_ context.Context, tenantID string) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Role
	for _, role := range m.roles {
		if role.TenantID == tenantID {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRoles) RolesForUser(_ context.Context, userID string) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Role
	for _, a := range m.assignments {
		if a.UserID != userID {
			continue
		}
		if role, ok := m.roles[a.RoleID]; ok {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRoles) Assign(_ context.Context, a RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.assignments {
		if existing.UserID == a.UserID && existing.RoleID == a.RoleID {
			return nil
		}
	}
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *memRoles) Unassign(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.assignments {
		if a.UserID == userID && a.RoleID == roleID {
			m.assignments = append(m.assignments[:i], m.assignments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRoles) GrantsForRole(_ context.Context, roleID string) ([]Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Grant(nil), m.grants[roleID]...), nil
}

func (m *memRoles) SetGrants(_ context.Context, roleID string, grants []Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[roleID] = append([]Grant(nil), grants...)
	return nil
}

func (m *memRoles) EnsureCapabilities(_ context.Context, caps []Capability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range caps {
		if _, ok := m.capabilities[c.Key]; !ok {
			m.capabilities[c.Key] = c
		}
	}
	return nil
}

func (m *memRoles) ListCapabilities(_ context.Context) ([]Capability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Capability
	for _, c := range m.capabilities {
		out = append(out, c)
	}
	return out, nil
}

type memTokens memStore

func (m *memTokens) Create(_ context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tok
	m.tokens[tok.ID] = &cp
	return nil
}

func (m *memTokens) Find(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

// Rotate mirrors the conditional update in the SQL store: it claims the row
// only if it is still live.
func (m *memTokens) Rotate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[id]
	if !ok {
		return ErrNotFound
	}
	if tok.Revoked {
		return ErrConflict
	}
	tok.Revoked = true
	return nil
}

func (m *memTokens) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok, ok := m.tokens[id]; ok {
		tok.Revoked = true
	}
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.tokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

type memSessions memStore

func (m *memSessions) Create(_ context.Context, s *ImpersonationSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.impersonations[s.ID] = &cp
	return nil
}

func (m *memSessions) FindActiveByTokenID(_ context.Context, tokenID string) (*ImpersonationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.impersonations {
		if s.TokenID == tokenID && s.EndedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memSessions) End(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.impersonations[id]
	if !ok || s.EndedAt != nil {
		return ErrNotFound
	}
	ended := at
	s.EndedAt = &ended
	return nil
}

type memAudit memStore

func (m *memAudit) Append(_ context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *entry)
	return nil
}
