package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"chrona.app/internal/ids"
)

// PoolEvictor closes any cached database pool for a tenant. Implemented by
// the tenant database router; nil disables eviction (tests).
type PoolEvictor interface {
	Evict(tenantID string)
}

// AdminService provides provisioning operations: tenants, users, roles and
// capability grants. All input validation lives here so stores stay thin.
type AdminService struct {
	store   Store
	tokens  *Service
	evictor PoolEvictor
}

// NewAdminService constructs AdminService. tokens is used to revoke sessions
// when principals or tenants are deactivated.
func NewAdminService(store Store, tokens *Service, evictor PoolEvictor) (*AdminService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: token service is required", ErrInvalidInput)
	}
	return &AdminService{store: store, tokens: tokens, evictor: evictor}, nil
}

// CreateTenant provisions a tenant and generates its tenant-key credential.
func (s *AdminService) CreateTenant(ctx context.Context, name, slug, dbHost, dbName string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(strings.ToLower(slug))
	dbHost = strings.TrimSpace(dbHost)
	dbName = strings.TrimSpace(dbName)
	if name == "" || slug == "" {
		return nil, fmt.Errorf("%w: tenant name and slug are required", ErrInvalidInput)
	}
	if dbHost == "" || dbName == "" {
		return nil, fmt.Errorf("%w: tenant database host and name are required", ErrInvalidInput)
	}
	tenant := &Tenant{
		ID:     ids.New(),
		Name:   name,
		Slug:   slug,
		Key:    uuid.NewString(),
		DBHost: dbHost,
		DBName: dbName,
		Status: TenantStatusActive,
	}
	if err := s.store.Tenants().Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// ListTenants returns all tenants.
func (s *AdminService) ListTenants(ctx context.Context) ([]*Tenant, error) {
	return s.store.Tenants().List(ctx)
}

// DeactivateTenant blocks all sessions scoped to the tenant and evicts its
// cached database pool.
func (s *AdminService) DeactivateTenant(ctx context.Context, tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	if err := s.store.Tenants().SetStatus(ctx, tenantID, TenantStatusDisabled); err != nil {
		return err
	}
	users, err := s.store.Users().ListByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := s.tokens.LogoutAll(ctx, u.ID); err != nil {
			return err
		}
	}
	if s.evictor != nil {
		s.evictor.Evict(tenantID)
	}
	return nil
}

// CreateUser registers a principal. An empty tenantID creates a system-level
// principal.
func (s *AdminService) CreateUser(ctx context.Context, tenantID, email, password string) (*User, error) {
	tenantID = strings.TrimSpace(tenantID)
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if tenantID != "" {
		if _, err := s.store.Tenants().Find(ctx, tenantID); err != nil {
			return nil, err
		}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:           ids.New(),
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: hash,
		Status:       UserStatusActive,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeactivateUser soft-disables a principal and kills its refresh tokens.
// Already-issued access tokens ride out their TTL.
func (s *AdminService) DeactivateUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if err := s.store.Users().UpdateStatus(ctx, userID, UserStatusDisabled); err != nil {
		return err
	}
	return s.tokens.LogoutAll(ctx, userID)
}

// CreateRole creates a role in a tenant; an empty tenantID creates a system
// role assignable only to system-level principals.
func (s *AdminService) CreateRole(ctx context.Context, tenantID, name, description string) (*Role, error) {
	tenantID = strings.TrimSpace(tenantID)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	if tenantID != "" {
		if _, err := s.store.Tenants().Find(ctx, tenantID); err != nil {
			return nil, err
		}
	}
	role := &Role{
		ID:          ids.New(),
		TenantID:    tenantID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.store.Roles().Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// SetRoleGrants replaces a role's capability grants.
func (s *AdminService) SetRoleGrants(ctx context.Context, roleID string, grants []Grant) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(grants))
	cleaned := make([]Grant, 0, len(grants))
	for _, g := range grants {
		g.Capability = strings.TrimSpace(g.Capability)
		if g.Capability == "" {
			continue
		}
		if g.Effect != EffectAllow && g.Effect != EffectDeny {
			return fmt.Errorf("%w: unsupported effect %q", ErrInvalidInput, g.Effect)
		}
		key := g.Capability + "/" + string(g.Effect)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, g)
	}
	return s.store.Roles().SetGrants(ctx, roleID, cleaned)
}

// AssignRole attaches a role to a user. The role must belong to the user's
// tenant; system roles go only to system-level principals.
func (s *AdminService) AssignRole(ctx context.Context, userID, roleID string) (RoleAssignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return RoleAssignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return RoleAssignment{}, err
	}
	role, err := s.store.Roles().Find(ctx, roleID)
	if err != nil {
		return RoleAssignment{}, err
	}
	if role.TenantID != user.TenantID {
		return RoleAssignment{}, fmt.Errorf("%w: role belongs to a different tenant", ErrInvalidInput)
	}
	assignment := RoleAssignment{UserID: user.ID, RoleID: role.ID, TenantID: user.TenantID}
	if err := s.store.Roles().Assign(ctx, assignment); err != nil {
		return RoleAssignment{}, err
	}
	return assignment, nil
}

// RemoveAssignment detaches a role from a user.
func (s *AdminService) RemoveAssignment(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.Roles().Unassign(ctx, userID, roleID)
}

// ListCapabilities returns the capability catalog.
func (s *AdminService) ListCapabilities(ctx context.Context) ([]Capability, error) {
	return s.store.Roles().ListCapabilities(ctx)
}
