package auth

import (
	"context"
	"errors"
	"testing"
)

type recordingEvictor struct {
	evicted []string
}

func (e *recordingEvictor) Evict(tenantID string) {
	e.evicted = append(e.evicted, tenantID)
}

func adminFixture(t *testing.T) (*fixture, *AdminService, *recordingEvictor) {
	t.Helper()
	f := newFixture(t)
	ev := &recordingEvictor{}
	admin, err := NewAdminService(f.store, f.svc, ev)
	if err != nil {
		t.Fatalf("NewAdminService: %v", err)
	}
	return f, admin, ev
}

func TestCreateTenantGeneratesKey(t *testing.T) {
	_, admin, _ := adminFixture(t)
	tenant, err := admin.CreateTenant(context.Background(), "Initech", "Initech", "db3:5432", "initech")
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	if tenant.Key == "" || tenant.ID == "" {
		t.Fatalf("expected generated id and key, got %+v", tenant)
	}
	if tenant.Slug != "initech" {
		t.Fatalf("slug must be lowercased, got %q", tenant.Slug)
	}
	if tenant.Status != TenantStatusActive {
		t.Fatalf("new tenants start active, got %q", tenant.Status)
	}
}

func TestCreateTenantValidatesInput(t *testing.T) {
	_, admin, _ := adminFixture(t)
	if _, err := admin.CreateTenant(context.Background(), "", "slug", "h", "d"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty name, got %v", err)
	}
	if _, err := admin.CreateTenant(context.Background(), "Name", "slug", "", "d"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty db host, got %v", err)
	}
}

func TestDeactivateTenantKillsSessionsAndEvictsPool(t *testing.T) {
	f, admin, ev := adminFixture(t)
	pair, _, err := f.svc.Login(context.Background(), "u1@t1.test", "correct horse", "KEY-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := admin.DeactivateTenant(context.Background(), "t1"); err != nil {
		t.Fatalf("DeactivateTenant: %v", err)
	}

	if len(ev.evicted) != 1 || ev.evicted[0] != "t1" {
		t.Fatalf("expected pool eviction for t1, got %v", ev.evicted)
	}
	if _, _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("sessions must die with the tenant, got %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "u1@t1.test", "correct horse", "KEY-1"); !errors.Is(err, ErrTenantAccessDenied) {
		t.Fatalf("fresh logins must be refused, got %v", err)
	}
}

func TestCreateUserSystemAndTenantBound(t *testing.T) {
	_, admin, _ := adminFixture(t)
	bound, err := admin.CreateUser(context.Background(), "t1", "New@T1.Test", "pw-123456")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if bound.TenantID != "t1" || bound.Email != "new@t1.test" {
		t.Fatalf("unexpected user: %+v", bound)
	}
	if bound.PasswordHash == "pw-123456" {
		t.Fatalf("password must be stored hashed")
	}

	system, err := admin.CreateUser(context.Background(), "", "root@chrona.test", "pw-123456")
	if err != nil {
		t.Fatalf("CreateUser system: %v", err)
	}
	if !system.System() {
		t.Fatalf("expected a system principal")
	}
}

func TestCreateUserUnknownTenant(t *testing.T) {
	_, admin, _ := adminFixture(t)
	if _, err := admin.CreateUser(context.Background(), "t-ghost", "a@b.test", "pw"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivateUserRevokesSessions(t *testing.T) {
	f, admin, _ := adminFixture(t)
	pair, _, err := f.svc.Login(context.Background(), "u1@t1.test", "correct horse", "KEY-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := admin.DeactivateUser(context.Background(), "u1"); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if _, _, err := f.svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked session, got %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "u1@t1.test", "correct horse", "KEY-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected login refused, got %v", err)
	}
}

func TestSetRoleGrantsValidatesAndDedupes(t *testing.T) {
	f, admin, _ := adminFixture(t)
	err := admin.SetRoleGrants(context.Background(), "r-member", []Grant{
		{Capability: "invoice.read", Effect: EffectAllow},
		{Capability: "invoice.read", Effect: EffectAllow},
		{Capability: " ", Effect: EffectAllow},
		{Capability: "invoice.write", Effect: EffectDeny},
	})
	if err != nil {
		t.Fatalf("SetRoleGrants: %v", err)
	}
	grants, err := f.store.Roles().GrantsForRole(context.Background(), "r-member")
	if err != nil {
		t.Fatalf("GrantsForRole: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected deduped grants, got %v", grants)
	}

	err = admin.SetRoleGrants(context.Background(), "r-member", []Grant{
		{Capability: "invoice.read", Effect: "maybe"},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad effect, got %v", err)
	}
}

func TestAssignRoleRejectsCrossTenant(t *testing.T) {
	f, admin, _ := adminFixture(t)
	_ = f.store.Roles().Create(context.Background(), &Role{ID: "r-t2", TenantID: "t2", Name: "member"})

	if _, err := admin.AssignRole(context.Background(), "u1", "r-t2"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("cross-tenant assignment must fail, got %v", err)
	}
	if _, err := admin.AssignRole(context.Background(), "u1", "r-operator"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("system role on a bound user must fail, got %v", err)
	}
	if _, err := admin.AssignRole(context.Background(), "u1", "r-member"); err != nil {
		t.Fatalf("same-tenant assignment should work: %v", err)
	}
}

func TestRemoveAssignmentDropsCapabilities(t *testing.T) {
	f, admin, _ := adminFixture(t)
	if err := admin.RemoveAssignment(context.Background(), "u1", "r-member"); err != nil {
		t.Fatalf("RemoveAssignment: %v", err)
	}
	_, principal, err := f.svc.Login(context.Background(), "u1@t1.test", "correct horse", "KEY-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if principal.HasCapability(CapTimeEntryRead) {
		t.Fatalf("capabilities must disappear with the role, got %v", principal.Capabilities)
	}
}
