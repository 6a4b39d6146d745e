package pg

import (
	"context"
	"database/sql"

	"chrona.app/internal/auth"
	"chrona.app/internal/ids"
)

// Role store ----------------------------------------------------------------

type roleStore struct{ db *sql.DB }

const roleColumns = `id, tenant_id, name, description, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (*auth.Role, error) {
	var (
		role     auth.Role
		tenantID sql.NullString
	)
	if err := row.Scan(&role.ID, &tenantID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, mapPgError(err)
	}
	role.TenantID = scanNullable(tenantID)
	return &role, nil
}

func (s *roleStore) Create(ctx context.Context, role *auth.Role) error {
	_, err := s.db.ExecContext(ctx, `
		insert into roles(id, tenant_id, name, description)
		values($1,$2,$3,$4)
	`, role.ID, nullable(role.TenantID), role.Name, role.Description)
	return mapPgError(err)
}

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	return scanRole(s.db.QueryRowContext(ctx,
		`select `+roleColumns+` from roles where id=$1`, id))
}

func (s *roleStore) ListByTenant(ctx context.Context, tenantID string) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+roleColumns+` from roles where tenant_id=$1 order by created_at`, tenantID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func (s *roleStore) RolesForUser(ctx context.Context, userID string) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.tenant_id, r.name, r.description, r.created_at, r.updated_at
		from roles r
		join user_roles ur on ur.role_id = r.id
		where ur.user_id = $1
		order by r.created_at
	`, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows *sql.Rows) ([]*auth.Role, error) {
	var roles []*auth.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *roleStore) Assign(ctx context.Context, a auth.RoleAssignment) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles(user_id, role_id, tenant_id)
		values($1,$2,$3)
		on conflict do nothing
	`, a.UserID, a.RoleID, nullable(a.TenantID))
	return mapPgError(err)
}

func (s *roleStore) Unassign(ctx context.Context, userID, roleID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role_id=$2`, userID, roleID)
	if err != nil {
		return mapPgError(err)
	}
	return requireRow(res)
}

func (s *roleStore) GrantsForRole(ctx context.Context, roleID string) ([]auth.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select c.key, rc.effect
		from capabilities c
		join role_capabilities rc on rc.capability_id = c.id
		where rc.role_id = $1
	`, roleID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var grants []auth.Grant
	for rows.Next() {
		var g auth.Grant
		if err := rows.Scan(&g.Capability, &g.Effect); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *roleStore) SetGrants(ctx context.Context, roleID string, grants []auth.Grant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from role_capabilities where role_id=$1`, roleID); err != nil {
		return mapPgError(err)
	}
	for _, g := range grants {
		_, err := tx.ExecContext(ctx, `
			insert into role_capabilities(role_id, capability_id, effect)
			select $1, id, $3 from capabilities where key=$2
		`, roleID, g.Capability, g.Effect)
		if err != nil {
			return mapPgError(err)
		}
	}
	return tx.Commit()
}

func (s *roleStore) EnsureCapabilities(ctx context.Context, caps []auth.Capability) error {
	for _, c := range caps {
		if c.ID == "" {
			c.ID = ids.New()
		}
		_, err := s.db.ExecContext(ctx, `
			insert into capabilities(id, key, description)
			values($1,$2,$3)
			on conflict (key) do nothing
		`, c.ID, c.Key, c.Description)
		if err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

func (s *roleStore) ListCapabilities(ctx context.Context) ([]auth.Capability, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, key, description, created_at from capabilities order by key`)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var caps []auth.Capability
	for rows.Next() {
		var c auth.Capability
		if err := rows.Scan(&c.ID, &c.Key, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}
