package pg

import (
	"context"
	"database/sql"

	"chrona.app/internal/auth"
)

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, tenant_id, email, password_hash, status)
		values($1,$2,$3,$4,$5)
	`, u.ID, nullable(u.TenantID), u.Email, u.PasswordHash, u.Status)
	return mapPgError(err)
}

const userColumns = `id, tenant_id, email, password_hash, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var (
		u        auth.User
		tenantID sql.NullString
	)
	if err := row.Scan(&u.ID, &tenantID, &u.Email, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapPgError(err)
	}
	u.TenantID = scanNullable(tenantID)
	return &u, nil
}

func (s *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email))
}

func (s *userStore) ListByTenant(ctx context.Context, tenantID string) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where tenant_id=$1 order by created_at`, tenantID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) UpdateStatus(ctx context.Context, userID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set status=$2, updated_at=now() where id=$1`, userID, status)
	if err != nil {
		return mapPgError(err)
	}
	return requireRow(res)
}

func (s *userStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, userID, passwordHash)
	if err != nil {
		return mapPgError(err)
	}
	return requireRow(res)
}

// Tenant store --------------------------------------------------------------

type tenantStore struct{ db *sql.DB }

const tenantColumns = `id, name, slug, tenant_key, db_host, db_name, status, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (*auth.Tenant, error) {
	var t auth.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Key, &t.DBHost, &t.DBName, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &t, nil
}

func (s *tenantStore) Create(ctx context.Context, t *auth.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tenants(id, name, slug, tenant_key, db_host, db_name, status)
		values($1,$2,$3,$4,$5,$6,$7)
	`, t.ID, t.Name, t.Slug, t.Key, t.DBHost, t.DBName, t.Status)
	return mapPgError(err)
}

func (s *tenantStore) Find(ctx context.Context, id string) (*auth.Tenant, error) {
	return scanTenant(s.db.QueryRowContext(ctx,
		`select `+tenantColumns+` from tenants where id=$1`, id))
}

func (s *tenantStore) FindByKey(ctx context.Context, key string) (*auth.Tenant, error) {
	return scanTenant(s.db.QueryRowContext(ctx,
		`select `+tenantColumns+` from tenants where tenant_key=$1`, key))
}

func (s *tenantStore) List(ctx context.Context) ([]*auth.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+tenantColumns+` from tenants order by created_at`)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var tenants []*auth.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *tenantStore) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`update tenants set status=$2, updated_at=now() where id=$1`, id, status)
	if err != nil {
		return mapPgError(err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
