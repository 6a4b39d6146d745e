// Package pg implements the control-plane auth store on PostgreSQL.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"chrona.app/internal/auth"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store holds the control-plane pool and implements auth.Store.
type Store struct {
	db *sql.DB
}

var _ auth.Store = (*Store)(nil)

// Open connects to the control-plane database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (tests use sqlmock through this).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Users() auth.UserStore                   { return &userStore{db: s.db} }
func (s *Store) Tenants() auth.TenantStore               { return &tenantStore{db: s.db} }
func (s *Store) Roles() auth.RoleStore                   { return &roleStore{db: s.db} }
func (s *Store) RefreshTokens() auth.RefreshTokenStore   { return &refreshTokenStore{db: s.db} }
func (s *Store) Impersonations() auth.ImpersonationStore { return &impersonationStore{db: s.db} }
func (s *Store) Audit() auth.AuditStore                  { return &auditStore{db: s.db} }

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return auth.ErrConflict
		case pgErrForeignKeyViolation:
			return auth.ErrNotFound
		}
	}
	return err
}

// nullable maps empty strings to SQL NULL for optional foreign keys.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func scanNullable(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}
