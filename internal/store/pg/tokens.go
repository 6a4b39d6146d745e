package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"chrona.app/internal/auth"
	"chrona.app/internal/ids"
)

// Refresh token store --------------------------------------------------------

type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into refresh_tokens(id, user_id, token_hash, expires_at, created_at, revoked)
		values($1,$2,$3,$4,$5,false)
	`, tok.ID, tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt)
	return mapPgError(err)
}

func (s *refreshTokenStore) Find(ctx context.Context, id string) (*auth.RefreshToken, error) {
	var tok auth.RefreshToken
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, token_hash, expires_at, created_at, revoked
		from refresh_tokens where id=$1
	`, id).Scan(&tok.ID, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &tok, nil
}

// Rotate revokes the row only if it is still live. The conditional update is
// the compare-and-swap that makes rotation single-use: of two concurrent
// refreshes exactly one sees rows_affected=1.
func (s *refreshTokenStore) Rotate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where id=$1 and not revoked`, id)
	if err != nil {
		return mapPgError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrConflict
	}
	return nil
}

func (s *refreshTokenStore) Revoke(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where id=$1`, id)
	return mapPgError(err)
}

func (s *refreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true where user_id=$1 and not revoked`, userID)
	return mapPgError(err)
}

// Impersonation store --------------------------------------------------------

type impersonationStore struct{ db *sql.DB }

func (s *impersonationStore) Create(ctx context.Context, sess *auth.ImpersonationSession) error {
	_, err := s.db.ExecContext(ctx, `
		insert into impersonation_sessions(id, actor_id, target_id, token_id, started_at)
		values($1,$2,$3,$4,$5)
	`, sess.ID, sess.ActorID, sess.TargetID, sess.TokenID, sess.StartedAt)
	return mapPgError(err)
}

func (s *impersonationStore) FindActiveByTokenID(ctx context.Context, tokenID string) (*auth.ImpersonationSession, error) {
	var (
		sess    auth.ImpersonationSession
		endedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, actor_id, target_id, token_id, started_at, ended_at
		from impersonation_sessions
		where token_id=$1 and ended_at is null
	`, tokenID).Scan(&sess.ID, &sess.ActorID, &sess.TargetID, &sess.TokenID, &sess.StartedAt, &endedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return &sess, nil
}

func (s *impersonationStore) End(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update impersonation_sessions set ended_at=$2 where id=$1 and ended_at is null`, id, at)
	if err != nil {
		return mapPgError(err)
	}
	return requireRow(res)
}

// Audit store ----------------------------------------------------------------

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, entry *auth.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	meta, _ := json.Marshal(entry.Metadata)
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log(id, occurred_at, actor_id, tenant_id, action, target_type, target_id, metadata)
		values($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.OccurredAt, entry.ActorID, nullable(entry.TenantID), entry.Action,
		entry.TargetType, entry.TargetID, meta)
	return mapPgError(err)
}
