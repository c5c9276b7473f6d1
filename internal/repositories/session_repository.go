package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/db"
)

// PostgresSessionStore persists issued tokens in the sessions table. Rows cascade
// away with their account.
type PostgresSessionStore struct {
	pool db.Pool
}

func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save upserts session.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	_, err := s.exec(ctx, "save session", `
        INSERT INTO sessions (token, kind, account_id, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (token)
        DO UPDATE SET kind = EXCLUDED.kind, account_id = EXCLUDED.account_id, expires_at = EXCLUDED.expires_at
    `, session.Token, session.Kind, session.AccountID, session.ExpiresAt.UTC())
	return err
}

// Find loads a session by token, or auth.ErrSessionNotFound.
func (s *PostgresSessionStore) Find(ctx context.Context, token string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, db.TranslateError("acquire connection", err)
	}
	defer conn.Release()

	session := auth.Session{Token: token}
	err = conn.QueryRow(ctx, `SELECT kind, account_id, expires_at FROM sessions WHERE token = $1`, token).
		Scan(&session.Kind, &session.AccountID, &session.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.Session{}, db.TranslateError("find session", err)
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

// Delete removes one token.
func (s *PostgresSessionStore) Delete(ctx context.Context, token string) error {
	removed, err := s.exec(ctx, "delete session", `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if removed == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// DeleteAccount removes every token issued to accountID.
func (s *PostgresSessionStore) DeleteAccount(ctx context.Context, accountID string) (int, error) {
	removed, err := s.exec(ctx, "delete account sessions", `DELETE FROM sessions WHERE account_id = $1`, accountID)
	return int(removed), err
}

func (s *PostgresSessionStore) exec(ctx context.Context, op, sql string, args ...any) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, db.TranslateError("acquire connection", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, db.TranslateError(op, err)
	}
	return tag.RowsAffected(), nil
}
