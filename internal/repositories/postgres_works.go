package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/models"
)

const workColumns = `id, owner_id, title, description, media_ref, thumbnail, status, views, likes, moderation_note, moderator_id, moderated_at, triple_count, triple_members, created_at`

func scanWork(row scanner) (models.Work, error) {
	var (
		work        models.Work
		status      string
		moderatorID sql.NullString
		moderatedAt sql.NullTime
		members     string
	)
	if err := row.Scan(
		&work.ID, &work.OwnerID, &work.Title, &work.Description, &work.MediaRef, &work.Thumbnail,
		&status, &work.Views, &work.Likes, &work.ModerationNote, &moderatorID, &moderatedAt,
		&work.TripleCount, &members, &work.CreatedAt,
	); err != nil {
		return models.Work{}, err
	}

	set, err := models.DecodeMemberSet(members)
	if err != nil {
		return models.Work{}, fmt.Errorf("decode triple members of %s: %w", work.ID, err)
	}
	work.TripleMembers = set
	work.Status = models.WorkStatus(status)
	if moderatorID.Valid {
		id := moderatorID.String
		work.ModeratorID = &id
	}
	if moderatedAt.Valid {
		at := moderatedAt.Time.UTC()
		work.ModeratedAt = &at
	}
	work.CreatedAt = work.CreatedAt.UTC()
	return work, nil
}

// PostgresWorkRepository persists works and applies moderation and engagement mutations.
type PostgresWorkRepository struct {
	pool db.Pool
	tx   *db.TxRunner
}

// NewPostgresWorkRepository constructs a work repository backed by PostgreSQL.
func NewPostgresWorkRepository(pool db.Pool, runner *db.TxRunner) *PostgresWorkRepository {
	return &PostgresWorkRepository{pool: pool, tx: runner}
}

// CreateWork persists a new work in its initial state.
func (r *PostgresWorkRepository) CreateWork(ctx context.Context, work models.Work) error {
	members, err := models.EncodeMemberSet(work.TripleMembers)
	if err != nil {
		return models.Storage("encode triple members", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Storage("acquire connection", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO works (id, owner_id, title, description, media_ref, thumbnail, status, triple_count, triple_members, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, work.ID, work.OwnerID, work.Title, work.Description, work.MediaRef, work.Thumbnail, string(work.Status), work.TripleCount, members, work.CreatedAt)
	if err != nil {
		return db.TranslateError("insert work", err)
	}
	return nil
}

// GetWork fetches a work by id.
func (r *PostgresWorkRepository) GetWork(ctx context.Context, id string) (models.Work, error) {
	if !validID(id) {
		return models.Work{}, models.ErrNotFound
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Work{}, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	work, err := scanWork(conn.QueryRow(ctx, `SELECT `+workColumns+` FROM works WHERE id = $1`, id))
	if err != nil {
		return models.Work{}, db.TranslateError("select work", err)
	}
	return work, nil
}

// ListWorksByStatus returns works in status, newest first. limit <= 0 means unlimited.
func (r *PostgresWorkRepository) ListWorksByStatus(ctx context.Context, status models.WorkStatus, limit int) ([]models.Work, error) {
	return r.list(ctx, "list works by status", `WHERE status = $1`, limit, string(status))
}

// ListWorksByOwner returns every work owned by ownerID, newest first.
func (r *PostgresWorkRepository) ListWorksByOwner(ctx context.Context, ownerID string) ([]models.Work, error) {
	if !validID(ownerID) {
		return nil, nil
	}
	return r.list(ctx, "list works by owner", `WHERE owner_id = $1`, 0, ownerID)
}

// SearchWorks matches approved works whose title contains query.
func (r *PostgresWorkRepository) SearchWorks(ctx context.Context, query string, limit int) ([]models.Work, error) {
	return r.list(ctx, "search works", `WHERE status = 'approved' AND title ILIKE '%' || $1 || '%'`, limit, query)
}

func (r *PostgresWorkRepository) list(ctx context.Context, op, where string, limit int, arg any) ([]models.Work, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	query := `SELECT ` + workColumns + ` FROM works ` + where + ` ORDER BY created_at DESC, id DESC`
	args := []any{arg}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, models.Storage(op, err)
	}
	defer rows.Close()

	var works []models.Work
	for rows.Next() {
		work, err := scanWork(rows)
		if err != nil {
			return nil, models.Storage(op+": scan", err)
		}
		works = append(works, work)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Storage(op+": iterate", err)
	}
	return works, nil
}

// DeleteWork removes a work. Comments and annotations go with it through ON DELETE CASCADE.
func (r *PostgresWorkRepository) DeleteWork(ctx context.Context, id string) error {
	return r.exec(ctx, "delete work", `DELETE FROM works WHERE id = $1`, id)
}

// SetWorkThumbnail replaces the thumbnail reference.
func (r *PostgresWorkRepository) SetWorkThumbnail(ctx context.Context, id, thumbnail string) error {
	return r.exec(ctx, "update work thumbnail", `UPDATE works SET thumbnail = $2 WHERE id = $1`, id, thumbnail)
}

func (r *PostgresWorkRepository) exec(ctx context.Context, op, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Storage("acquire connection", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return db.TranslateError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ReviewWork applies a moderation transition after re-checking the moderator's role
// inside the same transaction.
func (r *PostgresWorkRepository) ReviewWork(ctx context.Context, workID, moderatorID string, status models.WorkStatus, note string, at time.Time) (models.Work, error) {
	var reviewed models.Work
	err := r.tx.Run(ctx, "review work", func(ctx context.Context, tx pgx.Tx) error {
		var privileged, active bool
		err := tx.QueryRow(ctx, `SELECT privileged, active FROM accounts WHERE id = $1 FOR SHARE`, moderatorID).Scan(&privileged, &active)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && (!privileged || !active)) {
			return models.ErrNotAuthorized
		}
		if err != nil {
			return fmt.Errorf("select moderator: %w", err)
		}

		reviewed, err = scanWork(tx.QueryRow(ctx, `
            UPDATE works
            SET status = $2, moderation_note = $3, moderator_id = $4, moderated_at = $5
            WHERE id = $1
            RETURNING `+workColumns, workID, string(status), note, moderatorID, at))
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return err
	})
	if err != nil {
		return models.Work{}, err
	}
	return reviewed, nil
}

// IncrementViews adds one view and returns the new total.
func (r *PostgresWorkRepository) IncrementViews(ctx context.Context, workID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	var views int64
	err = conn.QueryRow(ctx, `UPDATE works SET views = views + 1 WHERE id = $1 RETURNING views`, workID).Scan(&views)
	if err != nil {
		return 0, db.TranslateError("increment views", err)
	}
	return views, nil
}

// LikeWork adds one like to the work and one received like to its owner in one transaction.
func (r *PostgresWorkRepository) LikeWork(ctx context.Context, workID string) (models.LikeResult, error) {
	var result models.LikeResult
	err := r.tx.Run(ctx, "like work", func(ctx context.Context, tx pgx.Tx) error {
		result = models.LikeResult{WorkID: workID}
		err := tx.QueryRow(ctx, `
            UPDATE works SET likes = likes + 1 WHERE id = $1
            RETURNING owner_id, likes
        `, workID).Scan(&result.OwnerID, &result.Likes)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("increment likes: %w", err)
		}

		err = tx.QueryRow(ctx, `
            UPDATE accounts SET received_likes = received_likes + 1 WHERE id = $1
            RETURNING received_likes
        `, result.OwnerID).Scan(&result.OwnerReceivedLikes)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return err
	})
	if err != nil {
		return models.LikeResult{}, err
	}
	return result, nil
}

// ApplyTriple records actorID's one-time engagement. The member set and counter are
// read and written under the work's row lock.
func (r *PostgresWorkRepository) ApplyTriple(ctx context.Context, workID, actorID string) (int64, error) {
	var count int64
	err := r.tx.Run(ctx, "apply triple", func(ctx context.Context, tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, actorID).Scan(&exists); err != nil {
			return fmt.Errorf("select actor: %w", err)
		}
		if !exists {
			return models.ErrNotFound
		}

		var encoded string
		err := tx.QueryRow(ctx, `
            SELECT triple_count, triple_members FROM works WHERE id = $1 FOR UPDATE
        `, workID).Scan(&count, &encoded)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock work: %w", err)
		}

		members, err := models.DecodeMemberSet(encoded)
		if err != nil {
			return fmt.Errorf("decode triple members: %w", err)
		}
		if !members.Add(actorID) {
			return models.ErrAlreadyApplied
		}
		updated, err := models.EncodeMemberSet(members)
		if err != nil {
			return fmt.Errorf("encode triple members: %w", err)
		}

		return tx.QueryRow(ctx, `
            UPDATE works SET triple_count = triple_count + 1, triple_members = $2
            WHERE id = $1
            RETURNING triple_count
        `, workID, updated).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
