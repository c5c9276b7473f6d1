package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/models"
)

// PostgresCommentRepository persists comments.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// CreateComment stores a comment. Unknown work or author ids surface as models.ErrNotFound.
func (r *PostgresCommentRepository) CreateComment(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Storage("acquire connection", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (id, work_id, author_id, content, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, comment.ID, comment.WorkID, comment.AuthorID, comment.Content, comment.CreatedAt)
	if err != nil {
		return db.TranslateError("insert comment", err)
	}
	return nil
}

// ListComments returns comments on workID, newest first.
func (r *PostgresCommentRepository) ListComments(ctx context.Context, workID string) ([]models.Comment, error) {
	if !validID(workID) {
		return nil, nil
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, work_id, author_id, content, created_at
        FROM comments
        WHERE work_id = $1
        ORDER BY created_at DESC, id DESC
    `, workID)
	if err != nil {
		return nil, models.Storage("query comments", err)
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.WorkID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, models.Storage("scan comment", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Storage("iterate comments", err)
	}
	return comments, nil
}

// PostgresAnnotationRepository persists timeline annotations. The seq column is a
// BIGSERIAL that fixes insertion order for offset ties.
type PostgresAnnotationRepository struct {
	pool db.Pool
}

// NewPostgresAnnotationRepository constructs an annotation repository backed by PostgreSQL.
func NewPostgresAnnotationRepository(pool db.Pool) *PostgresAnnotationRepository {
	return &PostgresAnnotationRepository{pool: pool}
}

// AppendAnnotation stores annotation and returns it with its assigned sequence.
func (r *PostgresAnnotationRepository) AppendAnnotation(ctx context.Context, annotation models.Annotation) (models.Annotation, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Annotation{}, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	err = conn.QueryRow(ctx, `
        INSERT INTO annotations (id, work_id, author_id, content, offset_seconds, style, color, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING seq
    `, annotation.ID, annotation.WorkID, annotation.AuthorID, annotation.Content, annotation.Offset,
		annotation.Style, annotation.Color, annotation.CreatedAt).Scan(&annotation.Seq)
	if err != nil {
		return models.Annotation{}, db.TranslateError("insert annotation", err)
	}
	return annotation, nil
}

// ListAnnotations returns annotations on workID by ascending offset, then insertion order.
func (r *PostgresAnnotationRepository) ListAnnotations(ctx context.Context, workID string) ([]models.Annotation, error) {
	if !validID(workID) {
		return nil, nil
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, work_id, author_id, content, offset_seconds, style, color, seq, created_at
        FROM annotations
        WHERE work_id = $1
        ORDER BY offset_seconds ASC, seq ASC
    `, workID)
	if err != nil {
		return nil, models.Storage("query annotations", err)
	}
	defer rows.Close()

	var annotations []models.Annotation
	for rows.Next() {
		var a models.Annotation
		if err := rows.Scan(&a.ID, &a.WorkID, &a.AuthorID, &a.Content, &a.Offset, &a.Style, &a.Color, &a.Seq, &a.CreatedAt); err != nil {
			return nil, models.Storage("scan annotation", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Storage("iterate annotations", err)
	}
	return annotations, nil
}

// PostgresFollowRepository manages the follow edge set. Followers are always derived
// from the same table.
type PostgresFollowRepository struct {
	pool db.Pool
	tx   *db.TxRunner
}

// NewPostgresFollowRepository constructs a follow repository backed by PostgreSQL.
func NewPostgresFollowRepository(pool db.Pool, runner *db.TxRunner) *PostgresFollowRepository {
	return &PostgresFollowRepository{pool: pool, tx: runner}
}

// ToggleFollow deletes the edge when present and inserts it otherwise, reporting
// whether followerID now follows followedID.
func (r *PostgresFollowRepository) ToggleFollow(ctx context.Context, followerID, followedID string) (bool, error) {
	var following bool
	err := r.tx.Run(ctx, "toggle follow", func(ctx context.Context, tx pgx.Tx) error {
		var found int
		if err := tx.QueryRow(ctx, `
            SELECT count(*) FROM accounts WHERE id IN ($1, $2)
        `, followerID, followedID).Scan(&found); err != nil {
			return fmt.Errorf("select accounts: %w", err)
		}
		if found != 2 {
			return models.ErrNotFound
		}

		tag, err := tx.Exec(ctx, `
            DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2
        `, followerID, followedID)
		if err != nil {
			return fmt.Errorf("delete follow: %w", err)
		}
		if tag.RowsAffected() > 0 {
			following = false
			return nil
		}

		if _, err := tx.Exec(ctx, `
            INSERT INTO follows (follower_id, followed_id, created_at) VALUES ($1, $2, NOW())
        `, followerID, followedID); err != nil {
			return fmt.Errorf("insert follow: %w", err)
		}
		following = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return following, nil
}

// IsFollowing reports whether the edge followerID -> followedID exists.
func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	if !validID(followerID, followedID) {
		return false, nil
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followed_id = $2)
    `, followerID, followedID).Scan(&exists)
	if err != nil {
		return false, models.Storage("select follow", err)
	}
	return exists, nil
}

// ListFollowing returns the accounts accountID follows, most recent edge first.
func (r *PostgresFollowRepository) ListFollowing(ctx context.Context, accountID string) ([]models.Account, error) {
	return r.project(ctx, "a.id = f.followed_id", "f.follower_id", accountID)
}

// ListFollowers returns the accounts following accountID, most recent edge first.
func (r *PostgresFollowRepository) ListFollowers(ctx context.Context, accountID string) ([]models.Account, error) {
	return r.project(ctx, "a.id = f.follower_id", "f.followed_id", accountID)
}

func (r *PostgresFollowRepository) project(ctx context.Context, join, filter, accountID string) ([]models.Account, error) {
	if !validID(accountID) {
		return nil, nil
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT a.id, a.handle, a.email, a.password_hash, a.privileged, a.active, a.balance,
               a.received_likes, a.last_grant_date, a.avatar, a.password_changed, a.created_at, a.updated_at
        FROM follows f
        JOIN accounts a ON `+join+`
        WHERE `+filter+` = $1
        ORDER BY f.created_at DESC, a.id ASC
    `, accountID)
	if err != nil {
		return nil, models.Storage("query follows", err)
	}
	return collectAccounts(rows)
}
