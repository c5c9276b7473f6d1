package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidshare/backend/internal/models"
)

const (
	DefaultMaxAttempts = 5
	defaultBaseBackoff = 10 * time.Millisecond
	defaultMaxBackoff  = 250 * time.Millisecond
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// TxRunner executes functions inside serializable transactions, retrying
// transient conflicts a bounded number of times before reporting models.ErrConflict.
type TxRunner struct {
	Pool        Pool
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// OnRetry is invoked before each retry. It may be nil.
	OnRetry func(op string, attempt int, err error)
}

// NewTxRunner returns a runner over pool using maxAttempts (DefaultMaxAttempts when <= 0).
func NewTxRunner(pool Pool, maxAttempts int) *TxRunner {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &TxRunner{
		Pool:        pool,
		MaxAttempts: maxAttempts,
		BaseBackoff: defaultBaseBackoff,
		MaxBackoff:  defaultMaxBackoff,
	}
}

// Run executes fn in a serializable transaction named op.
//
// Errors returned by fn that match a typed kind from models are returned unchanged
// after rollback. Retryable Postgres errors restart the transaction. Anything else is
// surfaced as a models.StorageError and is not retried.
func (r *TxRunner) Run(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if r.OnRetry != nil {
				r.OnRetry(op, attempt, lastErr)
			}
			if err := r.sleep(ctx, attempt); err != nil {
				return fmt.Errorf("%s: abandoned retry after attempt %d: %w", op, attempt, err)
			}
		}

		tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return classify(op+": begin", err)
		}

		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback(ctx)
			if ShouldRetry(err) {
				lastErr = err
				continue
			}
			return classify(op, err)
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			if ShouldRetry(err) {
				lastErr = err
				continue
			}
			return classify(op+": commit", err)
		}

		return nil
	}

	return errors.Join(models.ErrConflict, lastErr)
}

func (r *TxRunner) sleep(ctx context.Context, attempt int) error {
	base := r.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * base
	if r.MaxBackoff > 0 && backoff > r.MaxBackoff {
		backoff = r.MaxBackoff
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ShouldRetry reports whether err is a transient serialization or locking failure.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := retryablePgErrorCodes[pgErr.Code]
		return ok
	}
	return false
}

// TranslateError maps constraint violations onto typed kinds and wraps the rest.
func TranslateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return models.ErrDuplicate
		case "23503":
			// foreign key to a missing row
			return models.ErrNotFound
		case "22P02":
			// an id that is not a UUID cannot name any row
			return models.ErrNotFound
		}
	}
	return models.Storage(op, err)
}

// classify keeps typed kinds and cancellations recognisable and translates the rest.
func classify(op string, err error) error {
	if models.IsKnown(err) {
		return err
	}
	if models.Canceled(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return TranslateError(op, err)
}
