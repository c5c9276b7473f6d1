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

type scanner interface {
	Scan(dest ...any) error
}

const accountColumns = `id, handle, email, password_hash, privileged, active, balance, received_likes, last_grant_date, avatar, password_changed, created_at, updated_at`

func scanAccount(row scanner) (models.Account, error) {
	var (
		account   models.Account
		lastGrant sql.NullTime
	)
	if err := row.Scan(
		&account.ID, &account.Handle, &account.Email, &account.Password,
		&account.Privileged, &account.Active, &account.Balance, &account.ReceivedLikes,
		&lastGrant, &account.Avatar, &account.PasswordChanged, &account.CreatedAt, &account.UpdatedAt,
	); err != nil {
		return models.Account{}, err
	}
	if lastGrant.Valid {
		d := models.DateOf(lastGrant.Time)
		account.LastGrantDate = &d
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// CreateAccount persists a new account record.
func (r *PostgresAccountRepository) CreateAccount(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Storage("acquire connection", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (id, handle, email, password_hash, privileged, active, balance, avatar, password_changed, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, account.ID, account.Handle, account.Email, account.Password, account.Privileged, account.Active, account.Balance,
		account.Avatar, account.PasswordChanged, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return db.TranslateError("insert account", err)
	}
	return nil
}

// GetAccount fetches an account by id.
func (r *PostgresAccountRepository) GetAccount(ctx context.Context, id string) (models.Account, error) {
	if !validID(id) {
		return models.Account{}, models.ErrNotFound
	}
	return r.findOne(ctx, "select account", `WHERE id = $1`, id)
}

// FindAccountByEmail fetches an account by email address.
func (r *PostgresAccountRepository) FindAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.findOne(ctx, "select account by email", `WHERE lower(email) = lower($1)`, email)
}

// FindAccountByHandle fetches an account by handle.
func (r *PostgresAccountRepository) FindAccountByHandle(ctx context.Context, handle string) (models.Account, error) {
	return r.findOne(ctx, "select account by handle", `WHERE lower(handle) = lower($1)`, handle)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, op, where string, arg any) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	account, err := scanAccount(conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts `+where, arg))
	if err != nil {
		return models.Account{}, db.TranslateError(op, err)
	}
	return account, nil
}

// ListAccounts returns every account, oldest first.
func (r *PostgresAccountRepository) ListAccounts(ctx context.Context) ([]models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, models.Storage("acquire connection", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, models.Storage("query accounts", err)
	}
	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]models.Account, error) {
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, models.Storage("scan account", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, models.Storage("iterate accounts", err)
	}
	return accounts, nil
}

// UpdateAccountProfile modifies handle, email and the active flag.
func (r *PostgresAccountRepository) UpdateAccountProfile(ctx context.Context, id, handle, email string, active bool) error {
	return r.exec(ctx, "update account profile", `
        UPDATE accounts
        SET handle = $2, email = $3, active = $4, updated_at = NOW()
        WHERE id = $1
    `, id, handle, email, active)
}

// SetAccountPassword replaces the stored password hash. changed records whether the
// owner chose it, as opposed to an administrator assigning it.
func (r *PostgresAccountRepository) SetAccountPassword(ctx context.Context, id, hash string, changed bool) error {
	return r.exec(ctx, "update account password", `
        UPDATE accounts SET password_hash = $2, password_changed = $3, updated_at = NOW() WHERE id = $1
    `, id, hash, changed)
}

// SetAccountAvatar stores the avatar reference.
func (r *PostgresAccountRepository) SetAccountAvatar(ctx context.Context, id, avatar string) error {
	return r.exec(ctx, "update account avatar", `
        UPDATE accounts SET avatar = $2, updated_at = NOW() WHERE id = $1
    `, id, avatar)
}

// SetAccountActive toggles the active flag.
func (r *PostgresAccountRepository) SetAccountActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, "update account active", `
        UPDATE accounts SET active = $2, updated_at = NOW() WHERE id = $1
    `, id, active)
}

func (r *PostgresAccountRepository) exec(ctx context.Context, op, query string, args ...any) error {
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

// PostgresLedgerRepository performs currency mutations in serializable transactions.
type PostgresLedgerRepository struct {
	tx *db.TxRunner
}

// NewPostgresLedgerRepository constructs a ledger repository using runner.
func NewPostgresLedgerRepository(runner *db.TxRunner) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{tx: runner}
}

// Transfer debits fromID and credits toID by amount as a single transaction.
func (r *PostgresLedgerRepository) Transfer(ctx context.Context, fromID, toID string, amount int64) (models.TransferResult, error) {
	var result models.TransferResult
	err := r.tx.Run(ctx, "transfer", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
            SELECT `+accountColumns+`
            FROM accounts
            WHERE id IN ($1, $2)
            ORDER BY id
            FOR UPDATE
        `, fromID, toID)
		if err != nil {
			return fmt.Errorf("lock accounts: %w", err)
		}
		locked, err := collectAccounts(rows)
		if err != nil {
			return err
		}

		var from, to *models.Account
		for i := range locked {
			switch locked[i].ID {
			case fromID:
				from = &locked[i]
			case toID:
				to = &locked[i]
			}
		}
		if from == nil || to == nil {
			return models.ErrNotFound
		}
		if from.Balance < amount {
			return models.ErrInsufficientFunds
		}

		debited, err := scanAccount(tx.QueryRow(ctx, `
            UPDATE accounts SET balance = balance - $2, updated_at = NOW()
            WHERE id = $1
            RETURNING `+accountColumns, fromID, amount))
		if err != nil {
			return fmt.Errorf("debit source: %w", err)
		}
		credited, err := scanAccount(tx.QueryRow(ctx, `
            UPDATE accounts SET balance = balance + $2, updated_at = NOW()
            WHERE id = $1
            RETURNING `+accountColumns, toID, amount))
		if err != nil {
			return fmt.Errorf("credit destination: %w", err)
		}

		result = models.TransferResult{Source: debited, Destination: credited, Amount: amount}
		return nil
	})
	if err != nil {
		return models.TransferResult{}, err
	}
	return result, nil
}

// Grant credits amount when the account has not been granted on date yet.
func (r *PostgresLedgerRepository) Grant(ctx context.Context, id string, date time.Time, amount int64) (models.Account, bool, error) {
	var (
		account models.Account
		granted bool
	)
	day := models.DateOf(date)
	err := r.tx.Run(ctx, "grant", func(ctx context.Context, tx pgx.Tx) error {
		updated, err := scanAccount(tx.QueryRow(ctx, `
            UPDATE accounts
            SET balance = balance + $2, last_grant_date = $3, updated_at = NOW()
            WHERE id = $1 AND (last_grant_date IS NULL OR last_grant_date <> $3)
            RETURNING `+accountColumns, id, amount, day))
		if err == nil {
			account, granted = updated, true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("grant: %w", err)
		}

		current, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrNotFound
			}
			return fmt.Errorf("select account: %w", err)
		}
		account, granted = current, false
		return nil
	})
	if err != nil {
		return models.Account{}, false, err
	}
	return account, granted, nil
}
