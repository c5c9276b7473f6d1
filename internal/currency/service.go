// Package currency maintains account balances: transfers between accounts and the
// once-per-day grant.
package currency

import (
	"context"
	"log/slog"
	"time"

	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/models"
)

const component = "currency"

// DefaultGrantAmount is credited by Grant when no amount is configured.
const DefaultGrantAmount int64 = 1

// Store is the persistence the ledger needs. Transfer and Grant must each be atomic.
type Store interface {
	GetAccount(ctx context.Context, id string) (models.Account, error)
	Transfer(ctx context.Context, fromID, toID string, amount int64) (models.TransferResult, error)
	Grant(ctx context.Context, id string, date time.Time, amount int64) (models.Account, bool, error)
}

// Service exposes currency operations to the HTTP layer.
type Service struct {
	store       Store
	grantAmount int64
	metrics     *metrics.Recorder
}

// NewService constructs a ledger. grantAmount <= 0 falls back to DefaultGrantAmount.
func NewService(store Store, grantAmount int64, recorder *metrics.Recorder) *Service {
	if grantAmount <= 0 {
		grantAmount = DefaultGrantAmount
	}
	return &Service{store: store, grantAmount: grantAmount, metrics: recorder}
}

// Transfer moves amount from the caller's account to toID.
func (s *Service) Transfer(ctx context.Context, caller models.Caller, toID string, amount int64) (result models.TransferResult, err error) {
	ctx, span := logging.StartSpan(ctx, "currency.transfer")
	defer func() {
		span.RecordError(err)
		span.End()
		s.metrics.Observe(component, "transfer", err)
	}()

	if amount <= 0 {
		return models.TransferResult{}, models.ErrInvalidAmount
	}
	if caller.AccountID == toID {
		return models.TransferResult{}, models.ErrSelfTransfer
	}

	result, err = s.store.Transfer(ctx, caller.AccountID, toID, amount)
	if err != nil {
		return models.TransferResult{}, err
	}

	logging.FromContext(ctx).Info("currency transferred",
		slog.String("from", caller.AccountID),
		slog.String("to", toID),
		slog.Int64("amount", amount),
	)
	return result, nil
}

// Grant credits the daily amount to accountID unless it was already granted on the
// calendar day of now. It reports whether a credit happened.
func (s *Service) Grant(ctx context.Context, accountID string, now time.Time) (account models.Account, granted bool, err error) {
	ctx, span := logging.StartSpan(ctx, "currency.grant")
	defer func() {
		span.RecordError(err)
		span.End()
		s.metrics.Observe(component, "grant", err)
	}()

	account, granted, err = s.store.Grant(ctx, accountID, models.DateOf(now), s.grantAmount)
	if err != nil {
		return models.Account{}, false, err
	}
	if granted {
		logging.FromContext(ctx).Info("daily grant credited",
			slog.String("account_id", accountID),
			slog.Int64("balance", account.Balance),
		)
	}
	return account, granted, nil
}

// Balance returns the current balance of accountID.
func (s *Service) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}
