package currency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/repositories"
)

func newStore(t *testing.T, balances map[string]int64) *repositories.MemoryStore {
	t.Helper()
	store := repositories.NewMemoryStore()
	for id, balance := range balances {
		require.NoError(t, store.CreateAccount(context.Background(), models.Account{
			ID:      id,
			Handle:  id,
			Email:   id + "@example.com",
			Active:  true,
			Balance: balance,
		}))
	}
	return store
}

func balanceOf(t *testing.T, svc *Service, id string) int64 {
	t.Helper()
	balance, err := svc.Balance(context.Background(), id)
	require.NoError(t, err)
	return balance
}

func TestTransferScenario(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t, map[string]int64{"a": 10, "b": 0}), 0, nil)
	a := models.Caller{AccountID: "a"}

	result, err := svc.Transfer(ctx, a, "b", 4)
	require.NoError(t, err)
	require.Equal(t, int64(6), result.Source.Balance)
	require.Equal(t, int64(4), result.Destination.Balance)

	_, err = svc.Transfer(ctx, a, "b", 10)
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.Equal(t, int64(6), balanceOf(t, svc, "a"))
	require.Equal(t, int64(4), balanceOf(t, svc, "b"))
}

func TestTransferValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t, map[string]int64{"a": 10, "b": 0}), 0, nil)
	a := models.Caller{AccountID: "a"}

	_, err := svc.Transfer(ctx, a, "b", 0)
	require.ErrorIs(t, err, models.ErrInvalidAmount)
	_, err = svc.Transfer(ctx, a, "b", -3)
	require.ErrorIs(t, err, models.ErrInvalidAmount)
	_, err = svc.Transfer(ctx, a, "a", 1)
	require.ErrorIs(t, err, models.ErrSelfTransfer)
	_, err = svc.Transfer(ctx, a, "nobody", 1)
	require.ErrorIs(t, err, models.ErrNotFound)
	_, err = svc.Transfer(ctx, models.Caller{AccountID: "ghost"}, "b", 1)
	require.ErrorIs(t, err, models.ErrNotFound)

	require.Equal(t, int64(10), balanceOf(t, svc, "a"))
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t, map[string]int64{"src": 7, "d1": 0, "d2": 0, "d3": 0}), 0, nil)
	src := models.Caller{AccountID: "src"}
	destinations := []string{"d1", "d2", "d3"}

	var (
		g         errgroup.Group
		succeeded atomic.Int64
		refused   atomic.Int64
	)
	for i := 0; i < 30; i++ {
		to := destinations[i%len(destinations)]
		g.Go(func() error {
			_, err := svc.Transfer(ctx, src, to, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, models.ErrInsufficientFunds):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int64(7), succeeded.Load())
	require.Equal(t, int64(23), refused.Load())
	require.Equal(t, int64(0), balanceOf(t, svc, "src"))

	var total int64
	for _, id := range append(destinations, "src") {
		total += balanceOf(t, svc, id)
	}
	require.Equal(t, int64(7), total)
}

func TestConcurrentCrossTransfersConserveTotal(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t, map[string]int64{"x": 50, "y": 50}), 0, nil)

	var g errgroup.Group
	for i := 0; i < 100; i++ {
		from, to := "x", "y"
		if i%2 == 1 {
			from, to = to, from
		}
		g.Go(func() error {
			_, err := svc.Transfer(ctx, models.Caller{AccountID: from}, to, 3)
			if err != nil && !errors.Is(err, models.ErrInsufficientFunds) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	x, y := balanceOf(t, svc, "x"), balanceOf(t, svc, "y")
	require.GreaterOrEqual(t, x, int64(0))
	require.GreaterOrEqual(t, y, int64(0))
	require.Equal(t, int64(100), x+y)
}

func TestGrantOncePerDay(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t, map[string]int64{"a": 0}), 0, nil)
	morning := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	account, granted, err := svc.Grant(ctx, "a", morning)
	require.NoError(t, err)
	require.True(t, granted)
	require.Equal(t, int64(1), account.Balance)

	account, granted, err = svc.Grant(ctx, "a", morning.Add(10*time.Hour))
	require.NoError(t, err)
	require.False(t, granted)
	require.Equal(t, int64(1), account.Balance)

	_, granted, err = svc.Grant(ctx, "a", morning.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.True(t, granted)
	require.Equal(t, int64(2), balanceOf(t, svc, "a"))

	_, _, err = svc.Grant(ctx, "ghost", morning)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestConcurrentGrantsCreditOnce(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t, map[string]int64{"a": 0}), 5, nil)
	day := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var (
		g       errgroup.Group
		credits atomic.Int64
	)
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			_, granted, err := svc.Grant(ctx, "a", day)
			if granted {
				credits.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int64(1), credits.Load())
	require.Equal(t, int64(5), balanceOf(t, svc, "a"))
}
