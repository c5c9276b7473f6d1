package handlers

import (
	"net/http"
	"strings"
	"time"
)

// WalletHandler exposes balances, transfers and the daily grant.
type WalletHandler struct {
	Currency Currency
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Balance handles GET /api/v1/wallet.
func (h WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	balance, err := h.Currency.Balance(r.Context(), caller.AccountID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"accountId": caller.AccountID, "balance": balance})
}

// Transfer handles POST /api/v1/wallet/transfer.
func (h WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if !allowCaller(h.Limiter, "transfer", caller) {
		respondMessage(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Currency.Transfer(ctx, caller, strings.TrimSpace(req.To), req.Amount)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, transferResponse{
		From:        result.Source.ID,
		To:          result.Destination.ID,
		Amount:      result.Amount,
		FromBalance: result.Source.Balance,
	})
}

// Grant handles POST /api/v1/wallet/grant. Repeat calls on the same day are no-ops.
func (h WalletHandler) Grant(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	account, granted, err := h.Currency.Grant(r.Context(), caller.AccountID, h.now())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, grantResponse{Granted: granted, Balance: account.Balance})
}

func (h WalletHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type transferRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type transferResponse struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      int64  `json:"amount"`
	FromBalance int64  `json:"fromBalance"`
}

type grantResponse struct {
	Granted bool  `json:"granted"`
	Balance int64 `json:"balance"`
}

