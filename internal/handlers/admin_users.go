package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/models"
)

// AdminUserHandler lets privileged accounts manage other accounts. Deactivating an
// account or resetting its password ends the account's sessions.
type AdminUserHandler struct {
	Accounts AccountStore
	Sessions SessionManager
}

// List handles GET /api/v1/admin/users.
func (h AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := requirePrivileged(w, r); !ok {
		return
	}
	accounts, err := h.Accounts.ListAccounts(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, newAccountView(a))
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"accounts": views})
}

// Update handles PATCH /api/v1/admin/users/{id}. Omitted fields keep their value.
func (h AdminUserHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, ok := requirePrivileged(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	account, err := h.Accounts.GetAccount(ctx, id)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	handle, email, active := account.Handle, account.Email, account.Active
	if req.Handle != nil {
		handle = strings.TrimSpace(*req.Handle)
		if !handlePattern.MatchString(handle) {
			respondMessage(ctx, w, http.StatusBadRequest, "handle must be 3-32 letters, digits or underscores")
			return
		}
	}
	if req.Email != nil {
		email = normalizeEmail(*req.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			respondMessage(ctx, w, http.StatusBadRequest, "invalid email address")
			return
		}
	}
	if req.Active != nil {
		active = *req.Active
		if !active && id == caller.AccountID {
			respondMessage(ctx, w, http.StatusBadRequest, "cannot deactivate your own account")
			return
		}
	}

	if err := h.Accounts.UpdateAccountProfile(ctx, id, handle, email, active); err != nil {
		respondError(ctx, w, err)
		return
	}

	if account.Active && !active {
		h.endSessions(r, id)
	}

	updated, err := h.Accounts.GetAccount(ctx, id)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	logging.FromContext(ctx).Info("account updated by admin", "accountId", id, "adminId", caller.AccountID)
	respondJSON(ctx, w, http.StatusOK, newAccountView(updated))
}

// ResetPassword handles POST /api/v1/admin/users/{id}/password.
func (h AdminUserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := requirePrivileged(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			respondMessage(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	id := r.PathValue("id")
	if err := h.Accounts.SetAccountPassword(ctx, id, hashed, false); err != nil {
		respondError(ctx, w, err)
		return
	}
	h.endSessions(r, id)
	logging.FromContext(ctx).Info("password reset by admin", "accountId", id, "adminId", caller.AccountID)
	w.WriteHeader(http.StatusNoContent)
}

// Deactivate handles DELETE /api/v1/admin/users/{id}. Accounts are never removed.
func (h AdminUserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requirePrivileged(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	id := r.PathValue("id")
	if id == caller.AccountID {
		respondMessage(ctx, w, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}
	if err := h.Accounts.SetAccountActive(ctx, id, false); err != nil {
		respondError(ctx, w, err)
		return
	}
	h.endSessions(r, id)
	logging.FromContext(ctx).Info("account deactivated", "accountId", id, "adminId", caller.AccountID)
	w.WriteHeader(http.StatusNoContent)
}

// endSessions is best effort: the account change already happened, and inactive
// accounts are refused by the authenticator anyway.
func (h AdminUserHandler) endSessions(r *http.Request, accountID string) {
	if h.Sessions == nil {
		return
	}
	removed, err := h.Sessions.RevokeAccount(r.Context(), accountID)
	logger := logging.FromContext(r.Context())
	if err != nil {
		logger.Warn("session revocation failed", "accountId", accountID, "error", err)
		return
	}
	logger.Info("sessions revoked", "accountId", accountID, "count", removed)
}

type updateAccountRequest struct {
	Handle *string `json:"handle"`
	Email  *string `json:"email"`
	Active *bool   `json:"active"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func requirePrivileged(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return models.Caller{}, false
	}
	if !caller.Privileged {
		respondError(r.Context(), w, models.ErrNotAuthorized)
		return models.Caller{}, false
	}
	return caller, true
}
