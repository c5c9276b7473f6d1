package handlers

import (
	"net/http"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/logging"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /api/v1/accounts/me/password. Every existing session of
// the caller is revoked and a fresh pair is returned, so other devices must log in
// again with the new password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowCaller(h.Limiter, "password", caller) {
		respondMessage(ctx, w, http.StatusTooManyRequests, "too many password changes")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		respondMessage(ctx, w, http.StatusBadRequest, "current and new password are required")
		return
	}

	account, err := h.Accounts.GetAccount(ctx, caller.AccountID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if !auth.CheckPassword(account.Password, req.CurrentPassword) {
		logger.Warn("password change with wrong current password", "accountId", account.ID)
		respondMessage(ctx, w, http.StatusForbidden, "current password is incorrect")
		return
	}
	if req.NewPassword == req.CurrentPassword {
		respondMessage(ctx, w, http.StatusBadRequest, "new password must differ from the current one")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		respondMessage(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("password change failed to hash password", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	if err := h.Accounts.SetAccountPassword(ctx, account.ID, hashed, true); err != nil {
		respondError(ctx, w, err)
		return
	}
	account.Password = hashed
	account.PasswordChanged = true

	revoked, err := h.Sessions.RevokeAccount(ctx, account.ID)
	if err != nil {
		// The password already changed; old tokens expire on their own.
		logger.Error("revoke sessions after password change", "error", err, "accountId", account.ID)
	}
	tokens, err := h.Sessions.Issue(ctx, account.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "accountId", account.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	logger.Info("password changed", "accountId", account.ID, "revokedSessions", revoked)
	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: newTokensView(tokens), Account: newAccountView(account)})
}

// UploadAvatar handles multipart POST /api/v1/accounts/me/avatar with the image in
// the "avatar" field.
func (h AuthHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	ref, ok := storeImage(w, r, h.Storage, caller.AccountID, "avatar")
	if !ok {
		return
	}
	if err := h.Accounts.SetAccountAvatar(ctx, caller.AccountID, ref); err != nil {
		respondError(ctx, w, err)
		return
	}
	account, err := h.Accounts.GetAccount(ctx, caller.AccountID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	logging.FromContext(ctx).Info("avatar updated", "accountId", caller.AccountID)
	respondJSON(ctx, w, http.StatusOK, newAccountView(account))
}
