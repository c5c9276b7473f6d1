package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/models"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

// AuthHandler implements account authentication endpoints.
type AuthHandler struct {
	Accounts AccountStore
	Sessions SessionManager
	Currency Currency
	Storage  MediaStorage
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// Login handles POST /api/v1/auth/login requests. A successful login also applies
// the daily grant.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasSessions", h.Sessions != nil)
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "ip", clientAddr(r))
		respondMessage(ctx, w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = normalizeEmail(req.Email)
	req.Handle = strings.TrimSpace(req.Handle)
	if (req.Email == "" && req.Handle == "") || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email, "handle", req.Handle)
		respondMessage(ctx, w, http.StatusBadRequest, "email or handle and password are required")
		return
	}

	var (
		account models.Account
		err     error
	)
	if req.Email != "" {
		account, err = h.Accounts.FindAccountByEmail(ctx, req.Email)
	} else {
		account, err = h.Accounts.FindAccountByHandle(ctx, req.Handle)
	}
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			logger.Error("login account lookup failed", "error", err)
			respondMessage(ctx, w, http.StatusInternalServerError, "unable to verify credentials")
			return
		}
		logger.Warn("login account lookup failed", "email", req.Email, "handle", req.Handle)
		respondMessage(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !auth.CheckPassword(account.Password, req.Password) {
		logger.Warn("login password mismatch", "accountId", account.ID)
		respondMessage(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !account.Active {
		logger.Warn("login on deactivated account", "accountId", account.ID)
		respondMessage(ctx, w, http.StatusForbidden, "account is deactivated")
		return
	}
	if !account.PasswordChanged {
		logger.Info("login with an assigned password", "accountId", account.ID)
	}

	tokens, err := h.Sessions.Issue(ctx, account.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "accountId", account.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	granted := false
	if h.Currency != nil {
		updated, ok, err := h.Currency.Grant(ctx, account.ID, h.now())
		if err != nil {
			// The session is already issued; a failed bonus must not fail the login.
			logger.Error("daily grant failed", "error", err, "accountId", account.ID)
		} else {
			account, granted = updated, ok
		}
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{
		Tokens:             newTokensView(tokens),
		Account:            newAccountView(account),
		Granted:            granted,
		MustChangePassword: !account.PasswordChanged,
	})
}

// SignUp handles POST /api/v1/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Accounts == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasAccounts", h.Accounts != nil, "hasSessions", h.Sessions != nil)
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = normalizeEmail(req.Email)
	req.Handle = strings.TrimSpace(req.Handle)
	if req.Email == "" || req.Password == "" || req.Handle == "" {
		logger.Warn("signup missing credentials", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "handle, email and password are required")
		return
	}

	if !handlePattern.MatchString(req.Handle) {
		logger.Warn("signup invalid handle", "handle", req.Handle)
		respondMessage(ctx, w, http.StatusBadRequest, "handle must be 3-32 letters, digits or underscores")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("signup invalid email", "email", req.Email, "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			logger.Warn("signup weak password", "email", req.Email)
			respondMessage(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("signup failed to hash password", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	account := models.Account{
		ID:        uuid.NewString(),
		Handle:    req.Handle,
		Email:     req.Email,
		Password:  hashed,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,

		PasswordChanged: true,
	}

	if err := h.Accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			logger.Warn("signup conflict", "email", req.Email, "handle", req.Handle)
			respondMessage(ctx, w, http.StatusConflict, "handle or email already registered")
			return
		}
		logger.Error("signup failed to create account", "error", err, "email", req.Email)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, account.ID)
	if err != nil {
		logger.Error("signup failed to issue session", "error", err, "accountId", account.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	logger.Info("account registered", "accountId", account.ID)
	respondJSON(ctx, w, http.StatusCreated, authResponse{Tokens: newTokensView(tokens), Account: newAccountView(account)})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		logger.Warn("missing refresh token")
		respondMessage(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Warn("refresh failed", "error", err, "status", status)
		respondMessage(ctx, w, status, "unable to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, refreshResponse{Tokens: newTokensView(tokens)})
}

// Logout revokes the presented access token and, when supplied, the refresh token.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireCaller(w, r); !ok {
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondMessage(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if access, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		h.Sessions.Revoke(ctx, strings.TrimSpace(access))
	}
	h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller's own account.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	account, err := h.Accounts.GetAccount(r.Context(), caller.AccountID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, newAccountView(account))
}

type loginRequest struct {
	Email    string `json:"email"`
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Tokens  tokensView  `json:"tokens"`
	Account accountView `json:"account"`
	Granted bool        `json:"granted"`

	// MustChangePassword is set while the account still uses a password an
	// administrator assigned.
	MustChangePassword bool `json:"mustChangePassword"`
}

type refreshResponse struct {
	Tokens tokensView `json:"tokens"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
