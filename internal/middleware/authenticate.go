package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/models"
)

// TokenAuthenticator resolves an access token to an account id.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// AccountLookup loads the account behind a session.
type AccountLookup interface {
	GetAccount(ctx context.Context, id string) (models.Account, error)
}

// Authenticate resolves a bearer access token into a models.Caller stored on the
// request context. Requests without an Authorization header pass through anonymously;
// handlers decide whether a caller is required. Invalid tokens and inactive accounts
// are rejected with 401.
func Authenticate(tokens TokenAuthenticator, accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token, ok := bearerToken(header)
			if !ok {
				unauthorized(w, "malformed authorization header")
				return
			}

			accountID, err := tokens.Authenticate(ctx, token)
			if err != nil {
				logger.Warn("access token rejected", slog.String("error", err.Error()))
				unauthorized(w, "invalid or expired access token")
				return
			}

			account, err := accounts.GetAccount(ctx, accountID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					unauthorized(w, "account no longer exists")
					return
				}
				logger.Error("caller lookup failed", slog.String("account_id", accountID), slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unable to authenticate"})
				return
			}
			if !account.Active {
				logger.Warn("inactive account rejected", slog.String("account_id", accountID))
				unauthorized(w, "account is deactivated")
				return
			}

			ctx = auth.WithCaller(ctx, models.Caller{AccountID: account.ID, Privileged: account.Privileged})
			ctx = logging.With(ctx, slog.String("account_id", account.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
