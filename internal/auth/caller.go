package auth

import (
	"context"

	"github.com/vidshare/backend/internal/models"
)

type callerKey struct{}

// WithCaller stores the authenticated caller on the context.
func WithCaller(ctx context.Context, caller models.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(models.Caller)
	if !ok || caller.AccountID == "" {
		return models.Caller{}, false
	}
	return caller, true
}
