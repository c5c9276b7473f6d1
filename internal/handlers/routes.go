package handlers

import (
	"net/http"
	"time"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts   AccountStore
	Sessions   SessionManager
	Catalog    Catalog
	Moderation Moderation
	Engagement Engagement
	Currency   Currency
	Follows    Follows
	Timeline   Timeline
	Storage    MediaStorage

	// Authenticate resolves bearer tokens into a caller on every API route.
	Authenticate func(http.Handler) http.Handler
	Limiter      RateLimiter
	Metrics      http.Handler
	HealthCheck  HealthHandler

	UploadMaxBytes int64
	NowFunc        func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	auth := AuthHandler{
		Accounts: deps.Accounts,
		Sessions: deps.Sessions,
		Currency: deps.Currency,
		Storage:  deps.Storage,
		Limiter:  deps.Limiter,
		NowFunc:  deps.NowFunc,
	}
	admins := AdminUserHandler{Accounts: deps.Accounts, Sessions: deps.Sessions}
	works := WorkHandler{
		Catalog:        deps.Catalog,
		Engagement:     deps.Engagement,
		Moderation:     deps.Moderation,
		Timeline:       deps.Timeline,
		Storage:        deps.Storage,
		Limiter:        deps.Limiter,
		UploadMaxBytes: deps.UploadMaxBytes,
	}
	moderation := ModerationHandler{Moderation: deps.Moderation}
	wallet := WalletHandler{Currency: deps.Currency, Limiter: deps.Limiter, NowFunc: deps.NowFunc}
	follows := FollowHandler{Follows: deps.Follows}

	api := func(pattern string, h http.HandlerFunc) {
		var handler http.Handler = h
		if deps.Authenticate != nil {
			handler = deps.Authenticate(handler)
		}
		mux.Handle(pattern, handler)
	}

	mux.HandleFunc("/healthz", deps.HealthCheck.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	api("POST /api/v1/auth/signup", auth.SignUp)
	api("POST /api/v1/auth/login", auth.Login)
	api("POST /api/v1/auth/refresh", auth.Refresh)
	api("POST /api/v1/auth/logout", auth.Logout)
	api("GET /api/v1/accounts/me", auth.Me)
	api("POST /api/v1/accounts/me/password", auth.ChangePassword)
	api("POST /api/v1/accounts/me/avatar", auth.UploadAvatar)

	api("GET /api/v1/admin/users", admins.List)
	api("PATCH /api/v1/admin/users/{id}", admins.Update)
	api("POST /api/v1/admin/users/{id}/password", admins.ResetPassword)
	api("DELETE /api/v1/admin/users/{id}", admins.Deactivate)

	api("GET /api/v1/admin/works", moderation.Queue)
	api("POST /api/v1/admin/works/{id}/review", moderation.Review)

	api("POST /api/v1/works", works.Create)
	api("POST /api/v1/works/upload", works.Upload)
	api("GET /api/v1/works/feed", works.Feed)
	api("GET /api/v1/works/search", works.Search)
	api("GET /api/v1/works/{id}", works.Get)
	api("DELETE /api/v1/works/{id}", works.Delete)
	api("PUT /api/v1/works/{id}/thumbnail", works.SetThumbnail)
	api("POST /api/v1/works/{id}/thumbnail", works.UploadThumbnail)
	api("POST /api/v1/works/{id}/like", works.Like)
	api("POST /api/v1/works/{id}/triple", works.Triple)
	api("GET /api/v1/works/{id}/comments", works.Comments)
	api("POST /api/v1/works/{id}/comments", works.Comment)
	api("GET /api/v1/works/{id}/annotations", works.Annotations)
	api("POST /api/v1/works/{id}/annotations", works.Annotate)

	api("GET /api/v1/accounts/{id}/works", works.Profile)
	api("GET /api/v1/accounts/{id}/follow", follows.Status)
	api("POST /api/v1/accounts/{id}/follow", follows.Toggle)
	api("GET /api/v1/accounts/{id}/following", follows.Following)
	api("GET /api/v1/accounts/{id}/followers", follows.Followers)

	api("GET /api/v1/wallet", wallet.Balance)
	api("POST /api/v1/wallet/transfer", wallet.Transfer)
	api("POST /api/v1/wallet/grant", wallet.Grant)
}
