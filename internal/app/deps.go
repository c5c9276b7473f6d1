package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/catalog"
	"github.com/vidshare/backend/internal/config"
	"github.com/vidshare/backend/internal/currency"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/engagement"
	"github.com/vidshare/backend/internal/follows"
	"github.com/vidshare/backend/internal/handlers"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/moderation"
	"github.com/vidshare/backend/internal/repositories"
	"github.com/vidshare/backend/internal/storage"
	"github.com/vidshare/backend/internal/timeline"
)

// rateLimitTTL is how long an idle limiter key is remembered.
const rateLimitTTL = 10 * time.Minute

// backingStore is satisfied by both repositories.MemoryStore and repositories.PostgresStore.
type backingStore interface {
	handlers.AccountStore
	currency.Store
	moderation.Store
	engagement.Store
	follows.Store
	timeline.Store
	catalog.Store
}

var (
	_ backingStore = (*repositories.MemoryStore)(nil)
	_ backingStore = (*repositories.PostgresStore)(nil)
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// pool is required for the postgres store driver and session backend and ignored otherwise.
// The returned cleanup releases clients opened here; the caller owns pool.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, recorder *metrics.Recorder) (handlers.Dependencies, func(context.Context) error, error) {
	var closers []func() error
	cleanup := func(context.Context) error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	var (
		store  backingStore
		health handlers.HealthHandler
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if pool == nil {
			return handlers.Dependencies{}, nil, errors.New("postgres store driver requires a connection pool")
		}
		runner := db.NewTxRunner(pool, cfg.TxMaxAttempts)
		runner.OnRetry = recorder.TxRetry
		store = repositories.NewPostgresStore(pool, runner)
		health.Check = pool.Ping
	case config.StoreDriverMemory:
		store = repositories.NewMemoryStore()
	default:
		return handlers.Dependencies{}, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	var sessionStore auth.SessionStore
	switch cfg.SessionBackend {
	case config.SessionBackendPostgres:
		if pool == nil {
			return handlers.Dependencies{}, nil, errors.New("postgres session backend requires a connection pool")
		}
		sessionStore = repositories.NewPostgresSessionStore(pool)
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, client.Close)
		sessionStore = repositories.NewRedisSessionStore(client)
	case config.SessionBackendMemory:
		sessionStore = auth.NewInMemorySessionStore()
	default:
		return handlers.Dependencies{}, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
	sessions := auth.NewManager(cfg.AccessTTL, cfg.RefreshTTL, sessionStore)

	var media handlers.MediaStorage
	if cfg.ObjectStore.Enabled() {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			_ = cleanup(ctx)
			return handlers.Dependencies{}, nil, err
		}
		media = s3
	}

	deps := handlers.Dependencies{
		Accounts:       store,
		Sessions:       sessions,
		Catalog:        catalog.NewService(store, recorder),
		Moderation:     moderation.NewService(store, recorder),
		Engagement:     engagement.NewService(store, recorder),
		Currency:       currency.NewService(store, cfg.GrantAmount, recorder),
		Follows:        follows.NewService(store, recorder),
		Timeline:       timeline.NewService(store, recorder),
		Storage:        media,
		Authenticate:   middleware.Authenticate(sessions, store),
		Limiter:        middleware.NewKeyedLimiter(cfg.RateLimit, rateLimitTTL, middleware.WithRejectHook(recorder.RateLimited)),
		HealthCheck:    health,
		UploadMaxBytes: cfg.UploadMaxBytes,
	}
	if cfg.MetricsEnabled {
		deps.Metrics = recorder.Handler()
	}
	return deps, cleanup, nil
}
