package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidshare/backend/internal/config"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/handlers"
	"github.com/vidshare/backend/internal/httpserver"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/repositories"
)

// Run bootstraps the vidshare backend with the provided command line arguments.
func Run(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the vidshare command tree: serve, migrate and seed.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vidshare",
		Short:         "vidshare video sharing backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newSeedCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, newLogger(os.Stdout, cfg.LogLevel))
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|status]",
		Short:     "Apply or inspect schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			command := "up"
			if len(args) > 0 {
				command = args[0]
			}
			return runMigrations(cmd.Context(), cfg, command, cmd.OutOrStdout())
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <name>",
		Short: "Apply a SQL seed from the seed directory, or create the default admin with \"admin\"",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StoreDriverPostgres {
				return fmt.Errorf("seeding requires the %q store driver", config.StoreDriverPostgres)
			}
			if args[0] == "admin" {
				return runAdminSeed(cmd.Context(), cfg, cmd.OutOrStdout())
			}
			return runSQLSeed(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
}

func runAdminSeed(ctx context.Context, cfg config.Config, out io.Writer) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	created, err := seedAdmin(ctx, repositories.NewPostgresAccountRepository(pool), cfg, time.Now().UTC())
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "created admin account %s\n", cfg.AdminHandle)
	} else {
		fmt.Fprintf(out, "admin account %s already exists\n", cfg.AdminHandle)
	}
	return nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true, Level: lvl}))
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	slog.SetDefault(logger)

	var pool db.Pool
	if cfg.StoreDriver == config.StoreDriverPostgres {
		pgPool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pgPool.Close()
		pool = pgPool
	}

	recorder := metrics.New()
	deps, cleanup, err := buildDependencies(ctx, pool, cfg, recorder)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(context.Background()); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger, recorder)(mux)

	srv := httpserver.New(cfg.AppPort, handler, httpserver.WithWriteTimeout(10*time.Minute))

	logger.Info("starting http server",
		"port", cfg.AppPort,
		"store", cfg.StoreDriver,
		"sessions", cfg.SessionBackend,
		"uploads", cfg.ObjectStore.Enabled(),
	)

	return srv.Run(ctx, logger)
}
