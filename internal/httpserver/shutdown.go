package httpserver

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds how long in-flight requests get once shutdown begins.
var ShutdownTimeout = 10 * time.Second

// Run serves until ctx is cancelled or the listener fails, then drains in-flight
// requests for at most ShutdownTimeout.
func (s *Server) Run(ctx context.Context, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.String("addr", s.Addr()))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
