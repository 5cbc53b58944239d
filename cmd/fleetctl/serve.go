/*
serve.go - HTTP server startup

STARTUP SEQUENCE:
  1. Open the run store (SQLite when --db is set, in-memory otherwise)
  2. Create the API handler with the configured options
  3. Configure the router
  4. Serve until the command context is cancelled

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM the server stops accepting connections and waits up to
  server.graceful_shutdown for active requests, then closes the store.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/fleet-ledger/api"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 8080, "HTTP server port")
	a.bind(cmd, "server.port", "port")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	st, closeStore, err := a.openServerStore()
	if err != nil {
		return err
	}
	defer closeStore()

	handler := api.NewHandler(st, a.cfg.FleetOptions(), a.cfg.Ledger)
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         a.log,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("db", a.cfg.Database.Path).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info().Msg("server stopped")
	return nil
}
