package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/mindthecat/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open(*configPath, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(e.db, e.cfg, e.logger)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer srv.Stop()

			// No write timeout: websocket connections are long-lived.
			httpServer := &http.Server{
				Addr:              ":" + e.cfg.Port,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				e.logger.Info("mindthecat running", "addr", "http://localhost:"+e.cfg.Port, "push", srv.Sweeper() != nil)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			e.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
}
