package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/eddiefleurent/options_advisor/internal/dashboard"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Dashboard.Port
			}
			if a.cfg.Dashboard.AuthToken == "" {
				a.logger.Warn("Dashboard auth token not set, API is unauthenticated")
			}

			srv := dashboard.NewServer(dashboard.Config{
				Port:       port,
				AuthToken:  a.cfg.Dashboard.AuthToken,
				Thresholds: a.cfg.Selector,
				Heuristics: a.cfg.RiskHeuristics(),
			}, store, a.logger)

			ctx, stop := interruptible(cmd.Context())
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.logger.Info("Shutdown signal received, stopping dashboard...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			a.logger.Info("Dashboard stopped")
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}
