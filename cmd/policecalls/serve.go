package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/police-calls-etl/internal/adapter/http"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Scrape on an interval and serve health and metrics",
	Long:  "Runs the scraper every RUN_INTERVAL and serves /healthz, /readyz, /metrics, /status, /zones and /classify on HTTP_ADDR until interrupted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger, observability.NewMetrics(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := httpadapter.NewServer(cfg.HTTPAddr, a.runner, a.zones, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return a.runner.Run(gctx, cfg.RunInterval)
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		logger.Info("shutdown complete")
		return err
	},
}
