package main

import (
	"os/signal"
	"syscall"

	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/spf13/cobra"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape once and append new calls",
	Long:  "Performs a single fetch, classify and ingest pass. Exits non-zero when store authorization or any store write fails.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var opener ingest.Opener
		if runDryRun {
			opener = ingest.NewMemory()
			logger.Info("dry run, writing to in-memory stores")
		}

		a, err := newApp(ctx, cfg, logger, observability.NewMetrics(), opener)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.runner.RunOnce(ctx)
		printReport(cmd.OutOrStdout(), rep)
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "fetch and classify but write to in-memory stores only")
}
