// Command policecalls scrapes the SLMPD calls-for-service listing into
// per-neighborhood stores.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/police-calls-etl/internal/config"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "policecalls",
	Short: "SLMPD calls-for-service scraper",
	Long: "Fetches the St. Louis police calls-for-service page, matches each call's address " +
		"against neighborhood zones and appends unseen calls to one store per zone.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLogger(cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd, serveCmd, classifyCmd, zonesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
