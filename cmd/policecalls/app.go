package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/police-calls-etl/internal/adapter/kafka"
	"github.com/couchcryptid/police-calls-etl/internal/adapter/slmpd"
	"github.com/couchcryptid/police-calls-etl/internal/adapter/stores"
	"github.com/couchcryptid/police-calls-etl/internal/config"
	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/couchcryptid/police-calls-etl/internal/pipeline"
	"github.com/couchcryptid/police-calls-etl/internal/zones"
)

// app is a wired runner plus everything that must be closed after it.
type app struct {
	runner  *pipeline.Runner
	zones   []domain.Zone
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires the fetcher, ingestor and optional publisher. A nil opener
// means the configured store driver.
func newApp(ctx context.Context, c *config.Config, logger *slog.Logger, metrics *observability.Metrics, opener ingest.Opener) (*app, error) {
	zs, err := zones.Load(c.ZonesFile)
	if err != nil {
		return nil, err
	}
	a := &app{zones: zs}

	if opener == nil {
		o, closeStores, err := stores.Open(ctx, c, logger)
		if err != nil {
			return nil, err
		}
		opener = o
		a.closers = append(a.closers, closeStores)
	}

	ing := ingest.New(opener, logger, metrics, ingest.WithAppendDelay(c.AppendDelay))
	var opts []pipeline.Option
	if c.PublishEnabled() {
		w := kafkaadapter.NewWriter(c, logger, metrics)
		a.closers = append(a.closers, func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
		opts = append(opts, pipeline.WithPublisher(w))
		logger.Info("publishing appended records", "brokers", c.KafkaBrokers, "topic", c.KafkaTopic)
	}

	targets := pipeline.Targets(c.AllCallsStore, zs)
	a.runner = pipeline.New(slmpd.NewClient(c, logger, metrics), ing, targets, logger, metrics, opts...)
	return a, nil
}

// printReport writes the console summary of a run.
func printReport(w io.Writer, rep pipeline.Report) {
	switch rep.Outcome {
	case pipeline.OutcomeFetchError:
		fmt.Fprintf(w, "Fetch failed, no stores updated: %s\n", rep.Error)
		return
	case pipeline.OutcomeEmpty:
		fmt.Fprintln(w, "No calls found on the page, no stores updated.")
		return
	case pipeline.OutcomeAuthError:
		fmt.Fprintf(w, "Store authorization failed: %s\n", rep.Error)
		return
	}
	fmt.Fprintf(w, "Fetched %d calls.\n", rep.Fetched)
	for _, s := range rep.Stores {
		if s.Created {
			fmt.Fprintf(w, "Created %s: %s\n", s.Store, s.Location)
		}
		if s.Error != "" {
			fmt.Fprintf(w, "%s: failed after %d new rows: %s\n", s.Store, s.Appended, s.Error)
			continue
		}
		fmt.Fprintf(w, "%s: added %d new rows (%d already present)\n", s.Store, s.Appended, s.Skipped)
	}
}
