// Package stores picks the row-store backend named by configuration.
package stores

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/police-calls-etl/internal/adapter/postgres"
	"github.com/couchcryptid/police-calls-etl/internal/adapter/sheets"
	"github.com/couchcryptid/police-calls-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/police-calls-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/police-calls-etl/internal/config"
	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/rotisserie/eris"
)

// Open returns the Opener for the configured driver and a func that
// releases it.
func Open(ctx context.Context, c *config.Config, logger *slog.Logger) (ingest.Opener, func(), error) {
	noop := func() {}
	switch c.StoreDriver {
	case config.DriverXLSX:
		return xlsx.NewOpener(c.StoreDir), noop, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return db, func() { _ = db.Close() }, nil
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return db, db.Close, nil
	case config.DriverSheets:
		o, err := sheets.NewOpener(ctx, c.Credentials, c.ShareWith, logger)
		if err != nil {
			return nil, noop, err
		}
		return o, noop, nil
	default:
		return nil, noop, eris.Errorf("unknown store driver %q", c.StoreDriver)
	}
}
