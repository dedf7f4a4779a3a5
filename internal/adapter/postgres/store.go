// Package postgres keeps every store as a set of rows in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

const uniqueViolation = "23505"

const migration = `
CREATE TABLE IF NOT EXISTS call_stores (
	name       TEXT PRIMARY KEY,
	header     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS call_rows (
	seq      BIGSERIAL PRIMARY KEY,
	store    TEXT NOT NULL REFERENCES call_stores(name),
	event_id TEXT NOT NULL,
	cells    JSONB NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_call_rows_store_event ON call_rows(store, event_id);
`

// Pool is the subset of pgxpool.Pool the stores use.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// DB holds the pool shared by all named stores.
type DB struct {
	pool     Pool
	location string
	closeFn  func()
}

// Connect creates a connection pool for connString.
func Connect(ctx context.Context, connString string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	location := "postgres://" + cfg.ConnConfig.Host + "/" + cfg.ConnConfig.Database
	return &DB{pool: pool, location: location, closeFn: pool.Close}, nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool Pool, location string) *DB {
	return &DB{pool: pool, location: location, closeFn: func() {}}
}

// Close closes the pool.
func (d *DB) Close() {
	d.closeFn()
}

// Authorize pings the server, which fails fast on bad credentials, and applies
// the schema.
func (d *DB) Authorize(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return eris.Wrap(err, "postgres: ping")
	}
	if _, err := d.pool.Exec(ctx, migration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// OpenOrCreate registers the named store if it does not exist yet.
func (d *DB) OpenOrCreate(ctx context.Context, name string) (ingest.Store, ingest.Handle, error) {
	tag, err := d.pool.Exec(ctx,
		`INSERT INTO call_stores (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return nil, ingest.Handle{}, eris.Wrapf(err, "postgres: register store %s", name)
	}
	return &Store{pool: d.pool, name: name}, ingest.Handle{
		Created:  tag.RowsAffected() == 1,
		Location: d.location + "#" + name,
	}, nil
}

// Store is one named store.
type Store struct {
	pool Pool
	name string

	mu     sync.Mutex
	header []string
	loaded bool
}

// ReadAll returns the header and all rows in insertion order.
func (s *Store) ReadAll(ctx context.Context) (ingest.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.loadHeader(ctx)
	if err != nil {
		return ingest.Table{}, err
	}
	if header == nil {
		return ingest.Table{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT cells FROM call_rows WHERE store = $1 ORDER BY seq`, s.name)
	if err != nil {
		return ingest.Table{}, eris.Wrapf(err, "postgres: query rows of %s", s.name)
	}
	cells, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]string, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return nil, err
		}
		var out []string
		return out, json.Unmarshal(raw, &out)
	})
	if err != nil {
		return ingest.Table{}, eris.Wrapf(err, "postgres: read rows of %s", s.name)
	}
	return ingest.RowsFromValues(append([][]string{header}, cells...)), nil
}

// AppendRow stores the header when the store has none, otherwise a data row.
// A row whose event identifier is already stored returns ingest.ErrDuplicateRow.
func (s *Store) AppendRow(ctx context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, err := s.loadHeader(ctx)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return eris.Wrap(err, "postgres: encode row")
	}

	if header == nil {
		if _, err := s.pool.Exec(ctx,
			`UPDATE call_stores SET header = $1 WHERE name = $2`, encoded, s.name); err != nil {
			return eris.Wrapf(err, "postgres: write header of %s", s.name)
		}
		s.header = slices.Clone(values)
		return nil
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO call_rows (store, event_id, cells) VALUES ($1, $2, $3)`,
		s.name, eventID(header, values), encoded)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ingest.ErrDuplicateRow
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: insert row into %s", s.name)
	}
	return nil
}

func (s *Store) loadHeader(ctx context.Context) ([]string, error) {
	if s.loaded {
		return s.header, nil
	}
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT header FROM call_stores WHERE name = $1`, s.name).Scan(&raw)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read header of %s", s.name)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.header); err != nil {
			return nil, eris.Wrap(err, "postgres: decode header")
		}
	}
	s.loaded = true
	return s.header, nil
}

func eventID(header, values []string) string {
	i := slices.Index(header, domain.FieldEvent)
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}
