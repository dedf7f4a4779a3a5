// Package sqlite keeps every store as a set of rows in one SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const migration = `
CREATE TABLE IF NOT EXISTS call_stores (
	name       TEXT PRIMARY KEY,
	header     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS call_rows (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	store    TEXT NOT NULL REFERENCES call_stores(name),
	event_id TEXT NOT NULL,
	cells    TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_call_rows_store_event ON call_rows(store, event_id);
`

// DB is a SQLite database holding any number of named stores.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database file at path and configures WAL mode.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: create %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &DB{db: db, path: abs}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Authorize checks the database is reachable and applies the schema.
func (d *DB) Authorize(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return eris.Wrap(err, "sqlite: ping")
	}
	if _, err := d.db.ExecContext(ctx, migration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// OpenOrCreate registers the named store if it does not exist yet.
func (d *DB) OpenOrCreate(ctx context.Context, name string) (ingest.Store, ingest.Handle, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO call_stores (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return nil, ingest.Handle{}, eris.Wrapf(err, "sqlite: register store %s", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, ingest.Handle{}, eris.Wrap(err, "sqlite: rows affected")
	}
	return &Store{db: d.db, name: name}, ingest.Handle{
		Created:  n == 1,
		Location: "sqlite://" + d.path + "#" + name,
	}, nil
}

// Store is one named store inside the database.
type Store struct {
	db   *sql.DB
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

	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM call_rows WHERE store = ? ORDER BY seq`, s.name)
	if err != nil {
		return ingest.Table{}, eris.Wrapf(err, "sqlite: query rows of %s", s.name)
	}
	defer rows.Close()

	all := [][]string{header}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return ingest.Table{}, eris.Wrap(err, "sqlite: scan row")
		}
		var cells []string
		if err := json.Unmarshal([]byte(raw), &cells); err != nil {
			return ingest.Table{}, eris.Wrap(err, "sqlite: decode row")
		}
		all = append(all, cells)
	}
	if err := rows.Err(); err != nil {
		return ingest.Table{}, eris.Wrap(err, "sqlite: iterate rows")
	}
	return ingest.RowsFromValues(all), nil
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
		return eris.Wrap(err, "sqlite: encode row")
	}

	if header == nil {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE call_stores SET header = ? WHERE name = ?`, string(encoded), s.name); err != nil {
			return eris.Wrapf(err, "sqlite: write header of %s", s.name)
		}
		s.header = slices.Clone(values)
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO call_rows (store, event_id, cells) VALUES (?, ?, ?)`,
		s.name, eventID(header, values), string(encoded))
	if isUniqueViolation(err) {
		return ingest.ErrDuplicateRow
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert row into %s", s.name)
	}
	return nil
}

// loadHeader reads the header once; a nil header means the store is empty.
func (s *Store) loadHeader(ctx context.Context) ([]string, error) {
	if s.loaded {
		return s.header, nil
	}
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT header FROM call_stores WHERE name = ?`, s.name).Scan(&raw)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read header of %s", s.name)
	}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &s.header); err != nil {
			return nil, eris.Wrap(err, "sqlite: decode header")
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

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
