package ingest

import (
	"context"
	"errors"
)

// ErrDuplicateRow is returned by AppendRow when the store itself refuses a row
// whose event identifier it already holds. The ingestor counts it as skipped.
var ErrDuplicateRow = errors.New("duplicate event row")

// Table is the full content of a store: its header row (nil when the store is
// empty) and every data row keyed by header name.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// Handle describes an opened store.
type Handle struct {
	// Created is true when OpenOrCreate had to create the store.
	Created bool
	// Location is a human-usable address of the store: a file path, a URL or
	// a database table reference.
	Location string
}

// Store is one tabular row store. The first appended row is the header.
type Store interface {
	ReadAll(ctx context.Context) (Table, error)
	AppendRow(ctx context.Context, values []string) error
}

// Opener gives access to stores by name.
type Opener interface {
	// Authorize checks credentials once per run before any store is touched.
	Authorize(ctx context.Context) error
	// OpenOrCreate opens the named store, creating an empty one when absent.
	// A missing store is never an error.
	OpenOrCreate(ctx context.Context, name string) (Store, Handle, error)
}

// RowsFromValues turns raw stored rows into a Table: the first row is the
// header and every following row becomes a header-keyed map. Cells beyond the
// header are dropped, missing cells read as "".
func RowsFromValues(rows [][]string) Table {
	if len(rows) == 0 {
		return Table{}
	}
	t := Table{Header: rows[0], Rows: make([]map[string]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		m := make(map[string]string, len(t.Header))
		for i, name := range t.Header {
			if i < len(row) {
				m[name] = row[i]
			} else {
				m[name] = ""
			}
		}
		t.Rows = append(t.Rows, m)
	}
	return t
}
