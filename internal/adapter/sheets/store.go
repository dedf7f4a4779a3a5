// Package sheets keeps every store as a Google Sheets spreadsheet, found by
// title through Drive and created on first use.
package sheets

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/rotisserie/eris"
)

// URLPrefix is joined with a spreadsheet id to form its browser URL.
const URLPrefix = "https://docs.google.com/spreadsheets/d/"

// backend is the slice of the Sheets and Drive APIs the stores need.
type backend interface {
	whoami(ctx context.Context) (string, error)
	find(ctx context.Context, title string) (id string, found bool, err error)
	create(ctx context.Context, title string) (string, error)
	share(ctx context.Context, id, email string) error
	values(ctx context.Context, id string) ([][]string, error)
	appendRow(ctx context.Context, id string, row []string) error
}

// Opener resolves store names to spreadsheets.
type Opener struct {
	api       backend
	shareWith string
	logger    *slog.Logger

	mu  sync.Mutex
	ids map[string]string
}

// NewOpener creates an Opener authenticated with a service-account key file.
// New spreadsheets are shared with shareWith as writer when it is set.
func NewOpener(ctx context.Context, credentialsFile, shareWith string, logger *slog.Logger) (*Opener, error) {
	api, err := newGoogleAPI(ctx, credentialsFile)
	if err != nil {
		return nil, err
	}
	return newOpener(api, shareWith, logger), nil
}

func newOpener(api backend, shareWith string, logger *slog.Logger) *Opener {
	return &Opener{api: api, shareWith: shareWith, logger: logger, ids: make(map[string]string)}
}

// Authorize confirms the service account can call Drive.
func (o *Opener) Authorize(ctx context.Context) error {
	who, err := o.api.whoami(ctx)
	if err != nil {
		return eris.Wrap(err, "sheets: authorize")
	}
	o.logger.Info("authenticated with google sheets", "account", who)
	return nil
}

// OpenOrCreate finds the spreadsheet titled name or creates it. A freshly
// created spreadsheet is shared with the configured owner; a failed share is
// logged and does not fail the call.
func (o *Opener) OpenOrCreate(ctx context.Context, name string) (ingest.Store, ingest.Handle, error) {
	o.mu.Lock()
	id, cached := o.ids[name]
	o.mu.Unlock()
	if cached {
		return &Store{api: o.api, id: id}, ingest.Handle{Location: URLPrefix + id}, nil
	}

	id, found, err := o.api.find(ctx, name)
	if err != nil {
		return nil, ingest.Handle{}, eris.Wrapf(err, "sheets: find %s", name)
	}
	created := false
	if !found {
		id, err = o.api.create(ctx, name)
		if err != nil {
			return nil, ingest.Handle{}, eris.Wrapf(err, "sheets: create %s", name)
		}
		created = true
		o.logger.Info("created spreadsheet", "store", name, "url", URLPrefix+id)
		if o.shareWith != "" {
			if err := o.api.share(ctx, id, o.shareWith); err != nil {
				o.logger.Warn("sharing spreadsheet failed", "store", name, "email", o.shareWith, "error", err)
			} else {
				o.logger.Info("shared spreadsheet", "store", name, "email", o.shareWith)
			}
		}
	}

	o.mu.Lock()
	o.ids[name] = id
	o.mu.Unlock()
	return &Store{api: o.api, id: id}, ingest.Handle{Created: created, Location: URLPrefix + id}, nil
}

// Store is one spreadsheet; rows live on its first sheet.
type Store struct {
	api backend
	id  string
}

// ReadAll reads every row of the first sheet.
func (s *Store) ReadAll(ctx context.Context) (ingest.Table, error) {
	rows, err := s.api.values(ctx, s.id)
	if err != nil {
		return ingest.Table{}, eris.Wrapf(err, "sheets: read %s", s.id)
	}
	return ingest.RowsFromValues(rows), nil
}

// AppendRow appends one row after the last non-empty row.
func (s *Store) AppendRow(ctx context.Context, values []string) error {
	if err := s.api.appendRow(ctx, s.id, values); err != nil {
		return eris.Wrapf(err, "sheets: append to %s", s.id)
	}
	return nil
}
