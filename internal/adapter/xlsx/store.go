// Package xlsx keeps each store as a local Excel workbook, one per store name.
package xlsx

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// SheetName is the worksheet every workbook keeps its rows in.
const SheetName = "Calls"

// Opener opens workbooks under a directory.
type Opener struct {
	dir string
}

// NewOpener returns an Opener writing workbooks to dir.
func NewOpener(dir string) *Opener {
	return &Opener{dir: dir}
}

// Authorize makes sure the workbook directory exists and is writable.
func (o *Opener) Authorize(context.Context) error {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return eris.Wrapf(err, "xlsx: create %s", o.dir)
	}
	probe, err := os.CreateTemp(o.dir, ".probe-*")
	if err != nil {
		return eris.Wrapf(err, "xlsx: %s is not writable", o.dir)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// Path returns the workbook path for a store name.
func (o *Opener) Path(name string) string {
	return filepath.Join(o.dir, name+".xlsx")
}

// OpenOrCreate opens the named workbook, creating an empty one when absent.
func (o *Opener) OpenOrCreate(_ context.Context, name string) (ingest.Store, ingest.Handle, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, ingest.Handle{}, eris.Errorf("xlsx: invalid store name %q", name)
	}
	path := o.Path(name)
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	_, err = os.Stat(path)
	switch {
	case err == nil:
		f, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, ingest.Handle{}, eris.Wrapf(err, "xlsx: open %s", path)
		}
		if _, ok := f.Sheet[SheetName]; !ok {
			return nil, ingest.Handle{}, eris.Errorf("xlsx: %s has no %q sheet", path, SheetName)
		}
		return &Store{file: f, path: path}, ingest.Handle{Location: abs}, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, ingest.Handle{}, eris.Wrapf(err, "xlsx: stat %s", path)
	}

	f := xlsx.NewFile()
	if _, err := f.AddSheet(SheetName); err != nil {
		return nil, ingest.Handle{}, eris.Wrap(err, "xlsx: add sheet")
	}
	if err := f.Save(path); err != nil {
		return nil, ingest.Handle{}, eris.Wrapf(err, "xlsx: create %s", path)
	}
	return &Store{file: f, path: path}, ingest.Handle{Created: true, Location: abs}, nil
}

// Store is one open workbook. Every append is saved to disk immediately.
type Store struct {
	mu   sync.Mutex
	file *xlsx.File
	path string
}

// ReadAll returns the sheet content; the first row is the header.
func (s *Store) ReadAll(context.Context) (ingest.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := s.file.Sheet[SheetName]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if isBlank(cells) {
			continue
		}
		rows = append(rows, cells)
	}
	return ingest.RowsFromValues(rows), nil
}

// AppendRow adds a row and saves the workbook.
func (s *Store) AppendRow(_ context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.file.Sheet[SheetName].AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
	if err := s.file.Save(s.path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", s.path)
	}
	return nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
