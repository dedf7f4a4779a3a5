// Command validate audits the configured stores: every store has a header
// led by the base call fields, no event identifier appears twice, and every
// row of a zone store still classifies into that zone.
//
// It reads the same environment as policecalls (STORE_DRIVER, STORE_DIR,
// SQLITE_PATH, DATABASE_URL, ZONES_FILE, ALL_CALLS_STORE, ...).
//
// Usage:
//
//	STORE_DRIVER=sqlite go run ./cmd/validate [-store TowerGroveSouthCalls]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/couchcryptid/police-calls-etl/internal/adapter/stores"
	"github.com/couchcryptid/police-calls-etl/internal/config"
	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/ingest"
	"github.com/couchcryptid/police-calls-etl/internal/pipeline"
	"github.com/couchcryptid/police-calls-etl/internal/zones"
)

var baseHeader = []string{
	domain.FieldDispatch,
	domain.FieldEvent,
	domain.FieldAddress,
	domain.FieldCallType,
	domain.FieldCapturedAt,
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	only := flag.String("store", "", "audit only this store")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stdout, *only))
}

func run(ctx context.Context, w io.Writer, only string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	zs, err := zones.Load(cfg.ZonesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load zones: %v\n", err)
		return 1
	}
	opener, closeStores, err := stores.Open(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open stores: %v\n", err)
		return 1
	}
	defer closeStores()
	if err := opener.Authorize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: authorize: %v\n", err)
		return 1
	}

	fmt.Fprintf(w, "=== Police Calls Store Validation (%s) ===\n", cfg.StoreDriver)

	allPassed := true
	for _, t := range pipeline.Targets(cfg.AllCallsStore, zs) {
		if only != "" && t.Store != only {
			continue
		}
		table, err := readStore(ctx, opener, t.Store)
		if err != nil {
			fmt.Fprintf(w, "\n%s: %v\n", t.Store, err)
			allPassed = false
			continue
		}
		if !report(w, t, len(table.Rows), auditTable(t, table)) {
			allPassed = false
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// readStore reads a store. A store that had to be created reports as missing.
func readStore(ctx context.Context, opener ingest.Opener, name string) (ingest.Table, error) {
	store, h, err := opener.OpenOrCreate(ctx, name)
	if err != nil {
		return ingest.Table{}, err
	}
	if h.Created {
		return ingest.Table{}, fmt.Errorf("store did not exist (now created empty at %s)", h.Location)
	}
	return store.ReadAll(ctx)
}

// auditTable runs every phase against one store's content.
func auditTable(t pipeline.Target, table ingest.Table) []*phase {
	return []*phase{
		validateHeader(t, table),
		validateUniqueEvents(table),
		validateZoneMembership(t, table),
	}
}

func validateHeader(t pipeline.Target, table ingest.Table) *phase {
	p := &phase{name: "Header"}
	if len(table.Header) == 0 {
		if len(table.Rows) > 0 {
			p.errorf("rows present without a header")
		}
		return p
	}
	for i, name := range baseHeader {
		if i >= len(table.Header) || table.Header[i] != name {
			p.errorf("column %d: want %q, header is %v", i+1, name, table.Header)
			return p
		}
	}
	if t.Zone != nil && t.Zone.FlagColumn != "" && !slices.Contains(table.Header, t.Zone.FlagColumn) {
		p.errorf("missing flag column %q", t.Zone.FlagColumn)
	}
	return p
}

func validateUniqueEvents(table ingest.Table) *phase {
	p := &phase{name: "Unique event identifiers"}
	seen := make(map[string]int, len(table.Rows))
	for i, row := range table.Rows {
		id := row[domain.FieldEvent]
		if strings.TrimSpace(id) == "" {
			p.errorf("row %d: empty event identifier", i+2)
			continue
		}
		if first, ok := seen[id]; ok {
			p.errorf("row %d: event %s already stored at row %d", i+2, id, first)
			continue
		}
		seen[id] = i + 2
	}
	return p
}

func validateZoneMembership(t pipeline.Target, table ingest.Table) *phase {
	p := &phase{name: "Zone membership"}
	if t.Zone == nil {
		return p
	}
	for i, row := range table.Rows {
		address := row[domain.FieldAddress]
		if !domain.Classify(address, *t.Zone) {
			p.errorf("row %d: %q is outside %s", i+2, address, t.Zone.Name)
		}
		if t.Zone.FlagColumn != "" && row[t.Zone.FlagColumn] != domain.FlagValue {
			p.errorf("row %d: %s is %q", i+2, t.Zone.FlagColumn, row[t.Zone.FlagColumn])
		}
	}
	return p
}

// report prints one store's phases and returns whether all passed.
func report(w io.Writer, t pipeline.Target, rows int, phases []*phase) bool {
	fmt.Fprintf(w, "\n%s (%s, %d rows)\n", t.Store, t.Label(), rows)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-30s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "  --- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "    [%d] %s\n", i+1, e)
		}
	}
	return allPassed
}
