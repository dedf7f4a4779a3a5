// Command genfixture turns a saved copy of the calls-for-service page into a
// JSON fixture: every parsed call with the zones its address falls in. It uses
// the scraper's own parser and classifier so the fixture matches what a run
// would store.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -html internal/adapter/slmpd/testdata/calls.html \
//	  -out testdata/calls_fixture.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/police-calls-etl/internal/adapter/slmpd"
	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/zones"
	"github.com/jonboulle/clockwork"
)

// capturedAt is fixed so regenerated fixtures diff cleanly.
var capturedAt = time.Date(2025, time.March, 14, 21, 10, 0, 0, time.UTC)

// fixtureCall is one call in the fixture.
type fixtureCall struct {
	Fields map[string]string `json:"fields"`
	Zones  []string          `json:"zones"`
}

// fixture is the file written by genfixture.
type fixture struct {
	Source   string        `json:"source"`
	Rejected int           `json:"rejected"`
	Calls    []fixtureCall `json:"calls"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	htmlPath := flag.String("html", "", "saved calls-for-service HTML page")
	out := flag.String("out", "", "output path for the JSON fixture")
	zonesFile := flag.String("zones", "", "zone YAML file (default: built-in zones)")
	flag.Parse()

	if *htmlPath == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -html, -out")
	}

	domain.SetClock(clockwork.NewFakeClockAt(capturedAt))
	defer domain.SetClock(nil)

	zs, err := zones.Load(*zonesFile)
	if err != nil {
		return fmt.Errorf("loading zones: %w", err)
	}
	page, err := os.ReadFile(*htmlPath)
	if err != nil {
		return fmt.Errorf("reading page: %w", err)
	}

	fx, err := buildFixture(page, filepath.Base(*htmlPath), zs)
	if err != nil {
		return err
	}
	log.Printf("%d calls, %d rejected rows", len(fx.Calls), fx.Rejected)

	if err := writeJSON(*out, fx); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	printStats(os.Stdout, fx, zs)
	return nil
}

// buildFixture parses page, drops repeated events and classifies every call.
func buildFixture(page []byte, source string, zs []domain.Zone) (fixture, error) {
	batch, err := slmpd.ParseCalls(page, domain.CapturedNow())
	if err != nil {
		return fixture{}, fmt.Errorf("parsing page: %w", err)
	}

	fx := fixture{Source: source, Rejected: batch.Skipped, Calls: []fixtureCall{}}
	for _, rec := range domain.Dedup(batch.Records) {
		call := fixtureCall{Fields: rec.Map(), Zones: []string{}}
		for _, z := range domain.ClassifyAll(rec.Address(), zs) {
			call.Zones = append(call.Zones, z.Name)
		}
		fx.Calls = append(fx.Calls, call)
	}
	return fx, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type nameCount struct {
	name  string
	count int
}

// sortedCounts orders counts descending, then by name.
func sortedCounts(m map[string]int) []nameCount {
	out := make([]nameCount, 0, len(m))
	for k, v := range m {
		out = append(out, nameCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func printStats(w io.Writer, fx fixture, zs []domain.Zone) {
	perZone := map[string]int{}
	callTypes := map[string]int{}
	var unzoned int
	for _, c := range fx.Calls {
		callTypes[c.Fields[domain.FieldCallType]]++
		if len(c.Zones) == 0 {
			unzoned++
		}
		for _, z := range c.Zones {
			perZone[z]++
		}
	}

	fmt.Fprintln(w, "\n=== Stats for updating test assertions ===")
	fmt.Fprintf(w, "Total: %d (rejected rows: %d)\n", len(fx.Calls), fx.Rejected)
	for _, z := range zs {
		fmt.Fprintf(w, "  %s: %d\n", z.Name, perZone[z.Name])
	}
	fmt.Fprintf(w, "  outside all zones: %d\n", unzoned)

	fmt.Fprintln(w, "Call types:")
	for _, ct := range sortedCounts(callTypes) {
		fmt.Fprintf(w, "  %s=%d\n", ct.name, ct.count)
	}
}
