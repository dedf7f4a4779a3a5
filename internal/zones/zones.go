// Package zones loads neighborhood zone definitions from YAML.
package zones

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type file struct {
	Zones []domain.Zone `yaml:"zones"`
}

// Defaults returns the built-in zone table.
func Defaults() ([]domain.Zone, error) {
	zs, err := Parse(defaultsYAML)
	if err != nil {
		return nil, fmt.Errorf("built-in zones: %w", err)
	}
	return zs, nil
}

// Load reads zones from path, or returns the built-in table when path is empty.
func Load(path string) ([]domain.Zone, error) {
	if path == "" {
		return Defaults()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	zs, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("zones file %s: %w", path, err)
	}
	return zs, nil
}

// Parse decodes a `zones:` document, normalizes every zone and validates it.
// Unknown keys are rejected so typos in street tables surface early. Two zones
// may not share a store name.
func Parse(b []byte) ([]domain.Zone, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(f.Zones) == 0 {
		return nil, errors.New("no zones defined")
	}

	out := make([]domain.Zone, 0, len(f.Zones))
	stores := make(map[string]string, len(f.Zones))
	for _, z := range f.Zones {
		z = z.Normalize()
		if err := z.Validate(); err != nil {
			return nil, err
		}
		if other, dup := stores[z.Store]; dup {
			return nil, fmt.Errorf("zones %q and %q share store %q", other, z.Name, z.Store)
		}
		stores[z.Store] = z.Name
		out = append(out, z)
	}
	return out, nil
}

// Marshal renders zones back to the YAML document format.
func Marshal(zs []domain.Zone) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(file{Zones: zs}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
