package domain

import (
	"fmt"
	"strings"
)

// StreetKind tells the classifier how a matched street is treated.
type StreetKind string

const (
	// Interior streets run through the zone; any match is a member.
	Interior StreetKind = "interior"
	// Boundary streets are members only inside their block range.
	Boundary StreetKind = "boundary"
)

// BlockRange is an inclusive house-number range.
type BlockRange struct {
	Low  int `yaml:"low" json:"low"`
	High int `yaml:"high" json:"high"`
}

// Contains reports whether n lies in [Low, High].
func (b BlockRange) Contains(n int) bool {
	return n >= b.Low && n <= b.High
}

// Street is one token of a zone's street table.
type Street struct {
	Token string      `yaml:"token" json:"token"`
	Kind  StreetKind  `yaml:"kind" json:"kind"`
	Range *BlockRange `yaml:"range,omitempty" json:"range,omitempty"`
}

func (s Street) isBoundary() bool {
	return strings.EqualFold(strings.TrimSpace(string(s.Kind)), string(Boundary))
}

// Zone is a declarative neighborhood definition. Street order is priority
// order: the first matching token decides.
type Zone struct {
	Name          string   `yaml:"name" json:"name"`
	Store         string   `yaml:"store" json:"store"`
	LiteralPhrase string   `yaml:"literal_phrase,omitempty" json:"literal_phrase,omitempty"`
	FlagColumn    string   `yaml:"flag_column,omitempty" json:"flag_column,omitempty"`
	Streets       []Street `yaml:"streets" json:"streets"`
}

// Normalize uppercases tokens and phrases and fills the default street kind.
// Classify works on unnormalized zones too; Normalize just makes stored
// definitions canonical.
func (z Zone) Normalize() Zone {
	z.Name = strings.TrimSpace(z.Name)
	z.Store = strings.TrimSpace(z.Store)
	z.LiteralPhrase = strings.ToUpper(strings.TrimSpace(z.LiteralPhrase))
	streets := make([]Street, len(z.Streets))
	for i, s := range z.Streets {
		s.Token = strings.ToUpper(strings.TrimSpace(s.Token))
		s.Kind = StreetKind(strings.ToLower(strings.TrimSpace(string(s.Kind))))
		if s.Kind == "" {
			s.Kind = Interior
		}
		streets[i] = s
	}
	z.Streets = streets
	return z
}

// Validate checks a normalized zone.
func (z Zone) Validate() error {
	if z.Name == "" {
		return fmt.Errorf("zone: name is required")
	}
	if z.Store == "" {
		return fmt.Errorf("zone %q: store is required", z.Name)
	}
	if len(z.Streets) == 0 && z.LiteralPhrase == "" {
		return fmt.Errorf("zone %q: needs at least one street or a literal phrase", z.Name)
	}
	for i, s := range z.Streets {
		if s.Token == "" {
			return fmt.Errorf("zone %q: street %d has an empty token", z.Name, i)
		}
		switch s.Kind {
		case Interior:
			if s.Range != nil {
				return fmt.Errorf("zone %q: interior street %s cannot have a range", z.Name, s.Token)
			}
		case Boundary:
			if s.Range != nil && s.Range.Low > s.Range.High {
				return fmt.Errorf("zone %q: street %s range %d-%d is inverted", z.Name, s.Token, s.Range.Low, s.Range.High)
			}
		default:
			return fmt.Errorf("zone %q: street %s has unknown kind %q", z.Name, s.Token, s.Kind)
		}
	}
	return nil
}

// boundaryTokens returns the uppercased boundary tokens, deduplicated.
func (z Zone) boundaryTokens() []string {
	var out []string
	seen := make(map[string]bool, len(z.Streets))
	for _, s := range z.Streets {
		tok := strings.ToUpper(strings.TrimSpace(s.Token))
		if !s.isBoundary() || tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// FlagValue is written to a zone's flag column for member records.
const FlagValue = "Yes"

// Select returns the records of batch whose address is inside z, in batch
// order, each tagged with the zone's flag column when one is configured.
func (z Zone) Select(batch []Record) []Record {
	return z.SelectFunc(batch, func(address string) bool { return Classify(address, z) })
}

// SelectFunc is Select with the membership test supplied by the caller,
// typically a memoized Classify.
func (z Zone) SelectFunc(batch []Record, member func(address string) bool) []Record {
	var out []Record
	for _, r := range batch {
		if !member(r.Address()) {
			continue
		}
		if z.FlagColumn != "" {
			r = r.With(z.FlagColumn, FlagValue)
		}
		out = append(out, r)
	}
	return out
}
