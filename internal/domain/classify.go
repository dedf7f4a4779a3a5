package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// houseNumberRe finds the first "<digits> <words>" run, e.g.
// "3700 GRAND BLVD" -> 3700, "GRAND BLVD". Only the first match is used.
var houseNumberRe = regexp.MustCompile(`(\d+)\s+([A-Za-z\s]+)`)

// Classify reports whether address falls inside zone.
//
// Rules, in order:
//  1. An empty address is not a member.
//  2. The literal phrase found anywhere makes a member.
//  3. The street table is walked in order, repeated tokens skipped. For a
//     token found in the address: with a parsed house number an interior
//     street is a member and a boundary street is a member when the number
//     lies in its range (no range accepts any number); without a house
//     number the address is a member when any boundary token appears in
//     it. Anything else moves on to the next token.
//  4. Nothing matched: not a member.
//
// Matching is case-insensitive substring matching. Classify is pure and
// never panics.
func Classify(address string, zone Zone) bool {
	if strings.TrimSpace(address) == "" {
		return false
	}
	upper := strings.ToUpper(address)

	if phrase := strings.ToUpper(strings.TrimSpace(zone.LiteralPhrase)); phrase != "" && strings.Contains(upper, phrase) {
		return true
	}

	number, parsed := extractHouseNumber(upper)
	seen := make(map[string]bool, len(zone.Streets))

	for _, street := range zone.Streets {
		token := strings.ToUpper(strings.TrimSpace(street.Token))
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true

		if !strings.Contains(upper, token) {
			continue
		}

		if !parsed {
			if containsAny(upper, zone.boundaryTokens()) {
				return true
			}
			continue
		}

		if !street.isBoundary() {
			return true
		}
		if street.Range == nil || street.Range.Contains(number) {
			return true
		}
	}
	return false
}

// ClassifyAll returns the zones address belongs to, in the given order.
func ClassifyAll(address string, zones []Zone) []Zone {
	var out []Zone
	for _, z := range zones {
		if Classify(address, z) {
			out = append(out, z)
		}
	}
	return out
}

// extractHouseNumber pulls the leading number of the first digit-then-words
// run. A number too large for int counts as not parsed.
func extractHouseNumber(upper string) (int, bool) {
	m := houseNumberRe.FindStringSubmatch(upper)
	if len(m) != 3 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
