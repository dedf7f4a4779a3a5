package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// MinCells is the number of table cells a source row needs to become a record.
const MinCells = 4

// ParseRow turns the text cells of one table row into a Record stamped with
// the current capture time. Cells beyond the fourth are ignored.
func ParseRow(cells []string) (Record, error) {
	return ParseRowAt(cells, CapturedNow())
}

// ParseRowAt is ParseRow with an explicit capture timestamp.
func ParseRowAt(cells []string, capturedAt string) (Record, error) {
	if len(cells) < MinCells {
		return Record{}, fmt.Errorf("parse row: want at least %d cells, got %d", MinCells, len(cells))
	}
	return NewRecord(
		cleanCell(cells[0]),
		cleanCell(cells[1]),
		cleanCell(cells[2]),
		cleanCell(cells[3]),
		capturedAt,
	), nil
}

// cleanCell trims the cell and folds interior whitespace runs (including
// non-breaking spaces left by the page markup) to a single space.
func cleanCell(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
