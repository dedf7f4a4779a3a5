package domain

// Batch is the result of one scrape: every parsed record plus the number of
// table rows that were skipped for having too few cells.
type Batch struct {
	Records []Record
	Skipped int
}

// Len returns the number of parsed records.
func (b Batch) Len() int { return len(b.Records) }

// Dedup returns the records with repeated event identifiers removed, keeping
// the first occurrence. The source page occasionally lists an event twice
// while it is being updated.
func Dedup(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		id := r.EventID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out
}
