// Package domain models SLMPD "calls for service" records and the street-name
// heuristic used to place a call inside a named neighborhood zone.
//
// # Data Source
//
// The St. Louis Metropolitan Police Department publishes recent dispatches at
// https://slmpd.org/calls/ as a single HTML table (class
// "report-table call-for-service"). The first row is a header; every other row
// carries at least four cells in this order:
//
//	Dispatch | Event | Address | Call Type
//
// Dispatch is free text ("2025-03-14 21:07:33"), Event is the department's
// event number and is the only stable key, Address is a block-level address
// ("3700 GRAND BLVD", "MORGANFORD RD / ARSENAL ST", "35XX OAK HILL AV").
// The page is a rolling window, so consecutive scrapes overlap heavily.
//
// # Records
//
// A [Record] is an ordered list of named text fields. The five base fields are
// fixed; zones may append one flag column. Field names, in order, become the
// header row of a store the first time it is written to.
//
// # Zone Matching
//
// Addresses carry no coordinates, so membership is decided from text alone.
// A [Zone] lists street tokens in priority order. Interior streets are assumed
// to run entirely through the zone. Boundary streets are only in the zone for
// a block-number range, e.g. ARSENAL between 3200 and 4100 for Tower Grove
// South. See [Classify] for the exact rule set.
//
// Known weak spots:
//
//	Intersections ("GRAND BLVD / ARSENAL ST") have no house number and fall
//	back to "does any boundary street appear".
//	Short tokens match inside longer names ("OHIO" in "OHIO AV" and
//	"OHIO ST"); zone tables should prefer full street names.
//	Masked numbers ("35XX") do not parse, so they take the intersection
//	fallback as well.
package domain
