package pipeline

import (
	"github.com/couchcryptid/police-calls-etl/internal/domain"
)

// Target is one store a run writes to. A nil Zone means the store receives
// the unfiltered batch.
type Target struct {
	Store string
	Zone  *domain.Zone
}

// Label names the target in logs and metrics.
func (t Target) Label() string {
	if t.Zone == nil {
		return "all"
	}
	return t.Zone.Name
}

// Targets lists the all-calls store (when allCalls is set) followed by one
// target per zone, in zone order.
func Targets(allCalls string, zones []domain.Zone) []Target {
	out := make([]Target, 0, len(zones)+1)
	if allCalls != "" {
		out = append(out, Target{Store: allCalls})
	}
	for i := range zones {
		out = append(out, Target{Store: zones[i].Store, Zone: &zones[i]})
	}
	return out
}

// Router splits a fetched batch into per-target record sets.
type Router struct {
	targets    []Target
	classifier *classifier
}

// NewRouter creates a Router with a classification memo.
func NewRouter(targets []Target) *Router {
	return &Router{targets: targets, classifier: newClassifier(defaultCacheEntries)}
}

// Targets returns the configured targets.
func (r *Router) Targets() []Target { return r.targets }

// Route returns the records destined for t, in batch order.
func (r *Router) Route(t Target, records []domain.Record) []domain.Record {
	if t.Zone == nil {
		return records
	}
	return t.Zone.SelectFunc(records, r.classifier.member(*t.Zone))
}
