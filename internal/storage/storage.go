// Package storage defines the raw lead snapshot backend. A run saves every
// lead it builds, whether or not the state's page is published.
package storage

import (
	"context"
	"time"

	"github.com/FranksOps/signlead/internal/lead"
)

// Filter selects stored leads. Zero fields match everything.
type Filter struct {
	State       string
	Temperature lead.Temperature
	Since       *time.Time
	Limit       int
	Offset      int
}

// Match reports whether l passes the filter's predicates. Limit and Offset
// are applied by the caller.
func (f Filter) Match(l *lead.Lead) bool {
	if f.State != "" && l.State != f.State && l.StateCode != f.State {
		return false
	}
	if f.Temperature != "" && l.Temperature != f.Temperature {
		return false
	}
	if f.Since != nil && l.Discovered.Before(*f.Since) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already ordered slice.
func (f Filter) Page(leads []*lead.Lead) []*lead.Lead {
	if f.Offset > 0 {
		if f.Offset >= len(leads) {
			return []*lead.Lead{}
		}
		leads = leads[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(leads) {
		leads = leads[:f.Limit]
	}
	return leads
}

// Backend stores and queries leads. Query returns newest first.
type Backend interface {
	Save(ctx context.Context, l *lead.Lead) error
	Query(ctx context.Context, filter Filter) ([]*lead.Lead, error)
	Close() error
}
