package reconcile

import (
	"errors"
	"fmt"

	"github.com/evcraddock/listing-tracker/internal/listing"
	"github.com/evcraddock/listing-tracker/internal/market"
)

// ErrMissingPreviousSnapshot is returned when a day after the first is
// reconciled without the previous day's snapshot.
var ErrMissingPreviousSnapshot = errors.New("previous day snapshot is missing")

// Previous is the snapshot a day is reconciled against.
type Previous struct {
	// Records is the previous day's full snapshot.
	Records []listing.Record
	// Found is false only when no previous snapshot exists.
	Found bool
}

// Summary counts how the day's listings were classified.
type Summary struct {
	Day int `json:"day"`
	// Active is the number of listings present in today's feeds.
	Active int `json:"active"`
	// New counts active listings absent from the previous snapshot.
	New int `json:"new"`
	// Continuing counts active listings that were active yesterday.
	Continuing int `json:"continuing"`
	// Relisted counts active listings that were off market yesterday.
	Relisted int `json:"relisted"`
	// OffMarket is the size of the carry-forward set.
	OffMarket int `json:"off_market"`
	// NewlyOffMarket counts off-market listings that were active yesterday.
	NewlyOffMarket int `json:"newly_off_market"`
}

// Result is one day's reconciled state.
type Result struct {
	Active    []listing.Record
	OffMarket []listing.Record
	Summary   Summary
}

// Snapshot returns the full materialized view for the day: active listings
// first, in feed priority order, then the off-market carry-forward.
func (r *Result) Snapshot() []listing.Record {
	out := make([]listing.Record, 0, len(r.Active)+len(r.OffMarket))
	out = append(out, r.Active...)
	return append(out, r.OffMarket...)
}

// Reconcile classifies today's deduplicated groups against the previous
// snapshot and assigns markets.
//
// Every record in today's groups is marked active and assigned a market.
// Every address in the previous snapshot that is missing today is carried
// forward once as off market, keeping its previously assigned market.
// Neither input is modified.
func Reconcile(day int, today []Group, prev Previous, catalog *market.Catalog) (*Result, error) {
	if catalog == nil || catalog.Len() == 0 {
		return nil, market.ErrEmptyCatalog
	}
	if day < 0 {
		return nil, fmt.Errorf("invalid day %d", day)
	}
	if day > 0 && !prev.Found {
		return nil, fmt.Errorf("reconciling day %d: %w", day, ErrMissingPreviousSnapshot)
	}

	before := make(map[string]listing.Status, len(prev.Records))
	for _, r := range prev.Records {
		if !r.Trackable() {
			continue
		}
		if _, ok := before[r.Address]; !ok {
			before[r.Address] = r.Status
		}
	}

	res := &Result{Summary: Summary{Day: day}}

	current := make(map[string]struct{})
	for _, g := range today {
		for _, r := range g.Records {
			if !r.Trackable() {
				continue
			}
			if _, dup := current[r.Address]; dup {
				continue
			}
			current[r.Address] = struct{}{}

			r = r.Clone()
			r.Status = listing.StatusActive
			market.Assign(&r, catalog)
			res.Active = append(res.Active, r)

			switch status, known := before[r.Address]; {
			case !known:
				res.Summary.New++
			case status == listing.StatusOffMarket:
				res.Summary.Relisted++
			default:
				res.Summary.Continuing++
			}
		}
	}

	emitted := make(map[string]struct{})
	for _, r := range prev.Records {
		if !r.Trackable() {
			continue
		}
		if _, ok := current[r.Address]; ok {
			continue
		}
		if _, ok := emitted[r.Address]; ok {
			continue
		}
		emitted[r.Address] = struct{}{}

		if r.Status != listing.StatusOffMarket {
			res.Summary.NewlyOffMarket++
		}
		r = r.Clone()
		r.Status = listing.StatusOffMarket
		res.OffMarket = append(res.OffMarket, r)
	}

	res.Summary.Active = len(res.Active)
	res.Summary.OffMarket = len(res.OffMarket)
	return res, nil
}
