// Package reconcile merges the day's provider feeds into one deduplicated set
// and classifies every known listing against the previous day's snapshot.
package reconcile

import (
	"github.com/evcraddock/listing-tracker/internal/listing"
)

// Group is one provider's records for a day, in feed order.
type Group struct {
	Source  listing.Source
	Records []listing.Record
}

// DedupResult is the outcome of Deduplicate.
type DedupResult struct {
	// Groups holds the surviving records, one group per input group, same order.
	Groups []Group
	// Duplicates counts records dropped because an earlier record had the same address.
	Duplicates map[listing.Source]int
	// Skipped counts records dropped because they had no address.
	Skipped map[listing.Source]int
}

// Deduplicate keeps at most one record per address across all groups.
// Groups are processed in the order given, so the first group has the highest
// priority. Within a group the first occurrence of an address wins.
// The input groups are not modified.
func Deduplicate(groups []Group) DedupResult {
	res := DedupResult{
		Groups:     make([]Group, len(groups)),
		Duplicates: make(map[listing.Source]int),
		Skipped:    make(map[listing.Source]int),
	}

	seen := make(map[string]struct{})
	for i, g := range groups {
		kept := make([]listing.Record, 0, len(g.Records))
		for _, r := range g.Records {
			if !r.Trackable() {
				res.Skipped[g.Source]++
				continue
			}
			if _, dup := seen[r.Address]; dup {
				res.Duplicates[g.Source]++
				continue
			}
			seen[r.Address] = struct{}{}
			kept = append(kept, r.Clone())
		}
		res.Groups[i] = Group{Source: g.Source, Records: kept}
	}

	return res
}

// Flatten concatenates the records of groups in order.
func Flatten(groups []Group) []listing.Record {
	n := 0
	for _, g := range groups {
		n += len(g.Records)
	}
	out := make([]listing.Record, 0, n)
	for _, g := range groups {
		out = append(out, g.Records...)
	}
	return out
}
