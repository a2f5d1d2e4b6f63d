// Package snapshot persists the daily materialized view of all known listings.
//
// Snapshots are write-once: a day's snapshot is either fully written or absent,
// and an existing snapshot is never replaced.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

var (
	// ErrNotFound is returned when no snapshot exists for the requested day.
	ErrNotFound = errors.New("snapshot not found")

	// ErrExists is returned when saving a day that already has a snapshot.
	ErrExists = errors.New("snapshot already exists")
)

// Store reads and writes daily snapshots.
type Store interface {
	// Load returns the snapshot for day, or ErrNotFound.
	Load(ctx context.Context, day int) ([]listing.Record, error)
	// Save writes the snapshot for day atomically, or returns ErrExists.
	Save(ctx context.Context, day int, records []listing.Record) error
	// Latest returns the highest-numbered snapshot, or ErrNotFound when there are none.
	Latest(ctx context.Context) (int, []listing.Record, error)
}

// Previous returns the snapshot a day must be reconciled against.
// Day 0 has no previous snapshot. For later days found is false when the
// previous day was never written.
func Previous(ctx context.Context, s Store, day int) (records []listing.Record, found bool, err error) {
	if day <= 0 {
		return nil, false, nil
	}
	records, err = s.Load(ctx, day-1)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading day %d snapshot: %w", day-1, err)
	}
	return records, true, nil
}

func checkDay(day int) error {
	if day < 0 {
		return fmt.Errorf("invalid day %d", day)
	}
	return nil
}
