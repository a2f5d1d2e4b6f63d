// Package feed reads the raw per-provider listing files for a day and
// normalizes them into canonical records.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/listing-tracker/internal/listing"
	"github.com/evcraddock/listing-tracker/internal/reconcile"
)

// ErrMissingFeed is returned when a configured provider has no file for the day.
var ErrMissingFeed = errors.New("feed file missing")

// Provider is one listing source and the format its feed is written in.
type Provider struct {
	Name   listing.Source
	Format string
}

// DefaultProviders pairs each default source with its built-in format.
func DefaultProviders() []Provider {
	formats := []string{listing.FormatA, listing.FormatB, listing.FormatC}
	out := make([]Provider, len(listing.DefaultProviders))
	for i, name := range listing.DefaultProviders {
		out[i] = Provider{Name: name, Format: formats[i]}
	}
	return out
}

// Loader reads feeds laid out as <Dir>/day_<N>/<provider>.json, each file
// holding a JSON array of raw listing objects.
type Loader struct {
	Dir       string
	Providers []Provider
}

// Path returns the feed file for a provider on a day.
func (l *Loader) Path(day int, p Provider) string {
	return filepath.Join(l.Dir, fmt.Sprintf("day_%d", day), string(p.Name)+".json")
}

// Load reads every provider's feed for day. Groups come back in provider
// order regardless of which file finished reading first.
func (l *Loader) Load(ctx context.Context, day int) ([]reconcile.Group, error) {
	if len(l.Providers) == 0 {
		return nil, errors.New("no feed providers configured")
	}

	normalizers := make([]listing.Normalizer, len(l.Providers))
	for i, p := range l.Providers {
		n, err := listing.NormalizerFor(p.Format)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		normalizers[i] = n
	}

	groups := make([]reconcile.Group, len(l.Providers))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range l.Providers {
		g.Go(func() error {
			raw, err := readFeed(ctx, l.Path(day, p))
			if err != nil {
				return fmt.Errorf("provider %s day %d: %w", p.Name, day, err)
			}
			records := make([]listing.Record, 0, len(raw))
			for _, item := range raw {
				r := normalizers[i].Normalize(item)
				r.Source = p.Name
				records = append(records, r)
			}
			groups[i] = reconcile.Group{Source: p.Name, Records: records}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

func readFeed(ctx context.Context, path string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingFeed)
	}
	if err != nil {
		return nil, fmt.Errorf("opening feed: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return raw, nil
}
