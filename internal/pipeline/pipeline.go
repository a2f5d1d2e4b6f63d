// Package pipeline runs one day of listing reconciliation end to end:
// feeds, deduplication, reconciliation, snapshot and delivery.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/listing-tracker/internal/client"
	"github.com/evcraddock/listing-tracker/internal/listing"
	"github.com/evcraddock/listing-tracker/internal/market"
	"github.com/evcraddock/listing-tracker/internal/reconcile"
	"github.com/evcraddock/listing-tracker/internal/snapshot"
)

// ErrDelivery wraps delivery failures. The day's snapshot is already durable
// when it is returned.
var ErrDelivery = errors.New("delivery failed")

// FeedLoader supplies the day's normalized records grouped by provider in priority order.
type FeedLoader interface {
	Load(ctx context.Context, day int) ([]reconcile.Group, error)
}

// Pipeline wires the stages of a day's run together.
type Pipeline struct {
	Feeds    FeedLoader
	Store    snapshot.Store
	Catalog  *market.Catalog
	Delivery client.Deliverer
	Logger   *slog.Logger
}

// Report describes a completed day.
type Report struct {
	RunID      string                 `json:"run_id"`
	Summary    reconcile.Summary      `json:"summary"`
	Duplicates map[listing.Source]int `json:"duplicates"`
	Skipped    map[listing.Source]int `json:"skipped"`
	Records    int                    `json:"records"`
	Delivered  bool                   `json:"delivered"`
	Duration   time.Duration          `json:"duration"`
}

// RunDay processes a single day. Nothing is written unless every step up to
// and including reconciliation succeeds. Delivery runs only after the snapshot
// is saved, and its failure is returned wrapped in ErrDelivery together with
// the report.
func (p *Pipeline) RunDay(ctx context.Context, day int) (rep *Report, err error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger().With("run_id", runID, "day", day)

	defer func() {
		elapsed := time.Since(start)
		runDuration.Observe(elapsed.Seconds())
		switch {
		case err == nil:
			runsTotal.WithLabelValues(resultSuccess).Inc()
		case errors.Is(err, ErrDelivery):
			runsTotal.WithLabelValues(resultDeliveryFailed).Inc()
		default:
			runsTotal.WithLabelValues(resultFailed).Inc()
			logger.Error("day run failed", "error", err, "duration", elapsed.String())
		}
	}()

	if p.Catalog == nil || p.Catalog.Len() == 0 {
		return nil, market.ErrEmptyCatalog
	}

	logger.Info("starting day run")

	groups, err := p.Feeds.Load(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("loading feeds: %w", err)
	}
	for _, g := range groups {
		recordsTotal.WithLabelValues(string(g.Source), outcomeIngested).Add(float64(len(g.Records)))
	}

	deduped := reconcile.Deduplicate(groups)
	for src, n := range deduped.Duplicates {
		recordsTotal.WithLabelValues(string(src), outcomeDuplicate).Add(float64(n))
	}
	for src, n := range deduped.Skipped {
		recordsTotal.WithLabelValues(string(src), outcomeSkipped).Add(float64(n))
		logger.Warn("skipped records without address", "source", src, "count", n)
	}

	prevRecords, found, err := snapshot.Previous(ctx, p.Store, day)
	if err != nil {
		return nil, err
	}

	res, err := reconcile.Reconcile(day, deduped.Groups, reconcile.Previous{Records: prevRecords, Found: found}, p.Catalog)
	if err != nil {
		return nil, err
	}

	records := res.Snapshot()
	if err := p.Store.Save(ctx, day, records); err != nil {
		return nil, fmt.Errorf("saving snapshot: %w", err)
	}
	listings.WithLabelValues(string(listing.StatusActive)).Set(float64(res.Summary.Active))
	listings.WithLabelValues(string(listing.StatusOffMarket)).Set(float64(res.Summary.OffMarket))

	rep = &Report{
		RunID:      runID,
		Summary:    res.Summary,
		Duplicates: deduped.Duplicates,
		Skipped:    deduped.Skipped,
		Records:    len(records),
	}
	logger.Info("snapshot saved",
		"records", rep.Records,
		"active", res.Summary.Active,
		"new", res.Summary.New,
		"relisted", res.Summary.Relisted,
		"off_market", res.Summary.OffMarket,
		"newly_off_market", res.Summary.NewlyOffMarket,
	)

	if p.Delivery != nil {
		if err := p.Delivery.Deliver(ctx, records); err != nil {
			rep.Duration = time.Since(start)
			logger.Error("delivery failed", "error", err)
			return rep, fmt.Errorf("day %d: %w: %w", day, ErrDelivery, err)
		}
		rep.Delivered = true
	}

	rep.Duration = time.Since(start)
	logger.Info("day run complete", "duration", rep.Duration.String())
	return rep, nil
}

// RunThrough runs every day after the latest saved snapshot up to and
// including last, in order. It stops at the first failure other than a
// delivery failure; delivery failures are collected and returned together.
func (p *Pipeline) RunThrough(ctx context.Context, last int) ([]*Report, error) {
	first, err := p.NextDay(ctx)
	if err != nil {
		return nil, err
	}

	var (
		reports     []*Report
		deliveryErr error
	)
	for day := first; day <= last; day++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep, err := p.RunDay(ctx, day)
		if rep != nil {
			reports = append(reports, rep)
		}
		if errors.Is(err, ErrDelivery) {
			deliveryErr = errors.Join(deliveryErr, err)
			continue
		}
		if err != nil {
			return reports, errors.Join(deliveryErr, err)
		}
	}
	return reports, deliveryErr
}

// NextDay returns the first day without a snapshot.
func (p *Pipeline) NextDay(ctx context.Context) (int, error) {
	day, _, err := p.Store.Latest(ctx)
	if errors.Is(err, snapshot.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("finding latest snapshot: %w", err)
	}
	return day + 1, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default().With("component", "pipeline")
}
