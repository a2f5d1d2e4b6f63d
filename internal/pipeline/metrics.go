package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes for recordsTotal.
const (
	outcomeIngested  = "ingested"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"
)

// Run results for runsTotal.
const (
	resultSuccess        = "success"
	resultDeliveryFailed = "delivery_failed"
	resultFailed         = "failed"
)

var (
	// recordsTotal counts feed records by provider and what happened to them.
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_tracker_pipeline_records_total",
		Help: "Feed records processed by source and outcome",
	}, []string{"source", "outcome"})

	// listings is the size of the latest snapshot by status.
	listings = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "listing_tracker_pipeline_listings",
		Help: "Listings in the most recent snapshot by status",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "listing_tracker_pipeline_run_duration_seconds",
		Help:    "Duration of one day's pipeline run in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_tracker_pipeline_runs_total",
		Help: "Pipeline runs by result",
	}, []string{"result"})
)
