package metrics

import (
	"context"
	"sync"

	"github.com/yashrk2006/smart-parking-system/pkg/telemetry"
)

var (
	// Ingest counters
	EventsIngested  *telemetry.Counter
	EventsRejected  *telemetry.Counter
	EventsStale     *telemetry.Counter
	EventsDuplicate *telemetry.Counter

	// Fan-out counters
	FactsPublished *telemetry.Counter
	FactsDropped   *telemetry.Counter

	// Violation counters
	ViolationsOpened   *telemetry.Counter
	ViolationsResolved *telemetry.Counter

	// Gauges
	ActiveSubscribers *telemetry.UpDownCounter

	// Histograms
	IngestDuration *telemetry.Histogram

	initOnce sync.Once
	initErr  error
)

// Init initializes all engine metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	EventsIngested, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "engine_events_ingested_total",
		Description: "Total number of occupancy events accepted",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	EventsRejected, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "engine_events_rejected_total",
		Description: "Total number of occupancy events rejected by validation or unknown zone",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	EventsStale, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "engine_events_stale_total",
		Description: "Total number of out-of-order events dropped",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	EventsDuplicate, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "engine_events_duplicate_total",
		Description: "Total number of duplicate source deliveries dropped",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	FactsPublished, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "engine_facts_published_total",
		Description: "Total number of facts published to the dispatcher",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	FactsDropped, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "engine_facts_dropped_total",
		Description: "Total number of facts dropped from slow subscriber queues",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ViolationsOpened, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "engine_violations_opened_total",
		Description: "Total number of violations opened by the detector",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ViolationsResolved, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "engine_violations_resolved_total",
		Description: "Total number of violations resolved or cancelled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ActiveSubscribers, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "engine_active_subscribers",
		Description: "Number of live dispatcher subscriptions",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	IngestDuration, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "engine_ingest_duration_seconds",
		Description: "End-to-end pipeline latency per event",
		Unit:        "s",
	})
	if err != nil {
		return err
	}

	return nil
}

// Nil-safe helpers so library code can record without caring whether
// Init ran (tests exercise components directly).

func IncEventsIngested(ctx context.Context) {
	if EventsIngested != nil {
		EventsIngested.Inc(ctx)
	}
}

func IncEventsRejected(ctx context.Context) {
	if EventsRejected != nil {
		EventsRejected.Inc(ctx)
	}
}

func IncEventsStale(ctx context.Context) {
	if EventsStale != nil {
		EventsStale.Inc(ctx)
	}
}

func IncEventsDuplicate(ctx context.Context) {
	if EventsDuplicate != nil {
		EventsDuplicate.Inc(ctx)
	}
}

func IncFactsPublished(ctx context.Context) {
	if FactsPublished != nil {
		FactsPublished.Inc(ctx)
	}
}

func IncFactsDropped(ctx context.Context) {
	if FactsDropped != nil {
		FactsDropped.Inc(ctx)
	}
}

func IncViolationsOpened(ctx context.Context) {
	if ViolationsOpened != nil {
		ViolationsOpened.Inc(ctx)
	}
}

func IncViolationsResolved(ctx context.Context) {
	if ViolationsResolved != nil {
		ViolationsResolved.Inc(ctx)
	}
}

func AddActiveSubscribers(ctx context.Context, n int64) {
	if ActiveSubscribers != nil {
		ActiveSubscribers.Add(ctx, n)
	}
}

func RecordIngestDuration(ctx context.Context, seconds float64) {
	if IngestDuration != nil {
		IngestDuration.Record(ctx, seconds)
	}
}
