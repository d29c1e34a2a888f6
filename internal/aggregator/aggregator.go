package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/metrics"
	"github.com/yashrk2006/smart-parking-system/internal/registry"
	"github.com/yashrk2006/smart-parking-system/pkg/logger"
)

// Publisher is the fan-out seam the aggregator emits facts through.
type Publisher interface {
	Publish(channel, key string, fact interface{})
}

// sourceKey scopes duplicate tracking to one source feeding one zone; a
// camera covering several zones carries an independent clock per zone.
type sourceKey struct {
	sourceID string
	zoneID   string
}

// Aggregator normalizes raw occupancy events into OccupancyChanged facts.
// It owns no zone state; all mutation goes through the registry.
type Aggregator struct {
	registry *registry.ZoneRegistry
	bus      Publisher
	log      *logger.Logger

	// lastSeen tracks the newest accepted timestamp per (source, zone)
	// so a redelivered (source_id, timestamp) pair is a no-op rather
	// than a double-apply. Bounded by sources times zones covered.
	mu       sync.Mutex
	lastSeen map[sourceKey]time.Time
}

// New creates an Aggregator publishing to bus.
func New(reg *registry.ZoneRegistry, bus Publisher) *Aggregator {
	return &Aggregator{
		registry: reg,
		bus:      bus,
		log:      logger.Get(),
		lastSeen: make(map[sourceKey]time.Time),
	}
}

// Ingest consumes one raw occupancy event. It returns the emitted fact,
// or nil when the event was a no-op (unchanged value, stale, duplicate).
// Per-event errors are non-fatal: the caller logs and moves on.
func (a *Aggregator) Ingest(ctx context.Context, ev domain.OccupancyEvent) (*domain.OccupancyChanged, error) {
	if err := validate(ev); err != nil {
		metrics.IncEventsRejected(ctx)
		return nil, err
	}

	// Duplicates are silent drops like stale events: the delivery was
	// already applied, so the caller has nothing to handle.
	if a.isDuplicate(ev) {
		metrics.IncEventsDuplicate(ctx)
		return nil, nil
	}

	zone, err := a.registry.Get(ev.ZoneID)
	if err != nil {
		metrics.IncEventsRejected(ctx)
		a.log.Warn("Dropping event for unknown zone",
			zap.String("zone_id", ev.ZoneID),
			zap.String("source_id", ev.SourceID))
		return nil, domain.ErrZoneNotFound
	}

	newCount := resolveCount(zone.CurrentCount, ev)

	res, err := a.registry.ApplyOccupancy(ev.ZoneID, newCount, ev.Timestamp)
	if err == domain.ErrStaleUpdate {
		// Expected under out-of-order delivery; drop silently.
		metrics.IncEventsStale(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply occupancy for zone %s: %w", ev.ZoneID, err)
	}

	a.markSeen(ev)
	metrics.IncEventsIngested(ctx)

	if !res.Changed() {
		return nil, nil
	}

	// Inactive zones still track state but stay silent on the bus.
	if !res.Zone.IsActive() {
		return nil, nil
	}

	fact := &domain.OccupancyChanged{
		ZoneID:         res.Zone.ID,
		PreviousCount:  res.PreviousCount,
		NewCount:       res.Zone.CurrentCount,
		ReservedCount:  res.Zone.ReservedCount,
		PreviousStatus: res.PreviousStatus,
		NewStatus:      res.Zone.CapacityStatus,
		Timestamp:      ev.Timestamp,
	}

	a.bus.Publish(domain.ChannelOccupancy, fact.ZoneID, fact)
	metrics.IncFactsPublished(ctx)

	return fact, nil
}

func validate(ev domain.OccupancyEvent) error {
	if ev.ZoneID == "" {
		return fmt.Errorf("%w: missing zone_id", domain.ErrValidation)
	}
	if ev.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", domain.ErrValidation)
	}
	if ev.Absolute == nil && ev.Delta == nil {
		return fmt.Errorf("%w: event carries neither absolute_count nor delta", domain.ErrValidation)
	}
	if ev.Absolute != nil && *ev.Absolute < 0 {
		return fmt.Errorf("%w: negative absolute_count %d", domain.ErrValidation, *ev.Absolute)
	}
	return nil
}

// resolveCount turns the event into an absolute count, clamping deltas at
// zero: counts never go negative, even under erroneous negative deltas.
func resolveCount(current int, ev domain.OccupancyEvent) int {
	if ev.Absolute != nil {
		return *ev.Absolute
	}
	n := current + *ev.Delta
	if n < 0 {
		n = 0
	}
	return n
}

func (a *Aggregator) isDuplicate(ev domain.OccupancyEvent) bool {
	if ev.SourceID == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	last, ok := a.lastSeen[sourceKey{sourceID: ev.SourceID, zoneID: ev.ZoneID}]
	return ok && !ev.Timestamp.After(last)
}

func (a *Aggregator) markSeen(ev domain.OccupancyEvent) {
	if ev.SourceID == "" {
		return
	}
	a.mu.Lock()
	a.lastSeen[sourceKey{sourceID: ev.SourceID, zoneID: ev.ZoneID}] = ev.Timestamp
	a.mu.Unlock()
}
