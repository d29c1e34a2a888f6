package detector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/metrics"
	"github.com/yashrk2006/smart-parking-system/internal/registry"
	"github.com/yashrk2006/smart-parking-system/pkg/logger"
)

// Publisher is the fan-out seam the detector emits facts through.
type Publisher interface {
	Publish(channel, key string, fact interface{})
}

// Store persists violation transitions. Persistence failures are logged
// and never block detection.
type Store interface {
	InsertViolation(ctx context.Context, v domain.Violation) error
	UpdateViolation(ctx context.Context, v domain.Violation) error
}

type pendingKey struct {
	zoneID string
	vtype  domain.ViolationType
}

// Detector owns the open-violation set. At most one pending violation
// exists per (zone, type) key; further candidates are suppressed until
// the pending one reaches a terminal state.
type Detector struct {
	registry *registry.ZoneRegistry
	bus      Publisher
	store    Store // optional
	log      *logger.Logger

	mu      sync.Mutex
	pending map[pendingKey]*domain.Violation
	byID    map[string]*domain.Violation
}

// New creates a Detector. store may be nil for in-memory deployments.
func New(reg *registry.ZoneRegistry, bus Publisher, store Store) *Detector {
	return &Detector{
		registry: reg,
		bus:      bus,
		store:    store,
		log:      logger.Get(),
		pending:  make(map[pendingKey]*domain.Violation),
		byID:     make(map[string]*domain.Violation),
	}
}

// OnOccupancyChanged applies the capacity-violation rules to a status
// transition. Crossing into over_capacity opens a violation unless one
// is already pending for the zone; dropping back under auto-resolves the
// pending one. Capacity breaches are self-healing; externally-sourced
// types are not touched here.
func (d *Detector) OnOccupancyChanged(ctx context.Context, fact domain.OccupancyChanged) *domain.Violation {
	key := pendingKey{zoneID: fact.ZoneID, vtype: domain.ViolationOverCapacity}

	d.mu.Lock()
	defer d.mu.Unlock()

	open, hasOpen := d.pending[key]

	if fact.NewStatus == domain.CapacityOver {
		if hasOpen {
			return nil
		}
		zone, err := d.registry.Get(fact.ZoneID)
		if err != nil {
			d.log.Warn("Occupancy fact for unknown zone", zap.String("zone_id", fact.ZoneID))
			return nil
		}

		excess := fact.NewCount - zone.MaxCapacity
		v := &domain.Violation{
			ID:          uuid.New().String(),
			ZoneID:      fact.ZoneID,
			Type:        domain.ViolationOverCapacity,
			Severity:    domain.CapacitySeverity(excess, zone.GraceThreshold),
			ExcessCount: excess,
			FineAmount:  domain.CapacityFine(excess, zone.FinePerExcess),
			Status:      domain.ViolationStatusPending,
			DetectedAt:  fact.Timestamp,
		}

		d.open(ctx, key, v, zone.Name)
		return v
	}

	// Left over_capacity: auto-resolve the pending breach. A later
	// breach opens a fresh violation; terminal ones never reopen.
	if hasOpen {
		d.terminate(ctx, key, open, domain.ViolationStatusResolved, "auto-resolved: occupancy dropped below capacity", fact.Timestamp)
		return open
	}

	return nil
}

// OnCandidate applies an externally-classified violation sighting. The
// dedup discipline matches capacity violations: one pending violation
// per (zone, type), extra candidates suppressed. External types are
// only ever closed by an explicit resolve or cancel.
func (d *Detector) OnCandidate(ctx context.Context, cand domain.ViolationCandidate) (*domain.Violation, error) {
	if cand.ZoneID == "" || !cand.Type.IsExternal() {
		return nil, fmt.Errorf("%w: bad violation candidate (zone=%q type=%q)", domain.ErrValidation, cand.ZoneID, cand.Type)
	}

	zone, err := d.registry.Get(cand.ZoneID)
	if err != nil {
		return nil, domain.ErrZoneNotFound
	}
	if !zone.IsActive() {
		return nil, nil
	}

	key := pendingKey{zoneID: cand.ZoneID, vtype: cand.Type}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, hasOpen := d.pending[key]; hasOpen {
		return nil, nil
	}

	ts := cand.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	v := &domain.Violation{
		ID:            uuid.New().String(),
		ZoneID:        cand.ZoneID,
		Type:          cand.Type,
		VehicleNumber: cand.VehicleNumber,
		Severity:      domain.ExternalSeverity(cand.Type),
		Status:        domain.ViolationStatusPending,
		DetectedAt:    ts,
	}

	d.open(ctx, key, v, zone.Name)
	return v, nil
}

// Resolve is the external write path into violation state. It moves a
// pending violation to resolved; terminal violations are rejected.
func (d *Detector) Resolve(ctx context.Context, violationID, notes string) (domain.Violation, error) {
	return d.close(ctx, violationID, notes, domain.ViolationStatusResolved)
}

// Cancel moves a pending violation to cancelled.
func (d *Detector) Cancel(ctx context.Context, violationID, notes string) (domain.Violation, error) {
	return d.close(ctx, violationID, notes, domain.ViolationStatusCancelled)
}

func (d *Detector) close(ctx context.Context, violationID, notes string, status domain.ViolationStatus) (domain.Violation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.byID[violationID]
	if !ok {
		return domain.Violation{}, domain.ErrViolationNotFound
	}
	if v.IsTerminal() {
		return *v, domain.ErrViolationTerminal
	}

	key := pendingKey{zoneID: v.ZoneID, vtype: v.Type}
	d.terminate(ctx, key, v, status, notes, time.Now())
	return *v, nil
}

// List returns violations, newest first, optionally filtered.
func (d *Detector) List(zoneID string, status domain.ViolationStatus) []domain.Violation {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.Violation, 0, len(d.byID))
	for _, v := range d.byID {
		if zoneID != "" && v.ZoneID != zoneID {
			continue
		}
		if status != "" && v.Status != status {
			continue
		}
		out = append(out, *v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	return out
}

// Get returns one violation by id.
func (d *Detector) Get(violationID string) (domain.Violation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.byID[violationID]
	if !ok {
		return domain.Violation{}, domain.ErrViolationNotFound
	}
	return *v, nil
}

// open registers a new pending violation and emits ViolationDetected.
// Caller holds d.mu.
func (d *Detector) open(ctx context.Context, key pendingKey, v *domain.Violation, zoneName string) {
	d.pending[key] = v
	d.byID[v.ID] = v

	if d.store != nil {
		if err := d.store.InsertViolation(ctx, *v); err != nil {
			d.log.Error("Failed to persist violation",
				zap.String("violation_id", v.ID), zap.Error(err))
		}
	}

	d.bus.Publish(domain.ChannelViolations, v.ZoneID, &domain.ViolationDetected{
		Violation: *v,
		ZoneName:  zoneName,
	})
	metrics.IncViolationsOpened(ctx)
	metrics.IncFactsPublished(ctx)

	d.log.Info("Violation opened",
		zap.String("violation_id", v.ID),
		zap.String("zone_id", v.ZoneID),
		zap.String("type", string(v.Type)),
		zap.String("severity", string(v.Severity)))
}

// terminate moves a violation to a terminal state and emits
// ViolationResolved. Caller holds d.mu.
func (d *Detector) terminate(ctx context.Context, key pendingKey, v *domain.Violation, status domain.ViolationStatus, notes string, ts time.Time) {
	v.Status = status
	v.ResolvedAt = &ts
	if notes != "" {
		v.Notes = notes
	}
	delete(d.pending, key)

	if d.store != nil {
		if err := d.store.UpdateViolation(ctx, *v); err != nil {
			d.log.Error("Failed to persist violation update",
				zap.String("violation_id", v.ID), zap.Error(err))
		}
	}

	d.bus.Publish(domain.ChannelViolations, v.ZoneID, &domain.ViolationResolved{
		ViolationID: v.ID,
		ZoneID:      v.ZoneID,
		Status:      status,
		Timestamp:   ts,
	})
	metrics.IncViolationsResolved(ctx)
	metrics.IncFactsPublished(ctx)

	d.log.Info("Violation closed",
		zap.String("violation_id", v.ID),
		zap.String("zone_id", v.ZoneID),
		zap.String("status", string(status)))
}
