package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
)

// ZoneRegistry is the single authoritative owner of live zone state.
// Zones are created and retired by the management surface; the registry
// only mutates occupancy fields, and only through ApplyOccupancy.
type ZoneRegistry struct {
	mu    sync.RWMutex
	zones map[string]*domain.Zone
}

// ApplyResult reports what ApplyOccupancy changed.
type ApplyResult struct {
	Zone           domain.Zone
	CountChanged   bool
	StatusChanged  bool
	PreviousCount  int
	PreviousStatus domain.CapacityStatus
}

// Changed reports whether count or derived status actually changed, so
// callers can skip emitting no-op facts.
func (r ApplyResult) Changed() bool {
	return r.CountChanged || r.StatusChanged
}

// New creates a registry seeded with the given zones. Capacity status is
// recomputed on load; it is derived state and never trusted from storage.
func New(zones []domain.Zone) *ZoneRegistry {
	m := make(map[string]*domain.Zone, len(zones))
	for i := range zones {
		z := zones[i]
		z.CapacityStatus = domain.ComputeCapacityStatus(z.CurrentCount, z.MaxCapacity, z.GraceThreshold)
		m[z.ID] = &z
	}
	return &ZoneRegistry{zones: m}
}

// Get returns a copy of the zone, or ErrZoneNotFound.
func (r *ZoneRegistry) Get(zoneID string) (domain.Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := r.zones[zoneID]
	if !ok {
		return domain.Zone{}, domain.ErrZoneNotFound
	}
	return *z, nil
}

// ApplyOccupancy applies a new absolute count to the zone. Events older
// than the zone's last accepted update are rejected with ErrStaleUpdate
// without mutating anything; per-zone acceptance is monotonic because
// events may arrive out of order.
func (r *ZoneRegistry) ApplyOccupancy(zoneID string, newCount int, ts time.Time) (ApplyResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.zones[zoneID]
	if !ok {
		return ApplyResult{}, domain.ErrZoneNotFound
	}

	if !z.LastUpdated.IsZero() && ts.Before(z.LastUpdated) {
		return ApplyResult{Zone: *z}, domain.ErrStaleUpdate
	}

	if newCount < 0 {
		newCount = 0
	}

	prevCount := z.CurrentCount
	prevStatus := z.CapacityStatus
	newStatus := domain.ComputeCapacityStatus(newCount, z.MaxCapacity, z.GraceThreshold)

	z.CurrentCount = newCount
	z.CapacityStatus = newStatus
	z.LastUpdated = ts

	return ApplyResult{
		Zone:           *z,
		CountChanged:   newCount != prevCount,
		StatusChanged:  newStatus != prevStatus,
		PreviousCount:  prevCount,
		PreviousStatus: prevStatus,
	}, nil
}

// List returns copies of all zones, optionally filtered by status,
// sorted by name. Reads are consistent per zone, not across zones.
func (r *ZoneRegistry) List(status domain.ZoneStatus) []domain.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Zone, 0, len(r.zones))
	for _, z := range r.zones {
		if status != "" && z.Status != status {
			continue
		}
		out = append(out, *z)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot returns copies of all zones for persistence.
func (r *ZoneRegistry) Snapshot() []domain.Zone {
	return r.List("")
}

// Len returns the number of registered zones.
func (r *ZoneRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.zones)
}
