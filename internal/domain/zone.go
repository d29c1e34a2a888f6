package domain

import "time"

// ZoneStatus represents the administrative state of a parking zone.
// Zones are created and retired by the management surface; the engine
// only ever mutates live occupancy fields.
type ZoneStatus string

const (
	ZoneStatusActive      ZoneStatus = "active"
	ZoneStatusLocked      ZoneStatus = "locked"
	ZoneStatusMaintenance ZoneStatus = "maintenance"
)

// CapacityStatus is derived from occupancy vs. capacity and grace. It is
// never stored independently: every occupancy change recomputes it.
type CapacityStatus string

const (
	CapacityNormal CapacityStatus = "normal"
	CapacityNear   CapacityStatus = "near_capacity"
	CapacityOver   CapacityStatus = "over_capacity"
)

// Zone represents a managed parking area with fixed capacity and fine
// policy plus its live occupancy snapshot.
type Zone struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	LocationName string  `json:"location_name,omitempty"`
	LocationLat  float64 `json:"location_lat,omitempty"`
	LocationLng  float64 `json:"location_lng,omitempty"`

	MaxCapacity    int     `json:"max_capacity"`
	ReservedSlots  int     `json:"reserved_slots"`
	GraceThreshold int     `json:"grace_threshold"`
	FinePerExcess  float64 `json:"fine_per_excess"`

	Status ZoneStatus `json:"status"`

	CurrentCount   int            `json:"current_count"`
	ReservedCount  int            `json:"reserved_count"`
	CapacityStatus CapacityStatus `json:"capacity_status"`
	LastUpdated    time.Time      `json:"last_updated"`
}

// IsActive reports whether the engine should emit facts for this zone.
func (z *Zone) IsActive() bool {
	return z.Status == ZoneStatusActive
}

// ExcessCount returns how many vehicles exceed max capacity, floored at 0.
func (z *Zone) ExcessCount() int {
	if z.CurrentCount <= z.MaxCapacity {
		return 0
	}
	return z.CurrentCount - z.MaxCapacity
}

// ComputeCapacityStatus derives the capacity classification for a count.
// Over capacity only once the grace allowance is exhausted; near capacity
// above 90% of max.
func ComputeCapacityStatus(count, maxCapacity, graceThreshold int) CapacityStatus {
	if count > maxCapacity+graceThreshold {
		return CapacityOver
	}
	if float64(count) > float64(maxCapacity)*0.9 {
		return CapacityNear
	}
	return CapacityNormal
}
