package domain

import "time"

// Fan-out channels. Facts are routed per channel and ordered per zone key.
const (
	ChannelOccupancy  = "occupancy"
	ChannelViolations = "violations"
)

// Wire event names, kept compatible with the dashboard socket payloads.
const (
	EventOccupancyUpdate   = "occupancy_update"
	EventViolationDetected = "violation_detected"
	EventViolationResolved = "violation_resolved"
)

// OccupancyEvent is a raw per-zone vehicle-count event from a sensor or
// camera. Exactly one of Absolute or Delta is set. SourceID identifies the
// emitting device and is used to drop duplicate deliveries.
type OccupancyEvent struct {
	ZoneID    string    `json:"zone_id"`
	Timestamp time.Time `json:"timestamp"`
	Absolute  *int      `json:"absolute_count,omitempty"`
	Delta     *int      `json:"delta,omitempty"`
	SourceID  string    `json:"source_id"`
}

// ViolationCandidate is a raw externally-classified violation sighting
// (camera/AI feed). Candidates for a (zone, type) pair already pending are
// suppressed by the detector.
type ViolationCandidate struct {
	ZoneID        string        `json:"zone_id"`
	Type          ViolationType `json:"violation_type"`
	VehicleNumber string        `json:"vehicle_number,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// OccupancyChanged is the normalized fact emitted once per value-changing
// occupancy event. Immutable once emitted.
type OccupancyChanged struct {
	ZoneID         string         `json:"zone_id"`
	PreviousCount  int            `json:"previous_count"`
	NewCount       int            `json:"new_count"`
	ReservedCount  int            `json:"reserved_count"`
	PreviousStatus CapacityStatus `json:"previous_status"`
	NewStatus      CapacityStatus `json:"new_status"`
	Timestamp      time.Time      `json:"timestamp"`
}

// ViolationDetected is emitted when the detector opens a violation.
type ViolationDetected struct {
	Violation Violation `json:"violation"`
	ZoneName  string    `json:"zone_name,omitempty"`
}

// ViolationResolved is emitted when a violation reaches a terminal state,
// whether auto-resolved by the detector or resolved/cancelled explicitly.
type ViolationResolved struct {
	ViolationID string          `json:"violation_id"`
	ZoneID      string          `json:"zone_id"`
	Status      ViolationStatus `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
}
