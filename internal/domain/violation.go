package domain

import "time"

// ViolationType enumerates detected rule breaches. OverCapacity is derived
// from occupancy transitions inside the engine; the rest arrive from an
// external classification feed.
type ViolationType string

const (
	ViolationOverCapacity  ViolationType = "OverCapacity"
	ViolationOverstay      ViolationType = "Overstay"
	ViolationNoParking     ViolationType = "NoParking"
	ViolationDoubleParking ViolationType = "DoubleParking"
	ViolationWrongWay      ViolationType = "WrongWay"
)

// ExternalViolationTypes lists the types that originate from the
// classification feed and are never auto-created or auto-resolved.
var ExternalViolationTypes = []ViolationType{
	ViolationOverstay,
	ViolationNoParking,
	ViolationDoubleParking,
	ViolationWrongWay,
}

// IsExternal reports whether the type comes from the classification feed.
func (t ViolationType) IsExternal() bool {
	for _, et := range ExternalViolationTypes {
		if t == et {
			return true
		}
	}
	return false
}

// Severity of a violation, derived from type and excess magnitude.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ViolationStatus tracks the resolution lifecycle. Resolved and cancelled
// are terminal; a violation is never reopened.
type ViolationStatus string

const (
	ViolationStatusPending   ViolationStatus = "pending"
	ViolationStatusResolved  ViolationStatus = "resolved"
	ViolationStatusCancelled ViolationStatus = "cancelled"
)

// Violation is a detected rule breach tracked through resolution.
type Violation struct {
	ID            string          `json:"id"`
	ZoneID        string          `json:"zone_id"`
	Type          ViolationType   `json:"violation_type"`
	VehicleNumber string          `json:"vehicle_number,omitempty"`
	Severity      Severity        `json:"severity"`
	ExcessCount   int             `json:"excess_count"`
	FineAmount    float64         `json:"fine_amount"`
	Status        ViolationStatus `json:"status"`
	DetectedAt    time.Time       `json:"detected_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// IsTerminal reports whether the violation can no longer be mutated.
func (v *Violation) IsTerminal() bool {
	return v.Status == ViolationStatusResolved || v.Status == ViolationStatusCancelled
}

// CapacitySeverity grades an over-capacity breach by how far past the
// grace allowance the zone is.
func CapacitySeverity(excessCount, graceThreshold int) Severity {
	if excessCount > graceThreshold*2 {
		return SeverityCritical
	}
	return SeverityHigh
}

// ExternalSeverity maps an externally-classified type to its severity.
func ExternalSeverity(t ViolationType) Severity {
	switch t {
	case ViolationWrongWay:
		return SeverityHigh
	case ViolationDoubleParking, ViolationNoParking:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CapacityFine computes the fine for an excess, floored at zero.
func CapacityFine(excessCount int, finePerExcess float64) float64 {
	if excessCount <= 0 || finePerExcess <= 0 {
		return 0
	}
	return float64(excessCount) * finePerExcess
}
