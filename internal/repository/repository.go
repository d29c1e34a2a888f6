package repository

import (
	"context"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
)

// ZoneStore loads zone configuration at startup and persists periodic
// occupancy snapshots.
type ZoneStore interface {
	LoadZones(ctx context.Context) ([]domain.Zone, error)
	SaveSnapshot(ctx context.Context, zones []domain.Zone) error
}

// ViolationStore persists the violation lifecycle for audit and billing.
type ViolationStore interface {
	InsertViolation(ctx context.Context, v domain.Violation) error
	UpdateViolation(ctx context.Context, v domain.Violation) error
	ListViolations(ctx context.Context, zoneID string, status domain.ViolationStatus, limit int) ([]domain.Violation, error)
}
