package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
)

// PostgresZoneStore persists zones in parking_zones with live occupancy
// in live_occupancy, mirroring the dashboard schema.
type PostgresZoneStore struct {
	pool *pgxpool.Pool
}

// NewPostgresZoneStore creates a PostgresZoneStore.
func NewPostgresZoneStore(pool *pgxpool.Pool) *PostgresZoneStore {
	return &PostgresZoneStore{pool: pool}
}

// LoadZones loads zone configuration joined with the last persisted
// occupancy snapshot. Zones without a snapshot start at zero.
func (s *PostgresZoneStore) LoadZones(ctx context.Context) ([]domain.Zone, error) {
	query := `
		SELECT z.id, z.name,
		       COALESCE(z.location_name, ''), COALESCE(z.location_lat, 0), COALESCE(z.location_lng, 0),
		       z.max_capacity, z.reserved_slots, z.grace_threshold, z.fine_per_excess,
		       z.status,
		       COALESCE(o.current_count, 0), COALESCE(o.reserved_count, 0), o.last_updated
		FROM parking_zones z
		LEFT JOIN live_occupancy o ON o.zone_id = z.id
		ORDER BY z.name
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load zones: %w", err)
	}
	defer rows.Close()

	var zones []domain.Zone
	for rows.Next() {
		var z domain.Zone
		var lastUpdated *time.Time

		if err := rows.Scan(
			&z.ID, &z.Name,
			&z.LocationName, &z.LocationLat, &z.LocationLng,
			&z.MaxCapacity, &z.ReservedSlots, &z.GraceThreshold, &z.FinePerExcess,
			&z.Status,
			&z.CurrentCount, &z.ReservedCount, &lastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan zone row: %w", err)
		}
		if lastUpdated != nil {
			z.LastUpdated = *lastUpdated
		}
		zones = append(zones, z)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read zone rows: %w", err)
	}

	return zones, nil
}

// SaveSnapshot upserts the live occupancy row for every zone.
func (s *PostgresZoneStore) SaveSnapshot(ctx context.Context, zones []domain.Zone) error {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO live_occupancy (zone_id, current_count, reserved_count, capacity_status, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (zone_id) DO UPDATE SET
			current_count = EXCLUDED.current_count,
			reserved_count = EXCLUDED.reserved_count,
			capacity_status = EXCLUDED.capacity_status,
			last_updated = EXCLUDED.last_updated
	`

	for _, z := range zones {
		batch.Queue(query, z.ID, z.CurrentCount, z.ReservedCount, string(z.CapacityStatus), z.LastUpdated)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range zones {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save occupancy snapshot: %w", err)
		}
	}

	return nil
}
