package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/pkg/redis"
)

const (
	occupancyKeyPrefix = "parking:occupancy:"
	occupancyTTL       = 10 * time.Minute
)

// OccupancyMirror writes live occupancy to Redis so dashboards and other
// services can read current counts without touching the engine. Writes
// are best-effort; the registry stays authoritative.
type OccupancyMirror struct {
	client *redis.Client
}

// NewOccupancyMirror creates an OccupancyMirror.
func NewOccupancyMirror(client *redis.Client) *OccupancyMirror {
	return &OccupancyMirror{client: client}
}

// Write mirrors one zone's occupancy as a hash keyed by zone id. The TTL
// lets stale entries age out if the engine stops updating a zone.
func (m *OccupancyMirror) Write(ctx context.Context, fact domain.OccupancyChanged) error {
	key := occupancyKeyPrefix + fact.ZoneID

	if err := m.client.HSet(ctx, key,
		"zone_id", fact.ZoneID,
		"current_count", fact.NewCount,
		"reserved_count", fact.ReservedCount,
		"capacity_status", string(fact.NewStatus),
		"updated_at", fact.Timestamp.UTC().Format(time.RFC3339Nano),
	).Err(); err != nil {
		return fmt.Errorf("failed to mirror occupancy for zone %s: %w", fact.ZoneID, err)
	}

	if err := m.client.Expire(ctx, key, occupancyTTL).Err(); err != nil {
		return fmt.Errorf("failed to set occupancy TTL for zone %s: %w", fact.ZoneID, err)
	}

	return nil
}

// Read returns the mirrored hash for a zone, or nil when absent.
func (m *OccupancyMirror) Read(ctx context.Context, zoneID string) (map[string]string, error) {
	vals, err := m.client.HGetAll(ctx, occupancyKeyPrefix+zoneID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read occupancy mirror for zone %s: %w", zoneID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return vals, nil
}
