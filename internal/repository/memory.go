package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
)

// MemoryZoneStore serves a fixed zone set from memory. Used when the
// database is disabled and in tests.
type MemoryZoneStore struct {
	mu       sync.Mutex
	zones    []domain.Zone
	snapshot []domain.Zone
}

// NewMemoryZoneStore creates a store seeded with the given zones.
func NewMemoryZoneStore(zones []domain.Zone) *MemoryZoneStore {
	return &MemoryZoneStore{zones: zones}
}

func (s *MemoryZoneStore) LoadZones(ctx context.Context) ([]domain.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Zone, len(s.zones))
	copy(out, s.zones)
	return out, nil
}

func (s *MemoryZoneStore) SaveSnapshot(ctx context.Context, zones []domain.Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = make([]domain.Zone, len(zones))
	copy(s.snapshot, zones)
	return nil
}

// LastSnapshot returns the most recently saved snapshot.
func (s *MemoryZoneStore) LastSnapshot() []domain.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Zone, len(s.snapshot))
	copy(out, s.snapshot)
	return out
}

// MemoryViolationStore keeps violations in memory.
type MemoryViolationStore struct {
	mu         sync.Mutex
	violations map[string]domain.Violation
}

// NewMemoryViolationStore creates an empty store.
func NewMemoryViolationStore() *MemoryViolationStore {
	return &MemoryViolationStore{violations: make(map[string]domain.Violation)}
}

func (s *MemoryViolationStore) InsertViolation(ctx context.Context, v domain.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.violations[v.ID] = v
	return nil
}

func (s *MemoryViolationStore) UpdateViolation(ctx context.Context, v domain.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.violations[v.ID]; !ok {
		return domain.ErrViolationNotFound
	}
	s.violations[v.ID] = v
	return nil
}

func (s *MemoryViolationStore) ListViolations(ctx context.Context, zoneID string, status domain.ViolationStatus, limit int) ([]domain.Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	out := make([]domain.Violation, 0, len(s.violations))
	for _, v := range s.violations {
		if zoneID != "" && v.ZoneID != zoneID {
			continue
		}
		if status != "" && v.Status != status {
			continue
		}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
