package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/registry"
)

type mockPublisher struct {
	published []struct {
		channel string
		key     string
		fact    interface{}
	}
}

func (m *mockPublisher) Publish(channel, key string, fact interface{}) {
	m.published = append(m.published, struct {
		channel string
		key     string
		fact    interface{}
	}{channel, key, fact})
}

func intPtr(n int) *int { return &n }

func newTestAggregator() (*Aggregator, *mockPublisher, *registry.ZoneRegistry) {
	reg := registry.New([]domain.Zone{
		{
			ID: "zone-a", Name: "Alpha",
			MaxCapacity: 100, GraceThreshold: 10, FinePerExcess: 50,
			Status: domain.ZoneStatusActive, CurrentCount: 40,
		},
		{
			ID: "zone-b", Name: "Beta",
			MaxCapacity: 50, GraceThreshold: 5,
			Status: domain.ZoneStatusActive, CurrentCount: 0,
		},
		{
			ID: "zone-m", Name: "Maintenance",
			MaxCapacity: 50, GraceThreshold: 5,
			Status: domain.ZoneStatusMaintenance, CurrentCount: 10,
		},
	})
	bus := &mockPublisher{}
	return New(reg, bus), bus, reg
}

func TestIngest_AbsoluteEvent(t *testing.T) {
	agg, bus, _ := newTestAggregator()

	fact, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID:    "zone-a",
		Timestamp: time.Now(),
		Absolute:  intPtr(75),
		SourceID:  "cam-1",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if fact == nil {
		t.Fatal("Expected a fact")
	}
	if fact.PreviousCount != 40 || fact.NewCount != 75 {
		t.Errorf("Expected 40 -> 75, got %d -> %d", fact.PreviousCount, fact.NewCount)
	}
	if len(bus.published) != 1 {
		t.Fatalf("Expected 1 published fact, got %d", len(bus.published))
	}
	if bus.published[0].channel != domain.ChannelOccupancy || bus.published[0].key != "zone-a" {
		t.Errorf("Fact routed to %s/%s", bus.published[0].channel, bus.published[0].key)
	}
}

func TestIngest_DeltaEvent(t *testing.T) {
	agg, _, reg := newTestAggregator()

	fact, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID:    "zone-a",
		Timestamp: time.Now(),
		Delta:     intPtr(3),
		SourceID:  "gate-1",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if fact.NewCount != 43 {
		t.Errorf("Expected count 43, got %d", fact.NewCount)
	}

	z, _ := reg.Get("zone-a")
	if z.CurrentCount != 43 {
		t.Errorf("Registry count = %d, want 43", z.CurrentCount)
	}
}

func TestIngest_NegativeDeltaClampsAtZero(t *testing.T) {
	agg, _, reg := newTestAggregator()

	fact, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID:    "zone-a",
		Timestamp: time.Now(),
		Delta:     intPtr(-100),
		SourceID:  "gate-1",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if fact.NewCount != 0 {
		t.Errorf("Expected count clamped to 0, got %d", fact.NewCount)
	}

	z, _ := reg.Get("zone-a")
	if z.CurrentCount != 0 {
		t.Errorf("Registry count = %d, want 0", z.CurrentCount)
	}
}

func TestIngest_StaleEventDroppedSilently(t *testing.T) {
	agg, bus, _ := newTestAggregator()
	now := time.Now()

	if _, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID: "zone-a", Timestamp: now, Absolute: intPtr(60), SourceID: "cam-1",
	}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	fact, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID: "zone-a", Timestamp: now.Add(-time.Minute), Absolute: intPtr(10), SourceID: "cam-2",
	})
	if err != nil {
		t.Errorf("Stale drop must be silent, got error %v", err)
	}
	if fact != nil {
		t.Error("Stale event must not emit a fact")
	}
	if len(bus.published) != 1 {
		t.Errorf("Expected 1 published fact, got %d", len(bus.published))
	}
}

func TestIngest_DuplicateDeliveryDroppedSilently(t *testing.T) {
	agg, bus, reg := newTestAggregator()
	now := time.Now()

	ev := domain.OccupancyEvent{
		ZoneID: "zone-a", Timestamp: now, Delta: intPtr(1), SourceID: "gate-1",
	}

	if _, err := agg.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	fact, err := agg.Ingest(context.Background(), ev)
	if err != nil {
		t.Errorf("Duplicate drop must be silent, got error %v", err)
	}
	if fact != nil {
		t.Error("Duplicate must not emit a fact")
	}
	if len(bus.published) != 1 {
		t.Errorf("Duplicate must not double-apply, published %d facts", len(bus.published))
	}

	z, _ := reg.Get("zone-a")
	if z.CurrentCount != 41 {
		t.Errorf("Delta applied twice: count %d, want 41", z.CurrentCount)
	}
}

func TestIngest_SharedSourceFeedsZonesIndependently(t *testing.T) {
	agg, _, reg := newTestAggregator()
	now := time.Now()

	// One camera covers both zones. Its first zone-b report carries an
	// older stamp than the zone-a one; it must still apply.
	if _, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID: "zone-a", Timestamp: now, Absolute: intPtr(50), SourceID: "cam-1",
	}); err != nil {
		t.Fatalf("zone-a Ingest failed: %v", err)
	}

	fact, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID: "zone-b", Timestamp: now.Add(-time.Second), Absolute: intPtr(7), SourceID: "cam-1",
	})
	if err != nil {
		t.Fatalf("zone-b Ingest failed: %v", err)
	}
	if fact == nil {
		t.Fatal("First zone-b update from a shared source must emit a fact")
	}
	if fact.NewCount != 7 {
		t.Errorf("Expected zone-b count 7, got %d", fact.NewCount)
	}

	z, _ := reg.Get("zone-b")
	if z.CurrentCount != 7 {
		t.Errorf("Registry zone-b count = %d, want 7", z.CurrentCount)
	}

	// Redelivery within one (source, zone) pair still dedups.
	dup, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID: "zone-b", Timestamp: now.Add(-time.Second), Absolute: intPtr(7), SourceID: "cam-1",
	})
	if err != nil || dup != nil {
		t.Errorf("Redelivered pair must drop silently, fact=%v err=%v", dup, err)
	}
}

func TestIngest_UnknownZone(t *testing.T) {
	agg, _, _ := newTestAggregator()

	_, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID: "ghost", Timestamp: time.Now(), Absolute: intPtr(5), SourceID: "cam-1",
	})
	if !errors.Is(err, domain.ErrZoneNotFound) {
		t.Errorf("Expected ErrZoneNotFound, got %v", err)
	}
}

func TestIngest_Validation(t *testing.T) {
	agg, _, _ := newTestAggregator()
	now := time.Now()

	tests := []struct {
		name string
		ev   domain.OccupancyEvent
	}{
		{"missing zone_id", domain.OccupancyEvent{Timestamp: now, Absolute: intPtr(5)}},
		{"missing timestamp", domain.OccupancyEvent{ZoneID: "zone-a", Absolute: intPtr(5)}},
		{"no count at all", domain.OccupancyEvent{ZoneID: "zone-a", Timestamp: now}},
		{"negative absolute", domain.OccupancyEvent{ZoneID: "zone-a", Timestamp: now, Absolute: intPtr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agg.Ingest(context.Background(), tt.ev)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestIngest_NoChangeNoFact(t *testing.T) {
	agg, bus, _ := newTestAggregator()

	fact, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID: "zone-a", Timestamp: time.Now(), Absolute: intPtr(40), SourceID: "cam-1",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if fact != nil {
		t.Error("Unchanged count must not emit a fact")
	}
	if len(bus.published) != 0 {
		t.Errorf("Expected 0 published facts, got %d", len(bus.published))
	}
}

func TestIngest_InactiveZoneStaysSilent(t *testing.T) {
	agg, bus, reg := newTestAggregator()

	fact, err := agg.Ingest(context.Background(), domain.OccupancyEvent{
		ZoneID: "zone-m", Timestamp: time.Now(), Absolute: intPtr(25), SourceID: "cam-9",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if fact != nil {
		t.Error("Inactive zone must not emit facts")
	}
	if len(bus.published) != 0 {
		t.Errorf("Expected 0 published facts, got %d", len(bus.published))
	}

	// State still tracked.
	z, _ := reg.Get("zone-m")
	if z.CurrentCount != 25 {
		t.Errorf("Inactive zone state not tracked, count %d", z.CurrentCount)
	}
}
