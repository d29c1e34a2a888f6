package detector

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

func newTestDetector() (*Detector, *mockPublisher) {
	reg := registry.New([]domain.Zone{
		{
			ID: "zone-a", Name: "Alpha",
			MaxCapacity: 100, GraceThreshold: 5, FinePerExcess: 50,
			Status: domain.ZoneStatusActive, CurrentCount: 40,
		},
		{
			ID: "zone-m", Name: "Closed",
			MaxCapacity: 50, GraceThreshold: 5,
			Status: domain.ZoneStatusMaintenance,
		},
	})
	bus := &mockPublisher{}
	return New(reg, bus, nil), bus
}

func overFact(count int) domain.OccupancyChanged {
	return domain.OccupancyChanged{
		ZoneID:         "zone-a",
		PreviousCount:  100,
		NewCount:       count,
		PreviousStatus: domain.CapacityNear,
		NewStatus:      domain.CapacityOver,
		Timestamp:      time.Now(),
	}
}

func underFact(count int) domain.OccupancyChanged {
	return domain.OccupancyChanged{
		ZoneID:         "zone-a",
		PreviousCount:  110,
		NewCount:       count,
		PreviousStatus: domain.CapacityOver,
		NewStatus:      domain.CapacityNear,
		Timestamp:      time.Now(),
	}
}

func TestOnOccupancyChanged_OpensOverCapacity(t *testing.T) {
	det, bus := newTestDetector()

	v := det.OnOccupancyChanged(context.Background(), overFact(112))
	if v == nil {
		t.Fatal("Expected a violation")
	}

	if v.Type != domain.ViolationOverCapacity {
		t.Errorf("Expected OverCapacity, got %s", v.Type)
	}
	if v.ExcessCount != 12 {
		t.Errorf("Expected excess 12, got %d", v.ExcessCount)
	}
	if v.FineAmount != 600 {
		t.Errorf("Expected fine 600, got %f", v.FineAmount)
	}
	if v.Severity != domain.SeverityCritical {
		t.Errorf("Expected critical (excess 12 > grace*2=10), got %s", v.Severity)
	}
	if v.Status != domain.ViolationStatusPending {
		t.Errorf("Expected pending, got %s", v.Status)
	}

	if len(bus.published) != 1 {
		t.Fatalf("Expected 1 published fact, got %d", len(bus.published))
	}
	if bus.published[0].channel != domain.ChannelViolations {
		t.Errorf("Expected violations channel, got %s", bus.published[0].channel)
	}
	detected, ok := bus.published[0].fact.(*domain.ViolationDetected)
	if !ok {
		t.Fatalf("Expected ViolationDetected fact, got %T", bus.published[0].fact)
	}
	if detected.ZoneName != "Alpha" {
		t.Errorf("Expected zone name Alpha, got %s", detected.ZoneName)
	}
}

func TestOnOccupancyChanged_HighSeverityWithinDoubleGrace(t *testing.T) {
	det, _ := newTestDetector()

	v := det.OnOccupancyChanged(context.Background(), overFact(108))
	if v == nil {
		t.Fatal("Expected a violation")
	}
	if v.Severity != domain.SeverityHigh {
		t.Errorf("Expected high (excess 8 <= grace*2=10), got %s", v.Severity)
	}
}

func TestOnOccupancyChanged_DedupWhilePending(t *testing.T) {
	det, bus := newTestDetector()

	first := det.OnOccupancyChanged(context.Background(), overFact(112))
	if first == nil {
		t.Fatal("Expected a violation")
	}

	second := det.OnOccupancyChanged(context.Background(), overFact(115))
	if second != nil {
		t.Error("Second breach while pending must be suppressed")
	}
	if len(bus.published) != 1 {
		t.Errorf("Expected 1 published fact, got %d", len(bus.published))
	}
}

func TestOnOccupancyChanged_AutoResolve(t *testing.T) {
	det, bus := newTestDetector()

	opened := det.OnOccupancyChanged(context.Background(), overFact(112))
	resolved := det.OnOccupancyChanged(context.Background(), underFact(104))

	if resolved == nil || resolved.ID != opened.ID {
		t.Fatal("Expected the pending violation to auto-resolve")
	}
	if resolved.Status != domain.ViolationStatusResolved {
		t.Errorf("Expected resolved, got %s", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("Expected ResolvedAt to be set")
	}

	if len(bus.published) != 2 {
		t.Fatalf("Expected detected + resolved facts, got %d", len(bus.published))
	}
	fact, ok := bus.published[1].fact.(*domain.ViolationResolved)
	if !ok {
		t.Fatalf("Expected ViolationResolved fact, got %T", bus.published[1].fact)
	}
	if fact.ViolationID != opened.ID {
		t.Errorf("Resolved fact references %s, want %s", fact.ViolationID, opened.ID)
	}
}

func TestOnOccupancyChanged_RebreakOpensFreshViolation(t *testing.T) {
	det, _ := newTestDetector()
	ctx := context.Background()

	first := det.OnOccupancyChanged(ctx, overFact(112))
	det.OnOccupancyChanged(ctx, underFact(104))
	second := det.OnOccupancyChanged(ctx, overFact(111))

	if second == nil {
		t.Fatal("Expected a fresh violation after re-breach")
	}
	if second.ID == first.ID {
		t.Error("Terminal violation must never be reopened")
	}

	got, err := det.Get(first.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.ViolationStatusResolved {
		t.Errorf("First violation must stay resolved, got %s", got.Status)
	}
}

func TestOnOccupancyChanged_NoPendingNothingToResolve(t *testing.T) {
	det, bus := newTestDetector()

	if v := det.OnOccupancyChanged(context.Background(), underFact(95)); v != nil {
		t.Error("Nothing pending, nothing to resolve")
	}
	if len(bus.published) != 0 {
		t.Errorf("Expected no facts, got %d", len(bus.published))
	}
}

func TestOnCandidate_OpensExternalViolation(t *testing.T) {
	det, bus := newTestDetector()

	v, err := det.OnCandidate(context.Background(), domain.ViolationCandidate{
		ZoneID:        "zone-a",
		Type:          domain.ViolationWrongWay,
		VehicleNumber: "AB-1234",
		Timestamp:     time.Now(),
	})
	if err != nil {
		t.Fatalf("OnCandidate failed: %v", err)
	}
	if v == nil {
		t.Fatal("Expected a violation")
	}
	if v.Severity != domain.SeverityHigh {
		t.Errorf("Expected high severity for WrongWay, got %s", v.Severity)
	}
	if v.FineAmount != 0 {
		t.Errorf("External violations carry no capacity fine, got %f", v.FineAmount)
	}
	if v.VehicleNumber != "AB-1234" {
		t.Errorf("Expected vehicle number carried over, got %s", v.VehicleNumber)
	}
	if len(bus.published) != 1 {
		t.Errorf("Expected 1 published fact, got %d", len(bus.published))
	}
}

func TestOnCandidate_DedupPerZoneAndType(t *testing.T) {
	det, _ := newTestDetector()
	ctx := context.Background()

	cand := domain.ViolationCandidate{
		ZoneID: "zone-a", Type: domain.ViolationDoubleParking, Timestamp: time.Now(),
	}

	first, err := det.OnCandidate(ctx, cand)
	if err != nil || first == nil {
		t.Fatalf("first candidate: v=%v err=%v", first, err)
	}

	second, err := det.OnCandidate(ctx, cand)
	if err != nil {
		t.Fatalf("duplicate candidate errored: %v", err)
	}
	if second != nil {
		t.Error("Duplicate (zone, type) candidate must be suppressed")
	}

	// A different type in the same zone is its own violation.
	other, err := det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "zone-a", Type: domain.ViolationOverstay, Timestamp: time.Now(),
	})
	if err != nil || other == nil {
		t.Errorf("different type must open: v=%v err=%v", other, err)
	}
}

func TestOnCandidate_Rejections(t *testing.T) {
	det, _ := newTestDetector()
	ctx := context.Background()

	if _, err := det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "zone-a", Type: domain.ViolationOverCapacity,
	}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Internal type from feed must fail validation, got %v", err)
	}

	if _, err := det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "ghost", Type: domain.ViolationOverstay,
	}); !errors.Is(err, domain.ErrZoneNotFound) {
		t.Errorf("Expected ErrZoneNotFound, got %v", err)
	}

	v, err := det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "zone-m", Type: domain.ViolationOverstay,
	})
	if err != nil || v != nil {
		t.Errorf("Inactive zone candidate must be a silent no-op, v=%v err=%v", v, err)
	}
}

func TestResolve_External(t *testing.T) {
	det, bus := newTestDetector()
	ctx := context.Background()

	opened, _ := det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "zone-a", Type: domain.ViolationNoParking, Timestamp: time.Now(),
	})

	resolved, err := det.Resolve(ctx, opened.ID, "towed")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != domain.ViolationStatusResolved {
		t.Errorf("Expected resolved, got %s", resolved.Status)
	}
	if resolved.Notes != "towed" {
		t.Errorf("Expected notes carried, got %q", resolved.Notes)
	}

	// Terminal: a second resolve is rejected.
	if _, err := det.Resolve(ctx, opened.ID, "again"); !errors.Is(err, domain.ErrViolationTerminal) {
		t.Errorf("Expected ErrViolationTerminal, got %v", err)
	}

	if len(bus.published) != 2 {
		t.Errorf("Expected detected + resolved facts, got %d", len(bus.published))
	}

	// The (zone, type) slot is free again.
	again, err := det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "zone-a", Type: domain.ViolationNoParking, Timestamp: time.Now(),
	})
	if err != nil || again == nil {
		t.Errorf("Slot must reopen after resolution: v=%v err=%v", again, err)
	}
}

func TestCancel(t *testing.T) {
	det, _ := newTestDetector()
	ctx := context.Background()

	opened, _ := det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "zone-a", Type: domain.ViolationOverstay, Timestamp: time.Now(),
	})

	cancelled, err := det.Cancel(ctx, opened.ID, "false positive")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelled.Status != domain.ViolationStatusCancelled {
		t.Errorf("Expected cancelled, got %s", cancelled.Status)
	}
}

func TestResolve_NotFound(t *testing.T) {
	det, _ := newTestDetector()

	if _, err := det.Resolve(context.Background(), "missing", ""); !errors.Is(err, domain.ErrViolationNotFound) {
		t.Errorf("Expected ErrViolationNotFound, got %v", err)
	}
}

func TestList_Filters(t *testing.T) {
	det, _ := newTestDetector()
	ctx := context.Background()

	a, _ := det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "zone-a", Type: domain.ViolationOverstay, Timestamp: time.Now().Add(-time.Minute),
	})
	det.OnCandidate(ctx, domain.ViolationCandidate{
		ZoneID: "zone-a", Type: domain.ViolationWrongWay, Timestamp: time.Now(),
	})
	det.Resolve(ctx, a.ID, "")

	all := det.List("", "")
	if len(all) != 2 {
		t.Fatalf("Expected 2 violations, got %d", len(all))
	}
	if !all[0].DetectedAt.After(all[1].DetectedAt) {
		t.Error("Expected newest first")
	}

	pending := det.List("", domain.ViolationStatusPending)
	if len(pending) != 1 || pending[0].Type != domain.ViolationWrongWay {
		t.Errorf("Expected 1 pending WrongWay, got %v", pending)
	}

	none := det.List("zone-m", "")
	if len(none) != 0 {
		t.Errorf("Expected no violations for zone-m, got %d", len(none))
	}
}
