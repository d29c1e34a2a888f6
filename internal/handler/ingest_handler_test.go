package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
)

type mockIngestHandler struct {
	occupancyFunc func(ctx context.Context, ev domain.OccupancyEvent) error
	candidateFunc func(ctx context.Context, cand domain.ViolationCandidate) error
}

func (m *mockIngestHandler) HandleOccupancy(ctx context.Context, ev domain.OccupancyEvent) error {
	return m.occupancyFunc(ctx, ev)
}

func (m *mockIngestHandler) HandleCandidate(ctx context.Context, cand domain.ViolationCandidate) error {
	return m.candidateFunc(ctx, cand)
}

func newIngestRouter(m *mockIngestHandler) *gin.Engine {
	r := gin.New()
	NewIngestHandler(m).RegisterRoutes(r.Group("/api"))
	return r
}

func postJSON(r *gin.Engine, path, payload string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestPostOccupancy(t *testing.T) {
	var got domain.OccupancyEvent
	m := &mockIngestHandler{
		occupancyFunc: func(ctx context.Context, ev domain.OccupancyEvent) error {
			got = ev
			return nil
		},
	}
	r := newIngestRouter(m)

	w := postJSON(r, "/api/events/occupancy",
		`{"zone_id":"zone-a","timestamp":"2026-08-28T10:00:00Z","absolute_count":42,"source_id":"cam-1"}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if got.ZoneID != "zone-a" || got.Absolute == nil || *got.Absolute != 42 {
		t.Errorf("Event not forwarded correctly: %+v", got)
	}
}

func TestPostOccupancy_BadJSON(t *testing.T) {
	m := &mockIngestHandler{
		occupancyFunc: func(ctx context.Context, ev domain.OccupancyEvent) error {
			t.Error("Handler must not be called for bad payloads")
			return nil
		},
	}
	r := newIngestRouter(m)

	w := postJSON(r, "/api/events/occupancy", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestPostOccupancy_UnknownZone(t *testing.T) {
	m := &mockIngestHandler{
		occupancyFunc: func(ctx context.Context, ev domain.OccupancyEvent) error {
			return domain.ErrZoneNotFound
		},
	}
	r := newIngestRouter(m)

	w := postJSON(r, "/api/events/occupancy",
		`{"zone_id":"ghost","timestamp":"2026-08-28T10:00:00Z","absolute_count":1}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestPostOccupancy_SilentDropIsAccepted(t *testing.T) {
	// Stale and duplicate deliveries surface as a nil error from the
	// pipeline; the HTTP edge acknowledges them like any other accept.
	m := &mockIngestHandler{
		occupancyFunc: func(ctx context.Context, ev domain.OccupancyEvent) error {
			return nil
		},
	}
	r := newIngestRouter(m)

	w := postJSON(r, "/api/events/occupancy",
		`{"zone_id":"zone-a","timestamp":"2026-08-28T10:00:00Z","delta":1,"source_id":"gate-1"}`)
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected idempotent 202 accept, got %d", w.Code)
	}
}

func TestPostCandidate(t *testing.T) {
	var got domain.ViolationCandidate
	m := &mockIngestHandler{
		candidateFunc: func(ctx context.Context, cand domain.ViolationCandidate) error {
			got = cand
			return nil
		},
	}
	r := newIngestRouter(m)

	w := postJSON(r, "/api/events/violations",
		`{"zone_id":"zone-a","violation_type":"WrongWay","vehicle_number":"AB-1234","timestamp":"2026-08-28T10:00:00Z"}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if got.Type != domain.ViolationWrongWay || got.VehicleNumber != "AB-1234" {
		t.Errorf("Candidate not forwarded correctly: %+v", got)
	}
}

func TestPostCandidate_ValidationError(t *testing.T) {
	m := &mockIngestHandler{
		candidateFunc: func(ctx context.Context, cand domain.ViolationCandidate) error {
			return domain.ErrValidation
		},
	}
	r := newIngestRouter(m)

	w := postJSON(r, "/api/events/violations",
		`{"zone_id":"zone-a","violation_type":"OverCapacity"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}
