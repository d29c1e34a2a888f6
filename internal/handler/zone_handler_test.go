package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/registry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newZoneRouter() *gin.Engine {
	reg := registry.New([]domain.Zone{
		{
			ID: "zone-a", Name: "Alpha",
			MaxCapacity: 100, GraceThreshold: 5, FinePerExcess: 50,
			Status: domain.ZoneStatusActive, CurrentCount: 95, ReservedCount: 4,
		},
		{
			ID: "zone-b", Name: "Beta",
			MaxCapacity: 50, GraceThreshold: 3,
			Status: domain.ZoneStatusLocked, CurrentCount: 10,
		},
	})

	r := gin.New()
	NewZoneHandler(reg).RegisterRoutes(r.Group("/api"))
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return w, body
}

func TestListZones(t *testing.T) {
	r := newZoneRouter()

	w, body := doRequest(t, r, http.MethodGet, "/api/zones")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	data := body["data"].(map[string]interface{})
	if data["count"].(float64) != 2 {
		t.Errorf("Expected 2 zones, got %v", data["count"])
	}
}

func TestListZones_StatusFilter(t *testing.T) {
	r := newZoneRouter()

	_, body := doRequest(t, r, http.MethodGet, "/api/zones?status=active")
	data := body["data"].(map[string]interface{})
	if data["count"].(float64) != 1 {
		t.Errorf("Expected 1 active zone, got %v", data["count"])
	}
}

func TestGetZone(t *testing.T) {
	r := newZoneRouter()

	w, body := doRequest(t, r, http.MethodGet, "/api/zones/zone-a")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	data := body["data"].(map[string]interface{})
	if data["id"] != "zone-a" {
		t.Errorf("Expected zone-a, got %v", data["id"])
	}
	if data["capacity_status"] != string(domain.CapacityNear) {
		t.Errorf("Expected near_capacity, got %v", data["capacity_status"])
	}
}

func TestGetZone_NotFound(t *testing.T) {
	r := newZoneRouter()

	w, body := doRequest(t, r, http.MethodGet, "/api/zones/ghost")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
	if body["success"].(bool) {
		t.Error("Expected success=false")
	}
}

func TestGetOccupancy(t *testing.T) {
	r := newZoneRouter()

	w, body := doRequest(t, r, http.MethodGet, "/api/zones/zone-a/occupancy")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	data := body["data"].(map[string]interface{})
	if data["current_count"].(float64) != 95 {
		t.Errorf("Expected count 95, got %v", data["current_count"])
	}
	if data["available"].(float64) != 5 {
		t.Errorf("Expected available 5, got %v", data["available"])
	}
}
