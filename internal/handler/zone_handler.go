package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/registry"
	"github.com/yashrk2006/smart-parking-system/pkg/response"
)

// ZoneHandler serves zone configuration and live occupancy reads.
type ZoneHandler struct {
	registry *registry.ZoneRegistry
}

// NewZoneHandler creates a ZoneHandler.
func NewZoneHandler(reg *registry.ZoneRegistry) *ZoneHandler {
	return &ZoneHandler{registry: reg}
}

// RegisterRoutes mounts zone routes on the router group.
func (h *ZoneHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/zones", h.ListZones)
	rg.GET("/zones/:id", h.GetZone)
	rg.GET("/zones/:id/occupancy", h.GetOccupancy)
}

// ListZones returns all zones, optionally filtered by ?status=.
func (h *ZoneHandler) ListZones(c *gin.Context) {
	status := domain.ZoneStatus(c.Query("status"))
	zones := h.registry.List(status)
	response.Success(c, gin.H{
		"zones": zones,
		"count": len(zones),
	})
}

// GetZone returns one zone by id.
func (h *ZoneHandler) GetZone(c *gin.Context) {
	zone, err := h.registry.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrZoneNotFound) {
			response.NotFound(c, "zone not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, zone)
}

// GetOccupancy returns the live occupancy slice of one zone.
func (h *ZoneHandler) GetOccupancy(c *gin.Context) {
	zone, err := h.registry.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrZoneNotFound) {
			response.NotFound(c, "zone not found")
			return
		}
		response.InternalError(c, err)
		return
	}

	available := zone.MaxCapacity - zone.CurrentCount
	if available < 0 {
		available = 0
	}

	response.Success(c, gin.H{
		"zone_id":         zone.ID,
		"current_count":   zone.CurrentCount,
		"reserved_count":  zone.ReservedCount,
		"max_capacity":    zone.MaxCapacity,
		"available":       available,
		"capacity_status": zone.CapacityStatus,
		"last_updated":    zone.LastUpdated,
	})
}
