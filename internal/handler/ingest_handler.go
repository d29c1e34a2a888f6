package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/internal/ingest"
	"github.com/yashrk2006/smart-parking-system/pkg/response"
)

// IngestHandler accepts events over HTTP, for gateways and manual
// injection. The production path is the Kafka feed.
type IngestHandler struct {
	handler ingest.Handler
}

// NewIngestHandler creates an IngestHandler.
func NewIngestHandler(h ingest.Handler) *IngestHandler {
	return &IngestHandler{handler: h}
}

// RegisterRoutes mounts ingest routes on the router group.
func (h *IngestHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/events/occupancy", h.PostOccupancy)
	rg.POST("/events/violations", h.PostCandidate)
}

// PostOccupancy ingests one occupancy event.
func (h *IngestHandler) PostOccupancy(c *gin.Context) {
	var ev domain.OccupancyEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.BadRequest(c, "invalid occupancy event payload")
		return
	}

	if err := h.handler.HandleOccupancy(c.Request.Context(), ev); err != nil {
		h.writeIngestError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{Success: true})
}

// PostCandidate ingests one violation candidate.
func (h *IngestHandler) PostCandidate(c *gin.Context) {
	var cand domain.ViolationCandidate
	if err := c.ShouldBindJSON(&cand); err != nil {
		response.BadRequest(c, "invalid violation candidate payload")
		return
	}

	if err := h.handler.HandleCandidate(c.Request.Context(), cand); err != nil {
		h.writeIngestError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{Success: true})
}

func (h *IngestHandler) writeIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrZoneNotFound):
		response.NotFound(c, "zone not found")
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
