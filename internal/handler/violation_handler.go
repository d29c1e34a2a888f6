package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yashrk2006/smart-parking-system/internal/domain"
	"github.com/yashrk2006/smart-parking-system/pkg/response"
)

// ViolationService is the engine surface the handler needs.
type ViolationService interface {
	ListViolations(zoneID string, status domain.ViolationStatus) []domain.Violation
	GetViolation(violationID string) (domain.Violation, error)
	ResolveViolation(ctx context.Context, violationID, notes string) (domain.Violation, error)
	CancelViolation(ctx context.Context, violationID, notes string) (domain.Violation, error)
}

// ViolationHandler serves violation reads and resolution actions.
type ViolationHandler struct {
	svc ViolationService
}

// NewViolationHandler creates a ViolationHandler.
func NewViolationHandler(svc ViolationService) *ViolationHandler {
	return &ViolationHandler{svc: svc}
}

// RegisterRoutes mounts violation routes on the router group.
func (h *ViolationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/violations", h.ListViolations)
	rg.GET("/violations/:id", h.GetViolation)
	rg.POST("/violations/:id/resolve", h.ResolveViolation)
	rg.POST("/violations/:id/cancel", h.CancelViolation)
}

// ListViolations returns violations, optionally filtered by ?zone_id=
// and ?status=.
func (h *ViolationHandler) ListViolations(c *gin.Context) {
	zoneID := c.Query("zone_id")
	status := domain.ViolationStatus(c.Query("status"))

	violations := h.svc.ListViolations(zoneID, status)
	response.Success(c, gin.H{
		"violations": violations,
		"count":      len(violations),
	})
}

// GetViolation returns one violation by id.
func (h *ViolationHandler) GetViolation(c *gin.Context) {
	v, err := h.svc.GetViolation(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrViolationNotFound) {
			response.NotFound(c, "violation not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, v)
}

type resolveRequest struct {
	Notes string `json:"notes"`
}

// ResolveViolation resolves a pending violation.
func (h *ViolationHandler) ResolveViolation(c *gin.Context) {
	var req resolveRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	v, err := h.svc.ResolveViolation(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		h.writeActionError(c, err)
		return
	}
	response.Success(c, v)
}

// CancelViolation cancels a pending violation.
func (h *ViolationHandler) CancelViolation(c *gin.Context) {
	var req resolveRequest
	_ = c.ShouldBindJSON(&req)

	v, err := h.svc.CancelViolation(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		h.writeActionError(c, err)
		return
	}
	response.Success(c, v)
}

func (h *ViolationHandler) writeActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrViolationNotFound):
		response.NotFound(c, "violation not found")
	case errors.Is(err, domain.ErrViolationTerminal):
		response.Conflict(c, "violation is already resolved or cancelled")
	default:
		response.InternalError(c, err)
	}
}
