package handler

import (
	"strings"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// LinkedBusinessHandler manages the linked-business registry of the
// caller's business. Routes run behind RequireBusiness.
type LinkedBusinessHandler struct {
	BaseHandler
}

// NewLinkedBusinessHandler creates a new LinkedBusinessHandler
func NewLinkedBusinessHandler() *LinkedBusinessHandler {
	return &LinkedBusinessHandler{}
}

// List returns the linked businesses
// GET /api/v1/linked-businesses
func (h *LinkedBusinessHandler) List(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	h.Success(c, dto.NewLinkedBusinessResponses(s.Context().LinkedBusinesses))
}

// Add links a business directly without a request
// POST /api/v1/linked-businesses
func (h *LinkedBusinessHandler) Add(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	var req dto.AddLinkedBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	accessType, err := tenancy.ParseAccessType(req.AccessType)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	entry, err := s.AddLinkedBusiness(c.Request.Context(), strings.TrimSpace(req.BusinessID), accessType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewLinkedBusinessResponse(entry))
}

// Remove unlinks a business
// DELETE /api/v1/linked-businesses/:id
func (h *LinkedBusinessHandler) Remove(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	if err := s.RemoveLinkedBusiness(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
