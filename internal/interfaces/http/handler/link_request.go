package handler

import (
	"strings"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// LinkRequestHandler runs the link request workflow for the caller's
// business. Routes run behind RequireBusiness.
type LinkRequestHandler struct {
	BaseHandler
}

// NewLinkRequestHandler creates a new LinkRequestHandler
func NewLinkRequestHandler() *LinkRequestHandler {
	return &LinkRequestHandler{}
}

// List reloads and returns the pending requests in both directions
// GET /api/v1/link-requests
func (h *LinkRequestHandler) List(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	if err := s.RefreshLinkRequests(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}

	current := s.Context()
	h.Success(c, dto.LinkRequestsResponse{
		Incoming: dto.NewLinkRequestResponses(current.IncomingLinkRequests),
		Outgoing: dto.NewLinkRequestResponses(current.OutgoingLinkRequests),
	})
}

// Send asks another business for access to its data
// POST /api/v1/link-requests
func (h *LinkRequestHandler) Send(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	var req dto.SendLinkRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	accessType, err := tenancy.ParseAccessType(req.AccessType)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	sent, err := s.SendLinkRequest(c.Request.Context(), strings.TrimSpace(req.TargetBusinessID), accessType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewLinkRequestResponse(*sent))
}

// Approve approves an incoming request
// POST /api/v1/link-requests/:id/approve
func (h *LinkRequestHandler) Approve(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	approved, err := s.ApproveLinkRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewLinkRequestResponse(*approved))
}

// Reject rejects an incoming request
// POST /api/v1/link-requests/:id/reject
func (h *LinkRequestHandler) Reject(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	rejected, err := s.RejectLinkRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewLinkRequestResponse(*rejected))
}

// Cancel withdraws an outgoing pending request
// DELETE /api/v1/link-requests/:id
func (h *LinkRequestHandler) Cancel(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	if err := s.CancelLinkRequest(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
