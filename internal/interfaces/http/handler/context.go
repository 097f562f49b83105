package handler

import (
	"context"
	"strings"
	"time"

	apptenancy "github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/application/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/logger"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultAwaitTimeout bounds how long context reads wait for resolution
const DefaultAwaitTimeout = 10 * time.Second

// SessionForgetter drops the session of a signed-out user
type SessionForgetter interface {
	Forget(ctx context.Context, uid string)
}

// ContextHandler serves the caller's business context
type ContextHandler struct {
	BaseHandler
	sessions SessionForgetter
	wait     time.Duration
}

// NewContextHandler creates a new ContextHandler. A zero wait uses
// DefaultAwaitTimeout.
func NewContextHandler(sessions SessionForgetter, wait time.Duration) *ContextHandler {
	if wait <= 0 {
		wait = DefaultAwaitTimeout
	}
	return &ContextHandler{sessions: sessions, wait: wait}
}

// awaitVisible returns the visible context, or the current loading state
// when resolution outlasts the wait
func (h *ContextHandler) awaitVisible(c *gin.Context, s *apptenancy.Session) tenancy.ResolvedContext {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.wait)
	defer cancel()
	resolved, err := s.AwaitVisible(ctx)
	if err != nil {
		return s.Context()
	}
	return resolved
}

// Get returns the resolved business context
// GET /api/v1/context
func (h *ContextHandler) Get(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}
	resolved := h.awaitVisible(c, s)
	h.Success(c, dto.NewContextResponse(resolved, middleware.GetSupport(c).Active()))
}

// Refresh re-runs resolution and returns the settled context
// POST /api/v1/context/refresh
func (h *ContextHandler) Refresh(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	done := s.Refresh(c.Request.Context())
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.wait)
	defer cancel()

	// A timed out wait still reports the loading state
	resolved, _ := s.Await(ctx, done)
	h.Success(c, dto.NewContextResponse(resolved, middleware.GetSupport(c).Active()))
}

// SetViewing switches data reads to a linked business or back to the own one
// PUT /api/v1/context/viewing
func (h *ContextHandler) SetViewing(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	var req dto.SetViewingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	id := ""
	if req.BusinessID != nil {
		id = strings.TrimSpace(*req.BusinessID)
	}

	resolved := h.awaitVisible(c, s)
	if !resolved.HasBusiness() {
		h.ErrorWithCode(c, dto.ErrCodeNoBusiness, "Business not loaded")
		return
	}
	if !s.SetCurrentViewingBusiness(id) {
		h.ErrorWithCode(c, dto.ErrCodeNotLinked, "Business is not linked to your business")
		return
	}

	logger.GetGinLogger(c).Info("Viewing business changed",
		zap.String("business_id", resolved.BusinessID),
		zap.String("viewing_business_id", id))
	h.Success(c, dto.NewContextResponse(s.Context(), middleware.GetSupport(c).Active()))
}

// CheckPermissions reports whether the caller holds the given tokens
// GET /api/v1/context/permissions/check?p=orders_view&p=orders_edit&mode=all
func (h *ContextHandler) CheckPermissions(c *gin.Context) {
	s := h.session(c)
	if s == nil {
		return
	}

	var q dto.PermissionCheckQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if q.Mode == "" {
		q.Mode = "any"
	}

	set := h.awaitVisible(c, s).PermissionSet()
	allowed := set.HasAny(q.Permissions...)
	if q.Mode == "all" {
		allowed = set.HasAll(q.Permissions...)
	}
	h.Success(c, dto.PermissionCheckResponse{
		Allowed:     allowed,
		Mode:        q.Mode,
		Permissions: q.Permissions,
	})
}

// SignOut stops and drops the caller's session. The snapshot is kept.
// DELETE /api/v1/context
func (h *ContextHandler) SignOut(c *gin.Context) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "Authentication required")
		return
	}
	h.sessions.Forget(c.Request.Context(), identity.UID)
	h.NoContent(c)
}
