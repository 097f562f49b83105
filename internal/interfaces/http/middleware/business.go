package middleware

import (
	"context"
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/logger"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ResolvedContextKey holds the tenancy.ResolvedContext seen by RequireBusiness
const ResolvedContextKey = "resolved_context"

// DefaultContextWait bounds how long a request waits for the first
// visible context
const DefaultContextWait = 10 * time.Second

// BusinessConfig holds configuration for RequireBusiness
type BusinessConfig struct {
	// Wait bounds the wait for a visible context. Zero uses DefaultContextWait.
	Wait   time.Duration
	Logger *zap.Logger
}

// RequireBusiness waits until the session context is visible and rejects
// callers without a business. A cache paint counts as visible.
func RequireBusiness(cfg BusinessConfig) gin.HandlerFunc {
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultContextWait
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		session := GetSession(c)
		if session == nil {
			abortWithError(c, dto.ErrCodeUnauthorized, "Authentication required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.Wait)
		resolved, err := session.AwaitVisible(ctx)
		cancel()
		if err != nil {
			cfg.Logger.Warn("Business context not ready", zap.Error(err))
			abortWithError(c, dto.ErrCodeContextLoading, "Business context is still loading")
			return
		}
		if !resolved.HasBusiness() {
			abortWithError(c, dto.ErrCodeNoAccess, "No business is available for this account")
			return
		}

		reqCtx := logger.WithBusinessID(c.Request.Context(), resolved.EffectiveBusinessID())
		c.Request = c.Request.WithContext(reqCtx)
		c.Set(ResolvedContextKey, resolved)
		c.Next()
	}
}

// GetResolvedContext returns the context captured by RequireBusiness
func GetResolvedContext(c *gin.Context) (tenancy.ResolvedContext, bool) {
	if v, ok := c.Get(ResolvedContextKey); ok {
		resolved, ok := v.(tenancy.ResolvedContext)
		return resolved, ok
	}
	return tenancy.ResolvedContext{}, false
}

// RequirePermission requires token in the caller's flattened permissions.
// Owners and wildcard holders always pass. Must run after RequireBusiness.
func RequirePermission(token string) gin.HandlerFunc {
	return RequireAnyPermission(token)
}

// RequireAnyPermission requires at least one of tokens
func RequireAnyPermission(tokens ...string) gin.HandlerFunc {
	return requirePermissions(tokens, func(s tenancy.PermissionSet) bool { return s.HasAny(tokens...) })
}

// RequireAllPermissions requires every one of tokens
func RequireAllPermissions(tokens ...string) gin.HandlerFunc {
	return requirePermissions(tokens, func(s tenancy.PermissionSet) bool { return s.HasAll(tokens...) })
}

func requirePermissions(tokens []string, allowed func(tenancy.PermissionSet) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolved, ok := GetResolvedContext(c)
		if !ok {
			abortWithError(c, dto.ErrCodeNoAccess, "No business is available for this account")
			return
		}
		if !allowed(resolved.PermissionSet()) {
			logger.GetGinLogger(c).Warn("Permission denied",
				zap.Strings("required_permissions", tokens),
				zap.String("role", string(resolved.Role)),
				zap.String("path", c.Request.URL.Path))
			abortWithError(c, dto.ErrCodeForbidden, "Access denied: insufficient permissions")
			return
		}
		c.Next()
	}
}
