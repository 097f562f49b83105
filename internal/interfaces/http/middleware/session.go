package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	apptenancy "github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/application/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/domain/tenancy"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/auth"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/logger"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Session context keys
const (
	SessionClaimsKey  = "session_claims"
	SessionIdentity   = "session_identity"
	SessionSupportKey = "session_support"
	SessionKey        = "session"
	AuthHeaderKey     = "Authorization"
	BearerPrefix      = "Bearer "
)

// Support side channel headers. The query parameters support, businessId,
// businessName, adminName and adminEmail carry the same values.
const (
	HeaderSupportMode         = "X-Support-Mode"
	HeaderSupportBusinessID   = "X-Support-Business-ID"
	HeaderSupportBusinessName = "X-Support-Business-Name"
	HeaderSupportAdminName    = "X-Support-Admin-Name"
	HeaderSupportAdminEmail   = "X-Support-Admin-Email"
)

// SessionProvider hands out the business context session of a signed-in user
type SessionProvider interface {
	Session(ctx context.Context, identity tenancy.Identity, support tenancy.SupportSession) *apptenancy.Session
}

// SessionAuthConfig holds configuration for the session middleware
type SessionAuthConfig struct {
	JWTService *auth.JWTService
	Sessions   SessionProvider
	// SkipPaths are served without a session
	SkipPaths []string
	Logger    *zap.Logger
}

// SessionAuth validates the bearer token, reads the support side channel and
// attaches the caller's business context session
func SessionAuth(cfg SessionAuthConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abortAuth(c, cfg.Logger, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		token, ok := strings.CutPrefix(header, BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			abortAuth(c, cfg.Logger, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}

		claims, err := cfg.JWTService.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			abortAuth(c, cfg.Logger, err, "Token validation failed")
			return
		}

		identity := claims.Identity()
		support := supportFromRequest(c)
		if support.Enabled && !claims.SupportAgent {
			cfg.Logger.Warn("Ignoring support mode for non-support session",
				zap.String("user_id", identity.UID),
				zap.String("support_business_id", support.BusinessID))
			support = tenancy.SupportSession{}
		}

		ctx := logger.WithUserID(c.Request.Context(), identity.UID)
		ctx = logger.WithSupportMode(ctx, support.Active())
		c.Request = c.Request.WithContext(ctx)

		session := cfg.Sessions.Session(ctx, identity, support)

		c.Set(SessionClaimsKey, claims)
		c.Set(SessionIdentity, identity)
		c.Set(SessionSupportKey, support)
		c.Set(SessionKey, session)
		c.Next()
	}
}

// supportFromRequest reads the support side channel, query parameters first
func supportFromRequest(c *gin.Context) tenancy.SupportSession {
	pick := func(query, header string) string {
		if v := strings.TrimSpace(c.Query(query)); v != "" {
			return v
		}
		return strings.TrimSpace(c.GetHeader(header))
	}

	enabled, _ := strconv.ParseBool(pick("support", HeaderSupportMode))
	if !enabled {
		return tenancy.SupportSession{}
	}
	return tenancy.SupportSession{
		Enabled:      true,
		BusinessID:   pick("businessId", HeaderSupportBusinessID),
		BusinessName: pick("businessName", HeaderSupportBusinessName),
		AdminName:    pick("adminName", HeaderSupportAdminName),
		AdminEmail:   pick("adminEmail", HeaderSupportAdminEmail),
	}
}

func abortAuth(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Warn("Session authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path))

	code, text := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, text = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code, text = dto.ErrCodeTokenNotValidYet, "Token is not yet valid"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims), errors.Is(err, auth.ErrMissingUserID):
		code, text = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	abortWithError(c, code, text)
}

// abortWithError stops the chain with the standard error body
func abortWithError(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, c.GetString(RequestIDKey)))
}

// GetSession returns the session attached by SessionAuth, or nil
func GetSession(c *gin.Context) *apptenancy.Session {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(*apptenancy.Session); ok {
			return s
		}
	}
	return nil
}

// GetClaims returns the validated token claims, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(SessionClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetIdentity returns the caller identity
func GetIdentity(c *gin.Context) (tenancy.Identity, bool) {
	if v, ok := c.Get(SessionIdentity); ok {
		identity, ok := v.(tenancy.Identity)
		return identity, ok
	}
	return tenancy.Identity{}, false
}

// GetSupport returns the support side channel that was honoured
func GetSupport(c *gin.Context) tenancy.SupportSession {
	if v, ok := c.Get(SessionSupportKey); ok {
		if s, ok := v.(tenancy.SupportSession); ok {
			return s
		}
	}
	return tenancy.SupportSession{}
}
