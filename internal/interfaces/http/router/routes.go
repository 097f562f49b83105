package router

import (
	"time"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/auth"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/logger"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/handler"
	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LinkManagementPermission guards the linked-business registry and the link
// request workflow
const LinkManagementPermission = "settings_edit"

// Sessions is what the HTTP surface needs from the session manager
type Sessions interface {
	middleware.SessionProvider
	handler.SessionForgetter
	handler.SessionCounter
}

// EngineConfig holds everything NewEngine wires together
type EngineConfig struct {
	AppName        string
	Version        string
	Logger         *zap.Logger
	JWT            *auth.JWTService
	Sessions       Sessions
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	TrustedProxies []string
	ContextWait    time.Duration
	Tracing        middleware.TracingConfig
	Meter          metric.Meter // nil disables HTTP metrics
	Profiling      middleware.ProfilingConfig
	// ReadyChecks are probed by GET /ready
	ReadyChecks map[string]handler.Pinger
}

// NewEngine builds the gin engine with the full middleware stack and every
// business context route
func NewEngine(cfg EngineConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			cfg.Logger.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request id feeds the logger, spans and error bodies
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(cfg.Logger))
	engine.Use(logger.GinMiddleware(cfg.Logger))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	engine.Use(middleware.Tracing(cfg.Tracing))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	engine.Use(middleware.Profiling(cfg.Profiling))

	system := handler.NewSystemHandler(cfg.AppName, cfg.Version, cfg.Sessions, cfg.ReadyChecks)
	engine.GET("/health", system.Health)
	engine.GET("/ready", system.Ready)

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Use(middleware.SessionAuth(middleware.SessionAuthConfig{
		JWTService: cfg.JWT,
		Sessions:   cfg.Sessions,
		SkipPaths:  []string{"/api/v1/system/ping", "/api/v1/system/info"},
		Logger:     cfg.Logger,
	}))

	requireBusiness := middleware.RequireBusiness(middleware.BusinessConfig{
		Wait:   cfg.ContextWait,
		Logger: cfg.Logger,
	})

	r.Register(contextRoutes(handler.NewContextHandler(cfg.Sessions, cfg.ContextWait)))
	r.Register(linkedBusinessRoutes(handler.NewLinkedBusinessHandler(), requireBusiness))
	r.Register(linkRequestRoutes(handler.NewLinkRequestHandler(), requireBusiness))
	r.Register(systemRoutes(system))
	r.Setup()

	return engine
}

func contextRoutes(h *handler.ContextHandler) *DomainGroup {
	g := NewDomainGroup("context", "/context")
	g.GET("", h.Get)
	g.DELETE("", h.SignOut)
	g.POST("/refresh", h.Refresh)
	g.PUT("/viewing", h.SetViewing)
	g.GET("/permissions/check", h.CheckPermissions)
	return g
}

func linkedBusinessRoutes(h *handler.LinkedBusinessHandler, requireBusiness gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("linked-businesses", "/linked-businesses").
		Use(requireBusiness, middleware.RequirePermission(LinkManagementPermission))
	g.GET("", h.List)
	g.POST("", h.Add)
	g.DELETE("/:id", h.Remove)
	return g
}

func linkRequestRoutes(h *handler.LinkRequestHandler, requireBusiness gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("link-requests", "/link-requests").
		Use(requireBusiness, middleware.RequirePermission(LinkManagementPermission))
	g.GET("", h.List)
	g.POST("", h.Send)
	g.POST("/:id/approve", h.Approve)
	g.POST("/:id/reject", h.Reject)
	g.DELETE("/:id", h.Cancel)
	return g
}

func systemRoutes(h *handler.SystemHandler) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", h.GetSystemInfo)
	g.GET("/ping", h.Ping)
	return g
}
