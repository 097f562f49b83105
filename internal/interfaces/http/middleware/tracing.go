// Package middleware provides the gin middleware of the business context API.
package middleware

import (
	"net/http"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing starts a server span per request with otelgin, named after the
// route pattern
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher copies the request id, caller and business onto the active
// span once the handler chain has run, and marks 5xx responses failed.
// Place it after Tracing and RequestID.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		enrichSpan(c, span)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func enrichSpan(c *gin.Context, span trace.Span) {
	if id := c.GetString(RequestIDKey); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}
	if identity, ok := GetIdentity(c); ok {
		span.SetAttributes(attribute.String(telemetry.SpanAttrUserID, identity.UID))
	}
	if support := GetSupport(c); support.Active() {
		span.SetAttributes(attribute.Bool(telemetry.SpanAttrSupportMode, true))
	}
	if resolved, ok := GetResolvedContext(c); ok {
		span.SetAttributes(attribute.String(telemetry.SpanAttrBusinessID, resolved.EffectiveBusinessID()))
	}
}
