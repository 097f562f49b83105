package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/Hussein-Osamaa/madas-dashboard-sub008/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig holds configuration for the profiling middleware
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are served without labels
	SkipPaths []string
}

// Profiling tags CPU samples taken while a request runs with its method,
// route pattern and support mode
func Profiling(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		labels := map[string]string{
			telemetry.ProfilingLabelMethod:      c.Request.Method,
			telemetry.ProfilingLabelRoute:       c.FullPath(),
			telemetry.ProfilingLabelSupportMode: strconv.FormatBool(supportRequested(c)),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// supportRequested reports whether the request asks for support mode. The
// session is not known yet, so the claim gate is not applied here.
func supportRequested(c *gin.Context) bool {
	return supportFromRequest(c).Enabled
}
