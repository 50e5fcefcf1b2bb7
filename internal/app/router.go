package app

import (
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"labtrack.io/labtrack/internal/api/handlers"
	"labtrack.io/labtrack/internal/api/middleware"
	"labtrack.io/labtrack/internal/config"
	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/pkg/metrics"
)

func newRouter(
	cfg *config.Config,
	server *handlers.Server,
	registry *prometheus.Registry,
	m *metrics.Metrics,
	doc *openapi3.T,
) (*gin.Engine, error) {
	router := gin.New()
	router.MaxMultipartMemory = cfg.Uploads.MaxFileSize
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Metrics(m),
		cors.New(buildCORSConfig(cfg)),
		middleware.ErrorHandler(),
	)
	if cfg.Server.OpenAPIValidation {
		validator, err := middleware.NewOpenAPIValidator(doc, "")
		if err != nil {
			return nil, err
		}
		router.Use(validator)
	}

	handlers.RegisterHandlers(router, server)

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
	level := gin.WrapH(logger.LevelHandler())
	router.GET("/log/level", level)
	router.PUT("/log/level", level)
	return router, nil
}

// buildCORSConfig allows any origin when allowed_origins is empty or lists "*".
// Credentials are never allowed since the API has no session.
func buildCORSConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsCfg.ExposeHeaders = []string{middleware.RequestIDHeader, "Content-Disposition"}
	corsCfg.AllowCredentials = false

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
		return corsCfg
	}
	corsCfg.AllowOrigins = origins
	return corsCfg
}
