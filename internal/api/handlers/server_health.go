package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/storage"
)

// Health status values.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": healthOK})
}

// GetReadiness handles GET /health/ready.
// Ready means every data and upload directory accepts new files.
func (s *Server) GetReadiness(c *gin.Context) {
	checks := make(map[string]string, len(s.probeDirs))
	allHealthy := true

	names := make([]string, 0, len(s.probeDirs))
	for name := range s.probeDirs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := storage.ProbeWritable(s.probeDirs[name]); err != nil {
			logger.Warn("Readiness check failed",
				zap.String("check", name),
				zap.String("dir", s.probeDirs[name]),
				zap.Error(err),
			)
			checks[name] = "error"
			allHealthy = false
			continue
		}
		checks[name] = healthOK
	}

	status := healthOK
	httpStatus := http.StatusOK
	if !allHealthy {
		status = healthDegraded
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, gin.H{
		"status": status,
		"checks": checks,
	})
}
