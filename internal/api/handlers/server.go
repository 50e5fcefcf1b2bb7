// Package handlers implements the labtrack HTTP API.
//
// Handlers translate between gin and the services; they report failures with
// c.Error and leave rendering to middleware.ErrorHandler.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "labtrack.io/labtrack/internal/pkg/errors"
	"labtrack.io/labtrack/internal/pkg/worker"
	"labtrack.io/labtrack/internal/service"
)

// multipartOverhead is the body allowance for form fields next to the files.
const multipartOverhead = 1 << 20

// Server holds the dependencies of the API handlers.
type Server struct {
	equipment   *service.EquipmentService
	maintenance *service.MaintenanceService
	pools       *worker.Pools
	port        int
	maxFileSize int64
	maxFiles    int
	probeDirs   map[string]string
	addresses   func() ([]string, error)
	openapi     []byte
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Equipment   *service.EquipmentService
	Maintenance *service.MaintenanceService
	Pools       *worker.Pools // Optional: reported by the debug endpoints
	Port        int
	MaxFileSize int64
	MaxFiles    int
	// ProbeDirs maps readiness check names to directories that must be writable.
	ProbeDirs map[string]string
	// Addresses lists the LAN addresses reported by /api/server-info.
	// Defaults to the IPv4 addresses of the host's interfaces.
	Addresses func() ([]string, error)
	OpenAPI   []byte
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	addresses := deps.Addresses
	if addresses == nil {
		addresses = lanAddresses
	}
	return &Server{
		equipment:   deps.Equipment,
		maintenance: deps.Maintenance,
		pools:       deps.Pools,
		port:        deps.Port,
		maxFileSize: deps.MaxFileSize,
		maxFiles:    deps.MaxFiles,
		probeDirs:   deps.ProbeDirs,
		addresses:   addresses,
		openapi:     deps.OpenAPI,
	}
}

// RegisterHandlers mounts every API route on r.
func RegisterHandlers(r gin.IRouter, s *Server) {
	r.GET("/health/live", s.GetLiveness)
	r.GET("/health/ready", s.GetReadiness)

	api := r.Group("/api")
	api.GET("/equipment", s.ListEquipment)
	api.POST("/equipment", s.CreateEquipment)
	api.GET("/equipment/:assetNumber", s.GetEquipment)
	api.PUT("/equipment/:assetNumber", s.UpdateEquipment)
	api.DELETE("/equipment/:assetNumber", s.DeleteEquipment)
	api.POST("/generate-asset-number", s.GenerateAssetNumber)
	api.GET("/catalog", s.GetCatalog)
	api.GET("/export/inventory.xlsx", s.ExportInventory)

	api.GET("/maintenance", s.ListMaintenance)
	api.POST("/maintenance", s.CreateMaintenance)
	api.GET("/maintenance/:id", s.GetMaintenance)
	api.PUT("/maintenance/:id", s.UpdateMaintenance)
	api.DELETE("/maintenance/:id", s.DeleteMaintenance)
	api.GET("/maintenance/files/:filename", s.DownloadAttachment)
	api.DELETE("/maintenance/files/:filename", s.DeleteAttachment)

	api.GET("/server-info", s.GetServerInfo)
	api.GET("/debug/equipment-status", s.DebugEquipmentStatus)
	api.GET("/debug/maintenance-files", s.DebugMaintenanceFiles)
	api.GET("/openapi.yaml", s.GetOpenAPI)
}

func success(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// bind decodes the body by content type. Decoding failures become 400s.
func bind(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			_ = c.Error(apperrors.Wrap(err, apperrors.CodeFileTooLarge, "request body too large", http.StatusBadRequest))
			return false
		}
		_ = c.Error(apperrors.Wrap(err, apperrors.CodeInvalidRequest, "malformed request body", http.StatusBadRequest))
		return false
	}
	return true
}
