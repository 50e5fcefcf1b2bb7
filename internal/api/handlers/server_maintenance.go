package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labtrack.io/labtrack/internal/domain"
	apperrors "labtrack.io/labtrack/internal/pkg/errors"
	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/service"
	"labtrack.io/labtrack/internal/storage"
)

// filesField is the multipart field carrying attachments.
const filesField = "files"

// ListMaintenance handles GET /api/maintenance.
func (s *Server) ListMaintenance(c *gin.Context) {
	records, err := s.maintenance.List(c.Request.Context(), service.MaintenanceFilter{
		EquipmentAsset: c.Query("equipment_asset"),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetMaintenance handles GET /api/maintenance/{id}.
func (s *Server) GetMaintenance(c *gin.Context) {
	id, ok := maintenanceID(c)
	if !ok {
		return
	}
	m, err := s.maintenance.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// CreateMaintenance handles POST /api/maintenance.
// Accepts multipart/form-data with up to max_files parts named "files".
func (s *Server) CreateMaintenance(c *gin.Context) {
	s.limitBody(c)
	var in domain.MaintenanceInput
	if !bind(c, &in) {
		return
	}
	uploads := formUploads(c)
	defer cleanupMultipart(c)

	m, err := s.maintenance.Create(c.Request.Context(), in, uploads)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// UpdateMaintenance handles PUT /api/maintenance/{id}.
// Supplied fields are merged; uploaded files are appended.
func (s *Server) UpdateMaintenance(c *gin.Context) {
	id, ok := maintenanceID(c)
	if !ok {
		return
	}
	s.limitBody(c)
	var patch domain.MaintenancePatch
	if !bind(c, &patch) {
		return
	}
	uploads := formUploads(c)
	defer cleanupMultipart(c)

	m, err := s.maintenance.Update(c.Request.Context(), id, patch, uploads)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteMaintenance handles DELETE /api/maintenance/{id}.
func (s *Server) DeleteMaintenance(c *gin.Context) {
	id, ok := maintenanceID(c)
	if !ok {
		return
	}
	if err := s.maintenance.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	success(c)
}

// DownloadAttachment handles GET /api/maintenance/files/{filename}.
func (s *Server) DownloadAttachment(c *gin.Context) {
	name := c.Param("filename")
	f, info, err := s.maintenance.OpenAttachment(name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer f.Close()

	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

// DeleteAttachment handles DELETE /api/maintenance/files/{filename}.
// Unknown filenames succeed.
func (s *Server) DeleteAttachment(c *gin.Context) {
	if err := s.maintenance.DeleteAttachment(c.Request.Context(), c.Param("filename")); err != nil {
		_ = c.Error(err)
		return
	}
	success(c)
}

func maintenanceID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequest, "maintenance id must be an integer").
			WithParams(map[string]interface{}{"id": raw}))
		return 0, false
	}
	return id, true
}

// limitBody caps multipart bodies at max_files full-size files plus the form fields.
func (s *Server) limitBody(c *gin.Context) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") || s.maxFileSize <= 0 || s.maxFiles <= 0 {
		return
	}
	limit := int64(s.maxFiles+1)*s.maxFileSize + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
}

// formUploads returns the attachments of an already parsed multipart request.
func formUploads(c *gin.Context) []storage.Upload {
	form := c.Request.MultipartForm
	if form == nil {
		return nil
	}
	headers := form.File[filesField]
	uploads := make([]storage.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, storage.FromFileHeader(fh))
	}
	return uploads
}

// cleanupMultipart removes the temp files spilled by multipart parsing.
func cleanupMultipart(c *gin.Context) {
	form := c.Request.MultipartForm
	if form == nil {
		return
	}
	if err := form.RemoveAll(); err != nil {
		logger.Debug("Multipart cleanup failed", zap.Error(err))
	}
}
