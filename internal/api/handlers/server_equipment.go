package handlers

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/report"
	"labtrack.io/labtrack/internal/service"
)

// ListEquipment handles GET /api/equipment.
// Listing applies the derived-status rule and persists what it flags.
func (s *Server) ListEquipment(c *gin.Context) {
	records, err := s.equipment.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetEquipment handles GET /api/equipment/{assetNumber}.
func (s *Server) GetEquipment(c *gin.Context) {
	e, err := s.equipment.Get(c.Request.Context(), c.Param("assetNumber"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// CreateEquipment handles POST /api/equipment.
func (s *Server) CreateEquipment(c *gin.Context) {
	var in domain.EquipmentInput
	if !bind(c, &in) {
		return
	}
	e, err := s.equipment.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// UpdateEquipment handles PUT /api/equipment/{assetNumber}.
func (s *Server) UpdateEquipment(c *gin.Context) {
	var patch domain.EquipmentPatch
	if !bind(c, &patch) {
		return
	}
	e, err := s.equipment.Update(c.Request.Context(), c.Param("assetNumber"), patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// DeleteEquipment handles DELETE /api/equipment/{assetNumber}.
func (s *Server) DeleteEquipment(c *gin.Context) {
	if err := s.equipment.Delete(c.Request.Context(), c.Param("assetNumber")); err != nil {
		_ = c.Error(err)
		return
	}
	success(c)
}

type generateAssetNumberRequest struct {
	Category string `json:"category" form:"category"`
}

// GenerateAssetNumber handles POST /api/generate-asset-number.
func (s *Server) GenerateAssetNumber(c *gin.Context) {
	var req generateAssetNumberRequest
	if !bind(c, &req) {
		return
	}
	assetNumber, err := s.equipment.GenerateAssetNumber(c.Request.Context(), req.Category)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset_number": assetNumber})
}

// GetCatalog handles GET /api/catalog.
func (s *Server) GetCatalog(c *gin.Context) {
	catalog := s.equipment.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"categories": catalog.Categories(),
		"locations":  catalog.Locations(),
		"statuses":   domain.Statuses(),
	})
}

// ExportInventory handles GET /api/export/inventory.xlsx.
func (s *Server) ExportInventory(c *gin.Context) {
	ctx := c.Request.Context()
	equipment, err := s.equipment.List(ctx)
	if err != nil {
		_ = c.Error(err)
		return
	}
	maintenance, err := s.maintenance.List(ctx, service.MaintenanceFilter{})
	if err != nil {
		_ = c.Error(err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteInventory(&buf, equipment, maintenance); err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="inventory.xlsx"`)
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}
