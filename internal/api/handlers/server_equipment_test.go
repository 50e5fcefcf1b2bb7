package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"labtrack.io/labtrack/internal/domain"
	apperrors "labtrack.io/labtrack/internal/pkg/errors"
	"labtrack.io/labtrack/internal/report"
	"labtrack.io/labtrack/internal/testutil"
)

func TestEquipmentHandlers_CRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/equipment", map[string]any{
		"name": "Confocal microscope", "category": "Microscopy", "cost": 125000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[domain.Equipment](t, w)
	assert.Equal(t, "LAB-2026-MIC-001", created.AssetNumber)
	assert.Equal(t, domain.StatusOperational, created.Status)

	w = s.doJSON(t, http.MethodGet, "/api/equipment/"+created.AssetNumber, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Confocal microscope", decode[domain.Equipment](t, w).Name)

	w = s.doJSON(t, http.MethodPut, "/api/equipment/"+created.AssetNumber, map[string]any{
		"location": "Room 204", "asset_number": "IGNORED",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[domain.Equipment](t, w)
	assert.Equal(t, "Room 204", updated.Location)
	assert.Equal(t, created.AssetNumber, updated.AssetNumber)
	assert.Equal(t, "Confocal microscope", updated.Name)

	w = s.doJSON(t, http.MethodGet, "/api/equipment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Equipment](t, w), 1)

	w = s.doJSON(t, http.MethodDelete, "/api/equipment/"+created.AssetNumber, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"success": true}, decode[map[string]bool](t, w))

	w = s.doJSON(t, http.MethodGet, "/api/equipment/"+created.AssetNumber, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeEquipmentNotFound, decode[errorBody](t, w).Code)
}

func TestEquipmentHandlers_EmptyListIsArray(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodGet, "/api/equipment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestEquipmentHandlers_Errors(t *testing.T) {
	s := newTestServer(t)
	s.env.SeedEquipment(t, domain.Equipment{AssetNumber: "LAB-1", Name: "Scale", Category: "Balances", Status: domain.StatusOperational})

	w := s.doJSON(t, http.MethodPost, "/api/equipment", map[string]any{"category": "Balances"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, apperrors.CodeValidationFailed, body.Code)
	require.Len(t, body.FieldErrors, 1)
	assert.Equal(t, "name", body.FieldErrors[0].Field)

	w = s.doJSON(t, http.MethodPost, "/api/equipment", map[string]any{"asset_number": "LAB-1", "name": "x", "category": "Balances"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/equipment", "application/json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidRequest, decode[errorBody](t, w).Code)

	w = s.doJSON(t, http.MethodPut, "/api/equipment/LAB-404", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.doJSON(t, http.MethodDelete, "/api/equipment/LAB-404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEquipmentHandlers_CorruptStore(t *testing.T) {
	s := newTestServer(t)
	s.env.SeedEquipment(t, domain.Equipment{AssetNumber: "LAB-1"})
	testutil.Corrupt(t, s.env.Paths.Equipment)

	w := s.doJSON(t, http.MethodGet, "/api/equipment", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.CodeStoreReadFailed, decode[errorBody](t, w).Code)
}

func TestGenerateAssetNumber(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/generate-asset-number", map[string]string{"category": "Centrifuges"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "LAB-2026-CEN-001", decode[map[string]string](t, w)["asset_number"])

	w = s.doJSON(t, http.MethodPost, "/api/generate-asset-number", map[string]string{"category": "Centrifuges"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "LAB-2026-CEN-002", decode[map[string]string](t, w)["asset_number"])
}

func TestGetCatalog(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Categories []domain.Category `json:"categories"`
		Locations  []string          `json:"locations"`
		Statuses   []string          `json:"statuses"`
	}](t, w)
	assert.Contains(t, body.Categories, domain.Category{Name: "Other", Code: domain.OtherCategoryCode})
	assert.NotEmpty(t, body.Locations)
	assert.Equal(t, domain.Statuses(), body.Statuses)
}

func TestExportInventory(t *testing.T) {
	s := newTestServer(t)
	s.env.SeedEquipment(t, domain.Equipment{AssetNumber: "LAB-1", Name: "Scale", Status: domain.StatusOperational})
	s.env.SeedMaintenance(t, domain.Maintenance{ID: 1001, EquipmentAsset: "LAB-1", Type: "Cleaning", Files: []domain.Attachment{}})

	w := s.doJSON(t, http.MethodGet, "/api/export/inventory.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, report.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inventory.xlsx")

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.SheetMaintenance)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "LAB-1", rows[1][1])
}
