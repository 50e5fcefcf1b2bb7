package handlers

import (
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/service"
)

func TestGetServerInfo(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/server-info", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"port":3000,"addresses":["192.168.1.20"],"status":"online"}`, w.Body.String())
}

func TestLANAddressesExcludesLoopback(t *testing.T) {
	addrs, err := lanAddresses()
	require.NoError(t, err)
	assert.NotContains(t, addrs, "127.0.0.1")
}

func TestDebugEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.env.SeedEquipment(t, domain.Equipment{AssetNumber: "LAB-1", Status: domain.StatusOperational, NextMaintenance: "2026-03-05"})
	s.env.WriteBlob(t, "stray.pdf", []byte("%PDF"))

	w := s.do(t, http.MethodGet, "/api/debug/equipment-status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[service.StatusReport](t, w)
	assert.Equal(t, 1, status.NeedsUpdate)
	assert.Equal(t, domain.StatusOperational, s.env.Equipment(t)[0].Status, "debug view does not persist")

	w = s.do(t, http.MethodGet, "/api/debug/maintenance-files", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	files := decode[struct {
		Files service.FileReport `json:"files"`
	}](t, w)
	assert.Equal(t, []string{"stray.pdf"}, files.Files.Orphaned)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"ok","checks":{"data":"ok","uploads":"ok"}}`, w.Body.String())
}

func TestReadinessDegradedWhenDirMissing(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.RemoveAll(s.env.Files.Dir()))

	w := s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"data":"ok","uploads":"error"}}`, w.Body.String())
}

func TestGetOpenAPI(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/openapi.yaml", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}
