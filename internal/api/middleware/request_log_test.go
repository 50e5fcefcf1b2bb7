package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"labtrack.io/labtrack/internal/pkg/metrics"
)

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/id", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	if seen == "" || w.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("generated id %q not echoed (header %q)", seen, w.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "client-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if seen != "client-123" {
		t.Fatalf("request id = %q, want client-123", seen)
	}
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router := gin.New()
	router.Use(RequestLogger(), Metrics(m))
	router.GET("/api/equipment/:assetNumber", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, asset := range []string{"LAB-1", "LAB-2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/equipment/"+asset, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	expected := `
# HELP labtrack_http_requests_total HTTP requests by method, route and status code.
# TYPE labtrack_http_requests_total counter
labtrack_http_requests_total{method="GET",route="/api/equipment/:assetNumber",status="200"} 2
labtrack_http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "labtrack_http_requests_total"); err != nil {
		t.Fatal(err)
	}
}
