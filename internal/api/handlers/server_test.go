package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"labtrack.io/labtrack/internal/api/middleware"
	"labtrack.io/labtrack/internal/domain"
	"labtrack.io/labtrack/internal/pkg/logger"
	"labtrack.io/labtrack/internal/service"
	"labtrack.io/labtrack/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type testServer struct {
	env    *testutil.Env
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	env := testutil.NewEnv(t)
	opts := []service.Option{service.WithClock(testutil.FixedClock(testNow))}
	srv := NewServer(ServerDeps{
		Equipment:   service.NewEquipmentService(env.Repo, env.Files, domain.NewCatalog(nil, nil), opts...),
		Maintenance: service.NewMaintenanceService(env.Repo, env.Files, opts...),
		Port:        3000,
		MaxFileSize: env.Files.MaxFileSize(),
		MaxFiles:    10,
		ProbeDirs:   map[string]string{"data": env.Dir, "uploads": env.Files.Dir()},
		Addresses:   func() ([]string, error) { return []string{"192.168.1.20"}, nil },
		OpenAPI:     []byte("openapi: 3.0.3\n"),
	})

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.ErrorHandler())
	RegisterHandlers(router, srv)
	return &testServer{env: env, router: router}
}

func (s *testServer) do(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(testutil.MustJSON(t, payload))
	}
	return s.do(t, method, path, "application/json", body)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Params      map[string]interface{} `json:"params"`
	FieldErrors []struct {
		Field string `json:"field"`
		Code  string `json:"code"`
	} `json:"field_errors"`
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func formBody(fields map[string]string) io.Reader {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return strings.NewReader(values.Encode())
}
