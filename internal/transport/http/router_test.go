package httptransport

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eyescan-server/internal/platform/errors"
	testhelpers "eyescan-server/internal/platform/testing"
)

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(Options{})
	assert.Error(t, err)
}

func TestRequestIDIsGeneratedAndEchoed(t *testing.T) {
	cfg := testhelpers.SetupTestConfig(t)
	router, err := Build(Options{Config: cfg, Logger: testhelpers.SetupTestLogger(t)})
	require.NoError(t, err)

	router.Root.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "client-chosen")
	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)
	assert.Equal(t, "client-chosen", rec.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	cfg := testhelpers.SetupTestConfig(t)
	router, err := Build(Options{Config: cfg, Logger: testhelpers.SetupTestLogger(t)})
	require.NoError(t, err)
	router.Root.POST("/detect", func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodOptions, "/detect", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticFrontendServedWhenDirExists(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>eyescan</html>"), 0o644))

	cfg := testhelpers.SetupTestConfig(t)
	cfg.Web.StaticDir = dir
	router, err := Build(Options{Config: cfg, Logger: testhelpers.SetupTestLogger(t)})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eyescan")
}

func TestRespondKindError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		err        error
		wantStatus int
		wantBody   string
	}{
		{errors.New(errors.KindValidation, "op", "No image provided"), http.StatusBadRequest, "No image provided"},
		{errors.New(errors.KindDecode, "op", "Invalid image data"), http.StatusBadRequest, "Invalid image data"},
		{errors.New(errors.KindInference, "op", "Inference failed"), http.StatusInternalServerError, "Inference failed"},
		{stderrors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondKindError(c, tt.err)

		assert.Equal(t, tt.wantStatus, rec.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.wantBody, body.Error)
	}
}

func TestHealthHandler(t *testing.T) {
	cfg := testhelpers.SetupTestConfig(t)
	logger := testhelpers.SetupTestLogger(t)
	router, err := Build(Options{Config: cfg, Logger: logger})
	require.NoError(t, err)
	NewHealthHandler(logger).Register(router.Root)

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Positive(t, body.Goroutines)
}

func TestPanicReturnsJSONError(t *testing.T) {
	cfg := testhelpers.SetupTestConfig(t)
	router, err := Build(Options{Config: cfg, Logger: testhelpers.SetupTestLogger(t)})
	require.NoError(t, err)
	router.Root.POST("/boom", func(c *gin.Context) {
		panic("nil model handle")
	})

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, MsgInternalError, body.Error)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}
