package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veresiye/defter/internal/observability"
)

func testRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	return NewRouter(RouterParams{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  cfg,
		Metrics: observability.NewMetrics(),
	})
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:4000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthAndMetrics(t *testing.T) {
	h := testRouter(t, &Config{MediaDir: t.TempDir(), MediaURLPrefix: "/media", RateLimitPerMinute: 100})

	rr := get(h, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	rr = get(h, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `veresiye_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestRouterServesMedia(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "gallery"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gallery", "a.webp"), []byte("RIFF....WEBP"), 0o644))
	h := testRouter(t, &Config{MediaDir: dir, MediaURLPrefix: "/media/", RateLimitPerMinute: 100})

	rr := get(h, "/media/gallery/a.webp")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=86400", rr.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "image/webp"))

	rr = get(h, "/media/gallery/")
	assert.Equal(t, http.StatusNotFound, rr.Code, "no directory listing")
}

func TestRouterRateLimit(t *testing.T) {
	h := testRouter(t, &Config{RateLimitPerMinute: 2})

	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/healthz").Code)
}
