package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livecode/internal/api/middleware"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/config"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livecode/internal/playground"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Storage.KV = "memory"
	cfg.Storage.Projects = "none"
	cfg.Sandbox.Mode = "browser"
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(context.Background(), cfg, nil, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest("GET", url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServerRoutes(t *testing.T) {
	_, ts := newTestServer(t, testConfig(), Options{})

	resp, body := get(t, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "healthy")
	assert.NotEmpty(t, resp.Header.Get(tracing.TraceHeader))

	resp, _ = get(t, ts.URL+"/", http.Header{"Accept-Encoding": {"gzip"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = get(t, ts.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `livecode_http_requests_total{method="POST",path="/api/sessions",status="201"} 1`)
	assert.Contains(t, body, "livecode_sessions_active 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestServerAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.Secret = "s3cret"
	_, ts := newTestServer(t, cfg, Options{})

	token, err := middleware.NewAuthenticator("s3cret", cfg.Auth.Issuer, time.Hour).Issue("alice")
	require.NoError(t, err)

	req, err := http.NewRequest("POST", ts.URL+"/api/sessions", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, string(body), `"scope":"alice"`)

	resp, _ = get(t, ts.URL+"/api/projects?session_id=sess_x", http.Header{"Authorization": {"Bearer junk"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServerSeedAndWatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>seeded</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	s, _ := newTestServer(t, testConfig(), Options{SeedDir: dir, Watch: true})
	sess, err := s.Manager().Create(context.Background(), playground.CreateOptions{})
	require.NoError(t, err)
	assert.Contains(t, sess.Document().HTML, "<p>seeded</p>")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(2)"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(sess.Document().HTML, "console.log(2)")
	}, 5*time.Second, 20*time.Millisecond)

	_, err = NewServer(context.Background(), testConfig(), nil, Options{SeedDir: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestNewServerRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Sandbox.Mode = "desktop"
	_, err := NewServer(context.Background(), cfg, nil, Options{})
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Storage.KV = "floppy"
	_, err = NewServer(context.Background(), cfg, nil, Options{})
	assert.Error(t, err)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, err := NewServer(context.Background(), testConfig(), nil, Options{})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
