package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livecode/internal/api/middleware"
	"github.com/GriffinCanCode/livecode/internal/console"
	"github.com/GriffinCanCode/livecode/internal/domain/secrets"
	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livecode/internal/playground"
	"github.com/GriffinCanCode/livecode/internal/preview"
	"github.com/GriffinCanCode/livecode/internal/storage/projects"
)

type testAPI struct {
	router *gin.Engine
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := projects.OpenSQLite(filepath.Join(t.TempDir(), "projects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := playground.NewManager(playground.Options{
		Synth:    preview.SynthOptions{Guard: true},
		Projects: db,
	})
	t.Cleanup(m.Shutdown)

	auth := middleware.NewAuthenticator("test-secret", "livecode", time.Hour)
	token, err := auth.Issue("alice")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/", NewHandlers(m, nil, 0).Index)
	api := router.Group("/api")
	api.Use(middleware.Auth(auth))
	NewHandlers(m, nil, 5*time.Second).Register(api)
	return &testAPI{router: router, token: token}
}

// do sends a request, signed in as alice when signed is true.
func (a *testAPI) do(t *testing.T, method, path string, body any, signed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (a *testAPI) createSession(t *testing.T, mode string, signed bool) SessionView {
	t.Helper()
	w := a.do(t, "POST", "/api/sessions", gin.H{"mode": mode}, signed)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SessionView](t, w)
}

func fileByName(t *testing.T, files []workspace.File, name string) workspace.File {
	t.Helper()
	for _, f := range files {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("no file named %q", name)
	return workspace.File{}
}

func consoleMessages(t *testing.T, a *testAPI, sessionPath string) []string {
	t.Helper()
	w := a.do(t, "GET", sessionPath+"/console?settle=true", nil, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Records []console.Record `json:"records"`
	}](t, w)
	var out []string
	for _, r := range body.Records {
		out = append(out, string(r.Level)+": "+r.Message)
	}
	return out
}

func TestIndexAndHealth(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, "GET", "/", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>livecode</title>")

	router := gin.New()
	router.GET("/health", NewHandlers(playground.NewManager(playground.Options{}), nil, 0).Health)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, w)["status"])
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAPI(t)

	view := a.createSession(t, "", false)
	assert.Equal(t, playground.ModeHeadless, view.Mode)
	assert.Equal(t, playground.AnonymousScope, view.Scope)
	assert.False(t, view.SignedIn)
	require.Len(t, view.Files, 3)
	assert.Equal(t, view.Files[0].ID, view.Active)
	assert.Equal(t, uint64(1), view.Generation)

	path := "/api/sessions/" + view.ID.String()
	w := a.do(t, "GET", path, nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, view.ID, decode[SessionView](t, w).ID)

	w = a.do(t, "DELETE", path, nil, false)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(t, "GET", path, nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, "GET", "/api/sessions/not-a-session", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, "POST", "/api/sessions", gin.H{"mode": "desktop"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionOwnership(t *testing.T) {
	a := newTestAPI(t)
	view := a.createSession(t, "browser", true)
	assert.Equal(t, "alice", view.Scope)
	assert.True(t, view.SignedIn)

	path := "/api/sessions/" + view.ID.String()
	assert.Equal(t, http.StatusOK, a.do(t, "GET", path, nil, true).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, "GET", path, nil, false).Code)

	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("Authorization", "Bearer forged")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFilesAPI(t *testing.T) {
	a := newTestAPI(t)
	view := a.createSession(t, "browser", false)
	path := "/api/sessions/" + view.ID.String()

	w := a.do(t, "POST", path+"/files", gin.H{"kind": "script"}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[workspace.File](t, w)
	assert.Equal(t, "script2.js", added.Name)

	w = a.do(t, "PUT", path+"/files/"+added.ID.String(), gin.H{"content": "console.log('two')"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	files := decode[filesView](t, w)
	assert.Equal(t, added.ID, files.Active)
	assert.Equal(t, uint64(3), files.Generation)
	assert.Equal(t, "console.log('two')", fileByName(t, files.Files, "script2.js").Content)

	w = a.do(t, "PATCH", path+"/files/"+added.ID.String(), gin.H{"name": "extra.js"}, false)
	require.Equal(t, http.StatusOK, w.Code)
	fileByName(t, decode[filesView](t, w).Files, "extra.js")

	tests := []struct {
		name       string
		method     string
		target     string
		body       any
		wantStatus int
	}{
		{"empty name", "PATCH", "/files/" + added.ID.String(), gin.H{"name": "  "}, http.StatusBadRequest},
		{"unknown kind", "POST", "/files", gin.H{"kind": "rust"}, http.StatusBadRequest},
		{"missing kind", "POST", "/files", gin.H{}, http.StatusBadRequest},
		{"missing content", "PUT", "/files/" + added.ID.String(), gin.H{}, http.StatusBadRequest},
		{"unknown file", "PUT", "/files/file_missing", gin.H{"content": "x"}, http.StatusNotFound},
		{"last markup", "DELETE", "/files/" + fileByName(t, view.Files, "index.html").ID.String(), nil, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, tt.method, path+tt.target, tt.body, false)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, w)["error"])
		})
	}

	styleID := fileByName(t, view.Files, "style.css").ID.String()
	w = a.do(t, "POST", path+"/files/"+styleID+"/select", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, styleID, decode[filesView](t, w).Active.String())

	w = a.do(t, "DELETE", path+"/files/"+added.ID.String(), nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[filesView](t, w).Files, 3)
}

func TestImportAPI(t *testing.T) {
	a := newTestAPI(t)
	view := a.createSession(t, "browser", false)
	path := "/api/sessions/" + view.ID.String()

	upload := func(name string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", path+"/import", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		return w
	}

	w := upload("extra.css", []byte("h1 { color: blue; }"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	f := decode[workspace.File](t, w)
	assert.Equal(t, "extra.css", f.Name)
	assert.Equal(t, workspace.Style, f.Kind)

	w = a.do(t, "GET", path+"/preview", nil, false)
	assert.Contains(t, w.Body.String(), "h1 { color: blue; }")

	w = upload("photo.png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, "POST", path+"/import", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewAndExport(t *testing.T) {
	a := newTestAPI(t)
	view := a.createSession(t, "browser", false)
	path := "/api/sessions/" + view.ID.String()

	w := a.do(t, "GET", path+"/preview", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sandbox allow-scripts", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "1", w.Header().Get("X-Preview-Generation"))
	assert.Contains(t, w.Body.String(), "window.parent.postMessage")
	assert.Contains(t, w.Body.String(), "JavaScript loaded successfully!")

	w = a.do(t, "GET", path+"/export", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="project.html"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<!DOCTYPE html>")
	assert.NotContains(t, w.Body.String(), "window.parent.postMessage")

	w = a.do(t, "POST", path+"/preview/reload", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode[map[string]any](t, w)["generation"])

	w = a.do(t, "GET", path+"/notices", nil, false)
	notices := decode[struct {
		Notices []playground.Notice `json:"notices"`
	}](t, w).Notices
	require.NotEmpty(t, notices)
	assert.Equal(t, "Project downloaded!", notices[len(notices)-1].Message)
}

func TestHeadlessConsole(t *testing.T) {
	a := newTestAPI(t)
	view := a.createSession(t, "headless", false)
	path := "/api/sessions/" + view.ID.String()

	assert.Contains(t, consoleMessages(t, a, path), "log: JavaScript loaded successfully! ✅")

	w := a.do(t, "POST", path+"/preview/dispatch", gin.H{"selector": "#btn"}, false)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	msgs := consoleMessages(t, a, path)
	assert.Contains(t, msgs, "log: Button clicked! 🎉")
	assert.Contains(t, msgs, "warn: This is a warning message")

	w = a.do(t, "GET", path+"/preview/dom", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]any](t, w)["html"], `<button id="btn">Clicked!</button>`)

	w = a.do(t, "POST", path+"/preview/dispatch", gin.H{"selector": "#nothing"}, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(t, "POST", path+"/preview/dispatch", gin.H{}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, "POST", path+"/events", []byte(`{"type":"console","level":"log","args":["x"]}`), false)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, "DELETE", path+"/console", nil, false)
	assert.Equal(t, http.StatusNoContent, w.Code)
	for _, msg := range consoleMessages(t, a, path) {
		assert.NotEqual(t, "log: JavaScript loaded successfully! ✅", msg)
	}
}

func TestBrowserRelay(t *testing.T) {
	a := newTestAPI(t)
	view := a.createSession(t, "browser", false)
	path := "/api/sessions/" + view.ID.String()

	w := a.do(t, "POST", path+"/events", []byte(`{"type":"console","level":"error","args":["boom",{"code":7}]}`), false)
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = a.do(t, "POST", path+"/events", []byte(`not json`), false)
	assert.Equal(t, http.StatusAccepted, w.Code)

	assert.Equal(t, []string{"error: boom {\n  \"code\": 7\n}"}, consoleMessages(t, a, path))

	w = a.do(t, "GET", path+"/preview/dom", nil, false)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestResetAndSave(t *testing.T) {
	a := newTestAPI(t)
	view := a.createSession(t, "browser", false)
	path := "/api/sessions/" + view.ID.String()

	script := fileByName(t, view.Files, "script.js")
	w := a.do(t, "PUT", path+"/files/"+script.ID.String(), gin.H{"content": "// changed"}, false)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, "POST", path+"/save", nil, false)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, "POST", path+"/reset", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	reset := decode[SessionView](t, w)
	assert.Contains(t, fileByName(t, reset.Files, "script.js").Content, "JavaScript loaded successfully!")

	w = a.do(t, "POST", path+"/new-project", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProjectsAPI(t *testing.T) {
	a := newTestAPI(t)

	anon := a.createSession(t, "browser", false)
	w := a.do(t, "POST", "/api/projects", gin.H{"session_id": anon.ID, "name": "demo"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	view := a.createSession(t, "browser", true)
	sid := view.ID.String()

	w = a.do(t, "POST", "/api/projects", gin.H{"session_id": sid, "name": " "}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = a.do(t, "POST", "/api/projects", gin.H{"name": "demo"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, "POST", "/api/projects", gin.H{"session_id": sid, "name": "demo"}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	saved := decode[projects.Project](t, w)
	assert.Equal(t, "demo", saved.Name)
	assert.Equal(t, "alice", saved.UserID)

	w = a.do(t, "GET", "/api/projects?session_id="+sid, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Projects []projects.Project `json:"projects"`
	}](t, w).Projects
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	w = a.do(t, "POST", "/api/projects/"+saved.ID.String()+"/load", gin.H{"session_id": sid}, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, "DELETE", "/api/projects/"+saved.ID.String()+"?session_id="+sid, nil, true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(t, "POST", "/api/projects/"+saved.ID.String()+"/load", gin.H{"session_id": sid}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSecretsAPI(t *testing.T) {
	a := newTestAPI(t)
	view := a.createSession(t, "browser", false)
	path := "/api/sessions/" + view.ID.String()

	w := a.do(t, "POST", path+"/secrets", gin.H{"key": " API_KEY ", "value": "abc"}, false)
	require.Equal(t, http.StatusCreated, w.Code)
	sec := decode[map[string]any](t, w)
	assert.Equal(t, "API_KEY", sec["key"])
	assert.NotContains(t, sec, "value")

	w = a.do(t, "POST", path+"/secrets", gin.H{"key": "API_KEY", "value": "other"}, false)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = a.do(t, "POST", path+"/secrets", gin.H{"key": "EMPTY"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	secretPath := fmt.Sprintf("%s/secrets/%s", path, sec["id"])
	list := func() []secrets.View {
		w := a.do(t, "GET", path+"/secrets", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		return decode[struct {
			Secrets []secrets.View `json:"secrets"`
		}](t, w).Secrets
	}
	require.Len(t, list(), 1)
	assert.Equal(t, secrets.Mask, list()[0].Value)

	w = a.do(t, "POST", secretPath+"/reveal", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["revealed"])
	assert.Equal(t, "abc", list()[0].Value)

	assert.Equal(t, http.StatusNoContent, a.do(t, "DELETE", secretPath, nil, false).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, "DELETE", secretPath, nil, false).Code)
	assert.Empty(t, list())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", workspace.ErrNotFound), http.StatusNotFound},
		{playground.ErrSessionNotFound, http.StatusNotFound},
		{workspace.ErrEmptyName, http.StatusBadRequest},
		{projects.ErrNameRequired, http.StatusBadRequest},
		{workspace.ErrLastOfKind, http.StatusConflict},
		{playground.ErrWrongMode, http.StatusConflict},
		{projects.ErrUnauthenticated, http.StatusUnauthorized},
		{playground.ErrForbidden, http.StatusForbidden},
		{playground.ErrClosed, http.StatusGone},
		{projects.ErrUnavailable, http.StatusServiceUnavailable},
		{resilience.ErrCircuitOpen, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
