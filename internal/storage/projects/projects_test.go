package projects

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

func sampleFiles() []workspace.File {
	return []workspace.File{
		{ID: "file_1", Name: "index.html", Kind: workspace.Markup, Content: "<p>hi</p>"},
		{ID: "file_2", Name: "style.css", Kind: workspace.Style, Content: "p{}"},
		{ID: "file_3", Name: "script.js", Kind: workspace.Script, Content: "console.log(1)"},
	}
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "projects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	first, err := s.Save(ctx, "alice", "  First  ", sampleFiles())
	require.NoError(t, err)
	assert.True(t, id.HasPrefix(string(first.ID), id.ProjectPrefix))
	assert.Equal(t, "First", first.Name)
	assert.Equal(t, "alice", first.UserID)

	second, err := s.Save(ctx, "alice", "Second", sampleFiles()[:1])
	require.NoError(t, err)
	_, err = s.Save(ctx, "bob", "Other", sampleFiles())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.touch(ctx, first.ID, now.Add(time.Minute)))
	require.NoError(t, s.touch(ctx, second.ID, now))

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, sampleFiles(), list[0].Files)

	files, err := s.Load(ctx, "alice", second.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleFiles()[:1], files)

	_, err = s.Load(ctx, "bob", second.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "alice", second.ID))
	assert.ErrorIs(t, s.Delete(ctx, "alice", second.ID), ErrNotFound)

	list, err = s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	empty, err := s.List(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "projects.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	p, err := s.Save(ctx, "alice", "Kept", sampleFiles())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	files, err := s.Load(ctx, "alice", p.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleFiles(), files)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Store{
		"sqlite": openSQLite(t),
		"remote": newRemote(t, newFakeREST()),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(ctx, "alice", "   ", sampleFiles())
			assert.ErrorIs(t, err, ErrNameRequired)

			_, err = s.Save(ctx, "", "Name", sampleFiles())
			assert.ErrorIs(t, err, ErrUnauthenticated)

			_, err = s.List(ctx, " ")
			assert.ErrorIs(t, err, ErrUnauthenticated)

			_, err = s.Load(ctx, "", "proj_x")
			assert.ErrorIs(t, err, ErrUnauthenticated)

			assert.ErrorIs(t, s.Delete(ctx, "", "proj_x"), ErrUnauthenticated)
		})
	}
}

// fakeREST serves the subset of PostgREST the remote store uses.
type fakeREST struct {
	mu        sync.Mutex
	rows      []Project
	fail      int
	requests  int
	lastAuth  string
	lastTrace string
}

func newFakeREST() *fakeREST {
	return &fakeREST{}
}

func (f *fakeREST) stats() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests, f.lastAuth
}

func eq(r *http.Request, key string) (string, bool) {
	v := r.URL.Query().Get(key)
	return strings.CutPrefix(v, "eq.")
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests++
	f.lastAuth = r.Header.Get("Authorization")
	f.lastTrace = r.Header.Get(tracing.TraceHeader)
	if f.fail > 0 {
		f.fail--
		http.Error(w, `{"message":"unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	if r.URL.Path != "/rest/v1/projects" {
		http.NotFound(w, r)
		return
	}

	user, _ := eq(r, "user_id")
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		out := []Project{}
		projectID, byID := eq(r, "id")
		for _, p := range f.rows {
			if p.UserID == user && (!byID || string(p.ID) == projectID) {
				out = append(out, p)
			}
		}
		if r.URL.Query().Get("order") == "updated_at.desc" {
			slices.SortFunc(out, func(a, b Project) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
		}
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		var p Project
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows, p)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]Project{p})
	case http.MethodDelete:
		projectID, _ := eq(r, "id")
		f.rows = slices.DeleteFunc(f.rows, func(p Project) bool {
			return p.UserID == user && string(p.ID) == projectID
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newRemote(t *testing.T, h http.Handler, opts ...func(*RemoteOptions)) *RemoteStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	o := RemoteOptions{BaseURL: srv.URL + "/rest/v1/", Key: "anon-key"}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := NewRemoteStore(o)
	require.NoError(t, err)
	return s
}

func TestRemoteStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeREST()
	s := newRemote(t, fake)

	first, err := s.Save(ctx, "alice", "First", sampleFiles())
	require.NoError(t, err)
	assert.Equal(t, "First", first.Name)
	_, auth := fake.stats()
	assert.Equal(t, "Bearer anon-key", auth)

	second, err := s.Save(ctx, "alice", "Second", sampleFiles()[:2])
	require.NoError(t, err)
	_, err = s.Save(ctx, "bob", "Theirs", sampleFiles())
	require.NoError(t, err)

	fake.mu.Lock()
	fake.rows[0].UpdatedAt = time.Now().Add(time.Hour)
	fake.mu.Unlock()

	list, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	files, err := s.Load(ctx, "alice", second.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleFiles()[:2], files)

	_, err = s.Load(ctx, "bob", second.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "alice", second.ID))
	list, err = s.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRemoteStoreForwardsTrace(t *testing.T) {
	fake := newFakeREST()
	s := newRemote(t, fake)
	tracer := tracing.New("test", nil)
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "list")
	_, err := s.List(ctx, "alice")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, string(span.TraceID), fake.lastTrace)
}

func TestRemoteStoreRetries(t *testing.T) {
	fake := newFakeREST()
	fake.fail = 1
	s := newRemote(t, fake, func(o *RemoteOptions) { o.Retries = 2 })

	list, err := s.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
	requests, _ := fake.stats()
	assert.Equal(t, 2, requests)
}

func TestRemoteStoreBreaker(t *testing.T) {
	fake := newFakeREST()
	fake.fail = 100
	breaker := resilience.New("test", resilience.Settings{
		Timeout:     time.Hour,
		IsFailure:   isRemoteFailure,
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	s := newRemote(t, fake, func(o *RemoteOptions) { o.Breaker = breaker })
	ctx := context.Background()

	for range 2 {
		_, err := s.List(ctx, "alice")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	}

	_, err := s.List(ctx, "alice")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	requests, _ := fake.stats()
	assert.Equal(t, 2, requests)
}

func TestRemoteClientErrorsKeepBreakerClosed(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad filter", http.StatusBadRequest)
	})
	breaker := resilience.New("test", resilience.Settings{
		IsFailure:   isRemoteFailure,
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	s := newRemote(t, h, func(o *RemoteOptions) { o.Breaker = breaker })

	for range 3 {
		_, err := s.List(context.Background(), "alice")
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}
	assert.Equal(t, resilience.StateClosed, breaker.State())
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Kind: "none"})
	require.NoError(t, err)
	_, err = s.List(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Open(Options{Kind: "remote"})
	assert.Error(t, err)

	_, err = Open(Options{Kind: "mongo"})
	assert.Error(t, err)

	s, err = Open(Options{Kind: "sqlite", Database: filepath.Join(t.TempDir(), "p.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
}

func TestInstrument(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	s := Instrument(openSQLite(t), "sqlite", m)
	ctx := context.Background()

	_, err := s.Save(ctx, "alice", "Tracked", sampleFiles())
	require.NoError(t, err)
	_, err = s.Save(ctx, "alice", "", sampleFiles())
	require.ErrorIs(t, err, ErrNameRequired)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("projects_sqlite", "save", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("projects_sqlite", "save", "error")))
}
