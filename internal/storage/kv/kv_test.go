package kv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"file":   fileStore,
		"memory": NewMemoryStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(ctx, "anon:files")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Save(ctx, "anon:files", []byte(`[1,2]`)))
			data, err := s.Load(ctx, "anon:files")
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(data))

			require.NoError(t, s.Save(ctx, "anon:files", []byte(`[3]`)))
			data, err = s.Load(ctx, "anon:files")
			require.NoError(t, err)
			assert.Equal(t, `[3]`, string(data))

			require.NoError(t, s.Delete(ctx, "anon:files"))
			require.NoError(t, s.Delete(ctx, "anon:files"), "deleting a missing key is not an error")
			_, err = s.Load(ctx, "anon:files")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestGetAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	def := []entry{{Name: "default"}}

	assert.Equal(t, def, Get(ctx, s, "missing", def))

	want := []entry{{Name: "a", Count: 1}, {Name: "b", Count: 2}}
	require.NoError(t, Set(ctx, s, "list", want))
	assert.Equal(t, want, Get(ctx, s, "list", def))

	require.NoError(t, s.Save(ctx, "list", []byte("{not json")))
	assert.Equal(t, def, Get(ctx, s, "list", def), "corrupt data falls back to the default")

	_, err := Lookup[[]entry](ctx, s, "list")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestFileStoreLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, "user/1:active-file", []byte(`"file_1"`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not remain")
	assert.Equal(t, "user%2F1%3Aactive-file.json", entries[0].Name())

	// A fresh store reads what an earlier one wrote.
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	data, err := reopened.Load(ctx, "user/1:active-file")
	require.NoError(t, err)
	assert.Equal(t, `"file_1"`, string(data))

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, `"file_1"`, string(raw))
}

func TestFileStoreCanceledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, "k", []byte("1")), context.Canceled)
	_, err = s.Load(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Kind: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(Options{Kind: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(Options{Kind: "redis", RedisURL: "not a url"})
	assert.Error(t, err)

	s, err = Open(Options{Kind: "redis", RedisURL: "redis://localhost:6379/0"})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)

	_, err = Open(Options{Kind: "etcd"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "etcd"))
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	s := Instrument(NewMemoryStore(), "memory", m)

	require.NoError(t, s.Save(ctx, "k", []byte("1")))
	_, err := s.Load(ctx, "k")
	require.NoError(t, err)
	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("kv_memory", "save", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("kv_memory", "load", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.StorageOps.WithLabelValues("kv_memory", "load", "error")))
}
