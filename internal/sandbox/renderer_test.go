package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/preview"
)

func doc(script string) preview.Document {
	return preview.Synthesize(preview.Sources{Script: script}, preview.SynthOptions{})
}

func waitLoaded(t *testing.T, f *Frame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.Wait(ctx))
}

func TestRendererLoad(t *testing.T) {
	in := newInbox(t)
	r := NewRenderer(in.window, DefaultConfig(), zap.NewNop(), nil)
	defer r.Close()

	reloaded, err := r.Load(doc("console.log('one')"))
	require.NoError(t, err)
	assert.True(t, reloaded)
	first := r.Current()
	require.NotNil(t, first)
	waitLoaded(t, first)

	reloaded, err = r.Load(doc("console.log('one')"))
	require.NoError(t, err)
	assert.False(t, reloaded, "identical document must not reload")
	assert.Same(t, first, r.Current())
	assert.Equal(t, uint64(1), r.Generation())

	reloaded, err = r.Load(doc("console.log('two')"))
	require.NoError(t, err)
	assert.True(t, reloaded)
	assert.True(t, first.Destroyed())
	waitLoaded(t, r.Current())
	assert.Equal(t, uint64(2), r.Generation())

	in.flush(t)
	assert.Equal(t, []line{
		{Level: "log", Text: "one", Generation: 1},
		{Level: "log", Text: "two", Generation: 2},
	}, in.lines())
}

func TestRendererReload(t *testing.T) {
	in := newInbox(t)
	r := NewRenderer(in.window, DefaultConfig(), nil, nil)
	defer r.Close()

	require.NoError(t, r.Reload(), "reload before any load is a no-op")
	assert.Nil(t, r.Current())

	_, err := r.Load(doc("console.log('run')"))
	require.NoError(t, err)
	waitLoaded(t, r.Current())

	require.NoError(t, r.Reload())
	waitLoaded(t, r.Current())
	in.flush(t)

	assert.Equal(t, []string{"run", "run"}, in.texts())
	assert.Equal(t, uint64(2), r.Generation())
}

func TestRendererDebounce(t *testing.T) {
	in := newInbox(t)
	cfg := DefaultConfig()
	cfg.ReloadDebounce = 30 * time.Millisecond
	r := NewRenderer(in.window, cfg, nil, nil)
	defer r.Close()

	for _, s := range []string{"console.log('a')", "console.log('b')", "console.log('c')"} {
		reloaded, err := r.Load(doc(s))
		require.NoError(t, err)
		assert.True(t, reloaded)
	}

	require.Eventually(t, func() bool { return r.Current() != nil }, 5*time.Second, 5*time.Millisecond)
	waitLoaded(t, r.Current())
	in.flush(t)

	assert.Equal(t, doc("console.log('c')").Fingerprint, r.Current().Document().Fingerprint)
	assert.Equal(t, uint64(1), r.Generation())
	assert.Equal(t, []string{"c"}, in.texts())
}

func TestRendererDebounceReturnsToCurrent(t *testing.T) {
	in := newInbox(t)
	cfg := DefaultConfig()
	cfg.ReloadDebounce = 30 * time.Millisecond
	r := NewRenderer(in.window, cfg, nil, nil)
	defer r.Close()

	_, err := r.Load(doc("console.log('a')"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.Current() != nil }, 5*time.Second, 5*time.Millisecond)

	_, err = r.Load(doc("console.log('b')"))
	require.NoError(t, err)
	_, err = r.Load(doc("console.log('a')"))
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, uint64(1), r.Generation(), "returning to the loaded document must not reload")
}

func TestRendererClose(t *testing.T) {
	in := newInbox(t)
	r := NewRenderer(in.window, DefaultConfig(), nil, nil)

	_, err := r.Load(doc("setInterval(() => {}, 5)"))
	require.NoError(t, err)
	frame := r.Current()

	r.Close()
	r.Close()
	assert.True(t, frame.Destroyed())
	assert.Nil(t, r.Current())

	_, err = r.Load(doc("console.log('late')"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.Reload(), ErrClosed)
}

func TestRendererUnload(t *testing.T) {
	in := newInbox(t)
	r := NewRenderer(in.window, DefaultConfig(), nil, nil)
	defer r.Close()

	_, err := r.Load(doc("console.log('one')"))
	require.NoError(t, err)
	first := r.Current()
	waitLoaded(t, first)

	r.Unload()
	assert.True(t, first.Destroyed())
	assert.Nil(t, r.Current())

	reloaded, err := r.Load(doc("console.log('one')"))
	require.NoError(t, err)
	assert.True(t, reloaded, "unloaded renderer must start a fresh frame")
	assert.Equal(t, uint64(2), r.Generation())
}
