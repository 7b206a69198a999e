package host

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) listen(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, string(m.Data))
}

func (c *collector) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func flush(t *testing.T, w *Window) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Flush(ctx))
}

func TestDeliveryOrder(t *testing.T) {
	w := NewWindow(nil)
	defer w.Close()

	var c collector
	w.AddListener(c.listen)

	want := make([]string, 100)
	for i := range want {
		want[i] = fmt.Sprint(i)
		require.True(t, w.PostMessage(Message{Data: []byte(want[i])}))
	}
	flush(t, w)

	assert.Equal(t, want, c.got())
}

func TestRemoveListener(t *testing.T) {
	w := NewWindow(nil)
	defer w.Close()

	var c collector
	remove := w.AddListener(c.listen)
	assert.Equal(t, 1, w.ListenerCount())

	w.PostMessage(Message{Data: []byte("one")})
	flush(t, w)
	remove()
	remove()
	assert.Equal(t, 0, w.ListenerCount())

	w.PostMessage(Message{Data: []byte("two")})
	flush(t, w)
	assert.Equal(t, []string{"one"}, c.got())
}

func TestPanickingListenerDoesNotStopDelivery(t *testing.T) {
	w := NewWindow(nil)
	defer w.Close()

	var c collector
	w.AddListener(func(Message) { panic("listener bug") })
	w.AddListener(c.listen)

	w.PostMessage(Message{Data: []byte("a")})
	w.PostMessage(Message{Data: []byte("b")})
	flush(t, w)

	assert.Equal(t, []string{"a", "b"}, c.got())
}

func TestPostAfterClose(t *testing.T) {
	w := NewWindow(nil)
	w.Close()
	w.Close()

	assert.False(t, w.PostMessage(Message{Data: []byte("late")}))
	assert.NoError(t, w.Flush(context.Background()))
}

func TestReceivedIsStamped(t *testing.T) {
	w := NewWindow(nil)
	defer w.Close()

	got := make(chan Message, 1)
	w.AddListener(func(m Message) { got <- m })
	w.PostMessage(Message{Data: []byte("x"), Generation: 3})

	select {
	case m := <-got:
		assert.False(t, m.Received.IsZero())
		assert.Equal(t, uint64(3), m.Generation)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}
