// Package host models the receiving side of the isolation boundary: a
// window whose message queue frames post into.
//
// PostMessage never blocks the sender. A single goroutine delivers queued
// messages to listeners in arrival order, so a listener never runs
// concurrently with itself.
package host

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message is one cross-boundary message as received by the host.
type Message struct {
	Data       []byte
	Origin     string
	Generation uint64
	Received   time.Time
}

// Listener handles a delivered message.
type Listener func(Message)

type item struct {
	msg     Message
	barrier chan struct{}
}

type registration struct {
	fn Listener
}

// Window is a host message queue with registered listeners.
type Window struct {
	logger *zap.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []item
	listeners []*registration
	closed    bool
	done      chan struct{}
}

// NewWindow starts the delivery goroutine. Call Close to stop it.
func NewWindow(logger *zap.Logger) *Window {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Window{logger: logger, done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.deliver()
	return w
}

// PostMessage enqueues msg for delivery. It reports false once the window
// is closed.
func (w *Window) PostMessage(msg Message) bool {
	if msg.Received.IsZero() {
		msg.Received = time.Now()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	w.queue = append(w.queue, item{msg: msg})
	w.cond.Signal()
	return true
}

// AddListener registers fn and returns a function that removes it. The
// remove function is safe to call more than once.
func (w *Window) AddListener(fn Listener) (remove func()) {
	reg := &registration{fn: fn}

	w.mu.Lock()
	w.listeners = append(w.listeners, reg)
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.listeners = slices.DeleteFunc(w.listeners, func(r *registration) bool { return r == reg })
		})
	}
}

// ListenerCount returns the number of registered listeners.
func (w *Window) ListenerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// Flush waits until every message posted before the call was delivered.
func (w *Window) Flush(ctx context.Context) error {
	barrier := make(chan struct{})

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.queue = append(w.queue, item{barrier: barrier})
	w.cond.Signal()
	w.mu.Unlock()

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops delivery. Undelivered messages are discarded.
func (w *Window) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()

	<-w.done
}

func (w *Window) deliver() {
	defer close(w.done)

	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if w.closed {
			for _, it := range w.queue {
				if it.barrier != nil {
					close(it.barrier)
				}
			}
			w.queue = nil
			w.mu.Unlock()
			return
		}
		it := w.queue[0]
		w.queue[0] = item{}
		w.queue = w.queue[1:]
		listeners := slices.Clone(w.listeners)
		w.mu.Unlock()

		if it.barrier != nil {
			close(it.barrier)
			continue
		}
		for _, reg := range listeners {
			w.dispatch(reg, it.msg)
		}
	}
}

func (w *Window) dispatch(reg *registration, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Message listener panicked", zap.Any("panic", r))
		}
	}()
	reg.fn(msg)
}
