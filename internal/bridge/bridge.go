// Package bridge turns console wire messages arriving at a host window into
// console records.
package bridge

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/console"
	"github.com/GriffinCanCode/livecode/internal/host"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
)

// Bridge is the host-side listener feeding a console store.
type Bridge struct {
	store   *console.Store
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	window *host.Window
	remove func()
}

// Option configures a Bridge.
type Option func(*Bridge)

func WithMetrics(m *monitoring.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

func New(store *console.Store, opts ...Option) *Bridge {
	b := &Bridge{store: store, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mount installs the bridge's listener on w. Mounting again on the same
// window is a no-op; mounting on another window moves the listener.
func (b *Bridge) Mount(w *host.Window) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.window == w && b.remove != nil {
		return
	}
	if b.remove != nil {
		b.remove()
	}
	b.window = w
	b.remove = w.AddListener(func(msg host.Message) { b.Handle(msg) })
}

// Unmount removes the listener. Safe to call when not mounted.
func (b *Bridge) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.remove != nil {
		b.remove()
	}
	b.window, b.remove = nil, nil
}

func (b *Bridge) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remove != nil
}

// Handle validates one message and appends the resulting record. It reports
// whether the message was a console event.
func (b *Bridge) Handle(msg host.Message) bool {
	ev, ok := Decode(msg.Data)
	if !ok {
		b.metrics.Dropped()
		b.logger.Debug("Dropped host message", zap.Int("bytes", len(msg.Data)), zap.String("origin", msg.Origin))
		return false
	}

	level, _ := console.ParseLevel(ev.Level)
	b.store.Append(console.Record{
		ID:         uuid.NewString(),
		Level:      level,
		Message:    Flatten(ev.Args),
		Timestamp:  b.now(),
		Generation: msg.Generation,
	})
	b.metrics.ConsoleRecord(ev.Level)
	return true
}
