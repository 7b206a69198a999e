package sandbox

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/host"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livecode/internal/preview"
)

// ErrClosed is returned by a closed renderer.
var ErrClosed = errors.New("renderer closed")

// Renderer owns the live frame for one host window. Loading a document
// whose fingerprint differs from the last one destroys the current frame
// and creates a fresh one.
type Renderer struct {
	target  *host.Window
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu         sync.Mutex
	current    *Frame
	loadedFP   string // fingerprint of current
	wantedFP   string // fingerprint of the latest requested document
	pending    *preview.Document
	timer      *time.Timer
	generation uint64
	lastErr    error
	closed     bool
}

// NewRenderer creates a renderer that posts frame messages to target.
func NewRenderer(target *host.Window, cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		target:  target,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// Load requests that doc be rendered. It reports whether a reload was
// started or scheduled; identical documents are a no-op. Without a
// debounce the swap happens before Load returns.
func (r *Renderer) Load(doc preview.Document) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, ErrClosed
	}
	if doc.Fingerprint == r.wantedFP && (r.current != nil || r.pending != nil) {
		return false, nil
	}
	r.wantedFP = doc.Fingerprint

	if r.cfg.ReloadDebounce <= 0 {
		return true, r.swapLocked(doc)
	}

	r.pending = &doc
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.cfg.ReloadDebounce, r.flush)
	return true, nil
}

// Reload recreates the frame from the current document.
func (r *Renderer) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	doc, ok := r.latestLocked()
	if !ok {
		return nil
	}
	r.pending = nil
	return r.swapLocked(doc)
}

func (r *Renderer) latestLocked() (preview.Document, bool) {
	if r.pending != nil {
		return *r.pending, true
	}
	if r.current != nil {
		return r.current.doc, true
	}
	return preview.Document{}, false
}

// flush loads the pending document once the debounce window has passed.
func (r *Renderer) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.pending == nil {
		return
	}
	doc := *r.pending
	r.pending = nil
	if doc.Fingerprint == r.loadedFP && r.current != nil {
		return
	}
	if err := r.swapLocked(doc); err != nil {
		r.logger.Error("Failed to load frame", zap.Error(err))
	}
}

func (r *Renderer) swapLocked(doc preview.Document) error {
	if r.current != nil {
		r.current.Destroy()
		r.current = nil
	}
	r.generation++
	frame, err := NewFrame(doc, r.target, r.generation, r.cfg, WithLogger(r.logger), WithMetrics(r.metrics))
	r.lastErr = err
	if err != nil {
		return err
	}
	r.current = frame
	r.loadedFP = doc.Fingerprint
	r.metrics.FrameReloaded()
	r.logger.Debug("Frame loaded", zap.Uint64("generation", r.generation))
	return nil
}

// Unload destroys the current frame and drops any pending document. The
// next Load always starts a fresh frame.
func (r *Renderer) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.pending = nil
	r.wantedFP, r.loadedFP = "", ""
	if r.current != nil {
		r.current.Destroy()
		r.current = nil
	}
}

// Current returns the live frame, or nil before the first load.
func (r *Renderer) Current() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Generation returns the generation of the most recent frame.
func (r *Renderer) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Err returns the error from the most recent frame creation.
func (r *Renderer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Close destroys the current frame and cancels any pending load.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.pending = nil
	if r.current != nil {
		r.current.Destroy()
		r.current = nil
	}
}
