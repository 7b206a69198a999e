package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/host"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livecode/internal/preview"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

var (
	// ErrDestroyed is returned by operations on a destroyed frame.
	ErrDestroyed = errors.New("frame destroyed")
	// ErrNoElement is returned when a selector matches nothing.
	ErrNoElement = errors.New("no element matches selector")
	// ErrInvalidSelector is returned for selectors that do not parse.
	ErrInvalidSelector = errors.New("invalid selector")

	errBudgetExceeded = errors.New("script execution budget exceeded")
	errFrameDestroyed = errors.New("frame destroyed")
)

// maxCheckpointRounds bounds rejection dispatch when handlers keep
// rejecting new promises.
const maxCheckpointRounds = 16

// Frame is one isolated execution context for a single document revision.
// Every vm access happens on the frame's event loop goroutine.
type Frame struct {
	id         id.FrameID
	doc        preview.Document
	generation uint64
	cfg        Config
	target     *host.Window
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	started    time.Time

	loop *eventloop.EventLoop
	vm   *goja.Runtime

	loaded      chan struct{}
	done        chan struct{}
	destroyed   atomic.Bool
	destroyOnce sync.Once

	timerMu   sync.Mutex
	timers    map[int64]any
	nextTimer int64

	// loop-only state
	global         *goja.Object
	window         *eventTarget
	document       *domDocument
	builtins       builtins
	jsonParse      goja.Callable
	promiseResolve goja.Callable
	promiseCtor    goja.Value
	rejections     []*goja.Promise
	depth          int
	reporting      bool
}

// FrameOption configures a Frame.
type FrameOption func(*Frame)

// WithLogger sets the logger receiving the frame's native console.
func WithLogger(logger *zap.Logger) FrameOption {
	return func(f *Frame) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics records frame errors and reloads.
func WithMetrics(m *monitoring.Metrics) FrameOption {
	return func(f *Frame) { f.metrics = m }
}

// NewFrame creates a frame for doc and schedules its scripts. Messages the
// document posts to its parent are delivered to target tagged with
// generation. NewFrame returns once the environment is installed; scripts
// run asynchronously, see Loaded.
func NewFrame(doc preview.Document, target *host.Window, generation uint64, cfg Config, opts ...FrameOption) (*Frame, error) {
	f := &Frame{
		id:         id.NewFrameID(),
		doc:        doc,
		generation: generation,
		cfg:        cfg.withDefaults(),
		target:     target,
		logger:     zap.NewNop(),
		started:    time.Now(),
		loaded:     make(chan struct{}),
		done:       make(chan struct{}),
		timers:     make(map[int64]any),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(zap.String("frame", string(f.id)), zap.Uint64("generation", generation))

	f.loop = eventloop.NewEventLoop(eventloop.EnableConsole(false))
	f.loop.Start()

	installed := make(chan error, 1)
	f.loop.RunOnLoop(func(vm *goja.Runtime) {
		f.vm = vm
		installed <- f.install(vm, doc.HTML)
	})
	if err := <-installed; err != nil {
		f.loop.Stop()
		return nil, fmt.Errorf("failed to install frame environment: %w", err)
	}

	for _, s := range extractScripts(doc.HTML) {
		f.loop.RunOnLoop(func(*goja.Runtime) { f.runScript(s) })
	}
	f.loop.RunOnLoop(func(*goja.Runtime) {
		f.task(f.fireLoadEvents)
		if !f.destroyed.Load() {
			close(f.loaded)
		}
	})

	f.logger.Debug("Frame created", zap.String("fingerprint", doc.Fingerprint))
	return f, nil
}

// Document returns the document the frame was created from.
func (f *Frame) Document() preview.Document { return f.doc }

// ID returns the frame identifier.
func (f *Frame) ID() id.FrameID { return f.id }

// Generation returns the generation messages from this frame carry.
func (f *Frame) Generation() uint64 { return f.generation }

// Loaded is closed after every document script ran and the load events
// were dispatched.
func (f *Frame) Loaded() <-chan struct{} { return f.loaded }

// Done is closed when the frame is destroyed.
func (f *Frame) Done() <-chan struct{} { return f.done }

// Wait blocks until the frame has loaded, was destroyed or ctx ends. A
// destroyed frame always reports ErrDestroyed.
func (f *Frame) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return ErrDestroyed
	default:
	}
	select {
	case <-f.loaded:
		return nil
	case <-f.done:
		return ErrDestroyed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroyed reports whether Destroy was called.
func (f *Frame) Destroyed() bool { return f.destroyed.Load() }

// Destroy interrupts running script, cancels pending timers and stops the
// loop. Safe to call more than once and from any goroutine except the
// frame's own loop.
func (f *Frame) Destroy() {
	f.destroyOnce.Do(func() {
		f.destroyed.Store(true)
		f.vm.Interrupt(errFrameDestroyed)

		f.timerMu.Lock()
		timers := f.timers
		f.timers = nil
		f.timerMu.Unlock()
		for _, t := range timers {
			f.cancelTimer(t)
		}

		f.loop.Stop()
		close(f.done)
		f.logger.Debug("Frame destroyed")
	})
}

// run schedules fn on the loop and waits for it.
func (f *Frame) run(ctx context.Context, fn func() error) error {
	if f.destroyed.Load() {
		return ErrDestroyed
	}
	result := make(chan error, 1)
	if !f.loop.RunOnLoop(func(*goja.Runtime) { result <- fn() }) {
		return ErrDestroyed
	}
	select {
	case err := <-result:
		return err
	case <-f.done:
		return ErrDestroyed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Frame) runScript(s script) {
	if s.Src != "" {
		f.logger.Warn("Blocked external script", zap.String("src", s.Src))
		return
	}
	f.task(func() error {
		prg, err := compile(s)
		if err != nil {
			return err
		}
		_, err = f.vm.RunProgram(prg)
		return err
	})
}

func compile(s script) (*goja.Program, error) {
	src := s.padded()
	prg, err := parser.ParseFile(nil, SourceName, src, 0, parser.WithDisableSourceMaps)
	if err != nil {
		return nil, err
	}
	if hoisted, ok := hoistTryFunctions(src, prg); ok {
		if prg, err = parser.ParseFile(nil, SourceName, hoisted, 0, parser.WithDisableSourceMaps); err != nil {
			return nil, err
		}
	}
	return goja.CompileAST(prg, false)
}

// task runs one macrotask followed by its microtask checkpoint.
func (f *Frame) task(run func() error) {
	if f.destroyed.Load() {
		return
	}
	f.guard(run)
	f.checkpoint()
}

// invoke calls fn, reporting anything it throws instead of returning it.
func (f *Frame) invoke(fn goja.Callable, this goja.Value, args ...goja.Value) goja.Value {
	var res goja.Value
	f.guard(func() error {
		var err error
		res, err = fn(this, args...)
		return err
	})
	if res == nil {
		return goja.Undefined()
	}
	return res
}

// guard runs fn under the execution budget when it is the outermost call
// and reports its error.
func (f *Frame) guard(fn func() error) {
	if f.destroyed.Load() {
		return
	}
	var disarm func()
	if f.depth == 0 {
		disarm = f.arm()
	}
	f.depth++
	err := fn()
	f.depth--
	if disarm != nil {
		disarm()
	}
	if err != nil {
		f.report(err)
	}
}

// arm starts the execution budget timer.
func (f *Frame) arm() (disarm func()) {
	if f.cfg.Timeout <= 0 {
		return func() {}
	}
	var (
		mu     sync.Mutex
		active = true
		fired  bool
	)
	t := time.AfterFunc(f.cfg.Timeout, func() {
		mu.Lock()
		defer mu.Unlock()
		if active {
			fired = true
			f.vm.Interrupt(errBudgetExceeded)
		}
	})
	return func() {
		t.Stop()
		mu.Lock()
		defer mu.Unlock()
		active = false
		if fired && !f.destroyed.Load() {
			f.vm.ClearInterrupt()
		}
	}
}

// errorInfo is the payload of an ErrorEvent.
type errorInfo struct {
	kind    string
	message string
	pos     file.Position
	value   goja.Value
}

// report turns a script failure into an ErrorEvent on the window.
func (f *Frame) report(err error) {
	var (
		interrupted *goja.InterruptedError
		exception   *goja.Exception
		syntax      *goja.CompilerSyntaxError
		parseErrors parser.ErrorList
		parseError  *parser.Error
	)
	switch {
	case errors.As(err, &interrupted):
		if interrupted.Value() != errBudgetExceeded || f.depth > 0 || f.destroyed.Load() {
			return
		}
		f.logger.Warn("Script interrupted", zap.Duration("budget", f.cfg.Timeout))
		f.dispatchError(errorInfo{
			kind:    "timeout",
			message: "Uncaught Error: " + errBudgetExceeded.Error(),
			pos:     file.Position{Filename: SourceName},
		})
	case errors.As(err, &exception):
		value := exception.Value()
		f.dispatchError(errorInfo{
			kind:    "runtime",
			message: "Uncaught " + f.stringOf(value),
			pos:     throwSite(exception),
			value:   value,
		})
	case errors.As(err, &parseErrors) && len(parseErrors) > 0:
		f.dispatchSyntaxError(parseErrors[0].Message, parseErrors[0].Position)
	case errors.As(err, &parseError):
		f.dispatchSyntaxError(parseError.Message, parseError.Position)
	case errors.As(err, &syntax):
		pos := file.Position{Filename: SourceName}
		if syntax.File != nil {
			pos = syntax.File.Position(syntax.Offset)
		}
		f.dispatchSyntaxError(syntax.Message, pos)
	default:
		f.dispatchError(errorInfo{
			kind:    "runtime",
			message: "Uncaught Error: " + err.Error(),
			pos:     file.Position{Filename: SourceName},
		})
	}
}

func (f *Frame) dispatchSyntaxError(message string, pos file.Position) {
	var value goja.Value
	if ctor, ok := goja.AssertConstructor(f.global.Get("SyntaxError")); ok {
		if obj, err := ctor(nil, f.vm.ToValue(message)); err == nil {
			value = obj
		}
	}
	if pos.Filename == "" {
		pos.Filename = SourceName
	}
	f.dispatchError(errorInfo{kind: "syntax", message: "Uncaught SyntaxError: " + message, pos: pos, value: value})
}

// throwSite returns the innermost script position of an exception.
func throwSite(ex *goja.Exception) file.Position {
	for _, frame := range ex.Stack() {
		if pos := frame.Position(); pos.Line > 0 {
			if pos.Filename == "" {
				pos.Filename = frame.SrcName()
			}
			return pos
		}
	}
	return file.Position{Filename: SourceName}
}

func (f *Frame) dispatchError(info errorInfo) {
	f.metrics.FrameError(info.kind)
	if f.reporting {
		f.logger.Warn("Error thrown while reporting an error", zap.String("message", info.message))
		return
	}
	f.reporting = true
	defer func() { f.reporting = false }()

	value := info.value
	if value == nil {
		value = goja.Undefined()
	}
	st := f.newEvent("error", f.global, false, true)
	st.skipHandler = true
	_ = st.obj.Set("message", info.message)
	_ = st.obj.Set("filename", info.pos.Filename)
	_ = st.obj.Set("lineno", info.pos.Line)
	_ = st.obj.Set("colno", info.pos.Column)
	_ = st.obj.Set("error", value)
	f.fire(f.window, f.global, st)

	if handler, ok := goja.AssertFunction(f.global.Get("onerror")); ok {
		res := f.invoke(handler, f.global,
			f.vm.ToValue(info.message),
			f.vm.ToValue(info.pos.Filename),
			f.vm.ToValue(info.pos.Line),
			f.vm.ToValue(info.pos.Column),
			value,
		)
		if res.ToBoolean() {
			st.prevented = true
		}
	}

	if !st.prevented {
		f.logger.Warn(info.message, zap.String("source",
			fmt.Sprintf("%s:%d:%d", info.pos.Filename, info.pos.Line, info.pos.Column)))
	}
}

func (f *Frame) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	switch op {
	case goja.PromiseRejectionReject:
		f.rejections = append(f.rejections, p)
	case goja.PromiseRejectionHandle:
		for i, pending := range f.rejections {
			if pending == p {
				f.rejections = append(f.rejections[:i], f.rejections[i+1:]...)
				break
			}
		}
	}
}

// checkpoint dispatches unhandledrejection for promises rejected during
// the task that still have no handler.
func (f *Frame) checkpoint() {
	for round := 0; round < maxCheckpointRounds && len(f.rejections) > 0; round++ {
		pending := f.rejections
		f.rejections = nil
		for _, p := range pending {
			if f.destroyed.Load() {
				return
			}
			f.unhandledRejection(p)
		}
	}
	f.rejections = nil
}

func (f *Frame) unhandledRejection(p *goja.Promise) {
	f.metrics.FrameError("rejection")
	reason := p.Result()
	if reason == nil {
		reason = goja.Undefined()
	}
	st := f.newEvent("unhandledrejection", f.global, false, true)
	_ = st.obj.Set("reason", reason)
	_ = st.obj.Set("promise", f.vm.ToValue(p))
	f.fire(f.window, f.global, st)
	if !st.prevented {
		f.logger.Warn("Uncaught (in promise) " + f.stringOf(reason))
	}
}

// stringOf is String(v) that never throws.
func (f *Frame) stringOf(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if sym, ok := v.(*goja.Symbol); ok {
		return f.builtins.symbol(sym)
	}
	var s string
	if ex := f.vm.Try(func() { s = v.String() }); ex != nil {
		return "[object Object]"
	}
	return s
}

func (f *Frame) fireLoadEvents() error {
	f.document.readyState = "interactive"
	f.document.dispatch(nil, f.newEvent("DOMContentLoaded", f.document.obj, true, false))
	f.document.readyState = "complete"
	f.fire(f.window, f.global, f.newEvent("load", f.global, false, false))
	return nil
}

// Dispatch fires an event of type typ at the first element matching
// selector, as a user interaction would. A click also runs the element's
// activation behavior. Listeners run in a later task.
func (f *Frame) Dispatch(ctx context.Context, selector, typ string) error {
	return f.run(ctx, func() error {
		m, err := cascadia.Compile(selector)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidSelector, selector)
		}
		found := selection(f.document.root()).FindMatcher(m)
		if found.Length() == 0 {
			return fmt.Errorf("%w: %s", ErrNoElement, selector)
		}
		n := found.Get(0)
		f.document.wrap(n)
		w := f.document.nodes[n]
		f.loop.RunOnLoop(func(*goja.Runtime) {
			f.task(func() error {
				if typ == "click" {
					f.document.click(w)
					return nil
				}
				f.document.dispatch(n, f.newEvent(typ, w.obj, true, true))
				return nil
			})
		})
		return nil
	})
}

// Snapshot serializes the frame's current document tree.
func (f *Frame) Snapshot(ctx context.Context) (string, error) {
	var out string
	err := f.run(ctx, func() error {
		var err error
		out, err = f.document.doc.Html()
		return err
	})
	return out, err
}

// Sync waits until every task queued before the call has run.
func (f *Frame) Sync(ctx context.Context) error {
	return f.run(ctx, func() error { return nil })
}
