package playground

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/bridge"
	"github.com/GriffinCanCode/livecode/internal/console"
	"github.com/GriffinCanCode/livecode/internal/domain/secrets"
	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/host"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livecode/internal/preview"
	"github.com/GriffinCanCode/livecode/internal/sandbox"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
	"github.com/GriffinCanCode/livecode/internal/storage/kv"
	"github.com/GriffinCanCode/livecode/internal/storage/projects"
)

var (
	ErrClosed    = errors.New("session closed")
	ErrWrongMode = errors.New("operation not available in this execution mode")
	ErrNoFrame   = errors.New("preview has not been rendered")
)

// Mode selects where the preview executes.
type Mode string

const (
	// ModeHeadless runs the preview in an in-process frame.
	ModeHeadless Mode = "headless"
	// ModeBrowser leaves execution to the client's sandboxed iframe, which
	// relays console messages back.
	ModeBrowser Mode = "browser"
)

// ParseMode accepts the two execution modes; empty means headless.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeHeadless:
		return ModeHeadless, nil
	case ModeBrowser:
		return ModeBrowser, nil
	}
	return "", fmt.Errorf("unknown sandbox mode %q", s)
}

// AnonymousScope is the autosave scope for unauthenticated users.
const AnonymousScope = "anonymous"

// Options configures a session.
type Options struct {
	Mode Mode
	// User owns the session's saved projects; empty means signed out.
	User string
	// Scope namespaces autosave keys. Defaults to User, then AnonymousScope.
	Scope string
	// Seed replaces the autosaved workspace when non-empty.
	Seed []workspace.File

	Aggregate  preview.Options
	Synth      preview.SynthOptions
	Sandbox    sandbox.Config
	MaxEntries int

	KV       kv.Store
	Projects projects.Store
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeHeadless
	}
	if o.Scope == "" {
		o.Scope = o.User
	}
	if o.Scope == "" {
		o.Scope = AnonymousScope
	}
	if o.KV == nil {
		o.KV = kv.NewMemoryStore()
	}
	if o.Projects == nil {
		o.Projects = projects.Disabled{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Session is one user's playground: the workspace being edited, its live
// preview and the console the preview writes to. Every workspace change
// re-synthesizes the document and reloads the preview before returning.
type Session struct {
	id      id.SessionID
	opts    Options
	logger  *zap.Logger
	created time.Time

	window   *host.Window
	console  *console.Store
	bridge   *bridge.Bridge
	renderer *sandbox.Renderer // nil in browser mode
	vault    *secrets.Vault
	notices  *notifier

	mu         sync.Mutex
	ws         *workspace.Workspace
	synth      *preview.Synthesizer
	doc        preview.Document
	generation uint64 // browser mode document generation
	closed     bool
}

// Open creates a session, restoring the autosaved workspace for the scope
// unless a seed is given, and renders the first preview.
func Open(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}

	sessionID := id.NewSessionID()
	logger := opts.Logger.With(zap.String("session", sessionID.String()))

	s := &Session{
		id:      sessionID,
		opts:    opts,
		logger:  logger,
		created: time.Now(),
		window:  host.NewWindow(logger),
		console: console.NewStore(opts.MaxEntries),
		vault:   secrets.NewVault(),
		notices: newNotifier(),
		synth:   preview.NewSynthesizer(opts.Synth),
	}
	s.bridge = bridge.New(s.console, bridge.WithLogger(logger), bridge.WithMetrics(opts.Metrics))
	s.bridge.Mount(s.window)

	if len(opts.Seed) > 0 {
		ws, err := workspace.New(opts.Seed, "")
		if err != nil {
			s.window.Close()
			return nil, fmt.Errorf("seed workspace: %w", err)
		}
		s.ws = ws
	} else {
		s.ws = s.restore(ctx)
	}

	if opts.Mode == ModeHeadless {
		s.renderer = sandbox.NewRenderer(s.window, opts.Sandbox, logger, opts.Metrics)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked()
	if len(opts.Seed) > 0 {
		_ = s.persistLocked(ctx)
	}
	opts.Metrics.SessionOpened()
	return s, nil
}

func (s *Session) ID() id.SessionID        { return s.id }
func (s *Session) Mode() Mode              { return s.opts.Mode }
func (s *Session) User() string            { return s.opts.User }
func (s *Session) Scope() string           { return s.opts.Scope }
func (s *Session) Created() time.Time      { return s.created }
func (s *Session) Console() *console.Store { return s.console }

// Files returns the workspace files in order.
func (s *Session) Files() []workspace.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.Files()
}

// Active returns the file being edited.
func (s *Session) Active() workspace.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.Active()
}

// Select changes the active file. The preview is unaffected.
func (s *Session) Select(ctx context.Context, fileID id.FileID) error {
	return s.mutate(ctx, false, func(ws *workspace.Workspace) error {
		return ws.Select(fileID)
	})
}

// Edit replaces a file's content.
func (s *Session) Edit(ctx context.Context, fileID id.FileID, content string) error {
	return s.mutate(ctx, true, func(ws *workspace.Workspace) error {
		return ws.Update(fileID, content)
	})
}

// AddFile creates an empty file of kind k and selects it.
func (s *Session) AddFile(ctx context.Context, k workspace.Kind) (workspace.File, error) {
	var f workspace.File
	err := s.mutate(ctx, true, func(ws *workspace.Workspace) error {
		var err error
		f, err = ws.Add(k)
		return err
	})
	return f, err
}

func (s *Session) RenameFile(ctx context.Context, fileID id.FileID, name string) error {
	return s.mutate(ctx, true, func(ws *workspace.Workspace) error {
		return ws.Rename(fileID, name)
	})
}

// DeleteFile removes a file. The last markup, style or script file cannot
// be deleted.
func (s *Session) DeleteFile(ctx context.Context, fileID id.FileID) error {
	return s.mutate(ctx, true, func(ws *workspace.Workspace) error {
		return ws.Delete(fileID)
	})
}

// Import adds an uploaded file, classified by extension.
func (s *Session) Import(ctx context.Context, name string, data []byte) (workspace.File, error) {
	var f workspace.File
	err := s.mutate(ctx, true, func(ws *workspace.Workspace) error {
		var err error
		f, err = ws.Import(name, data)
		return err
	})
	if err == nil {
		s.notify(NoticeSuccess, "Imported "+f.Name)
	}
	return f, err
}

// SyncFile sets the content of the file named name, adding it when no file
// has that name. The active selection is kept.
func (s *Session) SyncFile(ctx context.Context, name, content string) error {
	return s.mutate(ctx, true, func(ws *workspace.Workspace) error {
		for _, f := range ws.Files() {
			if f.Name == name {
				return ws.Update(f.ID, content)
			}
		}
		active := ws.ActiveID()
		if _, err := ws.Insert(name, workspace.KindForName(name), content); err != nil {
			return err
		}
		return ws.Select(active)
	})
}

// Reset restores the starter project and clears the console. The running
// preview is torn down and its queued output drained first, so the console
// only shows what the fresh preview logs.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.renderer != nil {
		s.renderer.Unload()
	}
	if err := s.window.Flush(ctx); err != nil {
		return err
	}
	s.console.Clear()
	s.ws.Reset()
	s.refreshLocked()
	_ = s.persistLocked(ctx)
	s.notify(NoticeSuccess, "Code reset to default")
	return nil
}

// ClearConsole empties the console log.
func (s *Session) ClearConsole() {
	s.console.Clear()
	s.notify(NoticeSuccess, "Console cleared")
}

// Logs returns the console records in arrival order.
func (s *Session) Logs() []console.Record {
	return s.console.Records()
}

// Save writes the workspace to the autosave store immediately.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.notify(NoticeSuccess, "Code auto-saved!")
	return nil
}

// Export returns the standalone project document.
func (s *Session) Export() []byte {
	s.mu.Lock()
	src := preview.Aggregate(s.ws.Files(), preview.Options{})
	s.mu.Unlock()

	s.notify(NoticeSuccess, "Project downloaded!")
	return preview.Export(src)
}

// Document returns the current preview document.
func (s *Session) Document() preview.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Generation identifies the current preview revision. Console records and
// relayed messages carry it.
func (s *Session) Generation() uint64 {
	if s.renderer != nil {
		return s.renderer.Generation()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Reload re-runs the current document from scratch.
func (s *Session) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.renderer == nil {
		s.generation++
		return nil
	}
	return s.renderer.Reload()
}

// Relay posts a message received from a client-side preview to the host
// window, where the bridge turns it into a console record.
func (s *Session) Relay(data []byte) error {
	if s.opts.Mode != ModeBrowser {
		return ErrWrongMode
	}

	s.mu.Lock()
	closed, generation := s.closed, s.generation
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	s.window.PostMessage(host.Message{
		Data:       data,
		Origin:     sandbox.Origin,
		Generation: generation,
	})
	return nil
}

// Dispatch fires a user event at the first element matching selector in
// the headless preview.
func (s *Session) Dispatch(ctx context.Context, selector, typ string) error {
	f, err := s.frame()
	if err != nil {
		return err
	}
	if err := f.Wait(ctx); err != nil {
		return err
	}
	return f.Dispatch(ctx, selector, typ)
}

// Snapshot serializes the headless preview's live DOM.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	f, err := s.frame()
	if err != nil {
		return "", err
	}
	if err := f.Wait(ctx); err != nil {
		return "", err
	}
	return f.Snapshot(ctx)
}

// Settle waits until the current preview has loaded and every message it
// posted so far has reached the console.
func (s *Session) Settle(ctx context.Context) error {
	if s.renderer != nil {
		if f := s.renderer.Current(); f != nil {
			if err := f.Wait(ctx); err != nil && !errors.Is(err, sandbox.ErrDestroyed) {
				return err
			}
			if err := f.Sync(ctx); err != nil && !errors.Is(err, sandbox.ErrDestroyed) {
				return err
			}
		}
	}
	return s.window.Flush(ctx)
}

func (s *Session) frame() (*sandbox.Frame, error) {
	if s.renderer == nil {
		return nil, ErrWrongMode
	}
	f := s.renderer.Current()
	if f == nil {
		return nil, ErrNoFrame
	}
	return f, nil
}

// Notices returns the most recent notifications.
func (s *Session) Notices() []Notice {
	return s.notices.snapshot()
}

// SubscribeNotices streams notifications until the returned cancel is
// called or the session closes.
func (s *Session) SubscribeNotices(buffer int) (<-chan Notice, func()) {
	return s.notices.subscribe(buffer)
}

// Close unmounts the bridge, destroys the preview and stops delivery.
// Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.bridge.Unmount()
	if s.renderer != nil {
		s.renderer.Close()
	}
	s.window.Close()
	s.notices.closeAll()
	s.opts.Metrics.SessionClosed()
	s.logger.Debug("Session closed")
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mutate applies fn to the workspace. Rejected changes leave the workspace
// untouched and raise an error notice. When render is set the preview is
// rebuilt; the workspace is autosaved either way.
func (s *Session) mutate(ctx context.Context, render bool, fn func(*workspace.Workspace) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := fn(s.ws); err != nil {
		s.notify(NoticeError, noticeText(err))
		return err
	}
	if render {
		s.refreshLocked()
	}
	_ = s.persistLocked(ctx)
	return nil
}

// refreshLocked re-aggregates and re-synthesizes the document and hands it
// to the renderer. Unchanged sources keep the current preview.
func (s *Session) refreshLocked() {
	src := preview.Aggregate(s.ws.Files(), s.opts.Aggregate)
	doc, changed := s.synth.Build(src)
	s.doc = doc

	if s.renderer == nil {
		if changed {
			s.generation++
		}
		return
	}
	if _, err := s.renderer.Load(doc); err != nil {
		s.logger.Error("Failed to render preview", zap.Error(err))
	}
}

func (s *Session) notify(level NoticeLevel, msg string) {
	s.notices.publish(level, msg)
}

// noticeText renders an error for the user.
func noticeText(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Something went wrong"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
