package playground

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrForbidden       = errors.New("session belongs to another user")
)

// Manager tracks open sessions. Every session is created from the same
// template options with the caller's user and scope filled in.
type Manager struct {
	template Options
	logger   *zap.Logger

	sessions sync.Map // id.SessionID -> *Session
	mu       sync.Mutex
	closed   bool
}

// NewManager creates a manager whose sessions start from template.
func NewManager(template Options) *Manager {
	template = template.withDefaults()
	return &Manager{template: template, logger: template.Logger}
}

// CreateOptions personalizes a new session.
type CreateOptions struct {
	User string
	Mode Mode
	Seed []workspace.File
}

// Create opens a session for the given user. An empty user is anonymous
// and shares the anonymous autosave scope.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	m.mu.Lock()
	closed, o := m.closed, m.template
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	o.User = opts.User
	o.Scope = ""
	if opts.Mode != "" {
		o.Mode = opts.Mode
	}
	if len(opts.Seed) > 0 {
		o.Seed = opts.Seed
	}

	s, err := Open(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	m.sessions.Store(s.ID(), s)
	m.logger.Info("Session opened",
		zap.String("session", s.ID().String()),
		zap.String("scope", s.Scope()),
		zap.String("mode", string(s.Mode())))
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(sessionID id.SessionID) (*Session, bool) {
	v, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Lookup returns the session if user may use it.
func (m *Manager) Lookup(sessionID id.SessionID, user string) (*Session, error) {
	s, ok := m.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.User() != user {
		return nil, ErrForbidden
	}
	return s, nil
}

// Close closes and forgets a session. It reports whether it existed.
func (m *Manager) Close(sessionID id.SessionID) bool {
	v, ok := m.sessions.LoadAndDelete(sessionID)
	if !ok {
		return false
	}
	v.(*Session).Close()
	m.logger.Info("Session closed", zap.String("session", sessionID.String()))
	return true
}

// List returns open sessions, oldest first.
func (m *Manager) List() []*Session {
	var out []*Session
	m.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})
	slices.SortFunc(out, func(a, b *Session) int {
		return a.Created().Compare(b.Created())
	})
	return out
}

func (m *Manager) Len() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// SyncFile applies a seed file change to every open session and to the
// seed of sessions created later.
func (m *Manager) SyncFile(ctx context.Context, name, content string) error {
	m.mu.Lock()
	seed := slices.Clone(m.template.Seed)
	i := slices.IndexFunc(seed, func(f workspace.File) bool { return f.Name == name })
	if i >= 0 {
		seed[i].Content = content
	} else if len(seed) > 0 {
		seed = append(seed, workspace.File{Name: name, Kind: workspace.KindForName(name), Content: content})
	}
	m.template.Seed = seed
	m.mu.Unlock()

	var errs []error
	for _, s := range m.List() {
		if err := s.SyncFile(ctx, name, content); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown closes every session and rejects new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.sessions.Range(func(k, _ any) bool {
		m.Close(k.(id.SessionID))
		return true
	})
}
