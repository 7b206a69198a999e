// Package projects stores named snapshots of a workspace per user.
//
// A saved project is a copy of the workspace files under a name. Projects
// belong to a user; every operation requires one and lists come back most
// recently updated first. Two backends exist: a local SQLite database and a
// PostgREST-style remote service.
package projects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

var (
	ErrNameRequired    = errors.New("please enter a project name")
	ErrUnauthenticated = errors.New("please sign in to manage projects")
	ErrNotFound        = errors.New("project not found")
	ErrUnavailable     = errors.New("project storage is not configured")
)

// Project is a saved workspace snapshot.
type Project struct {
	ID        id.ProjectID     `json:"id"`
	UserID    string           `json:"user_id"`
	Name      string           `json:"name"`
	Files     []workspace.File `json:"files"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store persists projects.
type Store interface {
	// List returns the user's projects ordered by UpdatedAt, newest first.
	List(ctx context.Context, user string) ([]Project, error)
	// Save stores files as a new project.
	Save(ctx context.Context, user, name string, files []workspace.File) (Project, error)
	Load(ctx context.Context, user string, projectID id.ProjectID) ([]workspace.File, error)
	Delete(ctx context.Context, user string, projectID id.ProjectID) error
}

// newProject validates the inputs shared by every backend.
func newProject(user, name string, files []workspace.File) (Project, error) {
	if strings.TrimSpace(user) == "" {
		return Project{}, ErrUnauthenticated
	}
	clean, err := workspace.CleanName(name)
	if err != nil {
		return Project{}, ErrNameRequired
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Project{
		ID:        id.NewProjectID(),
		UserID:    user,
		Name:      clean,
		Files:     files,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func checkUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return ErrUnauthenticated
	}
	return nil
}

// Options selects and configures a backend for Open.
type Options struct {
	Kind      string // sqlite, remote or none
	Database  string
	RemoteURL string
	RemoteKey string
	Metrics   *monitoring.Metrics
}

// Open builds the store named by opts.Kind. The "none" kind yields a store
// that rejects every call with ErrUnavailable.
func Open(opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Kind {
	case "", "sqlite":
		store, err = OpenSQLite(opts.Database)
	case "remote":
		store, err = NewRemoteStore(RemoteOptions{BaseURL: opts.RemoteURL, Key: opts.RemoteKey})
	case "none":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown project store %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(store, opts.Kind, opts.Metrics), nil
}

// Disabled is the store used when project storage is switched off.
type Disabled struct{}

func (Disabled) List(context.Context, string) ([]Project, error) { return nil, ErrUnavailable }

func (Disabled) Save(context.Context, string, string, []workspace.File) (Project, error) {
	return Project{}, ErrUnavailable
}

func (Disabled) Load(context.Context, string, id.ProjectID) ([]workspace.File, error) {
	return nil, ErrUnavailable
}

func (Disabled) Delete(context.Context, string, id.ProjectID) error { return ErrUnavailable }

type instrumented struct {
	Store
	name    string
	metrics *monitoring.Metrics
}

// Instrument wraps s so each call is counted in the storage metrics.
// Caller mistakes (missing name or user) are not counted as failures.
func Instrument(s Store, name string, m *monitoring.Metrics) Store {
	if m == nil {
		return s
	}
	if name == "" {
		name = "sqlite"
	}
	return &instrumented{Store: s, name: "projects_" + name, metrics: m}
}

func (i *instrumented) record(op string, err error) {
	if errors.Is(err, ErrNameRequired) || errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrNotFound) {
		err = nil
	}
	i.metrics.StorageOp(i.name, op, err)
}

func (i *instrumented) List(ctx context.Context, user string) ([]Project, error) {
	out, err := i.Store.List(ctx, user)
	i.record("list", err)
	return out, err
}

func (i *instrumented) Save(ctx context.Context, user, name string, files []workspace.File) (Project, error) {
	p, err := i.Store.Save(ctx, user, name, files)
	i.record("save", err)
	return p, err
}

func (i *instrumented) Load(ctx context.Context, user string, projectID id.ProjectID) ([]workspace.File, error) {
	files, err := i.Store.Load(ctx, user, projectID)
	i.record("load", err)
	return files, err
}

func (i *instrumented) Delete(ctx context.Context, user string, projectID id.ProjectID) error {
	err := i.Store.Delete(ctx, user, projectID)
	i.record("delete", err)
	return err
}

// Close releases the connections held by s, if any.
func Close(s Store) error {
	if i, ok := s.(*instrumented); ok {
		s = i.Store
	}
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
