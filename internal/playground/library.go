package playground

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/domain/secrets"
	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
	"github.com/GriffinCanCode/livecode/internal/storage/projects"
)

// projectFailure picks the notice for a failed project call. Validation
// errors speak for themselves; anything else gets the generic text.
func (s *Session) projectFailure(err error, generic string) error {
	switch {
	case errors.Is(err, projects.ErrNameRequired):
		s.notify(NoticeError, "Please enter a project name")
	case errors.Is(err, projects.ErrUnauthenticated):
		s.notify(NoticeError, "You must be signed in to save projects")
	case errors.Is(err, projects.ErrUnavailable):
		s.notify(NoticeError, "Project storage is not configured")
	default:
		s.logger.Warn(generic, zap.Error(err))
		s.notify(NoticeError, generic)
	}
	return err
}

// ListProjects returns the user's saved projects, newest first.
func (s *Session) ListProjects(ctx context.Context) ([]projects.Project, error) {
	list, err := s.opts.Projects.List(ctx, s.opts.User)
	if err != nil {
		return nil, s.projectFailure(err, "Failed to load projects")
	}
	return list, nil
}

// SaveProject stores the current files under name.
func (s *Session) SaveProject(ctx context.Context, name string) (projects.Project, error) {
	files := s.Files()
	p, err := s.opts.Projects.Save(ctx, s.opts.User, name, files)
	if err != nil {
		return projects.Project{}, s.projectFailure(err, "Failed to save project")
	}
	s.notify(NoticeSuccess, "Project saved successfully!")
	return p, nil
}

// LoadProject replaces the workspace with a saved project.
func (s *Session) LoadProject(ctx context.Context, projectID id.ProjectID) error {
	files, err := s.opts.Projects.Load(ctx, s.opts.User, projectID)
	if err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			s.notify(NoticeError, "Project not found")
			return err
		}
		return s.projectFailure(err, "Failed to load project")
	}

	err = s.mutate(ctx, true, func(ws *workspace.Workspace) error {
		return ws.Replace(files, "")
	})
	if err != nil {
		return err
	}
	s.notify(NoticeSuccess, "Project loaded")
	return nil
}

// DeleteProject removes a saved project. The open workspace is unaffected.
func (s *Session) DeleteProject(ctx context.Context, projectID id.ProjectID) error {
	if err := s.opts.Projects.Delete(ctx, s.opts.User, projectID); err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			s.notify(NoticeError, "Project not found")
			return err
		}
		return s.projectFailure(err, "Failed to delete project")
	}
	s.notify(NoticeSuccess, "Project deleted")
	return nil
}

// NewProject starts over from the starter project. The console is kept.
func (s *Session) NewProject(ctx context.Context) error {
	err := s.mutate(ctx, true, func(ws *workspace.Workspace) error {
		ws.Reset()
		return nil
	})
	if err != nil {
		return err
	}
	s.notify(NoticeSuccess, "Started new project")
	return nil
}

// Secrets lists the session's secrets with hidden values masked.
func (s *Session) Secrets() []secrets.View {
	return s.vault.List()
}

// AddSecret stores a key/value pair for this session only.
func (s *Session) AddSecret(key, value string) (secrets.Secret, error) {
	sec, err := s.vault.Add(key, value)
	switch {
	case errors.Is(err, secrets.ErrIncomplete):
		s.notify(NoticeError, "Both key and value are required")
	case errors.Is(err, secrets.ErrDuplicateKey):
		s.notify(NoticeError, "A secret with this key already exists")
	case err == nil:
		s.notify(NoticeSuccess, "Secret added successfully")
	}
	return sec, err
}

func (s *Session) DeleteSecret(secretID id.SecretID) error {
	if err := s.vault.Delete(secretID); err != nil {
		return err
	}
	s.notify(NoticeSuccess, "Secret deleted")
	return nil
}

// RevealSecret toggles whether a secret's value is listed in clear.
func (s *Session) RevealSecret(secretID id.SecretID) (bool, error) {
	return s.vault.Toggle(secretID)
}
