package playground

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
	"github.com/GriffinCanCode/livecode/internal/storage/kv"
)

// Autosave keys, namespaced by scope.
func filesKey(scope string) string  { return scope + ":files" }
func activeKey(scope string) string { return scope + ":active-file" }

// restore rebuilds the scope's last workspace. Missing or corrupt data falls
// back to the starter project.
func (s *Session) restore(ctx context.Context) *workspace.Workspace {
	files, err := kv.Lookup[[]workspace.File](ctx, s.opts.KV, filesKey(s.opts.Scope))
	if err != nil || len(files) == 0 {
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("Discarding saved workspace", zap.Error(err))
		}
		return workspace.NewDefault()
	}

	active := kv.Get(ctx, s.opts.KV, activeKey(s.opts.Scope), id.FileID(""))
	ws, err := workspace.New(files, active)
	if err != nil {
		s.logger.Warn("Discarding saved workspace", zap.Error(err))
		return workspace.NewDefault()
	}
	return ws
}

// persistLocked writes the files and the active id. A failure leaves the
// in-memory workspace as is and raises an error notice.
func (s *Session) persistLocked(ctx context.Context) error {
	err := kv.Set(ctx, s.opts.KV, filesKey(s.opts.Scope), s.ws.Files())
	if err == nil {
		err = kv.Set(ctx, s.opts.KV, activeKey(s.opts.Scope), s.ws.ActiveID())
	}
	if err != nil {
		s.logger.Warn("Failed to autosave workspace", zap.Error(err))
		s.notify(NoticeError, "Failed to save code")
	}
	return err
}
