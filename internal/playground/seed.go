package playground

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
)

// SeedPattern selects the files a directory contributes to a workspace.
const SeedPattern = "**/*.{html,htm,css,js,mjs,py}"

// Seeder loads a directory into workspace files and can keep a session in
// step with later writes.
type Seeder struct {
	dir    string
	logger *zap.Logger
}

func NewSeeder(dir string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{dir: dir, logger: logger}
}

// Load reads every matching file under the directory, in lexical path
// order. Files are named by their slash-separated relative path. Binary
// content is skipped.
func (s *Seeder) Load(ctx context.Context) ([]workspace.File, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("seed directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed directory: %s is not a directory", s.dir)
	}

	paths, err := s.match(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]workspace.File, 0, len(paths))
	var loaded, skipped int
	for _, rel := range paths {
		f, err := s.read(rel)
		if err != nil {
			s.logger.Warn("Skipping seed file", zap.String("path", rel), zap.Error(err))
			skipped++
			continue
		}
		files = append(files, f)
		loaded++
	}
	s.logger.Info("Seeded workspace", zap.String("dir", s.dir), zap.Int("loaded", loaded), zap.Int("skipped", skipped))
	return files, nil
}

// match walks the directory and returns the relative paths that match
// SeedPattern, sorted.
func (s *Seeder) match(ctx context.Context) ([]string, error) {
	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() {
			return nil
		}

		rel, ok := s.relative(p)
		if !ok {
			return nil
		}
		mu.Lock()
		paths = append(paths, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.dir, err)
	}
	slices.Sort(paths)
	return paths, nil
}

// relative converts p to a slash path under the directory and reports
// whether it matches SeedPattern.
func (s *Seeder) relative(p string) (string, bool) {
	rel, err := filepath.Rel(s.dir, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	ok, _ := doublestar.Match(SeedPattern, rel)
	return rel, ok
}

func (s *Seeder) read(rel string) (workspace.File, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(rel)))
	if err != nil {
		return workspace.File{}, err
	}
	var text string
	if len(data) > 0 {
		if text, err = workspace.DecodeText(data); err != nil {
			return workspace.File{}, err
		}
	}
	return workspace.File{Name: rel, Kind: workspace.KindForName(rel), Content: text}, nil
}

// FileSyncer receives changed file contents by name. Both Session and
// Manager implement it.
type FileSyncer interface {
	SyncFile(ctx context.Context, name, content string) error
}

// Watch applies writes to seeded files to target until ctx ends or the
// returned stop function is called. New matching files are added.
func (s *Seeder) Watch(ctx context.Context, target FileSyncer) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	conf := fastwalk.Config{Follow: false}
	var mu sync.Mutex
	err = fastwalk.Walk(&conf, s.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		return watcher.Add(p)
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.apply(ctx, target, event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Watcher error", zap.Error(err))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			watcher.Close()
			<-done
		})
	}, nil
}

func (s *Seeder) apply(ctx context.Context, target FileSyncer, path string) {
	rel, ok := s.relative(path)
	if !ok {
		return
	}
	f, err := s.read(rel)
	if err != nil {
		s.logger.Debug("Ignoring changed file", zap.String("path", rel), zap.Error(err))
		return
	}
	if err := target.SyncFile(ctx, f.Name, f.Content); err != nil {
		s.logger.Warn("Failed to apply file change", zap.String("path", rel), zap.Error(err))
		return
	}
	s.logger.Info("File changed, preview reloaded", zap.String("path", rel))
}
