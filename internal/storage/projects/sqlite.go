package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/GriffinCanCode/livecode/internal/domain/workspace"
	"github.com/GriffinCanCode/livecode/internal/shared/id"
)

const schemaVersion = 1

// SQLiteStore keeps projects in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("missing project database path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Single-process local database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) List(ctx context.Context, user string) ([]Project, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, name, files, created_at_unix_ms, updated_at_unix_ms
FROM projects
WHERE user_id = ?
ORDER BY updated_at_unix_ms DESC, id DESC
`, user)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []Project{}
	for rows.Next() {
		var (
			p                  Project
			files              string
			created, updatedMs int64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &files, &created, &updatedMs); err != nil {
			return nil, err
		}
		if err := sonic.UnmarshalString(files, &p.Files); err != nil {
			return nil, fmt.Errorf("decode project %s: %w", p.ID, err)
		}
		p.CreatedAt = time.UnixMilli(created).UTC()
		p.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, user, name string, files []workspace.File) (Project, error) {
	p, err := newProject(user, name, files)
	if err != nil {
		return Project{}, err
	}
	encoded, err := sonic.MarshalString(p.Files)
	if err != nil {
		return Project{}, fmt.Errorf("encode project: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO projects(id, user_id, name, files, created_at_unix_ms, updated_at_unix_ms)
VALUES(?, ?, ?, ?, ?, ?)
`, string(p.ID), p.UserID, p.Name, encoded, p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli())
	if err != nil {
		return Project{}, fmt.Errorf("save project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) Load(ctx context.Context, user string, projectID id.ProjectID) ([]workspace.File, error) {
	if err := checkUser(user); err != nil {
		return nil, err
	}

	var encoded string
	err := s.db.QueryRowContext(ctx, `
SELECT files FROM projects WHERE id = ? AND user_id = ?
`, string(projectID), user).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	var files []workspace.File
	if err := sonic.UnmarshalString(encoded, &files); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", projectID, err)
	}
	return files, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, user string, projectID id.ProjectID) error {
	if err := checkUser(user); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, string(projectID), user)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	return nil
}

// touch sets a project's update time. Tests use it to order rows.
func (s *SQLiteStore) touch(ctx context.Context, projectID id.ProjectID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE projects SET updated_at_unix_ms = ? WHERE id = ?`, at.UnixMilli(), string(projectID))
	return err
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}

	var v int
	if err := db.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("pragma user_version: %w", err)
	}
	if v >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS projects (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  files TEXT NOT NULL,
  created_at_unix_ms INTEGER NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_user_updated ON projects(user_id, updated_at_unix_ms DESC);
`); err != nil {
		return fmt.Errorf("create projects table: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version=%d;`, schemaVersion)); err != nil {
		return fmt.Errorf("pragma user_version: %w", err)
	}
	return tx.Commit()
}
