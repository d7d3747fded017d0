// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides deployment record persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS deployments (
	host        TEXT PRIMARY KEY,
	id          TEXT NOT NULL,
	version     TEXT NOT NULL,
	arch        TEXT NOT NULL,
	pid         INTEGER NOT NULL,
	deployed_at INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordDeployment(ctx context.Context, dep *Deployment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (host, id, version, arch, pid, deployed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			id = excluded.id,
			version = excluded.version,
			arch = excluded.arch,
			pid = excluded.pid,
			deployed_at = excluded.deployed_at`,
		dep.Host, dep.ID, dep.Version, dep.Arch, dep.PID, dep.DeployedAt.Unix())
	if err != nil {
		return fmt.Errorf("recording deployment for %s: %w", dep.Host, err)
	}
	s.logger.Debug("deployment recorded", "host", dep.Host, "version", dep.Version)
	return nil
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, host string) (*Deployment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT host, id, version, arch, pid, deployed_at
		FROM deployments WHERE host = ?`, host)

	dep, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading deployment for %s: %w", host, err)
	}
	return dep, nil
}

func (s *SQLiteStore) ListDeployments(ctx context.Context) ([]*Deployment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT host, id, version, arch, pid, deployed_at
		FROM deployments ORDER BY deployed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	defer rows.Close()

	var deps []*Deployment
	for rows.Next() {
		dep, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deployment: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

func (s *SQLiteStore) DeleteDeployment(ctx context.Context, host string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deployments WHERE host = ?`, host); err != nil {
		return fmt.Errorf("deleting deployment for %s: %w", host, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row scanner) (*Deployment, error) {
	var dep Deployment
	var deployedAt int64
	if err := row.Scan(&dep.Host, &dep.ID, &dep.Version, &dep.Arch, &dep.PID, &deployedAt); err != nil {
		return nil, err
	}
	dep.DeployedAt = time.Unix(deployedAt, 0).UTC()
	return &dep, nil
}
