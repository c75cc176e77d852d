// Package registry records published index builds in Postgres so searchers
// and operators can find the latest artifact and audit past builds.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_builds (
	build_id      UUID PRIMARY KEY,
	artifact_path TEXT        NOT NULL,
	digest        TEXT        NOT NULL,
	documents     INTEGER     NOT NULL,
	terms         INTEGER     NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS index_builds_created_at_idx ON index_builds (created_at DESC);
`

// ErrNoBuilds is returned by Latest on an empty registry.
var ErrNoBuilds = errors.New("no index builds recorded")

// Build is one row of index_builds.
type Build struct {
	BuildID      string    `json:"build_id"`
	ArtifactPath string    `json:"artifact_path"`
	Digest       string    `json:"digest"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	CreatedAt    time.Time `json:"created_at"`
}

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("build-registry"),
	}
}

// Migrate creates the table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating build registry: %w", err)
	}
	return nil
}

// Record stores b. Recording the same build twice is a no-op.
func (s *Store) Record(ctx context.Context, b Build) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO index_builds (build_id, artifact_path, digest, documents, terms, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (build_id) DO NOTHING`,
			b.BuildID, b.ArtifactPath, b.Digest, b.Documents, b.Terms, b.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("recording build %s: %w", b.BuildID, err)
	}
	s.logger.Info("build recorded", "build_id", b.BuildID, "path", b.ArtifactPath)
	return nil
}

// Latest returns the most recently created build.
func (s *Store) Latest(ctx context.Context) (Build, error) {
	builds, err := s.List(ctx, 1)
	if err != nil {
		return Build{}, err
	}
	if len(builds) == 0 {
		return Build{}, ErrNoBuilds
	}
	return builds[0], nil
}

// List returns up to limit builds, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT build_id, artifact_path, digest, documents, terms, created_at
		FROM index_builds
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	builds := make([]Build, 0, limit)
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.BuildID, &b.ArtifactPath, &b.Digest, &b.Documents, &b.Terms, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating builds: %w", err)
	}
	return builds, nil
}
