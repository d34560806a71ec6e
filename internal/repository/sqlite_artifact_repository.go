package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"notes-pipeline/internal/models"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

const artifactsTable = "artifacts"

var artifactColumns = []string{"id", "job_id", "content_type", "renderer", "data", "created_at"}

// SQLiteArtifactRepository implements ArtifactRepository using SQLite
type SQLiteArtifactRepository struct {
	db *sql.DB
}

// NewSQLiteArtifactRepository creates a new SQLite artifact repository
func NewSQLiteArtifactRepository(dbPath string) (*SQLiteArtifactRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteArtifactRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *SQLiteArtifactRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteArtifactRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		content_type TEXT NOT NULL,
		renderer TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_job_id ON artifacts(job_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveArtifact stores a rendered artifact
func (r *SQLiteArtifactRepository) SaveArtifact(ctx context.Context, artifact *models.Artifact) error {
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}

	query, args, err := sq.Insert(artifactsTable).
		Columns(artifactColumns...).
		Values(
			artifact.ID,
			artifact.JobID,
			artifact.ContentType,
			artifact.Renderer,
			artifact.Data,
			artifact.CreatedAt.Unix(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}

	return nil
}

// GetArtifact retrieves an artifact by ID
func (r *SQLiteArtifactRepository) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	query, args, err := sq.Select(artifactColumns...).
		From(artifactsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	artifact, err := scanArtifact(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	return artifact, nil
}

// ListArtifactsByJob retrieves all artifacts rendered for a job, oldest first
func (r *SQLiteArtifactRepository) ListArtifactsByJob(ctx context.Context, jobID string) ([]*models.Artifact, error) {
	query, args, err := sq.Select(artifactColumns...).
		From(artifactsTable).
		Where(sq.Eq{"job_id": jobID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*models.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}

	return artifacts, nil
}

// DeleteArtifactsByJob removes artifacts belonging to the given jobs
func (r *SQLiteArtifactRepository) DeleteArtifactsByJob(ctx context.Context, jobIDs ...string) (int64, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}

	query, args, err := sq.Delete(artifactsTable).
		Where(sq.Eq{"job_id": jobIDs}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete artifacts: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted artifacts: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*models.Artifact, error) {
	var artifact models.Artifact
	var createdAt int64

	err := row.Scan(
		&artifact.ID,
		&artifact.JobID,
		&artifact.ContentType,
		&artifact.Renderer,
		&artifact.Data,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	artifact.CreatedAt = time.Unix(createdAt, 0)
	return &artifact, nil
}
