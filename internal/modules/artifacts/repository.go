package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository stores artifact records in the artifacts database
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new artifact repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "artifacts").Logger(),
	}
}

const artifactColumns = `id, name, base_path, vocab_size, dimension, token_count,
	vocabulary_checksum, matrix_checksum, created_at`

// Record inserts an artifact. A missing ID or CreatedAt is filled in and the
// stored record is returned.
func (r *Repository) Record(ctx context.Context, a Artifact) (Artifact, error) {
	if a.Name == "" {
		return Artifact{}, fmt.Errorf("artifact name is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Millisecond)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokenizer_artifacts (`+artifactColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.BasePath, a.VocabSize, a.Dimension, a.TokenCount,
		a.VocabularyChecksum, a.MatrixChecksum, a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to record artifact %s: %w", a.Name, err)
	}

	r.log.Debug().
		Str("id", a.ID).
		Str("name", a.Name).
		Int("tokens", a.TokenCount).
		Msg("Recorded artifact")

	return a, nil
}

// Latest returns the newest artifact with the given name.
// Returns nil, nil if none exists.
func (r *Repository) Latest(ctx context.Context, name string) (*Artifact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM tokenizer_artifacts
		 WHERE name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, name)

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest artifact %s: %w", name, err)
	}
	return &a, nil
}

// Get returns the artifact with the given ID, or nil, nil if none exists
func (r *Repository) Get(ctx context.Context, id string) (*Artifact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM tokenizer_artifacts WHERE id = ?`, id)

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact %s: %w", id, err)
	}
	return &a, nil
}

// List returns all artifacts, newest first
func (r *Repository) List(ctx context.Context) ([]Artifact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM tokenizer_artifacts
		 ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var result []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}

	return result, nil
}

// RecordBackup stores an uploaded archive against its artifact
func (r *Repository) RecordBackup(ctx context.Context, b Backup) error {
	if b.UploadedAt.IsZero() {
		b.UploadedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifact_backups (artifact_id, object_key, size_bytes, uploaded_at)
		 VALUES (?, ?, ?, ?)`,
		b.ArtifactID, b.ObjectKey, b.SizeBytes, b.UploadedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record backup %s: %w", b.ObjectKey, err)
	}
	return nil
}

// Backups returns the uploaded archives of an artifact, newest first
func (r *Repository) Backups(ctx context.Context, artifactID string) ([]Backup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT artifact_id, object_key, size_bytes, uploaded_at FROM artifact_backups
		 WHERE artifact_id = ? ORDER BY uploaded_at DESC`, artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var result []Backup
	for rows.Next() {
		var b Backup
		var uploadedAt int64
		if err := rows.Scan(&b.ArtifactID, &b.ObjectKey, &b.SizeBytes, &uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		b.UploadedAt = time.UnixMilli(uploadedAt).UTC()
		result = append(result, b)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(s scanner) (Artifact, error) {
	var a Artifact
	var createdAt int64
	err := s.Scan(&a.ID, &a.Name, &a.BasePath, &a.VocabSize, &a.Dimension, &a.TokenCount,
		&a.VocabularyChecksum, &a.MatrixChecksum, &createdAt)
	if err != nil {
		return Artifact{}, err
	}
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	return a, nil
}
