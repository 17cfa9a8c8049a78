package store

import (
	"context"
	"fmt"
)

// WriteBuild inserts a build and its artifacts in one transaction and returns
// the build ID. An empty rec.ID is filled from the store's ID generator.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting the same ID is a no-op.
func (s *Store) WriteBuild(ctx context.Context, rec BuildRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = s.ids.Next()
	}
	if rec.CheckpointID == "" {
		return "", fmt.Errorf("write build: checkpoint id is required")
	}
	if rec.BuiltAt.IsZero() {
		return "", fmt.Errorf("write build: built_at is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write build: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO builds
		(id, checkpoint_id, commit_sha, build_version, manifest_digest, built_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.CheckpointID,
		rec.CommitSHA,
		rec.BuildVersion,
		rec.ManifestDigest,
		formatTime(rec.BuiltAt),
	)
	if err != nil {
		return "", fmt.Errorf("write build: %w", err)
	}

	for _, a := range rec.Artifacts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO build_artifacts (build_id, name, sha256)
			VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, rec.ID, a.Name, a.SHA256)
		if err != nil {
			return "", fmt.Errorf("write build artifact %s: %w", a.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write build: commit: %w", err)
	}
	return rec.ID, nil
}

// WriteInstall records an install attempt and returns its ID.
func (s *Store) WriteInstall(ctx context.Context, rec InstallRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = s.ids.Next()
	}
	if rec.Outcome == "" {
		return "", fmt.Errorf("write install: outcome is required")
	}
	if rec.InstalledAt.IsZero() {
		return "", fmt.Errorf("write install: installed_at is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO installs
		(id, checkpoint_id, artifact, source, sha256, outcome, installed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.CheckpointID,
		rec.Artifact,
		rec.Source,
		rec.SHA256,
		rec.Outcome,
		formatTime(rec.InstalledAt),
	)
	if err != nil {
		return "", fmt.Errorf("write install: %w", err)
	}
	return rec.ID, nil
}
