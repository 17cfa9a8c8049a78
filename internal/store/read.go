package store

import (
	"context"
	"fmt"
)

// ListBuilds returns up to limit builds, newest first. limit <= 0 means all.
// Returns an empty slice (not nil) if there are no builds.
func (s *Store) ListBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checkpoint_id, commit_sha, build_version, manifest_digest, built_at
		FROM builds
		ORDER BY built_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}

	builds := []BuildRecord{}
	for rows.Next() {
		var rec BuildRecord
		var builtAt string
		if err := rows.Scan(&rec.ID, &rec.CheckpointID, &rec.CommitSHA, &rec.BuildVersion, &rec.ManifestDigest, &builtAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan build: %w", err)
		}
		if rec.BuiltAt, err = parseTime(builtAt); err != nil {
			rows.Close()
			return nil, err
		}
		builds = append(builds, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	rows.Close()

	// Artifacts are loaded after the builds cursor is closed: the pool holds
	// a single connection.
	for i := range builds {
		artifacts, err := s.buildArtifacts(ctx, builds[i].ID)
		if err != nil {
			return nil, err
		}
		builds[i].Artifacts = artifacts
	}
	return builds, nil
}

func (s *Store) buildArtifacts(ctx context.Context, buildID string) ([]ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, sha256
		FROM build_artifacts
		WHERE build_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query build artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []ArtifactRecord{}
	for rows.Next() {
		var a ArtifactRecord
		if err := rows.Scan(&a.Name, &a.SHA256); err != nil {
			return nil, fmt.Errorf("scan build artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build artifacts: %w", err)
	}
	return artifacts, nil
}

// ListInstalls returns up to limit install attempts, newest first.
// limit <= 0 means all.
func (s *Store) ListInstalls(ctx context.Context, limit int) ([]InstallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checkpoint_id, artifact, source, sha256, outcome, installed_at
		FROM installs
		ORDER BY installed_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query installs: %w", err)
	}
	defer rows.Close()

	installs := []InstallRecord{}
	for rows.Next() {
		var rec InstallRecord
		var installedAt string
		if err := rows.Scan(&rec.ID, &rec.CheckpointID, &rec.Artifact, &rec.Source, &rec.SHA256, &rec.Outcome, &installedAt); err != nil {
			return nil, fmt.Errorf("scan install: %w", err)
		}
		if rec.InstalledAt, err = parseTime(installedAt); err != nil {
			return nil, err
		}
		installs = append(installs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installs: %w", err)
	}
	return installs, nil
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
