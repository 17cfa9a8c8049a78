package store

import (
	"fmt"
	"time"
)

// TimeLayout is the stored timestamp format.
const TimeLayout = "2006-01-02T15:04:05Z"

// Outcome of a successful install. Failed installs record the failure code.
const OutcomeInstalled = "installed"

// BuildRecord is one successful build invocation.
type BuildRecord struct {
	ID             string           `json:"id"`
	CheckpointID   string           `json:"checkpoint_id"`
	CommitSHA      string           `json:"commit_sha"`
	BuildVersion   string           `json:"build_version"`
	ManifestDigest string           `json:"manifest_digest"`
	BuiltAt        time.Time        `json:"built_at"`
	Artifacts      []ArtifactRecord `json:"artifacts"`
}

// ArtifactRecord is one artifact emitted by a build.
type ArtifactRecord struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

// InstallRecord is one install attempt.
type InstallRecord struct {
	ID           string    `json:"id"`
	CheckpointID string    `json:"checkpoint_id"`
	Artifact     string    `json:"artifact"`
	Source       string    `json:"source"`
	SHA256       string    `json:"sha256,omitempty"`
	Outcome      string    `json:"outcome"`
	InstalledAt  time.Time `json:"installed_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}
