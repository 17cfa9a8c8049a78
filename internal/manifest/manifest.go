package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/roach88/hyena-release/internal/checkpoint"
	"github.com/roach88/hyena-release/internal/digest"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/fsx"
	"github.com/roach88/hyena-release/internal/ledger"
)

// File is the conventional manifest filename inside the release directory.
const File = "release-manifest.json"

// TimestampLayout renders timestamp_utc: ISO-8601, UTC, second precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Manifest is the machine-parseable record of one build invocation.
type Manifest struct {
	CheckpointID string     `json:"checkpoint_id"`
	CommitSHA    string     `json:"commit_sha"`
	TimestampUTC string     `json:"timestamp_utc"`
	Artifacts    []Artifact `json:"artifacts"`
}

// Artifact is one built binary and its content hash.
type Artifact struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
}

// EmitOptions describes one build's outputs.
type EmitOptions struct {
	// ReleaseDir holds the artifacts and receives the manifest and ledger.
	ReleaseDir string

	// Identity is the checkpoint identity of the build.
	Identity checkpoint.Identity

	// Revision is the source revision; Full is recorded as commit_sha.
	Revision checkpoint.Revision

	// Now is the capture time recorded as timestamp_utc.
	Now time.Time

	// Artifacts are filenames (not paths) inside ReleaseDir produced by this build.
	Artifacts []string
}

// Emit hashes every artifact once and writes checksums.txt and
// release-manifest.json from that single pass, replacing any prior files.
func Emit(opts EmitOptions) (Manifest, error) {
	if len(opts.Artifacts) == 0 {
		return Manifest{}, errors.New("emit: no artifacts")
	}
	names := append([]string(nil), opts.Artifacts...)
	sort.Strings(names)

	entries := make([]ledger.Entry, 0, len(names))
	for _, name := range names {
		if name != filepath.Base(name) {
			return Manifest{}, fmt.Errorf("emit: artifact %q must be a filename, not a path", name)
		}
		sum, err := digest.File(filepath.Join(opts.ReleaseDir, name))
		if err != nil {
			return Manifest{}, fmt.Errorf("emit: %w", err)
		}
		entries = append(entries, ledger.Entry{SHA256: sum, Name: name})
	}

	l, err := ledger.New(entries...)
	if err != nil {
		return Manifest{}, fmt.Errorf("emit: %w", err)
	}
	m := fromEntries(opts.Identity, opts.Revision, opts.Now, entries)

	data, err := m.Marshal()
	if err != nil {
		return Manifest{}, err
	}
	if err := commitPair(opts.ReleaseDir, data, l.Format()); err != nil {
		return Manifest{}, fmt.Errorf("emit: %w", err)
	}
	return m, nil
}

// commitPair stages the manifest and ledger before renaming either into
// place, so a failed write leaves neither replaced.
func commitPair(dir string, manifestData, ledgerData []byte) error {
	manifestTemp, _, err := fsx.Stage(dir, "."+File+".tmp-*", bytes.NewReader(manifestData), 0o644, nil)
	if err != nil {
		return fmt.Errorf("stage manifest: %w", err)
	}
	ledgerTemp, _, err := fsx.Stage(dir, "."+ledger.BuildFile+".tmp-*", bytes.NewReader(ledgerData), 0o644, nil)
	if err != nil {
		_ = os.Remove(manifestTemp)
		return fmt.Errorf("stage %s: %w", ledger.BuildFile, err)
	}
	if err := fsx.Commit(manifestTemp, filepath.Join(dir, File)); err != nil {
		_ = os.Remove(manifestTemp)
		_ = os.Remove(ledgerTemp)
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := fsx.Commit(ledgerTemp, filepath.Join(dir, ledger.BuildFile)); err != nil {
		_ = os.Remove(ledgerTemp)
		return fmt.Errorf("write %s: %w", ledger.BuildFile, err)
	}
	return nil
}

func fromEntries(id checkpoint.Identity, rev checkpoint.Revision, now time.Time, entries []ledger.Entry) Manifest {
	artifacts := make([]Artifact, len(entries))
	for i, e := range entries {
		artifacts[i] = Artifact{Name: e.Name, SHA256: e.SHA256}
	}
	return Manifest{
		CheckpointID: id.String(),
		CommitSHA:    rev.Full,
		TimestampUTC: now.UTC().Format(TimestampLayout),
		Artifacts:    artifacts,
	}
}

// Marshal renders the manifest as indented JSON with a trailing newline.
func (m Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Ledger returns the manifest's artifacts as ledger entries.
func (m Manifest) Ledger() (ledger.Ledger, error) {
	entries := make([]ledger.Entry, len(m.Artifacts))
	for i, a := range m.Artifacts {
		entries[i] = ledger.Entry{SHA256: a.SHA256, Name: a.Name}
	}
	return ledger.New(entries...)
}

// Identity parses checkpoint_id.
func (m Manifest) Identity() (checkpoint.Identity, error) {
	return checkpoint.Parse(m.CheckpointID)
}

// Time parses timestamp_utc.
func (m Manifest) Time() (time.Time, error) {
	t, err := time.Parse(TimestampLayout, m.TimestampUTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp_utc %q: %w", m.TimestampUTC, err)
	}
	return t, nil
}

// Load reads and validates the manifest at path.
func Load(path string) (Manifest, error) {
	// #nosec G304 -- manifest path is derived from the configured release directory.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, (&failure.Error{
				Kind:    failure.KindPrecondition,
				Code:    failure.CodeManifestMissing,
				Message: fmt.Sprintf("manifest %s not found", path),
				Err:     err,
			}).WithHint("run hyena-release build first")
		}
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	if err := Validate(data); err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, failure.Wrap(err, failure.KindPrecondition, failure.CodeManifestInvalid,
			fmt.Sprintf("parse manifest %s", path))
	}
	if err := m.checkConsistency(); err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// checkConsistency confirms commit_sha and every artifact name belong to
// checkpoint_id. The schema checks each field's shape but not how they relate.
func (m Manifest) checkConsistency() error {
	id, err := m.Identity()
	if err != nil {
		return failure.Wrap(err, failure.KindPrecondition, failure.CodeManifestInvalid, "checkpoint_id")
	}
	if !strings.HasPrefix(m.CommitSHA, id.ShortRevision()) {
		return failure.New(failure.KindPrecondition, failure.CodeManifestInvalid,
			fmt.Sprintf("commit_sha %s is not revision %s of %s", m.CommitSHA, id.ShortRevision(), id))
	}
	for _, a := range m.Artifacts {
		artifactID, _, err := checkpoint.ParseArtifactName(a.Name)
		if err != nil {
			return failure.Wrap(err, failure.KindPrecondition, failure.CodeManifestInvalid, "artifact name")
		}
		if artifactID != id {
			return failure.New(failure.KindPrecondition, failure.CodeManifestInvalid,
				fmt.Sprintf("artifact %s belongs to %s, not %s", a.Name, artifactID, id))
		}
	}
	return nil
}
