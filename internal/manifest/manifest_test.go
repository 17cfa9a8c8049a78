package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyena-release/internal/checkpoint"
	"github.com/roach88/hyena-release/internal/digest"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/ledger"
	"github.com/roach88/hyena-release/internal/testutil"
)

const (
	testArtifact = "hyena-cp-20250601-abc1234-arm64-darwin"
	testContent  = "hyena binary v1"
	testSHA      = "c0a712ad0ecf7a4b3b964024b72d281cc21f00c6fcc7fba463d2439faf4aa9d8"
	testCommit   = "abc1234def5678abc1234def5678abc1234def56"
	// SHA-256 of the RFC 8785 form of the manifest emitted by emitFixture.
	testManifestDigest = "50b27ff005db906151ee950d996acbaed10e9e175fdc4f31c17b8e832f73f2e6"
)

func emitFixture(t *testing.T) (string, Manifest) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, testArtifact), []byte(testContent))

	m, err := Emit(EmitOptions{
		ReleaseDir: dir,
		Identity:   "cp-20250601-abc1234",
		Revision:   checkpoint.Revision{Full: testCommit, Short: "abc1234"},
		Now:        time.Date(2025, 6, 1, 12, 34, 56, 789, time.UTC),
		Artifacts:  []string{testArtifact},
	})
	require.NoError(t, err)
	return dir, m
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestEmitWritesManifestGolden(t *testing.T) {
	dir, _ := emitFixture(t)
	data, err := os.ReadFile(filepath.Join(dir, File))
	require.NoError(t, err)
	golden(t).Assert(t, "release_manifest", data)
}

func TestEmitWritesLedgerGolden(t *testing.T) {
	dir, _ := emitFixture(t)
	data, err := os.ReadFile(filepath.Join(dir, ledger.BuildFile))
	require.NoError(t, err)
	golden(t).Assert(t, "checksums", data)
}

func TestEmitRecordsRecomputableHash(t *testing.T) {
	dir, m := emitFixture(t)
	require.Len(t, m.Artifacts, 1)

	sum, err := digest.File(filepath.Join(dir, m.Artifacts[0].Name))
	require.NoError(t, err)
	assert.Equal(t, sum, m.Artifacts[0].SHA256)
	assert.Equal(t, testSHA, sum)
}

func TestEmitManifestAndLedgerAgree(t *testing.T) {
	dir, m := emitFixture(t)

	loaded, err := Load(filepath.Join(dir, File))
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	l, err := ledger.ParseFile(filepath.Join(dir, ledger.BuildFile))
	require.NoError(t, err)
	require.NoError(t, CrossCheck(loaded, l))
}

func TestEmitIsIdempotent(t *testing.T) {
	dir, _ := emitFixture(t)
	first, err := os.ReadFile(filepath.Join(dir, File))
	require.NoError(t, err)

	_, err = Emit(EmitOptions{
		ReleaseDir: dir,
		Identity:   "cp-20250601-abc1234",
		Revision:   checkpoint.Revision{Full: testCommit, Short: "abc1234"},
		Now:        time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC),
		Artifacts:  []string{testArtifact},
	})
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, File))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestEmitSortsArtifacts(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "hyena-cp-20250601-abc1234-x86_64-linux"), []byte("b"))
	testutil.WriteFile(t, filepath.Join(dir, testArtifact), []byte("a"))

	m, err := Emit(EmitOptions{
		ReleaseDir: dir,
		Identity:   "cp-20250601-abc1234",
		Revision:   checkpoint.Revision{Full: testCommit},
		Now:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Artifacts:  []string{"hyena-cp-20250601-abc1234-x86_64-linux", testArtifact},
	})
	require.NoError(t, err)
	require.Len(t, m.Artifacts, 2)
	assert.Equal(t, testArtifact, m.Artifacts[0].Name)
}

func TestEmitErrors(t *testing.T) {
	dir := t.TempDir()
	base := EmitOptions{ReleaseDir: dir, Identity: "cp-20250601-abc1234", Now: time.Now()}

	_, err := Emit(base)
	assert.Error(t, err, "no artifacts")

	withMissing := base
	withMissing.Artifacts = []string{testArtifact}
	_, err = Emit(withMissing)
	assert.ErrorIs(t, err, os.ErrNotExist)

	withPath := base
	withPath.Artifacts = []string{"../" + testArtifact}
	_, err = Emit(withPath)
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, File))
	assert.True(t, os.IsNotExist(statErr), "failed emit must not write a manifest")
}

func TestEmitFailedManifestWriteLeavesLedgerAlone(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, testArtifact), []byte(testContent))
	// A non-empty directory at the manifest path makes the final rename fail.
	testutil.WriteFile(t, filepath.Join(dir, File, "keep"), []byte("x"))

	_, err := Emit(EmitOptions{
		ReleaseDir: dir,
		Identity:   "cp-20250601-abc1234",
		Revision:   checkpoint.Revision{Full: testCommit, Short: "abc1234"},
		Now:        time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC),
		Artifacts:  []string{testArtifact},
	})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, ledger.BuildFile))
	assert.True(t, os.IsNotExist(statErr), "ledger must not be written without the manifest")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{testArtifact, File}, names, "staged files must be removed")
}

func TestValidate(t *testing.T) {
	_, m := emitFixture(t)
	data, err := m.Marshal()
	require.NoError(t, err)
	require.NoError(t, Validate(data))
}

func TestValidateRejects(t *testing.T) {
	valid := map[string]any{
		"checkpoint_id": "cp-20250601-abc1234",
		"commit_sha":    testCommit,
		"timestamp_utc": "2025-06-01T12:34:56Z",
		"artifacts": []any{
			map[string]any{"name": testArtifact, "sha256": testSHA},
		},
	}
	mutate := map[string]func(m map[string]any){
		"bad checkpoint": func(m map[string]any) { m["checkpoint_id"] = "v1.0.0" },
		"short commit":   func(m map[string]any) { m["commit_sha"] = "abc1234" },
		"local time":     func(m map[string]any) { m["timestamp_utc"] = "2025-06-01T12:34:56+02:00" },
		"no artifacts":   func(m map[string]any) { m["artifacts"] = []any{} },
		"unknown field":  func(m map[string]any) { m["signature"] = "x" },
		"missing field":  func(m map[string]any) { delete(m, "commit_sha") },
		"upper hash": func(m map[string]any) {
			m["artifacts"] = []any{map[string]any{"name": testArtifact, "sha256": strings.ToUpper(testSHA)}}
		},
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			doc := map[string]any{}
			for k, v := range valid {
				doc[k] = v
			}
			fn(doc)
			data, err := json.Marshal(doc)
			require.NoError(t, err)

			err = Validate(data)
			require.Error(t, err)
			assert.Equal(t, failure.CodeManifestInvalid, failure.CodeOf(err))
		})
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	err := Validate([]byte("{not json"))
	require.Error(t, err)
	assert.Equal(t, failure.CodeManifestInvalid, failure.CodeOf(err))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), File))
	require.Error(t, err)
	assert.True(t, failure.IsPrecondition(err))
	assert.Equal(t, failure.CodeManifestMissing, failure.CodeOf(err))
}

func TestLoadRejectsInconsistentManifest(t *testing.T) {
	cases := map[string]Manifest{
		"foreign artifact": {
			CheckpointID: "cp-20250601-abc1234",
			CommitSHA:    testCommit,
			TimestampUTC: "2025-06-01T12:34:56Z",
			Artifacts:    []Artifact{{Name: "hyena-cp-20250531-abc1234-arm64-darwin", SHA256: testSHA}},
		},
		"commit from another revision": {
			CheckpointID: "cp-20250601-abc1234",
			CommitSHA:    "0f1e2d3" + testCommit[7:],
			TimestampUTC: "2025-06-01T12:34:56Z",
			Artifacts:    []Artifact{{Name: testArtifact, SHA256: testSHA}},
		},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			data, err := m.Marshal()
			require.NoError(t, err)
			path := filepath.Join(t.TempDir(), File)
			testutil.WriteFile(t, path, data)

			_, err = Load(path)
			require.Error(t, err)
			assert.Equal(t, failure.CodeManifestInvalid, failure.CodeOf(err))
		})
	}
}

func TestDigest(t *testing.T) {
	_, m := emitFixture(t)
	d, err := m.Digest()
	require.NoError(t, err)
	assert.Equal(t, testManifestDigest, d)
}

func TestVerify(t *testing.T) {
	dir, m := emitFixture(t)

	report, err := Verify(dir, m)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir, m := emitFixture(t)
	testutil.WriteFile(t, filepath.Join(dir, testArtifact), []byte(testContent+"!"))

	report, err := Verify(dir, m)
	require.NoError(t, err)
	assert.False(t, report.OK())

	verr := report.Err()
	require.Error(t, verr)
	assert.True(t, failure.IsIntegrity(verr))
	assert.Contains(t, verr.Error(), testSHA)
}

func TestVerifyReportsMissingArtifact(t *testing.T) {
	dir, m := emitFixture(t)
	require.NoError(t, os.Remove(filepath.Join(dir, testArtifact)))

	report, err := Verify(dir, m)
	require.NoError(t, err)
	require.Len(t, report.Checks, 1)
	assert.True(t, report.Checks[0].Missing)
	assert.True(t, failure.IsPrecondition(report.Err()))
}

func TestCrossCheckDisagreement(t *testing.T) {
	_, m := emitFixture(t)

	other, err := ledger.New(ledger.Entry{SHA256: digest.Bytes([]byte("x")), Name: testArtifact})
	require.NoError(t, err)
	err = CrossCheck(m, other)
	require.Error(t, err)
	assert.Equal(t, failure.CodeLedgerDisagrees, failure.CodeOf(err))

	empty, err := ledger.New()
	require.NoError(t, err)
	assert.Error(t, CrossCheck(m, empty))
}

func TestManifestTime(t *testing.T) {
	_, m := emitFixture(t)
	ts, err := m.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC), ts)

	m.TimestampUTC = "yesterday"
	_, err = m.Time()
	assert.Error(t, err)
}
