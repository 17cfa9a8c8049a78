package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyena-release/internal/digest"
)

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release-manifest.json")
	require.NoError(t, WriteFileAtomic(path, []byte("old"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("new"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestWriteFileAtomicMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	path := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, WriteFileAtomic(path, []byte("x"), 0o755))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestCopyAtomicTees(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact")
	h := digest.NewWriter()

	n, err := CopyAtomic(path, strings.NewReader("hello\n"), 0o755, h)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, digest.Bytes([]byte("hello\n")), h.Sum())

	sum, err := digest.File(path)
	require.NoError(t, err)
	assert.Equal(t, h.Sum(), sum)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestCopyAtomicFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")

	_, err := CopyAtomic(path, failingReader{}, 0o755, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, statErr := os.Lstat(path)
	assert.True(t, os.IsNotExist(statErr))
	assertNoTempFiles(t, dir)
}

func TestReplaceSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevated privileges on windows")
	}
	dir := t.TempDir()
	first := filepath.Join(dir, "hyena-a")
	second := filepath.Join(dir, "hyena-b")
	require.NoError(t, os.WriteFile(first, []byte("a"), 0o755))
	require.NoError(t, os.WriteFile(second, []byte("b"), 0o755))
	link := filepath.Join(dir, "hyena")

	require.NoError(t, ReplaceSymlink("hyena-a", link))
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "hyena-a", target)

	require.NoError(t, ReplaceSymlink("hyena-b", link))
	target, err = os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "hyena-b", target)

	got, err := os.ReadFile(link)
	require.NoError(t, err)
	assert.Equal(t, "b", string(got))
	assertNoTempFiles(t, dir)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-") || strings.Contains(e.Name(), ".link-"),
			"leftover temp file %s", e.Name())
	}
}

func TestStageThenCommit(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "hyena-cp-20250601-abc1234-arm64-darwin")

	tempPath, n, err := Stage(dir, ".download.tmp-*", strings.NewReader("payload"), 0o755, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	_, statErr := os.Stat(final)
	assert.True(t, os.IsNotExist(statErr), "staging must not create the final path")

	require.NoError(t, Commit(tempPath, final))
	got, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	assertNoTempFiles(t, dir)
}

func TestStageFailureRemovesTemp(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Stage(dir, ".download.tmp-*", failingReader{}, 0o755, nil)
	require.Error(t, err)
	assertNoTempFiles(t, dir)
}
