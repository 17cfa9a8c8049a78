package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(KindPrecondition, CodeArtifactMissing, "artifact hyena-x not found")
	assert.Equal(t, "ARTIFACT_MISSING: artifact hyena-x not found", err.Error())
}

func TestMismatchMessageCarriesExpectedAndActual(t *testing.T) {
	err := Mismatch(CodeHashMismatch, "hash mismatch for hyena-x", "aaa", "bbb")
	assert.Equal(t, KindIntegrity, err.Kind)
	assert.Contains(t, err.Error(), "expected aaa, got bbb")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, KindExternal, CodeBuildFailed, "build"))
}

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("exit status 2")
	err := Wrap(cause, KindExternal, CodeBuildFailed, "build step failed")
	wrapped := fmt.Errorf("release: %w", err)

	assert.Equal(t, KindExternal, KindOf(wrapped))
	assert.Equal(t, CodeBuildFailed, CodeOf(wrapped))
	assert.True(t, IsExternal(wrapped))
	assert.False(t, IsIntegrity(wrapped))
	require.ErrorIs(t, wrapped, cause)
}

func TestUnclassified(t *testing.T) {
	err := errors.New("plain")
	assert.Equal(t, Kind(""), KindOf(err))
	assert.Equal(t, "", CodeOf(err))
	assert.Equal(t, "", HintOf(err))
}

func TestHint(t *testing.T) {
	err := New(KindPrecondition, CodeArtifactMissing, "missing").WithHint("run hyena-release build first")
	assert.Equal(t, "run hyena-release build first", HintOf(fmt.Errorf("x: %w", err)))
}
