package cli

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/hyena-release/internal/testutil"
)

const (
	testCommit         = "abc1234def5678abc1234def5678abc1234def56"
	testID             = "cp-20250601-abc1234"
	testArtifact       = "hyena-cp-20250601-abc1234-arm64-darwin"
	testContent        = "hyena binary v1"
	testSHA            = "c0a712ad0ecf7a4b3b964024b72d281cc21f00c6fcc7fba463d2439faf4aa9d8"
	testManifestDigest = "50b27ff005db906151ee950d996acbaed10e9e175fdc4f31c17b8e832f73f2e6"
)

var testNow = time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC)

// harness runs the root command against a temp repository root.
type harness struct {
	t      *testing.T
	root   string
	env    map[string]string
	clock  *testutil.FixedClock
	ids    *testutil.SequenceIDs
	client *http.Client

	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:     t,
		root:  t.TempDir(),
		env:   map[string]string{},
		clock: testutil.NewFixedClock(testNow),
		ids:   testutil.NewSequenceIDs("rec"),
	}
}

func (h *harness) run(args ...string) error {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()

	opts := &RootOptions{
		Now:        h.clock.Now,
		Getenv:     func(key string) string { return h.env[key] },
		HTTPClient: h.client,
		IDs:        h.ids,
	}
	cmd := newRootCommand(opts)
	cmd.SetOut(&h.stdout)
	cmd.SetErr(&h.stderr)
	cmd.SetArgs(append([]string{"--root", h.root}, args...))
	return cmd.ExecuteContext(context.Background())
}

func (h *harness) path(parts ...string) string {
	return filepath.Join(append([]string{h.root}, parts...)...)
}

// writeConfig installs a build step that writes content as the binary.
func (h *harness) writeConfig(content string) {
	h.t.Helper()
	testutil.WriteFile(h.t, h.path(".hyena", "release.yaml"), []byte(`build:
  command: ["sh", "-c", "mkdir -p target/release && printf '%s' '`+content+`' > target/release/hyena"]
`))
}

func (h *harness) writeFailingConfig() {
	h.t.Helper()
	testutil.WriteFile(h.t, h.path(".hyena", "release.yaml"), []byte(`build:
  command: ["sh", "-c", "echo 'error[E0308]: mismatched types' >&2; exit 101"]
`))
}

// writePins commits a pin for testID and a ledger entry for testArtifact.
func (h *harness) writePins(sha string) {
	h.t.Helper()
	testutil.WriteFile(h.t, h.path("release-pin.txt"), []byte("CHECKPOINT_ID="+testID+"\n"))
	testutil.WriteFile(h.t, h.path("checksums-pin.txt"), []byte(sha+"  "+testArtifact+"\n"))
}

var buildArgs = []string{"build", "--date", "20250601", "--commit", testCommit, "--arch", "arm64", "--os", "darwin"}

var installArgs = []string{"install", "--arch", "arm64", "--os", "darwin"}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
