package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/roach88/hyena-release/internal/failure"
)

// Revision identifies the source revision a release is built from.
type Revision struct {
	// Full is the complete 40-hex commit id.
	Full string

	// Short is the abbreviated commit id (7 hex characters).
	Short string
}

// RevisionSource reports the revision of the current checkout.
type RevisionSource interface {
	Revision(ctx context.Context) (Revision, error)
}

// ErrNoRevision is returned when no revision can be determined.
var ErrNoRevision = errors.New("no source revision available")

var fullRevisionPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// GitRevisionSource reads the revision of HEAD with git.
type GitRevisionSource struct {
	// Dir is the working directory of the checkout. Empty means the process cwd.
	Dir string

	// Git is the git executable. Defaults to "git".
	Git string
}

// Revision runs git rev-parse for the full and short forms of HEAD.
func (g GitRevisionSource) Revision(ctx context.Context) (Revision, error) {
	full, err := g.revParse(ctx, "HEAD")
	if err != nil {
		return Revision{}, err
	}
	short, err := g.revParse(ctx, fmt.Sprintf("--short=%d", ShortRevisionLen), "HEAD")
	if err != nil {
		return Revision{}, err
	}
	return normalizeRevision(full, short)
}

func (g GitRevisionSource) revParse(ctx context.Context, args ...string) (string, error) {
	bin := g.Git
	if bin == "" {
		bin = "git"
	}
	var stdout, stderr bytes.Buffer
	// #nosec G204 -- arguments are fixed rev-parse flags.
	cmd := exec.CommandContext(ctx, bin, append([]string{"rev-parse"}, args...)...)
	cmd.Dir = g.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", &failure.Error{
			Kind:    failure.KindConfiguration,
			Code:    failure.CodeNoRevision,
			Message: fmt.Sprintf("git rev-parse failed: %s", detail),
			Hint:    "run inside a git checkout or pass --commit",
			Err:     ErrNoRevision,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// StaticRevisionSource returns a fixed revision, typically supplied by CI
// (e.g. the commit under test) when no checkout is available.
type StaticRevisionSource struct {
	Commit string
}

// Revision returns the configured commit. The short form is its first 7 characters.
func (s StaticRevisionSource) Revision(context.Context) (Revision, error) {
	commit := strings.TrimSpace(s.Commit)
	if len(commit) < ShortRevisionLen {
		return Revision{}, &failure.Error{
			Kind:    failure.KindConfiguration,
			Code:    failure.CodeNoRevision,
			Message: fmt.Sprintf("commit %q is too short", s.Commit),
			Err:     ErrNoRevision,
		}
	}
	return normalizeRevision(commit, commit[:ShortRevisionLen])
}

func normalizeRevision(full, short string) (Revision, error) {
	full = strings.ToLower(strings.TrimSpace(full))
	short = strings.ToLower(strings.TrimSpace(short))
	// git widens --short output when the prefix is ambiguous; the identity is fixed width.
	if len(short) > ShortRevisionLen {
		short = short[:ShortRevisionLen]
	}
	if !fullRevisionPattern.MatchString(full) {
		return Revision{}, &failure.Error{
			Kind:    failure.KindConfiguration,
			Code:    failure.CodeNoRevision,
			Message: fmt.Sprintf("full revision %q is not 40 hex characters", full),
			Err:     ErrNoRevision,
		}
	}
	if !shortRevisionPattern.MatchString(short) || !strings.HasPrefix(full, short) {
		return Revision{}, &failure.Error{
			Kind:    failure.KindConfiguration,
			Code:    failure.CodeNoRevision,
			Message: fmt.Sprintf("short revision %q does not abbreviate %s", short, full),
			Err:     ErrNoRevision,
		}
	}
	return Revision{Full: full, Short: short}, nil
}
