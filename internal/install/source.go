package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/hyena-release/internal/checkpoint"
	"github.com/roach88/hyena-release/internal/failure"
)

// Source supplies artifact bytes. Verification and installation are the
// Installer's job and do not depend on which Source supplied the bytes.
type Source interface {
	// Name identifies the source kind ("local", "remote").
	Name() string

	// Stat reports whether the named artifact exists.
	Stat(ctx context.Context, artifact string) error

	// Open returns the artifact's bytes. The caller closes the reader.
	Open(ctx context.Context, artifact string) (io.ReadCloser, error)
}

// LocalSource reads artifacts from the local release output directory.
type LocalSource struct {
	ReleaseDir string
}

// Name returns "local".
func (LocalSource) Name() string { return "local" }

// Stat fails with a precondition error if the artifact was never built.
func (s LocalSource) Stat(_ context.Context, artifact string) error {
	path := filepath.Join(s.ReleaseDir, artifact)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return (&failure.Error{
				Kind:    failure.KindPrecondition,
				Code:    failure.CodeArtifactMissing,
				Message: fmt.Sprintf("artifact %s not found in %s", artifact, s.ReleaseDir),
				Err:     err,
			}).WithHint("run hyena-release build first")
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return failure.New(failure.KindPrecondition, failure.CodeArtifactMissing,
			fmt.Sprintf("artifact %s is not a regular file", path))
	}
	return nil
}

// Open opens the artifact file.
func (s LocalSource) Open(_ context.Context, artifact string) (io.ReadCloser, error) {
	// #nosec G304 -- artifact name is derived from the pinned identity.
	f, err := os.Open(filepath.Join(s.ReleaseDir, artifact))
	if err != nil {
		return nil, fmt.Errorf("open local artifact: %w", err)
	}
	return f, nil
}

// DefaultMaxBytes caps a remote download.
const DefaultMaxBytes int64 = 1 << 30

// RemoteSource fetches artifacts from a release store addressed by tag:
// GET <BaseURL>/<Tag>/<artifact>. The tag is the checkpoint identity.
type RemoteSource struct {
	BaseURL  string
	Tag      checkpoint.Identity
	Client   *http.Client
	MaxBytes int64
}

// Name returns "remote".
func (RemoteSource) Name() string { return "remote" }

// URL returns the download URL for artifact.
func (s RemoteSource) URL(artifact string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		return "", (&failure.Error{
			Kind:    failure.KindConfiguration,
			Code:    failure.CodeConfigInvalid,
			Message: "remote install requires a release URL",
		}).WithHint("set release_url in .hyena/release.yaml, HYENA_RELEASE_URL, or --release-url")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", failure.New(failure.KindConfiguration, failure.CodeConfigInvalid,
			fmt.Sprintf("release URL %q is not an absolute URL", s.BaseURL))
	}
	return base + "/" + url.PathEscape(s.Tag.String()) + "/" + url.PathEscape(artifact), nil
}

// Stat issues a HEAD request. Only a 404 is conclusive; any other status is
// left to Open to decide.
func (s RemoteSource) Stat(ctx context.Context, artifact string) error {
	target, err := s.URL(artifact)
	if err != nil {
		return err
	}
	resp, err := s.do(ctx, http.MethodHead, target)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return statusError(target, resp.StatusCode)
	}
	return nil
}

// Open issues a GET and returns the body.
func (s RemoteSource) Open(ctx context.Context, artifact string) (io.ReadCloser, error) {
	target, err := s.URL(artifact)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(ctx, http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, statusError(target, resp.StatusCode)
	}
	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	return &limitedBody{ReadCloser: resp.Body, remaining: limit, url: target}, nil
}

func (s RemoteSource) do(ctx context.Context, method, target string) (*http.Response, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// #nosec G107 -- the URL is built from configured release store and pinned identity.
	resp, err := client.Do(req)
	if err != nil {
		return nil, &failure.Error{
			Kind:    failure.KindExternal,
			Code:    failure.CodeRemoteFetch,
			Message: fmt.Sprintf("%s %s", method, target),
			Err:     err,
		}
	}
	return resp, nil
}

func statusError(target string, status int) error {
	if status == http.StatusNotFound {
		return failure.New(failure.KindExternal, failure.CodeRemoteNotFound,
			fmt.Sprintf("%s: not found (status 404)", target))
	}
	return failure.New(failure.KindExternal, failure.CodeRemoteFetch,
		fmt.Sprintf("%s: unexpected status %d %s", target, status, http.StatusText(status)))
}

// limitedBody fails the read, rather than truncating, once the cap is exceeded.
type limitedBody struct {
	io.ReadCloser
	remaining int64
	url       string
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n, failure.New(failure.KindExternal, failure.CodeRemoteFetch,
			fmt.Sprintf("%s: response exceeds download limit", b.url))
	}
	return n, err
}
