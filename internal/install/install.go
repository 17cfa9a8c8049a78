// Package install places a verified artifact under the install directory and
// points the stable "hyena" link at it.
//
// Local and remote installs share one verification step. Bytes are staged
// beside their final name, hashed while staged, and compared with the pinned
// ledger; only a match is renamed into place. A failed install leaves the
// previously installed artifact and link untouched.
package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/hyena-release/internal/digest"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/fsx"
	"github.com/roach88/hyena-release/internal/ledger"
)

// DefaultLinkName is the stable name users invoke.
const DefaultLinkName = "hyena"

// Installer installs artifacts verified against a trust-anchor ledger.
type Installer struct {
	// InstallDir receives the artifact and the stable link.
	InstallDir string

	// LinkName is the stable link name. Defaults to DefaultLinkName.
	LinkName string

	// Ledger is the pinned ledger every artifact is checked against.
	Ledger ledger.Ledger

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result describes a completed install.
type Result struct {
	Artifact string
	Path     string
	LinkPath string
	SHA256   string
	Source   string
	Size     int64
}

// Install fetches artifact from src, verifies it, and activates it.
//
// The ledger entry is looked up before any bytes are fetched, so an
// unpinned artifact is never downloaded.
func (in *Installer) Install(ctx context.Context, src Source, artifact string) (Result, error) {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if in.InstallDir == "" {
		return Result{}, failure.New(failure.KindConfiguration, failure.CodeConfigInvalid, "install directory is required")
	}
	if artifact == "" || filepath.Base(artifact) != artifact {
		return Result{}, failure.New(failure.KindConfiguration, failure.CodeConfigInvalid,
			fmt.Sprintf("artifact name %q is not a plain filename", artifact))
	}

	if err := src.Stat(ctx, artifact); err != nil {
		return Result{}, err
	}

	entry, ok := in.Ledger.Lookup(artifact)
	if !ok {
		return Result{}, (&failure.Error{
			Kind:    failure.KindIntegrity,
			Code:    failure.CodeLedgerEntry,
			Message: fmt.Sprintf("no pinned checksum for %s", artifact),
		}).WithHint("commit the artifact's checksum to " + ledger.PinFile)
	}

	body, err := src.Open(ctx, artifact)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = body.Close() }()

	if err := os.MkdirAll(in.InstallDir, 0o755); err != nil {
		return Result{}, failure.Wrap(err, failure.KindPrecondition, failure.CodeInstallIO,
			fmt.Sprintf("create install directory %s", in.InstallDir))
	}

	finalPath := filepath.Join(in.InstallDir, artifact)
	hash := digest.NewWriter()
	tempPath, size, err := fsx.Stage(in.InstallDir, "."+artifact+".download-*", body, 0o755, hash)
	if err != nil {
		if failure.KindOf(err) != "" {
			return Result{}, err
		}
		return Result{}, failure.Wrap(err, failure.KindExternal, failure.CodeInstallIO,
			fmt.Sprintf("stage %s from %s", artifact, src.Name()))
	}

	actual := hash.Sum()
	if actual != entry.SHA256 {
		_ = os.Remove(tempPath)
		logger.Warn("artifact hash mismatch",
			"artifact", artifact,
			"source", src.Name(),
			"expected", entry.SHA256,
			"actual", actual)
		return Result{}, failure.Mismatch(failure.CodeHashMismatch,
			fmt.Sprintf("%s from %s does not match the pinned checksum", artifact, src.Name()),
			entry.SHA256, actual)
	}

	if err := fsx.Commit(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return Result{}, failure.Wrap(err, failure.KindPrecondition, failure.CodeInstallIO,
			fmt.Sprintf("move %s into place", artifact))
	}

	linkPath := filepath.Join(in.InstallDir, in.linkName())
	// Relative target keeps the install dir relocatable.
	if err := fsx.ReplaceSymlink(artifact, linkPath); err != nil {
		return Result{}, failure.Wrap(err, failure.KindPrecondition, failure.CodeInstallIO,
			fmt.Sprintf("link %s to %s", linkPath, artifact))
	}

	logger.Info("artifact installed",
		"artifact", artifact,
		"source", src.Name(),
		"sha256", actual,
		"path", finalPath)

	return Result{
		Artifact: artifact,
		Path:     finalPath,
		LinkPath: linkPath,
		SHA256:   actual,
		Source:   src.Name(),
		Size:     size,
	}, nil
}

func (in *Installer) linkName() string {
	if in.LinkName == "" {
		return DefaultLinkName
	}
	return in.LinkName
}

// Active returns the artifact the stable link currently points at, or "" if
// there is no link.
func Active(installDir, linkName string) (string, error) {
	if linkName == "" {
		linkName = DefaultLinkName
	}
	target, err := os.Readlink(filepath.Join(installDir, linkName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read link: %w", err)
	}
	return filepath.Base(target), nil
}
