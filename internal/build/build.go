// Package build runs the compile step and materializes the named artifact.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/roach88/hyena-release/internal/checkpoint"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/fsx"
)

// Environment variables handed to the build step.
const (
	EnvCheckpointID = "HYENA_CHECKPOINT_ID"
	EnvBuildVersion = "HYENA_BUILD_VERSION"
	EnvBuildDate    = "BUILD_DATE"
)

// Defaults for the hyena Rust crate.
var (
	DefaultCommand = []string{"cargo", "build", "--release"}
	DefaultOutput  = filepath.Join("target", "release", "hyena")
)

// Builder compiles the binary and copies it into the release directory
// under its artifact name.
type Builder struct {
	// Dir is the source tree the build command runs in.
	Dir string

	// Command is the build argv. Defaults to DefaultCommand.
	Command []string

	// Output is the path of the binary the command produces, relative to Dir
	// unless absolute. Defaults to DefaultOutput.
	Output string

	// ReleaseDir receives the artifact. Created if absent.
	ReleaseDir string

	// Env is appended to the inherited environment.
	Env []string

	// Stdout and Stderr receive the build step's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// Artifact is a materialized build output.
type Artifact struct {
	Name     string              `json:"name"`
	Path     string              `json:"path"`
	Identity checkpoint.Identity `json:"checkpoint_id"`
	Platform checkpoint.Platform `json:"platform"`
	Size     int64               `json:"size"`
}

// Build runs the build command and copies its output, byte for byte, to
// <ReleaseDir>/hyena-<id>-<arch>-<os>. A failing build step returns before
// anything is written to ReleaseDir.
func (b *Builder) Build(ctx context.Context, id checkpoint.Identity, platform checkpoint.Platform) (Artifact, error) {
	if _, err := checkpoint.Parse(id.String()); err != nil {
		return Artifact{}, err
	}
	if b.ReleaseDir == "" {
		return Artifact{}, failure.New(failure.KindConfiguration, failure.CodeConfigInvalid, "release directory is required")
	}

	if err := b.run(ctx, id); err != nil {
		return Artifact{}, err
	}

	output := b.outputPath()
	src, err := os.Open(output)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, &failure.Error{
				Kind:    failure.KindPrecondition,
				Code:    failure.CodeBuildOutput,
				Message: fmt.Sprintf("build step succeeded but %s does not exist", output),
				Err:     err,
			}
		}
		return Artifact{}, fmt.Errorf("open build output: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(b.ReleaseDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create release dir: %w", err)
	}
	name := checkpoint.ArtifactName(id, platform)
	dest := filepath.Join(b.ReleaseDir, name)
	n, err := fsx.CopyAtomic(dest, src, 0o755, nil)
	if err != nil {
		return Artifact{}, fmt.Errorf("materialize %s: %w", name, err)
	}

	slog.Info("artifact materialized", "artifact", name, "path", dest, "bytes", n)
	return Artifact{
		Name:     name,
		Path:     dest,
		Identity: id,
		Platform: platform,
		Size:     n,
	}, nil
}

func (b *Builder) run(ctx context.Context, id checkpoint.Identity) error {
	argv := b.Command
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	// #nosec G204 -- the build command is project configuration.
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = b.Dir
	cmd.Env = append(os.Environ(), b.Env...)
	cmd.Env = append(cmd.Env,
		EnvCheckpointID+"="+id.String(),
		EnvBuildVersion+"="+id.BuildVersion(),
		EnvBuildDate+"="+id.Date().Format(checkpoint.DateLayout),
	)
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr

	slog.Info("running build step", "command", strings.Join(argv, " "), "dir", b.Dir, "checkpoint_id", id)
	if err := cmd.Run(); err != nil {
		return &failure.Error{
			Kind:    failure.KindExternal,
			Code:    failure.CodeBuildFailed,
			Message: fmt.Sprintf("build step %q failed", strings.Join(argv, " ")),
			Err:     err,
		}
	}
	return nil
}

func (b *Builder) outputPath() string {
	out := b.Output
	if out == "" {
		out = DefaultOutput
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(b.Dir, out)
}
