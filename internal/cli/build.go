package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hyena-release/internal/build"
	"github.com/roach88/hyena-release/internal/manifest"
	"github.com/roach88/hyena-release/internal/store"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	identityFlags
}

// BuildResult is the build command's output.
type BuildResult struct {
	CheckpointID   string              `json:"checkpoint_id"`
	BuildVersion   string              `json:"build_version"`
	CommitSHA      string              `json:"commit_sha"`
	Manifest       string              `json:"manifest"`
	ManifestDigest string              `json:"manifest_digest"`
	Artifacts      []manifest.Artifact `json:"artifacts"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a checkpoint and emit its manifest and checksums",
		Long: `Derive the checkpoint identity, run the build step, copy its output into
the release directory under the artifact name, and write checksums.txt and
release-manifest.json from a single hashing pass.

A failing build step aborts before anything is written to the release
directory.

Example:
  hyena-release build
  BUILD_DATE=20250601 hyena-release build --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "build date YYYYMMDD (default BUILD_DATE or today, UTC)")
	cmd.Flags().StringVar(&opts.Commit, "commit", "", "full commit id (default HYENA_COMMIT or git HEAD)")
	cmd.Flags().StringVar(&opts.Arch, "arch", "", "artifact arch name override (no cross-compilation)")
	cmd.Flags().StringVar(&opts.OS, "os", "", "artifact os name override (no cross-compilation)")

	return cmd
}

func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, err)
	}
	id, rev, err := deriveIdentity(ctx, opts.RootOptions, cfg, opts.identityFlags)
	if err != nil {
		return fail(formatter, err)
	}
	slog.Info("checkpoint derived", "checkpoint_id", id, "commit", rev.Full)

	builder := &build.Builder{
		Dir:        cfg.Build.Dir,
		Command:    cfg.Build.Command,
		Output:     cfg.Build.Output,
		ReleaseDir: cfg.ReleaseDir,
		Env:        cfg.Build.Env,
		Stdout:     formatter.GetErrWriter(),
		Stderr:     formatter.GetErrWriter(),
	}
	artifact, err := builder.Build(ctx, id, targetPlatform(cfg, opts.identityFlags))
	if err != nil {
		return fail(formatter, err)
	}

	m, err := manifest.Emit(manifest.EmitOptions{
		ReleaseDir: cfg.ReleaseDir,
		Identity:   id,
		Revision:   rev,
		Now:        opts.now(),
		Artifacts:  []string{artifact.Name},
	})
	if err != nil {
		return fail(formatter, err)
	}
	manifestDigest, err := m.Digest()
	if err != nil {
		return fail(formatter, err)
	}

	history := openHistory(opts.RootOptions, cfg)
	defer closeHistory(history)
	recordBuild(ctx, history, buildRecord(m, id.BuildVersion(), manifestDigest))

	result := BuildResult{
		CheckpointID:   m.CheckpointID,
		BuildVersion:   id.BuildVersion(),
		CommitSHA:      m.CommitSHA,
		Manifest:       cfg.ManifestPath(),
		ManifestDigest: manifestDigest,
		Artifacts:      m.Artifacts,
	}
	return outputBuildSuccess(formatter, result)
}

func buildRecord(m manifest.Manifest, buildVersion, manifestDigest string) store.BuildRecord {
	rec := store.BuildRecord{
		CheckpointID:   m.CheckpointID,
		CommitSHA:      m.CommitSHA,
		BuildVersion:   buildVersion,
		ManifestDigest: manifestDigest,
	}
	if t, err := m.Time(); err == nil {
		rec.BuiltAt = t
	}
	for _, a := range m.Artifacts {
		rec.Artifacts = append(rec.Artifacts, store.ArtifactRecord{Name: a.Name, SHA256: a.SHA256})
	}
	return rec
}

func outputBuildSuccess(formatter *OutputFormatter, result BuildResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	st := formatter.Styles()
	fmt.Fprintf(formatter.Writer, "%s Built %s (%s)\n\n", st.OK("✓"), result.CheckpointID, result.BuildVersion)
	fmt.Fprintln(formatter.Writer, "Artifacts:")
	for _, a := range result.Artifacts {
		fmt.Fprintf(formatter.Writer, "  %s  %s\n", a.SHA256, a.Name)
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "Manifest digest: %s\n", st.Muted(result.ManifestDigest))
	return nil
}
