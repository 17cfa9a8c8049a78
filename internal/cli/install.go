package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hyena-release/internal/checkpoint"
	"github.com/roach88/hyena-release/internal/config"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/install"
	"github.com/roach88/hyena-release/internal/ledger"
	"github.com/roach88/hyena-release/internal/pin"
	"github.com/roach88/hyena-release/internal/store"
)

// Install sources.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// InstallOptions holds flags for the install command.
type InstallOptions struct {
	*RootOptions
	Source     string
	InstallDir string
	ReleaseURL string
	Arch       string
	OS         string
}

// InstallResult is the install command's output.
type InstallResult struct {
	CheckpointID string `json:"checkpoint_id"`
	Artifact     string `json:"artifact"`
	Source       string `json:"source"`
	SHA256       string `json:"sha256"`
	Path         string `json:"path"`
	Link         string `json:"link"`
	Previous     string `json:"previous,omitempty"`
}

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InstallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the pinned checkpoint after verifying its hash",
		Long: `Read CHECKPOINT_ID from release-pin.txt and the trusted hash from
checksums-pin.txt, fetch the artifact for this host from the local release
directory or the remote release store, verify it, and point the stable
"hyena" link at it.

Nothing is activated unless the hash matches the pinned ledger; the
previously installed artifact stays active on any failure.

Example:
  hyena-release install
  hyena-release install --source remote --release-url https://releases.example.com/hyena`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", SourceLocal, "artifact source (local|remote)")
	cmd.Flags().StringVar(&opts.InstallDir, "install-dir", "", "install directory (default install_dir or HYENA_INSTALL_DIR)")
	cmd.Flags().StringVar(&opts.ReleaseURL, "release-url", "", "remote release store base URL (default release_url or HYENA_RELEASE_URL)")
	cmd.Flags().StringVar(&opts.Arch, "arch", "", "artifact arch name override")
	cmd.Flags().StringVar(&opts.OS, "os", "", "artifact os name override")

	return cmd
}

func runInstall(opts *InstallOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Source != SourceLocal && opts.Source != SourceRemote {
		return fail(formatter, failure.New(failure.KindConfiguration, failure.CodeConfigInvalid,
			fmt.Sprintf("invalid source %q: must be %s or %s", opts.Source, SourceLocal, SourceRemote)))
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, err)
	}
	if opts.InstallDir != "" {
		cfg.InstallDir = cfg.Abs(opts.InstallDir)
	}
	if opts.ReleaseURL != "" {
		cfg.ReleaseURL = opts.ReleaseURL
	}

	id, err := pin.Read(cfg.PinFile)
	if err != nil {
		return fail(formatter, err)
	}
	pinned, err := ledger.ParseFile(cfg.PinLedger)
	if err != nil {
		return fail(formatter, err)
	}

	platform := targetPlatform(cfg, identityFlags{Arch: opts.Arch, OS: opts.OS})
	artifact := checkpoint.ArtifactName(id, platform)
	slog.Info("resolved pin", "checkpoint_id", id, "artifact", artifact, "source", opts.Source)

	previous, err := install.Active(cfg.InstallDir, install.DefaultLinkName)
	if err != nil {
		slog.Debug("cannot read active artifact", "install_dir", cfg.InstallDir, "error", err)
	}

	src := newSource(opts, cfg, id)
	installer := &install.Installer{
		InstallDir: cfg.InstallDir,
		Ledger:     pinned,
	}
	res, installErr := installer.Install(ctx, src, artifact)

	history := openHistory(opts.RootOptions, cfg)
	defer closeHistory(history)
	recordInstall(ctx, history, installRecord(id, artifact, opts.Source, res, installErr, opts.now()))

	if installErr != nil {
		return fail(formatter, installErr)
	}

	result := InstallResult{
		CheckpointID: id.String(),
		Artifact:     res.Artifact,
		Source:       res.Source,
		SHA256:       res.SHA256,
		Path:         res.Path,
		Link:         res.LinkPath,
		Previous:     previous,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	st := formatter.Styles()
	fmt.Fprintf(formatter.Writer, "%s Installed %s from %s\n", st.OK("✓"), result.Artifact, result.Source)
	fmt.Fprintf(formatter.Writer, "  sha256: %s\n", result.SHA256)
	fmt.Fprintf(formatter.Writer, "  %s -> %s\n", install.DefaultLinkName, result.Artifact)
	if result.Previous != "" && result.Previous != result.Artifact {
		fmt.Fprintf(formatter.Writer, "  %s\n", st.Muted("replaces "+result.Previous))
	}
	return nil
}

func newSource(opts *InstallOptions, cfg config.Config, id checkpoint.Identity) install.Source {
	if opts.Source == SourceRemote {
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Minute}
		}
		return install.RemoteSource{BaseURL: cfg.ReleaseURL, Tag: id, Client: client}
	}
	return install.LocalSource{ReleaseDir: cfg.ReleaseDir}
}

func installRecord(id checkpoint.Identity, artifact, source string, res install.Result, err error, now time.Time) store.InstallRecord {
	rec := store.InstallRecord{
		CheckpointID: id.String(),
		Artifact:     artifact,
		Source:       source,
		SHA256:       res.SHA256,
		Outcome:      store.OutcomeInstalled,
		InstalledAt:  now,
	}
	if err != nil {
		rec.Outcome = failure.CodeOf(err)
		if rec.Outcome == "" {
			rec.Outcome = "ERROR"
		}
	}
	return rec
}
