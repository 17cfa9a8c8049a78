package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/hyena-release/internal/ledger"
	"github.com/roach88/hyena-release/internal/manifest"
	"github.com/roach88/hyena-release/internal/pin"
)

// PinOptions holds flags for the pin command.
type PinOptions struct {
	*RootOptions
	Manifest string
}

// PinResult is the pin command's output.
type PinResult struct {
	CheckpointID string              `json:"checkpoint_id"`
	PinFile      string              `json:"pin_file"`
	PinLedger    string              `json:"pin_ledger"`
	Pinned       []manifest.Artifact `json:"pinned"`
}

// NewPinCommand creates the pin command.
func NewPinCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PinOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Promote a verified build to the committed pin files",
		Long: `Curator step. Verify the release manifest against the artifacts on disk,
then record its hashes in checksums-pin.txt and its identity in
release-pin.txt. Entries for other artifacts already in checksums-pin.txt
are kept.

The install command never runs this step; commit the updated files to
sanction the release.

Example:
  hyena-release build && hyena-release pin
  git add release-pin.txt checksums-pin.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "manifest path (default <release_dir>/release-manifest.json)")

	return cmd
}

func runPin(opts *PinOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, err)
	}
	manifestPath := cfg.ManifestPath()
	if opts.Manifest != "" {
		manifestPath = cfg.Abs(opts.Manifest)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return fail(formatter, err)
	}
	id, err := m.Identity()
	if err != nil {
		return fail(formatter, err)
	}
	report, err := manifest.Verify(filepath.Dir(manifestPath), m)
	if err != nil {
		return fail(formatter, err)
	}
	if err := report.Err(); err != nil {
		return fail(formatter, err)
	}

	pinned, err := ledger.ParseFile(cfg.PinLedger)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fail(formatter, err)
		}
		pinned = ledger.Ledger{}
	}
	for _, a := range m.Artifacts {
		pinned = pinned.Upsert(ledger.Entry{SHA256: a.SHA256, Name: a.Name})
	}

	// Ledger first: a pin must never name an identity whose hashes are absent.
	if err := pinned.WriteFile(cfg.PinLedger); err != nil {
		return fail(formatter, err)
	}
	if err := pin.Write(cfg.PinFile, id); err != nil {
		return fail(formatter, err)
	}

	result := PinResult{
		CheckpointID: id.String(),
		PinFile:      cfg.PinFile,
		PinLedger:    cfg.PinLedger,
		Pinned:       m.Artifacts,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	st := formatter.Styles()
	fmt.Fprintf(formatter.Writer, "%s Pinned %s\n", st.OK("✓"), result.CheckpointID)
	for _, a := range result.Pinned {
		fmt.Fprintf(formatter.Writer, "  %s  %s\n", a.SHA256, a.Name)
	}
	fmt.Fprintf(formatter.Writer, "%s\n", st.Muted("commit "+pin.File+" and "+ledger.PinFile+" to sanction this release"))
	return nil
}
