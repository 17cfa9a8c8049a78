package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/ledger"
	"github.com/roach88/hyena-release/internal/manifest"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Manifest string
	Pin      bool
}

// VerifyResult is the verify command's output.
type VerifyResult struct {
	CheckpointID   string           `json:"checkpoint_id"`
	Manifest       string           `json:"manifest"`
	ManifestDigest string           `json:"manifest_digest"`
	Checks         []manifest.Check `json:"checks"`
	LedgerAgrees   bool             `json:"ledger_agrees"`
	PinnedAgrees   *bool            `json:"pinned_agrees,omitempty"`
	OK             bool             `json:"ok"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute artifact hashes and check them against the manifest",
		Long: `Validate release-manifest.json against its schema, recompute the SHA-256
of every listed artifact, and confirm checksums.txt records the same hashes.

With --pin, also confirm the committed checksums-pin.txt agrees with the
manifest for every artifact it lists.

Example:
  hyena-release verify
  hyena-release verify --pin --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "manifest path (default <release_dir>/release-manifest.json)")
	cmd.Flags().BoolVar(&opts.Pin, "pin", false, "also check the committed pin ledger")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, err)
	}
	manifestPath, ledgerPath := cfg.ManifestPath(), cfg.BuildLedgerPath()
	if opts.Manifest != "" {
		manifestPath = cfg.Abs(opts.Manifest)
		ledgerPath = filepath.Join(filepath.Dir(manifestPath), ledger.BuildFile)
	}
	releaseDir := filepath.Dir(manifestPath)

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return fail(formatter, err)
	}
	formatter.VerboseLog("loaded manifest %s for %s", manifestPath, m.CheckpointID)

	report, err := manifest.Verify(releaseDir, m)
	if err != nil {
		return fail(formatter, err)
	}
	manifestDigest, err := m.Digest()
	if err != nil {
		return fail(formatter, err)
	}

	result := VerifyResult{
		CheckpointID:   m.CheckpointID,
		Manifest:       manifestPath,
		Checks:         report.Checks,
		ManifestDigest: manifestDigest,
	}

	// Report hash checks before the ledger cross-check so a tampered artifact
	// is named even when the ledger also disagrees.
	verr := report.Err()
	if verr == nil {
		buildLedger, err := ledger.ParseFile(ledgerPath)
		if err == nil {
			err = manifest.CrossCheck(m, buildLedger)
		}
		verr = err
		result.LedgerAgrees = err == nil
	}
	if verr == nil && opts.Pin {
		verr = checkPinned(m, cfg.PinLedger)
		agrees := verr == nil
		result.PinnedAgrees = &agrees
	}
	result.OK = verr == nil

	if formatter.Format != "json" {
		outputVerifyText(formatter, result)
	}
	if verr != nil {
		return fail(formatter, verr)
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return nil
}

// checkPinned confirms every manifest artifact that the pin ledger lists has
// the pinned hash. Artifacts the pin ledger does not list are ignored: other
// platforms may be pinned from other builds.
func checkPinned(m manifest.Manifest, pinLedgerPath string) error {
	pinned, err := ledger.ParseFile(pinLedgerPath)
	if err != nil {
		return err
	}
	for _, a := range m.Artifacts {
		e, ok := pinned.Lookup(a.Name)
		if !ok {
			continue
		}
		if e.SHA256 != a.SHA256 {
			return failure.Mismatch(failure.CodeLedgerDisagrees,
				fmt.Sprintf("%s pins a different hash for %s", ledger.PinFile, a.Name), e.SHA256, a.SHA256)
		}
	}
	return nil
}

func outputVerifyText(formatter *OutputFormatter, result VerifyResult) {
	st := formatter.Styles()
	w := formatter.Writer
	fmt.Fprintf(w, "Checkpoint %s\n", result.CheckpointID)
	for _, c := range result.Checks {
		switch {
		case c.Missing:
			fmt.Fprintf(w, "  %s %s  missing\n", st.Fail("✗"), c.Name)
		case !c.OK():
			fmt.Fprintf(w, "  %s %s  expected %s, got %s\n", st.Fail("✗"), c.Name, c.Expected, c.Actual)
		default:
			fmt.Fprintf(w, "  %s %s  %s\n", st.OK("✓"), c.Name, c.Actual)
		}
	}
	if result.LedgerAgrees {
		fmt.Fprintf(w, "  %s %s agrees with manifest\n", st.OK("✓"), ledger.BuildFile)
	}
	if result.PinnedAgrees != nil && *result.PinnedAgrees {
		fmt.Fprintf(w, "  %s %s agrees with manifest\n", st.OK("✓"), ledger.PinFile)
	}
	if result.OK {
		fmt.Fprintf(w, "%s Verified %d artifact(s)\n", st.OK("✓"), len(result.Checks))
	}
}
