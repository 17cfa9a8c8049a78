package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hyena-release/internal/checkpoint"
)

// IDOptions holds flags for the id command.
type IDOptions struct {
	*RootOptions
	identityFlags
}

// IDResult is the id command's output.
type IDResult struct {
	CheckpointID string `json:"checkpoint_id"`
	BuildVersion string `json:"build_version"`
	CommitSHA    string `json:"commit_sha"`
	Artifact     string `json:"artifact"`
}

// NewIDCommand creates the id command.
func NewIDCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IDOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "id",
		Short: "Print the checkpoint identity of the current checkout",
		Long: `Print the checkpoint identity cp-YYYYMMDD-<short sha> for the current
revision and build date. The same revision on the same UTC day always yields
the same identity.

Example:
  hyena-release id
  hyena-release id --date 20250601 --commit abc1234def5678abc1234def5678abc1234def56`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runID(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Date, "date", "", "build date YYYYMMDD (default BUILD_DATE or today, UTC)")
	cmd.Flags().StringVar(&opts.Commit, "commit", "", "full commit id (default HYENA_COMMIT or git HEAD)")
	cmd.Flags().StringVar(&opts.Arch, "arch", "", "artifact arch name override")
	cmd.Flags().StringVar(&opts.OS, "os", "", "artifact os name override")

	return cmd
}

func runID(opts *IDOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, err)
	}
	id, rev, err := deriveIdentity(cmd.Context(), opts.RootOptions, cfg, opts.identityFlags)
	if err != nil {
		return fail(formatter, err)
	}

	result := IDResult{
		CheckpointID: id.String(),
		BuildVersion: id.BuildVersion(),
		CommitSHA:    rev.Full,
		Artifact:     checkpoint.ArtifactName(id, targetPlatform(cfg, opts.identityFlags)),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, result.CheckpointID)
	formatter.VerboseLog("build version %s, commit %s, artifact %s", result.BuildVersion, result.CommitSHA, result.Artifact)
	return nil
}
