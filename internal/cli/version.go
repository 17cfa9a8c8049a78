package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// VersionResult is the version command's output.
type VersionResult struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the hyena-release version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			result := VersionResult{
				Version:   Version,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			if formatter.Format == "json" {
				return formatter.Success(result)
			}
			fmt.Fprintf(formatter.Writer, "hyena-release %s\n", result.Version)
			return nil
		},
	}
}
