package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hyena-release/internal/store"
)

// Version is the tool version, stamped at link time:
//
//	go build -ldflags "-X github.com/roach88/hyena-release/internal/cli.Version=1.2.0"
var Version = "0.0.0-dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Config    string // explicit config file; empty means <root>/.hyena/release.yaml
	Root      string // repository root
	NoHistory bool

	// Now overrides the wall clock (for testing). Defaults to time.Now.
	Now func() time.Time

	// Getenv overrides environment lookup (for testing). Defaults to os.Getenv.
	Getenv func(string) string

	// HTTPClient overrides the client used for remote installs (for testing).
	HTTPClient *http.Client

	// IDs overrides history record IDs (for testing). Defaults to UUIDv7.
	IDs store.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *RootOptions) getenv(key string) string {
	if o.Getenv != nil {
		return o.Getenv(key)
	}
	return os.Getenv(key)
}

// NewRootCommand creates the root command for the hyena-release CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hyena-release",
		Short: "Build, verify, and install pinned hyena checkpoints",
		Long: `Release pipeline for the hyena binary.

Every build is named by a checkpoint identity (cp-YYYYMMDD-<short sha>).
Builds emit a release manifest and a checksum ledger from one hashing pass.
Installs read the committed pin files and refuse any artifact whose hash
does not match the pinned ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(cmd, opts)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default <root>/.hyena/release.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", ".", "repository root")
	cmd.PersistentFlags().BoolVar(&opts.NoHistory, "no-history", false, "do not record builds and installs")

	// Add subcommands
	cmd.AddCommand(NewIDCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewInstallCommand(opts))
	cmd.AddCommand(NewPinCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// configureLogging installs the process-wide slog handler on stderr.
func configureLogging(cmd *cobra.Command, opts *RootOptions) {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
