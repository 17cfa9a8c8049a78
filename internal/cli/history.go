package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
	Kind  string
}

// History kinds.
const (
	HistoryAll      = "all"
	HistoryBuilds   = "builds"
	HistoryInstalls = "installs"
)

// HistoryResult is the history command's output.
type HistoryResult struct {
	Builds   []store.BuildRecord   `json:"builds,omitempty"`
	Installs []store.InstallRecord `json:"installs,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded builds and installs",
		Long: `List builds and install attempts recorded in the history database,
newest first.

Example:
  hyena-release history
  hyena-release history --kind installs --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum records per kind (0 for all)")
	cmd.Flags().StringVar(&opts.Kind, "kind", HistoryAll, "records to list (all|builds|installs)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	switch opts.Kind {
	case HistoryAll, HistoryBuilds, HistoryInstalls:
	default:
		return fail(formatter, failure.New(failure.KindConfiguration, failure.CodeConfigInvalid,
			fmt.Sprintf("invalid kind %q: must be all, builds, or installs", opts.Kind)))
	}
	if opts.NoHistory {
		return fail(formatter, failure.New(failure.KindConfiguration, failure.CodeConfigInvalid,
			"history is disabled by --no-history"))
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(formatter, err)
	}
	if cfg.HistoryDB == "" {
		return fail(formatter, failure.New(failure.KindConfiguration, failure.CodeConfigInvalid,
			"history_db is not configured"))
	}
	st, err := store.Open(cfg.HistoryDB)
	if err != nil {
		return fail(formatter, failure.Wrap(err, failure.KindPrecondition, failure.CodeHistory,
			fmt.Sprintf("open history %s", cfg.HistoryDB)))
	}
	defer closeHistory(st)

	result, err := readHistory(cmd.Context(), st, opts)
	if err != nil {
		return fail(formatter, err)
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	outputHistoryText(formatter, opts.Kind, result)
	return nil
}

func readHistory(ctx context.Context, st *store.Store, opts *HistoryOptions) (HistoryResult, error) {
	var result HistoryResult
	if opts.Kind != HistoryInstalls {
		builds, err := st.ListBuilds(ctx, opts.Limit)
		if err != nil {
			return HistoryResult{}, err
		}
		result.Builds = builds
	}
	if opts.Kind != HistoryBuilds {
		installs, err := st.ListInstalls(ctx, opts.Limit)
		if err != nil {
			return HistoryResult{}, err
		}
		result.Installs = installs
	}
	return result, nil
}

func outputHistoryText(formatter *OutputFormatter, kind string, result HistoryResult) {
	st := formatter.Styles()
	w := formatter.Writer

	if kind != HistoryInstalls {
		fmt.Fprintln(w, "Builds:")
		if len(result.Builds) == 0 {
			fmt.Fprintf(w, "  %s\n", st.Muted("(none)"))
		}
		for _, b := range result.Builds {
			fmt.Fprintf(w, "  %s  %s  %s  %d artifact(s)\n",
				timestamp(b.BuiltAt), b.CheckpointID, b.BuildVersion, len(b.Artifacts))
		}
	}
	if kind == HistoryAll {
		fmt.Fprintln(w)
	}
	if kind != HistoryBuilds {
		fmt.Fprintln(w, "Installs:")
		if len(result.Installs) == 0 {
			fmt.Fprintf(w, "  %s\n", st.Muted("(none)"))
		}
		for _, in := range result.Installs {
			mark := st.OK("✓")
			if in.Outcome != store.OutcomeInstalled {
				mark = st.Fail("✗")
			}
			fmt.Fprintf(w, "  %s %s  %s  %s  %s\n",
				mark, timestamp(in.InstalledAt), in.Artifact, in.Source, in.Outcome)
		}
	}
}
