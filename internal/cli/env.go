package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/hyena-release/internal/checkpoint"
	"github.com/roach88/hyena-release/internal/config"
	"github.com/roach88/hyena-release/internal/store"
)

// identityFlags are shared by commands that derive a checkpoint identity.
type identityFlags struct {
	Date   string // YYYYMMDD, overrides BUILD_DATE
	Commit string // overrides HYENA_COMMIT and git
	Arch   string // naming override only
	OS     string // naming override only
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	return config.Load(opts.Root, opts.Config, opts.getenv)
}

// revisionSource prefers an explicit commit (flag, then HYENA_COMMIT) over git.
func revisionSource(cfg config.Config, flags identityFlags) checkpoint.RevisionSource {
	commit := flags.Commit
	if commit == "" {
		commit = cfg.Commit
	}
	if commit != "" {
		return checkpoint.StaticRevisionSource{Commit: commit}
	}
	return checkpoint.GitRevisionSource{Dir: cfg.Root}
}

// deriveIdentity resolves the revision and date and derives the identity.
func deriveIdentity(ctx context.Context, opts *RootOptions, cfg config.Config, flags identityFlags) (checkpoint.Identity, checkpoint.Revision, error) {
	rev, err := revisionSource(cfg, flags).Revision(ctx)
	if err != nil {
		return "", checkpoint.Revision{}, err
	}
	override := flags.Date
	if override == "" {
		override = cfg.BuildDate
	}
	date, err := checkpoint.DateFromOverride(override, opts.now)
	if err != nil {
		return "", checkpoint.Revision{}, err
	}
	id, err := checkpoint.Derive(date, rev)
	if err != nil {
		return "", checkpoint.Revision{}, err
	}
	return id, rev, nil
}

// targetPlatform is the host platform with naming overrides applied.
func targetPlatform(cfg config.Config, flags identityFlags) checkpoint.Platform {
	arch, goos := cfg.Arch, cfg.OS
	if flags.Arch != "" {
		arch = flags.Arch
	}
	if flags.OS != "" {
		goos = flags.OS
	}
	return checkpoint.HostPlatform().WithOverrides(arch, goos)
}

// openHistory opens the history store. It returns nil when history is
// disabled or cannot be opened; history never decides a command's outcome.
func openHistory(opts *RootOptions, cfg config.Config) *store.Store {
	if opts.NoHistory || cfg.HistoryDB == "" {
		return nil
	}
	st, err := store.Open(cfg.HistoryDB)
	if err != nil {
		slog.Warn("history unavailable", "path", cfg.HistoryDB, "error", err)
		return nil
	}
	if opts.IDs != nil {
		st.WithIDs(opts.IDs)
	}
	return st
}

func closeHistory(st *store.Store) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		slog.Warn("error closing history", "error", err)
	}
}

func recordBuild(ctx context.Context, st *store.Store, rec store.BuildRecord) {
	if st == nil {
		return
	}
	if _, err := st.WriteBuild(ctx, rec); err != nil {
		slog.Warn("failed to record build", "checkpoint_id", rec.CheckpointID, "error", err)
	}
}

func recordInstall(ctx context.Context, st *store.Store, rec store.InstallRecord) {
	if st == nil {
		return
	}
	if _, err := st.WriteInstall(ctx, rec); err != nil {
		slog.Warn("failed to record install", "artifact", rec.Artifact, "error", err)
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(store.TimeLayout)
}
