package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/hyena-release/internal/digest"
	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/ledger"
)

// Check is the outcome of recomputing one artifact's hash.
type Check struct {
	Name     string `json:"name"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
}

// OK reports whether the recomputed hash matched.
func (c Check) OK() bool {
	return !c.Missing && c.Expected == c.Actual
}

// Report summarizes a verification run.
type Report struct {
	CheckpointID string  `json:"checkpoint_id"`
	Checks       []Check `json:"checks"`
}

// OK reports whether every artifact matched.
func (r Report) OK() bool {
	for _, c := range r.Checks {
		if !c.OK() {
			return false
		}
	}
	return true
}

// Err returns an integrity error for the first failed check, or nil.
func (r Report) Err() error {
	for _, c := range r.Checks {
		if c.Missing {
			return failure.New(failure.KindPrecondition, failure.CodeArtifactMissing,
				fmt.Sprintf("artifact %s listed in manifest is missing", c.Name))
		}
		if !c.OK() {
			return failure.Mismatch(failure.CodeHashMismatch,
				fmt.Sprintf("artifact %s does not match manifest", c.Name), c.Expected, c.Actual)
		}
	}
	return nil
}

// Verify recomputes the hash of every artifact in m from releaseDir.
// Only I/O failures other than a missing file are returned as errors;
// mismatches are reported in the Report.
func Verify(releaseDir string, m Manifest) (Report, error) {
	report := Report{CheckpointID: m.CheckpointID}
	for _, a := range m.Artifacts {
		check := Check{Name: a.Name, Expected: a.SHA256}
		sum, err := digest.File(filepath.Join(releaseDir, a.Name))
		switch {
		case errors.Is(err, os.ErrNotExist):
			check.Missing = true
		case err != nil:
			return Report{}, fmt.Errorf("verify %s: %w", a.Name, err)
		default:
			check.Actual = sum
		}
		report.Checks = append(report.Checks, check)
	}
	return report, nil
}

// CrossCheck confirms the ledger lists exactly the manifest's artifacts with
// the same hashes.
func CrossCheck(m Manifest, l ledger.Ledger) error {
	if len(l.Entries) != len(m.Artifacts) {
		return failure.Mismatch(failure.CodeLedgerDisagrees, "ledger and manifest list different artifact counts",
			fmt.Sprintf("%d", len(m.Artifacts)), fmt.Sprintf("%d", len(l.Entries)))
	}
	for _, a := range m.Artifacts {
		e, ok := l.Lookup(a.Name)
		if !ok {
			return failure.New(failure.KindIntegrity, failure.CodeLedgerDisagrees,
				fmt.Sprintf("ledger has no entry for %s", a.Name))
		}
		if e.SHA256 != a.SHA256 {
			return failure.Mismatch(failure.CodeLedgerDisagrees,
				fmt.Sprintf("ledger and manifest disagree on %s", a.Name), a.SHA256, e.SHA256)
		}
	}
	return nil
}
