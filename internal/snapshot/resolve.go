package snapshot

import (
	"errors"
	"fmt"
)

// Resolution is the outcome of looking up the baseline for a run.
type Resolution struct {
	// Baseline is nil when there is nothing to compare against.
	Baseline *Snapshot
	// Bootstrapped is set on the baseline branch when no usable baseline
	// exists and the current run should become it.
	Bootstrapped bool
	Notice       string
}

// Resolve finds the baseline for a run of current on branch. A missing or
// unreadable baseline is never an error: on the baseline branch the run is
// promoted to baseline, elsewhere comparison is skipped with a notice.
func Resolve(st *Store, branch, baselineBranch string, current *Snapshot) Resolution {
	var excludeID string
	if current != nil {
		excludeID = current.ID
	}
	b, err := st.loadBaseline(baselineBranch, excludeID)
	if err == nil {
		return Resolution{Baseline: b}
	}

	reason := fmt.Sprintf("no baseline found for branch %q", baselineBranch)
	if !errors.Is(err, ErrNotFound) {
		reason = fmt.Sprintf("baseline for branch %q is unreadable (%v)", baselineBranch, err)
	}
	if branch == baselineBranch {
		return Resolution{
			Bootstrapped: true,
			Notice:       reason + "; this run becomes the new baseline",
		}
	}
	return Resolution{Notice: reason + "; comparison skipped"}
}
