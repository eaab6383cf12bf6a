package regression

import (
	"sort"

	"github.com/dshills/perfguard/internal/analysis"
	"github.com/dshills/perfguard/internal/snapshot"
)

// FileChange classifies a per-file delta.
type FileChange string

const (
	FileNew     FileChange = "new"
	FileRemoved FileChange = "removed"
	FileChanged FileChange = "changed"
)

// FileDelta is the change of one file between baseline and current.
// Missing sides count as a file with no issues.
type FileDelta struct {
	Path          string     `json:"path"`
	Change        FileChange `json:"change"`
	BaselineScore int        `json:"baseline_score"`
	CurrentScore  int        `json:"current_score"`
	ScoreDelta    int        `json:"score_delta"`
	HighDelta     int        `json:"high_delta"`
	TotalDelta    int        `json:"total_delta"`
}

// compareFiles lists files that were added, removed, or whose results
// differ, worst score delta first.
func compareFiles(current, baseline *snapshot.Snapshot) []FileDelta {
	empty := analysis.Result{Score: analysis.MaxScore}
	seen := make(map[string]bool, len(current.Results))
	deltas := []FileDelta{}

	for _, cur := range current.Results {
		seen[cur.FilePath] = true
		base, ok := baseline.Result(cur.FilePath)
		change := FileChanged
		if !ok {
			base, change = empty, FileNew
		} else if base.Score == cur.Score && base.Summary == cur.Summary {
			continue
		}
		deltas = append(deltas, delta(cur.FilePath, change, base, cur))
	}
	for _, base := range baseline.Results {
		if seen[base.FilePath] {
			continue
		}
		deltas = append(deltas, delta(base.FilePath, FileRemoved, base, empty))
	}

	sort.SliceStable(deltas, func(i, j int) bool {
		if deltas[i].ScoreDelta != deltas[j].ScoreDelta {
			return deltas[i].ScoreDelta < deltas[j].ScoreDelta
		}
		return deltas[i].Path < deltas[j].Path
	})
	return deltas
}

func delta(path string, change FileChange, base, cur analysis.Result) FileDelta {
	return FileDelta{
		Path:          path,
		Change:        change,
		BaselineScore: base.Score,
		CurrentScore:  cur.Score,
		ScoreDelta:    cur.Score - base.Score,
		HighDelta:     cur.Summary.High - base.Summary.High,
		TotalDelta:    cur.Summary.TotalIssues - base.Summary.TotalIssues,
	}
}
