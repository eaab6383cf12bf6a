// Package snapshot defines the persisted record of an analysis run and the
// filesystem store that keeps run snapshots and branch baselines.
package snapshot

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dshills/perfguard/internal/analysis"
)

// FormatVersion is written into every snapshot document.
const FormatVersion = 1

// Snapshot is the immutable result of one analysis run.
type Snapshot struct {
	Version   int               `json:"version"`
	ID        string            `json:"id"`
	Branch    string            `json:"branch,omitempty"`
	Commit    string            `json:"commit,omitempty"`
	Profile   string            `json:"profile,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Weights   analysis.Weights  `json:"weights"`
	Summary   Summary           `json:"summary"`
	Results   []analysis.Result `json:"results"`
}

// Summary aggregates a snapshot's results. Score is the rounded mean of the
// per-file scores, or 100 when no files were analyzed.
type Summary struct {
	Score       int `json:"score"`
	Files       int `json:"files"`
	TotalIssues int `json:"total_issues"`
	High        int `json:"high"`
	Medium      int `json:"medium"`
	Low         int `json:"low"`
}

// Counts returns the severity buckets as an analysis.Summary.
func (s Summary) Counts() analysis.Summary {
	return analysis.Summary{TotalIssues: s.TotalIssues, High: s.High, Medium: s.Medium, Low: s.Low}
}

// Meta carries the run metadata recorded alongside results.
type Meta struct {
	Branch  string
	Commit  string
	Profile string
	Weights analysis.Weights
	Time    time.Time
}

// Aggregate computes the snapshot summary for results.
func Aggregate(results []analysis.Result) Summary {
	sum := Summary{Score: analysis.MaxScore, Files: len(results)}
	if len(results) == 0 {
		return sum
	}
	var counts analysis.Summary
	total := 0
	for _, r := range results {
		counts = counts.Add(r.Summary)
		total += r.Score
	}
	sum.Score = int(math.Round(float64(total) / float64(len(results))))
	sum.TotalIssues = counts.TotalIssues
	sum.High = counts.High
	sum.Medium = counts.Medium
	sum.Low = counts.Low
	return sum
}

// New builds a snapshot with a freshly minted ID. Results are sorted by
// file path; a path that appears twice is an error.
func New(results []analysis.Result, meta Meta) (*Snapshot, error) {
	sorted := make([]analysis.Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FilePath < sorted[j].FilePath
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].FilePath == sorted[i-1].FilePath {
			return nil, fmt.Errorf("snapshot: duplicate result for %q", sorted[i].FilePath)
		}
	}

	ts := meta.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	w := meta.Weights
	if w.IsZero() {
		w = analysis.DefaultWeights
	}
	return &Snapshot{
		Version:   FormatVersion,
		ID:        ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String(),
		Branch:    meta.Branch,
		Commit:    meta.Commit,
		Profile:   meta.Profile,
		Timestamp: ts,
		Weights:   w,
		Summary:   Aggregate(sorted),
		Results:   sorted,
	}, nil
}

// Result returns the result recorded for filePath.
func (s *Snapshot) Result(filePath string) (analysis.Result, bool) {
	i := sort.Search(len(s.Results), func(i int) bool {
		return s.Results[i].FilePath >= filePath
	})
	if i < len(s.Results) && s.Results[i].FilePath == filePath {
		return s.Results[i], true
	}
	return analysis.Result{}, false
}
