package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/perfguard/internal/regression"
	"github.com/dshills/perfguard/internal/snapshot"
)

// Tool is the name written into machine-readable reports.
const Tool = "perfguard"

// Run carries CI run facts that are not part of the comparison itself.
type Run struct {
	Version         string
	Bootstrapped    bool
	BaselineUpdated bool
	SnapshotPath    string
	Skipped         int
}

// CISummary is the headline block of the CI report.
type CISummary struct {
	Status        regression.Status `json:"status"`
	Score         int               `json:"score"`
	BaselineScore int               `json:"baseline_score"`
	ScoreDelta    int               `json:"score_delta"`
	Files         int               `json:"files"`
	SkippedFiles  int               `json:"skipped_files"`
	TotalIssues   int               `json:"total_issues"`
	High          int               `json:"high"`
	Medium        int               `json:"medium"`
	Low           int               `json:"low"`
}

// CIReport is the JSON document written by the ci command.
type CIReport struct {
	Tool            string            `json:"tool"`
	Version         string            `json:"version,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
	SnapshotID      string            `json:"snapshot_id"`
	SnapshotPath    string            `json:"snapshot_path,omitempty"`
	Branch          string            `json:"branch,omitempty"`
	Commit          string            `json:"commit,omitempty"`
	Summary         CISummary         `json:"summary"`
	HasRegressions  bool              `json:"has_regressions"`
	Bootstrapped    bool              `json:"bootstrapped"`
	BaselineUpdated bool              `json:"baseline_updated"`
	Comparison      regression.Report `json:"comparison"`
}

// NewCIReport assembles the CI report for a run.
func NewCIReport(rep regression.Report, snap *snapshot.Snapshot, run Run) CIReport {
	sum := snap.Summary
	return CIReport{
		Tool:         Tool,
		Version:      run.Version,
		GeneratedAt:  snap.Timestamp,
		SnapshotID:   snap.ID,
		SnapshotPath: run.SnapshotPath,
		Branch:       snap.Branch,
		Commit:       snap.Commit,
		Summary: CISummary{
			Status:        rep.Status,
			Score:         sum.Score,
			BaselineScore: rep.BaselineScore,
			ScoreDelta:    rep.ScoreDelta,
			Files:         sum.Files,
			SkippedFiles:  run.Skipped,
			TotalIssues:   sum.TotalIssues,
			High:          sum.High,
			Medium:        sum.Medium,
			Low:           sum.Low,
		},
		HasRegressions:  rep.HasRegressions,
		Bootstrapped:    run.Bootstrapped,
		BaselineUpdated: run.BaselineUpdated,
		Comparison:      rep,
	}
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("render.WriteJSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Annotations writes GitHub Actions workflow commands for each regression
// and for the report notice.
func Annotations(w io.Writer, rep regression.Report) error {
	var b strings.Builder
	if rep.Notice != "" {
		fmt.Fprintf(&b, "::notice title=Performance baseline::%s\n", escapeCommand(rep.Notice))
	}
	for _, v := range rep.Regressions {
		fmt.Fprintf(&b, "::warning title=Performance regression::%s\n", escapeCommand(v.Message))
	}
	for _, f := range rep.Files {
		if f.HighDelta > 0 {
			fmt.Fprintf(&b, "::warning file=%s,title=New high severity issues::%s gained %d high severity issues (score %s)\n",
				escapeProperty(f.Path), escapeCommand(f.Path), f.HighDelta, signed(f.ScoreDelta))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func escapeCommand(s string) string {
	r := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	return r.Replace(s)
}

func escapeProperty(s string) string {
	r := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")
	return r.Replace(s)
}
