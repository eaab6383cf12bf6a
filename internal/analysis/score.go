package analysis

import "fmt"

const (
	MaxScore = 100
	MinScore = 0
)

// Weights are the per-severity penalties subtracted from MaxScore.
type Weights struct {
	High   int `yaml:"high" json:"high" koanf:"high"`
	Medium int `yaml:"medium" json:"medium" koanf:"medium"`
	Low    int `yaml:"low" json:"low" koanf:"low"`
}

// DefaultWeights uses a 10:5:2 high:medium:low ratio.
var DefaultWeights = Weights{High: 10, Medium: 5, Low: 2}

// Validate rejects negative penalties and inverted severity ordering.
func (w Weights) Validate() error {
	if w.High < 0 || w.Medium < 0 || w.Low < 0 {
		return fmt.Errorf("weights must be non-negative, got %d/%d/%d", w.High, w.Medium, w.Low)
	}
	if w.High < w.Medium || w.Medium < w.Low {
		return fmt.Errorf("weights must satisfy high >= medium >= low, got %d/%d/%d", w.High, w.Medium, w.Low)
	}
	return nil
}

// IsZero reports whether no weight was configured.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

func (w Weights) penalty(sev Severity) int {
	switch sev {
	case SeverityHigh:
		return w.High
	case SeverityMedium:
		return w.Medium
	case SeverityLow:
		return w.Low
	}
	return 0
}

// Scorer reduces issues to a health score.
type Scorer struct {
	Weights Weights
}

// NewScorer returns a Scorer, falling back to DefaultWeights when w is zero.
func NewScorer(w Weights) Scorer {
	if w.IsZero() {
		w = DefaultWeights
	}
	return Scorer{Weights: w}
}

// Score starts at 100 and subtracts the penalty of every issue, clamping the
// running total to [0,100] after each subtraction.
func (s Scorer) Score(issues []Issue) int {
	score := MaxScore
	for _, iss := range issues {
		score -= s.Weights.penalty(iss.Severity)
		if score < MinScore {
			score = MinScore
		}
		if score > MaxScore {
			score = MaxScore
		}
	}
	return score
}

// Result builds an immutable per-file result from its issues.
func (s Scorer) Result(filePath string, issues []Issue) Result {
	if issues == nil {
		issues = []Issue{}
	}
	return Result{
		FilePath: filePath,
		Issues:   issues,
		Summary:  ComputeSummary(issues),
		Score:    s.Score(issues),
	}
}

// Verify checks that a result's derived fields match its issues, catching
// results that were edited by hand after being persisted.
func (s Scorer) Verify(r Result) error {
	if want := ComputeSummary(r.Issues); r.Summary != want {
		return fmt.Errorf("%s: summary %+v does not match issues %+v", r.FilePath, r.Summary, want)
	}
	if want := s.Score(r.Issues); r.Score != want {
		return fmt.Errorf("%s: score %d does not match computed %d", r.FilePath, r.Score, want)
	}
	return nil
}
