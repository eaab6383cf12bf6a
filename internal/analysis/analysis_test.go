package analysis

import (
	"testing"
	"time"
)

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityHigh, SeverityMedium, SeverityLow} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Severity("critical").Valid() {
		t.Error("expected critical severity to be invalid")
	}
	if _, ok := ParseSeverity("HIGH"); ok {
		t.Error("severity names are lowercase")
	}
}

// --- Score tests ---

func TestScore(t *testing.T) {
	s := NewScorer(Weights{})
	tests := []struct {
		name   string
		issues []Issue
		want   int
	}{
		{"empty", nil, 100},
		{"one high", []Issue{{Severity: SeverityHigh}}, 90},
		{"one medium", []Issue{{Severity: SeverityMedium}}, 95},
		{"one low", []Issue{{Severity: SeverityLow}}, 98},
		{"cumulative", []Issue{
			{Severity: SeverityHigh},
			{Severity: SeverityHigh},
			{Severity: SeverityMedium},
			{Severity: SeverityLow},
		}, 73},
		{"unknown severity ignored", []Issue{{Severity: "other"}}, 100},
		{"clamp at zero", make11High(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.issues); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func make11High() []Issue {
	issues := make([]Issue, 11)
	for i := range issues {
		issues[i].Severity = SeverityHigh
	}
	return issues
}

func TestScoreMonotonic(t *testing.T) {
	s := NewScorer(DefaultWeights)
	var issues []Issue
	prev := s.Score(issues)
	sevs := []Severity{SeverityLow, SeverityHigh, SeverityMedium}
	for i := 0; i < 40; i++ {
		issues = append(issues, Issue{Severity: sevs[i%len(sevs)]})
		got := s.Score(issues)
		if got > prev {
			t.Fatalf("score increased from %d to %d after adding issue %d", prev, got, i)
		}
		if got < MinScore || got > MaxScore {
			t.Fatalf("score %d out of range", got)
		}
		prev = got
	}
}

func TestScoreNegativeWeightsStayInRange(t *testing.T) {
	s := Scorer{Weights: Weights{High: -50, Medium: -50, Low: -50}}
	if got := s.Score([]Issue{{Severity: SeverityHigh}}); got != MaxScore {
		t.Errorf("Score() = %d, want clamp to %d", got, MaxScore)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights.Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
	if err := (Weights{High: 1, Medium: 5, Low: 2}).Validate(); err == nil {
		t.Error("expected inverted weights to be rejected")
	}
	if err := (Weights{High: 10, Medium: 5, Low: -1}).Validate(); err == nil {
		t.Error("expected negative weight to be rejected")
	}
}

// --- Summary tests ---

func TestComputeSummary(t *testing.T) {
	issues := []Issue{
		{Severity: SeverityHigh},
		{Severity: SeverityLow},
		{Severity: SeverityLow},
		{Severity: "bogus"},
	}
	s := ComputeSummary(issues)
	if s.High != 1 || s.Medium != 0 || s.Low != 2 {
		t.Errorf("unexpected buckets: %+v", s)
	}
	if s.High+s.Medium+s.Low != s.TotalIssues {
		t.Errorf("buckets %+v do not sum to total", s)
	}
}

func TestResultAndVerify(t *testing.T) {
	s := NewScorer(DefaultWeights)
	r := s.Result("src/App.tsx", []Issue{{RuleID: "x", Line: 3, Severity: SeverityMedium}})
	if r.Score != 95 || r.Summary.TotalIssues != 1 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if err := s.Verify(r); err != nil {
		t.Errorf("Verify() = %v", err)
	}

	r.Score = 100
	if err := s.Verify(r); err == nil {
		t.Error("expected hand-edited score to fail verification")
	}

	empty := s.Result("empty.ts", nil)
	if empty.Issues == nil || empty.Score != 100 {
		t.Errorf("empty result = %+v", empty)
	}
}

// --- Sort tests ---

func TestSortIssues(t *testing.T) {
	order := map[string]int{"a": 0, "b": 1, "c": 2}
	issues := []Issue{
		{RuleID: "c", Line: 4},
		{RuleID: "b", Line: 2},
		{RuleID: "a", Line: 4},
		{RuleID: "a", Line: 2},
	}
	SortIssues(issues, func(id string) int { return order[id] })

	want := []struct {
		id   string
		line int
	}{{"a", 2}, {"b", 2}, {"a", 4}, {"c", 4}}
	for i, w := range want {
		if issues[i].RuleID != w.id || issues[i].Line != w.line {
			t.Errorf("position %d: got %s@%d, want %s@%d", i, issues[i].RuleID, issues[i].Line, w.id, w.line)
		}
	}
}

func TestSortBySeverity(t *testing.T) {
	issues := []Issue{
		{RuleID: "1", Severity: SeverityLow, Line: 1},
		{RuleID: "2", Severity: SeverityHigh, Line: 9},
		{RuleID: "3", Severity: SeverityMedium, Line: 5},
		{RuleID: "4", Severity: SeverityHigh, Line: 3},
	}
	SortBySeverity(issues)
	expected := []string{"4", "2", "3", "1"}
	for i, id := range expected {
		if issues[i].RuleID != id {
			t.Errorf("position %d: got %s, want %s", i, issues[i].RuleID, id)
		}
	}
}

func TestTimeoutIssue(t *testing.T) {
	iss := TimeoutIssue(2 * time.Second)
	if iss.RuleID != RuleTimeout || iss.Line != 1 || !iss.Severity.Valid() {
		t.Errorf("unexpected timeout issue: %+v", iss)
	}
}
