package snapshot

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/dshills/perfguard/internal/analysis"
)

// ValidationError describes a single structural problem in a snapshot.
type ValidationError struct {
	Path    string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a decoded snapshot for structural validity and verifies
// that every derived score and count matches the recorded issues.
func Validate(s *Snapshot) []ValidationError {
	var errs []ValidationError

	if s.Version != FormatVersion {
		errs = append(errs, ValidationError{"version", fmt.Sprintf("unsupported version %d", s.Version)})
	}
	if _, err := ulid.ParseStrict(s.ID); err != nil {
		errs = append(errs, ValidationError{"id", fmt.Sprintf("invalid id %q", s.ID)})
	}
	if s.Timestamp.IsZero() {
		errs = append(errs, ValidationError{"timestamp", "required"})
	}
	if err := s.Weights.Validate(); err != nil {
		errs = append(errs, ValidationError{"weights", err.Error()})
	}
	scorer := analysis.NewScorer(s.Weights)

	for i, r := range s.Results {
		prefix := fmt.Sprintf("results[%d]", i)
		if r.FilePath == "" {
			errs = append(errs, ValidationError{prefix + ".file_path", "required"})
		} else if i > 0 && r.FilePath <= s.Results[i-1].FilePath {
			errs = append(errs, ValidationError{prefix + ".file_path", fmt.Sprintf("%q is duplicate or out of order", r.FilePath)})
		}
		for j, iss := range r.Issues {
			ip := fmt.Sprintf("%s.issues[%d]", prefix, j)
			if iss.RuleID == "" {
				errs = append(errs, ValidationError{ip + ".rule_id", "required"})
			}
			if iss.Line < 1 {
				errs = append(errs, ValidationError{ip + ".line", "must be >= 1"})
			}
			if !iss.Severity.Valid() {
				errs = append(errs, ValidationError{ip + ".severity", fmt.Sprintf("invalid: %q", iss.Severity)})
			}
		}
		if err := scorer.Verify(r); err != nil {
			errs = append(errs, ValidationError{prefix, err.Error()})
		}
	}

	if want := Aggregate(s.Results); s.Summary != want {
		errs = append(errs, ValidationError{"summary", fmt.Sprintf("recorded %+v does not match computed %+v", s.Summary, want)})
	}
	return errs
}
