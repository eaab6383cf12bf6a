package analysis

// ComputeSummary counts issues per severity bucket. Issues with an unknown
// severity are not counted, so the buckets always sum to TotalIssues.
func ComputeSummary(issues []Issue) Summary {
	var s Summary
	for _, iss := range issues {
		switch iss.Severity {
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		default:
			continue
		}
		s.TotalIssues++
	}
	return s
}
