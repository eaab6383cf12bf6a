package analysis

// Severity indicates how much an issue costs a file's health score.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// order returns a sort key (lower = more severe).
func (s Severity) order() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

// ParseSeverity accepts the lowercase names used in profiles and flags.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(s)
	return sev, sev.Valid()
}
