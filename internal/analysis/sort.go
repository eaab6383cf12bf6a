package analysis

import "sort"

// SortIssues orders issues by ascending line, breaking ties with order,
// which maps a rule ID to its declaration index in the rule set.
func SortIssues(issues []Issue, order func(ruleID string) int) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Line != issues[j].Line {
			return issues[i].Line < issues[j].Line
		}
		if order == nil {
			return false
		}
		return order(issues[i].RuleID) < order(issues[j].RuleID)
	})
}

// SortBySeverity orders issues most severe first, then by line. Fix plans
// use it; the stored order stays line-first.
func SortBySeverity(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		oi, oj := issues[i].Severity.order(), issues[j].Severity.order()
		if oi != oj {
			return oi < oj
		}
		return issues[i].Line < issues[j].Line
	})
}
