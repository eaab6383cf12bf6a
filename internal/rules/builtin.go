package rules

import (
	"regexp"

	"github.com/dshills/perfguard/internal/analysis"
)

// Built-in rule IDs, in declaration order.
const (
	RuleEffectMissingDeps     = "effect-missing-deps"
	RuleMissingListKey        = "missing-list-key"
	RuleStaleClosureTimer     = "stale-closure-timer"
	RuleUnmemoizedComputation = "unmemoized-expensive-computation"
	RuleInlineObjectProp      = "inline-object-prop"
	RuleInlineArrayProp       = "inline-array-prop"
	RuleJSONDeepClone         = "json-deep-clone"
	RuleInlineFunctionProp    = "inline-function-prop"
	RuleInlineBindProp        = "inline-bind-prop"
	RuleIndexAsKey            = "index-as-key"
	RuleLargeListNoVirtualize = "large-list-without-virtualization"
	RuleConsoleInRender       = "console-in-render"
)

var (
	chainedComputation = regexp.MustCompile(`^\s*(?:const|let|var)\s+[^=]+=\s*[\w$.?\[\]]+\.(?:filter|sort|map|reduce|flatMap)\(.*\)\s*\.(?:filter|sort|map|reduce|flatMap)\(`)
	inlineObjectProp   = regexp.MustCompile(`\b([A-Za-z][\w-]*)=\{\{`)
	inlineArrayProp    = regexp.MustCompile(`\b([A-Za-z][\w-]*)=\{\[`)
	jsonDeepClone      = regexp.MustCompile(`JSON\.parse\(\s*JSON\.stringify\(`)
	inlineFunctionProp = regexp.MustCompile(`\b(on[A-Z]\w*)=\{\s*(?:async\s+)?(?:(?:\([^()]*\)|[A-Za-z_$][\w$]*)\s*=>|function\b)`)
	inlineBindProp     = regexp.MustCompile(`\b([A-Za-z][\w-]*)=\{[\w$.]+\.bind\(`)
	indexAsKey         = regexp.MustCompile(`\bkey=\{\s*(index|idx|i)\s*\}`)
	jsxListRender      = regexp.MustCompile(`\{\s*([\w$.]+)\.map\(`)
	virtualizationLib  = regexp.MustCompile(`react-window|react-virtualized|react-virtuoso|@tanstack/react-virtual`)
	consoleCall        = regexp.MustCompile(`\bconsole\.(log|debug|trace)\(`)
)

var builtin = MustSet(
	Rule{
		ID:         RuleEffectMissingDeps,
		Severity:   analysis.SeverityHigh,
		Match:      effectMissingDeps,
		Message:    "{match} has no dependency array and re-runs after every render.",
		Suggestion: "Pass a dependency array listing the values the effect reads.",
	},
	Rule{
		ID:         RuleMissingListKey,
		Severity:   analysis.SeverityHigh,
		Match:      missingListKey,
		Message:    "List items rendered as <{match}> have no key prop; React re-mounts them on every change.",
		Suggestion: "Add a stable key={item.id} to the element returned from map().",
	},
	Rule{
		ID:         RuleStaleClosureTimer,
		Severity:   analysis.SeverityMedium,
		Match:      staleClosureTimer,
		Message:    "{match} inside a hook with empty dependencies captures stale state.",
		Suggestion: "Use a functional state update or a ref, or list the values the callback reads as dependencies.",
	},
	Rule{
		ID:         RuleUnmemoizedComputation,
		Severity:   analysis.SeverityMedium,
		Match:      ExceptLines(LinePattern(chainedComputation), "useMemo", "useCallback"),
		Message:    "Chained array computation runs on every render.",
		Suggestion: "Wrap the computation in useMemo with the inputs as dependencies.",
	},
	Rule{
		ID:         RuleInlineObjectProp,
		Severity:   analysis.SeverityMedium,
		Match:      LinePattern(inlineObjectProp),
		Message:    "Object literal passed to prop {match} creates a new reference every render.",
		Suggestion: "Hoist the object to a constant or memoize it with useMemo.",
	},
	Rule{
		ID:         RuleInlineArrayProp,
		Severity:   analysis.SeverityMedium,
		Match:      LinePattern(inlineArrayProp),
		Message:    "Array literal passed to prop {match} creates a new reference every render.",
		Suggestion: "Hoist the array to a constant or memoize it with useMemo.",
	},
	Rule{
		ID:         RuleJSONDeepClone,
		Severity:   analysis.SeverityMedium,
		Match:      TextPattern(jsonDeepClone),
		Message:    "JSON round-trip used to deep clone an object.",
		Suggestion: "Use structuredClone() or copy only the fields that change.",
	},
	Rule{
		ID:         RuleInlineFunctionProp,
		Severity:   analysis.SeverityLow,
		Match:      LinePattern(inlineFunctionProp),
		Message:    "Inline function passed to {match} is re-allocated on every render.",
		Suggestion: "Define the handler with useCallback when passing it to memoized children.",
	},
	Rule{
		ID:         RuleInlineBindProp,
		Severity:   analysis.SeverityLow,
		Match:      LinePattern(inlineBindProp),
		Message:    "bind() in prop {match} creates a new function every render.",
		Suggestion: "Bind once in the constructor or use a class field arrow function.",
	},
	Rule{
		ID:         RuleIndexAsKey,
		Severity:   analysis.SeverityLow,
		Match:      LinePattern(indexAsKey),
		Message:    "Array index {match} used as key breaks reconciliation when items move.",
		Suggestion: "Use a stable identifier from the item as key.",
	},
	Rule{
		ID:         RuleLargeListNoVirtualize,
		Severity:   analysis.SeverityLow,
		Match:      Unless(virtualizationLib, LinePattern(jsxListRender)),
		Message:    "{match} is rendered in full without list virtualization.",
		Suggestion: "For long lists, render through react-window or a similar virtualized list.",
	},
	Rule{
		ID:         RuleConsoleInRender,
		Severity:   analysis.SeverityLow,
		Match:      LinePattern(consoleCall),
		Message:    "console.{match} left in source runs on every call.",
		Suggestion: "Remove the call or guard it behind a development check.",
	},
)

// Builtin returns the full built-in catalogue.
func Builtin() *Set {
	return builtin
}

// PatternRule compiles a line-oriented regexp rule, as used by custom rules
// declared in profiles.
func PatternRule(id string, sev analysis.Severity, pattern, message, suggestion string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, err
	}
	r := Rule{
		ID:         id,
		Severity:   sev,
		Match:      LinePattern(re),
		Message:    message,
		Suggestion: suggestion,
	}
	return r, r.Validate()
}
