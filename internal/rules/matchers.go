package rules

import (
	"regexp"
	"strings"
)

// LinePattern reports one match per occurrence of re on each non-comment
// line. When re has a capture group, the first group becomes Match.Text.
func LinePattern(re *regexp.Regexp) Matcher {
	return func(src *Source) []Match {
		var out []Match
		for i, line := range src.Lines {
			if isCommentLine(line) {
				continue
			}
			for _, loc := range re.FindAllStringSubmatchIndex(line, -1) {
				out = append(out, Match{Line: i + 1, Text: matchText(line, loc)})
			}
		}
		return out
	}
}

// TextPattern runs re over the comment-free text, for patterns spanning
// lines. A match is reported on the line where it starts.
func TextPattern(re *regexp.Regexp) Matcher {
	return func(src *Source) []Match {
		var out []Match
		for _, loc := range re.FindAllStringSubmatchIndex(src.Code, -1) {
			out = append(out, Match{Line: src.LineAt(loc[0]), Text: matchText(src.Code, loc)})
		}
		return out
	}
}

// Unless drops every match when the comment-free source matches skip.
func Unless(skip *regexp.Regexp, m Matcher) Matcher {
	return func(src *Source) []Match {
		if skip.MatchString(src.Code) {
			return nil
		}
		return m(src)
	}
}

// ExceptLines drops matches on lines containing any of the markers.
func ExceptLines(m Matcher, markers ...string) Matcher {
	return func(src *Source) []Match {
		var out []Match
		for _, mt := range m(src) {
			line := ""
			if mt.Line-1 < len(src.Lines) {
				line = src.Lines[mt.Line-1]
			}
			if containsAny(line, markers) {
				continue
			}
			out = append(out, mt)
		}
		return out
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func matchText(s string, loc []int) string {
	if len(loc) >= 4 && loc[2] >= 0 {
		return s[loc[2]:loc[3]]
	}
	return s[loc[0]:loc[1]]
}

// hookCall describes one call of a React hook found in source text.
type hookCall struct {
	name   string
	offset int
	args   []string
}

var hookCallPattern = regexp.MustCompile(`\b(useEffect|useLayoutEffect|useCallback|useMemo)\s*\(`)

// findHookCalls locates hook calls and splits their top-level arguments.
// Calls with unbalanced parentheses are skipped.
func findHookCalls(raw string) []hookCall {
	var calls []hookCall
	for _, loc := range hookCallPattern.FindAllStringSubmatchIndex(raw, -1) {
		open := loc[1] - 1
		args, ok := splitArgs(raw, open)
		if !ok {
			continue
		}
		calls = append(calls, hookCall{name: raw[loc[2]:loc[3]], offset: loc[0], args: args})
	}
	return calls
}

// splitArgs returns the top-level comma separated arguments of the call
// whose opening parenthesis is at raw[open]. It skips string literals and
// comments while tracking bracket depth.
func splitArgs(raw string, open int) ([]string, bool) {
	depth := 0
	start := open + 1
	var args []string
	for i := open; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '"', '\'', '`':
			end := skipString(raw, i)
			if end < 0 {
				return nil, false
			}
			i = end
		case '/':
			if i+1 < len(raw) && raw[i+1] == '/' {
				nl := strings.IndexByte(raw[i:], '\n')
				if nl < 0 {
					return nil, false
				}
				i += nl
			} else if i+1 < len(raw) && raw[i+1] == '*' {
				end := strings.Index(raw[i+2:], "*/")
				if end < 0 {
					return nil, false
				}
				i += end + 3
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				if c != ')' {
					return nil, false
				}
				if last := strings.TrimSpace(raw[start:i]); last != "" {
					args = append(args, last)
				}
				return args, true
			}
		case ',':
			if depth == 1 {
				args = append(args, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
	}
	return nil, false
}

// skipString returns the index of the closing quote of the literal that
// opens at raw[i], or -1 when it is unterminated.
func skipString(raw string, i int) int {
	q := raw[i]
	for j := i + 1; j < len(raw); j++ {
		switch raw[j] {
		case '\\':
			j++
		case q:
			return j
		case '\n':
			if q != '`' {
				return -1
			}
		}
	}
	return -1
}

func effectMissingDeps(src *Source) []Match {
	var out []Match
	for _, c := range findHookCalls(src.Code) {
		if c.name != "useEffect" && c.name != "useLayoutEffect" {
			continue
		}
		if len(c.args) < 2 {
			out = append(out, Match{Line: src.LineAt(c.offset), Text: c.name})
		}
	}
	return out
}

var timerPattern = regexp.MustCompile(`\b(setInterval|setTimeout|addEventListener)\s*\(`)

func staleClosureTimer(src *Source) []Match {
	var out []Match
	for _, c := range findHookCalls(src.Code) {
		if c.name == "useMemo" || len(c.args) < 2 {
			continue
		}
		if strings.Join(strings.Fields(c.args[1]), "") != "[]" {
			continue
		}
		if m := timerPattern.FindStringSubmatch(c.args[0]); m != nil {
			out = append(out, Match{Line: src.LineAt(c.offset), Text: m[1]})
		}
	}
	return out
}

var mapToElementPattern = regexp.MustCompile(`\.map\(\s*(?:async\s+)?(?:\([^()]*\)|[A-Za-z_$][\w$]*)\s*=>\s*\(?\s*<([A-Za-z][\w.]*)`)

// missingListKey flags .map callbacks whose root JSX element has no key
// attribute. The attribute region ends at the first '>' not part of '=>'.
func missingListKey(src *Source) []Match {
	var out []Match
	for _, loc := range mapToElementPattern.FindAllStringSubmatchIndex(src.Code, -1) {
		attrs := tagAttributes(src.Code[loc[1]:])
		if strings.Contains(attrs, "key=") {
			continue
		}
		out = append(out, Match{Line: src.LineAt(loc[0]), Text: src.Code[loc[2]:loc[3]]})
	}
	return out
}

func tagAttributes(rest string) string {
	for i := 0; i < len(rest); i++ {
		if rest[i] == '>' && (i == 0 || rest[i-1] != '=') {
			return rest[:i]
		}
	}
	return rest
}
