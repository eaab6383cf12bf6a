package rules

import (
	"sort"
	"strings"
)

// Source is the text a matcher inspects, pre-split into lines. Code is Raw
// with every comment blanked to spaces; it has the same length and line
// breaks, so offsets into Code are offsets into Raw.
type Source struct {
	Raw   string
	Code  string
	Lines []string

	lineStarts []int
}

// NewSource splits text into lines and records line start offsets.
func NewSource(text string) *Source {
	src := &Source{Raw: text, Code: maskComments(text), Lines: strings.Split(text, "\n")}
	src.lineStarts = make([]int, 0, len(src.Lines))
	off := 0
	for _, l := range src.Lines {
		src.lineStarts = append(src.lineStarts, off)
		off += len(l) + 1
	}
	return src
}

// LineAt returns the 1-based line containing the byte offset.
func (s *Source) LineAt(offset int) int {
	if offset <= 0 {
		return 1
	}
	line := sort.SearchInts(s.lineStarts, offset+1)
	if line < 1 {
		return 1
	}
	return line
}

// isCommentLine reports whether a line is entirely a comment.
func isCommentLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/*") || strings.HasPrefix(t, "*")
}

// maskComments replaces the bytes of // and /* */ comments with spaces,
// keeping newlines. String literals are copied unchanged so that "//" in a
// URL is not taken for a comment.
func maskComments(raw string) string {
	if !strings.Contains(raw, "/") {
		return raw
	}
	b := []byte(raw)
	blank := func(from, to int) {
		for j := from; j < to; j++ {
			if b[j] != '\n' {
				b[j] = ' '
			}
		}
	}
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '"', '\'', '`':
			if end := skipString(raw, i); end > 0 {
				i = end
			}
		case '/':
			if i+1 >= len(b) {
				continue
			}
			switch b[i+1] {
			case '/':
				end := strings.IndexByte(raw[i:], '\n')
				if end < 0 {
					end = len(raw) - i
				}
				blank(i, i+end)
				i += end
			case '*':
				end := strings.Index(raw[i+2:], "*/")
				stop := len(raw)
				if end >= 0 {
					stop = i + 2 + end + 2
				}
				blank(i, stop)
				i = stop - 1
			}
		}
	}
	return string(b)
}
