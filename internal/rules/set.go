package rules

import (
	"fmt"
	"strings"
)

// Set is an ordered, immutable catalogue of rules. Declaration order breaks
// ties between issues reported on the same line.
type Set struct {
	rules []Rule
	index map[string]int
}

// NewSet builds a set, rejecting invalid rules and duplicate IDs.
func NewSet(rs ...Rule) (*Set, error) {
	s := &Set{
		rules: make([]Rule, 0, len(rs)),
		index: make(map[string]int, len(rs)),
	}
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rules.NewSet: %w", err)
		}
		if _, dup := s.index[r.ID]; dup {
			return nil, fmt.Errorf("rules.NewSet: duplicate rule id %q", r.ID)
		}
		s.index[r.ID] = len(s.rules)
		s.rules = append(s.rules, r)
	}
	return s, nil
}

// MustSet is NewSet for package-level catalogues.
func MustSet(rs ...Rule) *Set {
	s, err := NewSet(rs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Rules returns the rules in declaration order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

func (s *Set) Len() int { return len(s.rules) }

// IDs returns the rule IDs in declaration order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.rules))
	for i, r := range s.rules {
		ids[i] = r.ID
	}
	return ids
}

// Lookup returns the rule with the given ID.
func (s *Set) Lookup(id string) (Rule, bool) {
	i, ok := s.index[id]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// Order returns the declaration index of id. IDs not in the set (such as
// synthetic issues) sort after every declared rule.
func (s *Set) Order(id string) int {
	if i, ok := s.index[id]; ok {
		return i
	}
	return len(s.rules)
}

// Subset returns a set holding only the named rules, keeping this set's
// declaration order.
func (s *Set) Subset(ids []string) (*Set, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			return nil, fmt.Errorf("rules.Subset: unknown rule id %q (known: %s)", id, strings.Join(s.IDs(), ", "))
		}
		want[id] = true
	}
	var picked []Rule
	for _, r := range s.rules {
		if want[r.ID] {
			picked = append(picked, r)
		}
	}
	return NewSet(picked...)
}

// Extend returns a new set with extra rules appended after the existing ones.
func (s *Set) Extend(rs ...Rule) (*Set, error) {
	all := append(s.Rules(), rs...)
	return NewSet(all...)
}
