// Package analyzer decides which search results are sign-industry leads.
package analyzer

import "strings"

// TermSet is a list of lowercase phrases matched as substrings, so "open"
// also matches "reopen" and "opening".
type TermSet struct {
	terms []string
}

// NewTermSet lowercases and de-duplicates terms, keeping their order.
// Surrounding spaces are kept so " inn" does not match "dinner".
func NewTermSet(terms ...string) TermSet {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(t)
		if strings.TrimSpace(t) == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return TermSet{terms: out}
}

// With returns a new set holding the receiver's terms followed by extra.
func (s TermSet) With(extra ...string) TermSet {
	all := make([]string, 0, len(s.terms)+len(extra))
	all = append(all, s.terms...)
	all = append(all, extra...)
	return NewTermSet(all...)
}

// First returns the first term found in lower, which must already be
// lowercase.
func (s TermSet) First(lower string) (string, bool) {
	for _, t := range s.terms {
		if strings.Contains(lower, t) {
			return t, true
		}
	}
	return "", false
}

// Any reports whether lower contains at least one term.
func (s TermSet) Any(lower string) bool {
	_, ok := s.First(lower)
	return ok
}

// All returns every term found in lower, in set order.
func (s TermSet) All(lower string) []string {
	var out []string
	for _, t := range s.terms {
		if strings.Contains(lower, t) {
			out = append(out, t)
		}
	}
	return out
}
