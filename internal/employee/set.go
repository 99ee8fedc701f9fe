// Package employee loads the reference set of valid employee identifiers
// from the auxiliary HR store.
package employee

import "strings"

// Set is a case-insensitive, trimmed set of employee identifiers. It is
// add-only; nothing is removed within a run.
type Set struct {
	ids map[string]struct{}
}

func NewSet(ids ...string) *Set {
	s := &Set{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Add inserts an identifier. Blank identifiers are ignored.
func (s *Set) Add(id string) {
	n := normalize(id)
	if n == "" {
		return
	}
	s.ids[n] = struct{}{}
}

// Contains reports whether the identifier is in the set. Blank identifiers
// are never contained.
func (s *Set) Contains(id string) bool {
	n := normalize(id)
	if n == "" {
		return false
	}
	_, ok := s.ids[n]
	return ok
}

// Len returns the number of distinct identifiers.
func (s *Set) Len() int {
	return len(s.ids)
}
