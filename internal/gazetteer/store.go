// Package gazetteer holds the labeled exact-match patterns used for entity tagging
// and loads them from flat word lists.
package gazetteer

import (
	"sort"
	"strings"
)

// Pattern is one labeled phrase
type Pattern struct {
	Label string
	Text  string
}

// Store is an immutable-after-load set of patterns.
// A phrase keeps the label it was first added with; later labels for the same
// phrase still count toward Len and CountByLabel but never win a match.
type Store struct {
	patterns []Pattern
	seen     map[Pattern]struct{}
	first    map[string]string // phrase -> first label
	lengths  []int             // distinct phrase byte lengths, descending
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		seen:  make(map[Pattern]struct{}),
		first: make(map[string]string),
	}
}

// Add registers phrases under label. Blank phrases and exact duplicates are ignored.
func (s *Store) Add(label string, phrases ...string) {
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		p := Pattern{Label: label, Text: phrase}
		if _, dup := s.seen[p]; dup {
			continue
		}
		s.seen[p] = struct{}{}
		s.patterns = append(s.patterns, p)
		if _, ok := s.first[phrase]; !ok {
			s.first[phrase] = label
			s.addLength(len(phrase))
		}
	}
}

func (s *Store) addLength(n int) {
	i := sort.Search(len(s.lengths), func(i int) bool { return s.lengths[i] <= n })
	if i < len(s.lengths) && s.lengths[i] == n {
		return
	}
	s.lengths = append(s.lengths, 0)
	copy(s.lengths[i+1:], s.lengths[i:])
	s.lengths[i] = n
}

// Len returns the number of distinct (label, phrase) patterns
func (s *Store) Len() int {
	return len(s.patterns)
}

// Lookup returns the winning label for an exact phrase
func (s *Store) Lookup(phrase string) (string, bool) {
	label, ok := s.first[phrase]
	return label, ok
}

// Lengths returns the distinct phrase byte lengths, longest first
func (s *Store) Lengths() []int {
	out := make([]int, len(s.lengths))
	copy(out, s.lengths)
	return out
}

// CountByLabel returns how many patterns each label holds
func (s *Store) CountByLabel() map[string]int {
	counts := make(map[string]int)
	for _, p := range s.patterns {
		counts[p.Label]++
	}
	return counts
}
