package analyze

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ppiankov/geotag/internal/gazetteer"
)

// Semantic tags assigned when the lexicon has no entry
const (
	TagUnmatched   = "Z99"
	TagPunctuation = "PUNCT"
)

// SemanticLexicon maps words to USAS-style semantic tags, most likely first
type SemanticLexicon struct {
	entries map[string][]string
}

// NewSemanticLexicon builds a lexicon from word -> tags. Keys are case-insensitive.
func NewSemanticLexicon(entries map[string][]string) *SemanticLexicon {
	l := &SemanticLexicon{entries: make(map[string][]string, len(entries))}
	for word, tags := range entries {
		l.entries[strings.ToLower(word)] = tags
	}
	return l
}

// LoadSemanticLexicon reads a tab-separated "word<TAB>TAG TAG ..." file.
// Lines starting with '#' and lines without tags are ignored. An empty path
// yields an empty lexicon.
func LoadSemanticLexicon(path string) (*SemanticLexicon, error) {
	l := &SemanticLexicon{entries: make(map[string][]string)}
	if path == "" {
		return l, nil
	}

	lines, err := gazetteer.ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("%w: semantic lexicon: %v", gazetteer.ErrResourceLoad, err)
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		word, rest, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		word = strings.ToLower(strings.TrimSpace(word))
		tags := strings.Fields(rest)
		if word == "" || len(tags) == 0 {
			continue
		}
		if _, exists := l.entries[word]; !exists {
			l.entries[word] = tags
		}
	}

	return l, nil
}

// Len returns the number of entries
func (l *SemanticLexicon) Len() int {
	return len(l.entries)
}

// Tags returns the tags for a token, trying the surface form then the lemma.
// Punctuation gets PUNCT and unknown words get Z99.
func (l *SemanticLexicon) Tags(text, lemma string) []string {
	if isPunctuation(text) {
		return []string{TagPunctuation}
	}
	if l != nil {
		if tags, ok := l.entries[strings.ToLower(text)]; ok {
			return append([]string(nil), tags...)
		}
		if tags, ok := l.entries[strings.ToLower(lemma)]; ok {
			return append([]string(nil), tags...)
		}
	}
	return []string{TagUnmatched}
}

func isPunctuation(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
