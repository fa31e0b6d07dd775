// Package ner tags, merges and IOB-encodes entity spans over analyzed page text.
package ner

import (
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/geotag/internal/gazetteer"
	"github.com/ppiankov/geotag/internal/model"
)

// Tagger applies gazetteer patterns to page text
type Tagger struct {
	store   *gazetteer.Store
	lengths []int
}

// NewTagger creates a tagger over store. The store must not change afterwards.
func NewTagger(store *gazetteer.Store) *Tagger {
	return &Tagger{store: store, lengths: store.Lengths()}
}

// Tag returns the gazetteer matches in text order followed by the base spans.
// A match must start and end on a word boundary. At each position the longest
// matching pattern wins, and matched text is not re-scanned by shorter patterns.
// No deduplication is done against base.
func (t *Tagger) Tag(text string, base []model.EntitySpan) []model.EntitySpan {
	spans := t.match(text)
	return append(spans, base...)
}

func (t *Tagger) match(text string) []model.EntitySpan {
	var spans []model.EntitySpan
	if len(t.lengths) == 0 {
		return spans
	}

	i := 0
	for i < len(text) {
		if !boundaryBefore(text, i) {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}

		matched := 0
		for _, n := range t.lengths {
			end := i + n
			if end > len(text) {
				continue
			}
			label, ok := t.store.Lookup(text[i:end])
			if !ok || !boundaryAfter(text, end) {
				continue
			}
			spans = append(spans, model.EntitySpan{Start: i, End: end, Label: label, Text: text[i:end]})
			matched = n
			break
		}

		if matched > 0 {
			i += matched
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}

	return spans
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}
