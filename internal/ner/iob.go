package ner

import (
	"context"
	"sort"
	"strings"

	"github.com/ppiankov/geotag/internal/geocode"
	"github.com/ppiankov/geotag/internal/model"
)

// IOBConverter encodes merged entity spans as per-token B-/I-/O tags and
// geocodes location entities
type IOBConverter struct {
	geocoder  geocode.Geocoder
	locations map[string]struct{}
}

// NewIOBConverter creates a converter. Spans whose label is in locationLabels
// are geocoded.
func NewIOBConverter(g geocode.Geocoder, locationLabels []string) *IOBConverter {
	locations := make(map[string]struct{}, len(locationLabels))
	for _, l := range locationLabels {
		locations[l] = struct{}{}
	}
	if g == nil {
		g = geocode.Disabled{}
	}
	return &IOBConverter{geocoder: g, locations: locations}
}

// IsLocation reports whether entities with label are geocoded. A prefixed
// label such as "X-GPE" is judged by its last dash-separated part.
func (c *IOBConverter) IsLocation(label string) bool {
	if _, ok := c.locations[label]; ok {
		return true
	}
	if i := strings.LastIndex(label, "-"); i >= 0 {
		_, ok := c.locations[label[i+1:]]
		return ok
	}
	return false
}

// Convert returns one tagged token per input token, in input order.
//
// merged must be non-overlapping and sorted by start, as Merge returns it.
// An entity is only considered for tokens of a sentence that fully contains
// it, so entities crossing a sentence boundary produce "O" tags. Each
// location entity is geocoded once and its result shared by all of its
// tokens. The only error returned is the context's.
func (c *IOBConverter) Convert(
	ctx context.Context,
	tokens []model.Token,
	sentences []model.Sentence,
	merged []model.EntitySpan,
) ([]model.TaggedToken, error) {
	out := make([]model.TaggedToken, len(tokens))
	geocoded := make(map[int]*model.GeoResult)
	opened := make(map[int]bool)

	for i, tok := range tokens {
		out[i] = model.TaggedToken{Text: tok.Text, Tag: model.TagOutside}

		idx := entityAt(merged, tok.Start)
		if idx < 0 {
			continue
		}
		ent := merged[idx]

		if tok.SentenceID < 0 || tok.SentenceID >= len(sentences) {
			continue
		}
		if !sentences[tok.SentenceID].Contains(ent.Start, ent.End) {
			continue
		}

		// The first token inside the entity opens it even when the entity
		// starts mid-token, so every tagged entity has exactly one B-.
		prefix := "I-"
		if !opened[idx] {
			prefix = "B-"
			opened[idx] = true
		}
		out[i].Tag = prefix + ent.Label

		if !c.IsLocation(ent.Label) {
			continue
		}

		geo, ok := geocoded[idx]
		if !ok {
			result, err := c.geocoder.Geocode(ctx, ent.Text)
			if err != nil {
				return nil, err
			}
			geo = &result
			geocoded[idx] = geo
		}
		out[i].Geocode = geo
	}

	return out, nil
}

// entityAt returns the index of the span containing offset, or -1
func entityAt(spans []model.EntitySpan, offset int) int {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].End > offset })
	if i < len(spans) && spans[i].Start <= offset {
		return i
	}
	return -1
}
