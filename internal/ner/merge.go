package ner

import (
	"sort"

	"github.com/ppiankov/geotag/internal/model"
)

// Merge resolves overlapping spans and collapses adjacent same-label spans.
//
// Overlaps are resolved first: the longer span wins, then the earlier start,
// then the span that came first in the input (so gazetteer spans beat the base
// recognizer on an exact tie). Survivors are then walked from the last start
// to the first with an accumulator stack. A span is combined with the top of
// the stack when the labels are equal and the top starts at the span's end or
// one byte after it. Texts are joined with a single space.
//
// The result is in ascending start order and Merge(Merge(x)) == Merge(x).
func Merge(spans []model.EntitySpan) []model.EntitySpan {
	resolved := resolveOverlaps(spans)
	if len(resolved) == 0 {
		return []model.EntitySpan{}
	}

	stack := []model.EntitySpan{resolved[len(resolved)-1]}
	for i := len(resolved) - 2; i >= 0; i-- {
		cur := resolved[i]
		top := stack[len(stack)-1]
		if adjacent(cur, top) {
			stack[len(stack)-1] = model.EntitySpan{
				Start: cur.Start,
				End:   top.End,
				Label: cur.Label,
				Text:  cur.Text + " " + top.Text,
			}
			continue
		}
		stack = append(stack, cur)
	}

	// The stack holds spans from last to first
	for l, r := 0, len(stack)-1; l < r; l, r = l+1, r-1 {
		stack[l], stack[r] = stack[r], stack[l]
	}
	return stack
}

func adjacent(earlier, later model.EntitySpan) bool {
	if earlier.Label != later.Label {
		return false
	}
	return earlier.End == later.Start || earlier.End+1 == later.Start
}

// resolveOverlaps keeps a non-overlapping subset of spans sorted by start.
// Empty and inverted spans are dropped.
func resolveOverlaps(spans []model.EntitySpan) []model.EntitySpan {
	type candidate struct {
		span  model.EntitySpan
		order int
	}

	candidates := make([]candidate, 0, len(spans))
	for i, s := range spans {
		if s.End <= s.Start {
			continue
		}
		candidates = append(candidates, candidate{span: s, order: i})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.span.Len() != b.span.Len() {
			return a.span.Len() > b.span.Len()
		}
		if a.span.Start != b.span.Start {
			return a.span.Start < b.span.Start
		}
		return a.order < b.order
	})

	var kept []model.EntitySpan
	for _, c := range candidates {
		if overlapsAny(kept, c.span) {
			continue
		}
		kept = insertByStart(kept, c.span)
	}
	return kept
}

// overlapsAny checks s against kept, which is sorted by start and non-overlapping
func overlapsAny(kept []model.EntitySpan, s model.EntitySpan) bool {
	i := sort.Search(len(kept), func(i int) bool { return kept[i].End > s.Start })
	return i < len(kept) && kept[i].Overlaps(s)
}

func insertByStart(kept []model.EntitySpan, s model.EntitySpan) []model.EntitySpan {
	i := sort.Search(len(kept), func(i int) bool { return kept[i].Start > s.Start })
	kept = append(kept, model.EntitySpan{})
	copy(kept[i+1:], kept[i:])
	kept[i] = s
	return kept
}
