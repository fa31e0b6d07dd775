package ner

import (
	"sort"
	"unicode/utf8"

	"github.com/ppiankov/geotag/internal/model"
)

type semMember struct {
	index int
	start int
	text  string
}

// CombineSemantic joins runs of consecutive tokens whose primary semantic tag
// shares its first letter with a family: Z1, Z2 and Z3 tokens all belong to
// family Z2. Tokens combine only when their indexes differ by exactly one; the
// character gap between them does not matter.
//
// Spans are returned sorted by start offset with one span per offset. When two
// families produce a span at the same offset, the family listed later wins.
func CombineSemantic(tokens []model.Token, families []string) []model.SemanticSpan {
	byStart := make(map[int]model.SemanticSpan)

	for _, family := range families {
		letter, _ := utf8.DecodeRuneInString(family)
		if letter == utf8.RuneError {
			continue
		}

		var members []semMember
		for i, tok := range tokens {
			if first, _ := utf8.DecodeRuneInString(tok.SemanticTag()); first == letter {
				members = append(members, semMember{index: i, start: tok.Start, text: tok.Text})
			}
		}

		for _, m := range combineRuns(members) {
			byStart[m.start] = model.SemanticSpan{Start: m.start, Text: m.text, Family: family}
		}
	}

	out := make([]model.SemanticSpan, 0, len(byStart))
	for _, s := range byStart {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// combineRuns is the reverse stack merge keyed on token index
func combineRuns(members []semMember) []semMember {
	if len(members) == 0 {
		return nil
	}

	stack := []semMember{members[len(members)-1]}
	for i := len(members) - 2; i >= 0; i-- {
		cur := members[i]
		top := stack[len(stack)-1]
		if top.index-cur.index == 1 {
			stack[len(stack)-1] = semMember{index: cur.index, start: cur.start, text: cur.text + " " + top.text}
			continue
		}
		stack = append(stack, cur)
	}
	return stack
}
