package model

// Token is a single analyzed token of a page.
// Offsets are byte offsets into the UTF-8 page text.
type Token struct {
	Text       string   `json:"text"`
	Lemma      string   `json:"lemma"`
	POS        string   `json:"pos"`
	Start      int      `json:"start"`    // Offset of the first byte
	SentenceID int      `json:"sentence"` // Index into the page's sentences
	SemTags    []string `json:"sem_tags"` // Semantic tags, most likely first
}

// End returns the offset one past the token's last byte
func (t Token) End() int {
	return t.Start + len(t.Text)
}

// SemanticTag returns the primary semantic tag, or "" when the token has none
func (t Token) SemanticTag() string {
	if len(t.SemTags) == 0 {
		return ""
	}
	return t.SemTags[0]
}

// Sentence is a sentence's character range within a page
type Sentence struct {
	Start int `json:"start"`
	End   int `json:"end"` // Exclusive
}

// Contains reports whether [start,end) lies fully inside the sentence
func (s Sentence) Contains(start, end int) bool {
	return start >= s.Start && end <= s.End
}
