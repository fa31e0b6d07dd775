package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/jinzhu/inflection"

	"github.com/ppiankov/geotag/internal/logging"
	"github.com/ppiankov/geotag/internal/model"
)

// ProseAnalyzer runs tokenization, POS tagging, segmentation and NER in process
type ProseAnalyzer struct {
	lexicon *SemanticLexicon
}

// NewProseAnalyzer creates an analyzer. A nil lexicon tags every word Z99.
func NewProseAnalyzer(lexicon *SemanticLexicon) *ProseAnalyzer {
	return &ProseAnalyzer{lexicon: lexicon}
}

// Analyze implements Analyzer
func (a *ProseAnalyzer) Analyze(ctx context.Context, text string) (*Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Doc{}
	if strings.TrimSpace(text) == "" {
		return out, nil
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	out.Sentences = locateSentences(text, doc.Sentences())

	log := logging.GetLogger()
	cursor := 0
	for _, tok := range doc.Tokens() {
		idx := strings.Index(text[cursor:], tok.Text)
		if tok.Text == "" || idx < 0 {
			log.WithField("token", tok.Text).Debug("Token not found in source text, skipped")
			continue
		}
		start := cursor + idx
		cursor = start + len(tok.Text)

		lemma := Lemma(tok.Text, tok.Tag)
		out.Tokens = append(out.Tokens, model.Token{
			Text:       tok.Text,
			Lemma:      lemma,
			POS:        UniversalPOS(tok.Tag),
			Start:      start,
			SentenceID: sentenceOf(out.Sentences, start),
			SemTags:    a.lexicon.Tags(tok.Text, lemma),
		})
	}

	out.Entities = locateEntities(out.Tokens, text, doc.Entities())

	return out, nil
}

func locateSentences(text string, sentences []prose.Sentence) []model.Sentence {
	var out []model.Sentence
	cursor := 0
	for _, s := range sentences {
		body := strings.TrimSpace(s.Text)
		if body == "" {
			continue
		}
		idx := strings.Index(text[cursor:], body)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		cursor = start + len(body)
		out = append(out, model.Sentence{Start: start, End: cursor})
	}

	if len(out) == 0 {
		return []model.Sentence{{Start: 0, End: len(text)}}
	}

	// Widen the last sentence so trailing tokens are never orphaned
	if out[len(out)-1].End < len(text) {
		out[len(out)-1].End = len(text)
	}
	return out
}

// locateEntities maps each recognized entity onto the first run of tokens,
// at or after the previous entity, whose texts spell the entity's words.
func locateEntities(tokens []model.Token, text string, entities []prose.Entity) []model.EntitySpan {
	var out []model.EntitySpan
	next := 0
	for _, ent := range entities {
		words := strings.Fields(ent.Text)
		if len(words) == 0 {
			continue
		}
		for i := next; i+len(words) <= len(tokens); i++ {
			if !tokensSpell(tokens[i:i+len(words)], words) {
				continue
			}
			last := tokens[i+len(words)-1]
			span := model.EntitySpan{Start: tokens[i].Start, End: last.End(), Label: ent.Label}
			span.Text = text[span.Start:span.End]
			out = append(out, span)
			next = i + len(words)
			break
		}
	}
	return out
}

func tokensSpell(tokens []model.Token, words []string) bool {
	for i, w := range words {
		if tokens[i].Text != w {
			return false
		}
	}
	return true
}

// Lemma lower-cases the token and singularizes nouns
func Lemma(text, pennTag string) string {
	lower := strings.ToLower(text)
	if pennTag == "NNS" || pennTag == "NNPS" {
		return inflection.Singular(lower)
	}
	return lower
}

var pennToUniversal = map[string]string{
	"CC": "CCONJ", "CD": "NUM", "DT": "DET", "EX": "PRON", "FW": "X",
	"IN": "ADP", "JJ": "ADJ", "JJR": "ADJ", "JJS": "ADJ", "LS": "X",
	"MD": "AUX", "NN": "NOUN", "NNS": "NOUN", "NNP": "PROPN", "NNPS": "PROPN",
	"PDT": "DET", "POS": "PART", "PRP": "PRON", "PRP$": "PRON", "RB": "ADV",
	"RBR": "ADV", "RBS": "ADV", "RP": "ADP", "SYM": "SYM", "TO": "PART",
	"UH": "INTJ", "VB": "VERB", "VBD": "VERB", "VBG": "VERB", "VBN": "VERB",
	"VBP": "VERB", "VBZ": "VERB", "WDT": "DET", "WP": "PRON", "WP$": "PRON",
	"WRB": "ADV", "$": "SYM", "#": "SYM",
}

// UniversalPOS maps a Penn Treebank tag to the coarse universal tag set used in output
func UniversalPOS(pennTag string) string {
	if u, ok := pennToUniversal[pennTag]; ok {
		return u
	}
	if pennTag == "" {
		return "X"
	}
	// Remaining Penn tags are punctuation: . , : `` '' ( ) -LRB- -RRB-
	return "PUNCT"
}
