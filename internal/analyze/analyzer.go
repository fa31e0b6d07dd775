// Package analyze turns raw page text into tokens, sentences and base entities.
package analyze

import (
	"context"
	"fmt"

	"github.com/ppiankov/geotag/internal/model"
)

// Doc is the analysis of one page
type Doc struct {
	Tokens    []model.Token
	Sentences []model.Sentence
	Entities  []model.EntitySpan // General-purpose recognizer output
}

// Analyzer tokenizes, tags and segments text
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Doc, error)
}

// New builds the analyzer selected by cfg
func New(cfg model.AnalyzerConfig, lexicon *SemanticLexicon) (Analyzer, error) {
	switch cfg.Kind {
	case "", "prose":
		return NewProseAnalyzer(lexicon), nil
	case "remote":
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("analyzer.remote_url is required for the remote analyzer")
		}
		return NewRemoteAnalyzer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown analyzer kind: %s (supported: prose, remote)", cfg.Kind)
	}
}

// sentenceOf returns the index of the sentence containing offset, or the last
// sentence starting before it
func sentenceOf(sentences []model.Sentence, offset int) int {
	idx := 0
	for i, s := range sentences {
		if s.Start > offset {
			break
		}
		idx = i
	}
	return idx
}
