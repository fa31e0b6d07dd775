package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/geotag/internal/analyze"
	"github.com/ppiankov/geotag/internal/logging"
)

// TagLines analyzes r line by line and writes one tab-separated row per token
// to w: text, lemma, POS and the semantic tag list. Output is flushed after
// every input line. A line that fails analysis is logged and skipped.
// It returns the number of lines read.
func TagLines(ctx context.Context, a analyze.Analyzer, r io.Reader, w io.Writer) (int, error) {
	out := bufio.NewWriter(w)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	log := logging.GetLogger()

	lines := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return lines, err
		}
		lines++

		doc, err := a.Analyze(ctx, scanner.Text())
		if err != nil {
			if ctx.Err() != nil {
				return lines, ctx.Err()
			}
			log.WithError(err).WithField("line", lines).Warn("Skipping line")
			continue
		}

		for _, tok := range doc.Tokens {
			if _, err := fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", tok.Text, tok.Lemma, tok.POS, FormatTagList(tok.SemTags)); err != nil {
				return lines, err
			}
		}
		if err := out.Flush(); err != nil {
			return lines, err
		}
	}

	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("read input: %w", err)
	}
	return lines, out.Flush()
}

// FormatTagList renders tags as a bracketed, quoted list: ['Z2', 'M1']
func FormatTagList(tags []string) string {
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = "'" + t + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
