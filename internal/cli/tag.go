package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geotag/internal/analyze"
	"github.com/ppiankov/geotag/internal/pipeline"
)

// tagCmd represents the tag command
var tagCmd = &cobra.Command{
	Use:   "tag <input> <output>",
	Short: "Write POS and semantic tags for every token of a text file",
	Long: `Tag runs the base analyzer over the input file line by line and writes
one row per token:

  text<TAB>lemma<TAB>POS<TAB>['TAG', ...]

Output is flushed after every input line so progress is visible.

Example:
  geotag tag journal.txt tagged.tsv
  geotag tag journal.txt tagged.tsv --analyzer remote --analyzer-url http://localhost:8000`,
	Args: cobra.ExactArgs(2),
	RunE: runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().String("analyzer", "", "base analyzer (prose, remote)")
	tagCmd.Flags().String("analyzer-url", "", "remote analyzer base URL")
}

func runTag(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if kind, _ := cmd.Flags().GetString("analyzer"); kind != "" {
		cfg.Analyzer.Kind = kind
	}
	if url, _ := cmd.Flags().GetString("analyzer-url"); url != "" {
		cfg.Analyzer.RemoteURL = url
	}

	ctx, cancel := signalContext(0)
	defer cancel()

	lexicon, err := analyze.LoadSemanticLexicon(cfg.Resources.SemanticLexicon)
	if err != nil {
		return err
	}
	analyzer, err := analyze.New(cfg.Analyzer, lexicon)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = in.Close() }()

	if dir := filepath.Dir(args[1]); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	out, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Tagging %s...\n", args[0])
	lines, err := pipeline.TagLines(ctx, analyzer, in, out)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("tag %s: %w", args[0], err)
	}

	fmt.Fprintf(os.Stderr, "✓ Tagged %d lines into %s\n", lines, args[1])
	return nil
}
