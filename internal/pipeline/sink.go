package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ppiankov/geotag/internal/model"
)

// Sink persists flushed page units
type Sink interface {
	WritePage(ctx context.Context, page model.PageRecord) error
	Close() error
}

// RunRecorder is implemented by sinks that also store run summaries
type RunRecorder interface {
	RecordRun(ctx context.Context, summary model.RunSummary) error
}

// JSONSink writes one "<document>_page_<id>.json" file per unit, holding the
// unit's token records indented by four spaces. A unit flushed twice for the
// same page id overwrites the earlier file.
type JSONSink struct {
	dir string
}

// NewJSONSink creates dir if needed and returns a sink writing into it
func NewJSONSink(dir string) (*JSONSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &JSONSink{dir: dir}, nil
}

// PagePath returns the file a unit is written to
func (s *JSONSink) PagePath(document string, pageID int) string {
	return filepath.Join(s.dir, document+"_page_"+strconv.Itoa(pageID)+".json")
}

// WritePage implements Sink. The file is written to a temporary name and
// renamed so a reader never sees a partial unit.
func (s *JSONSink) WritePage(ctx context.Context, page model.PageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tokens := page.Tokens
	if tokens == nil {
		tokens = []model.TokenRecord{}
	}
	data, err := json.MarshalIndent(tokens, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal page: %w", err)
	}

	path := s.PagePath(page.DocumentName, page.PageID)
	tmp, err := os.CreateTemp(s.dir, ".geotag-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod page: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close page: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename page: %w", err)
	}

	return nil
}

// Close implements Sink
func (s *JSONSink) Close() error {
	return nil
}
