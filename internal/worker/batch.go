package worker

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ppiankov/geotag/internal/logging"
	"github.com/ppiankov/geotag/internal/model"
	"github.com/ppiankov/geotag/internal/pipeline"
)

// DocumentProcessor runs one loaded document into a sink
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, doc model.Document, sink pipeline.Sink) (*model.RunSummary, error)
}

// DocumentJob loads and processes one input file
type DocumentJob struct {
	Path      string
	Processor DocumentProcessor
	Sink      pipeline.Sink
}

// Execute executes the document job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	doc, err := pipeline.LoadDocument(j.Path)
	if err != nil {
		return &DocumentResult{Path: j.Path, Error: err}
	}

	summary, err := j.Processor.ProcessDocument(ctx, doc, j.Sink)
	return &DocumentResult{Path: j.Path, Summary: summary, Error: err}
}

// DocumentResult represents the result of a document job.
// Summary may be set alongside Error when a run stopped part way.
type DocumentResult struct {
	Path    string
	Summary *model.RunSummary
	Error   error
}

// GetError returns the error from the document result
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor processes multiple documents concurrently into a shared sink
type BatchProcessor struct {
	processor   DocumentProcessor
	sink        pipeline.Sink
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor DocumentProcessor, sink pipeline.Sink, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		sink:        sink,
		concurrency: concurrency,
	}
}

// ProcessFiles processes the documents at paths concurrently. Results are in
// input order; a document not started before ctx was cancelled gets ctx's error.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*DocumentResult {
	if len(paths) == 0 {
		return []*DocumentResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for _, path := range paths {
		pool.Submit(&DocumentJob{
			Path:      path,
			Processor: b.processor,
			Sink:      b.sink,
		})
	}

	results := pool.Wait()

	docResults := make([]*DocumentResult, len(paths))
	for i, path := range paths {
		if i < len(results) && results[i] != nil {
			docResults[i] = results[i].(*DocumentResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		docResults[i] = &DocumentResult{Path: path, Error: err}
	}

	log := logging.GetLogger()
	failed := 0
	for _, r := range docResults {
		if r.Error != nil {
			failed++
			log.WithError(r.Error).WithField("path", r.Path).Warn("Document failed")
		}
	}
	log.WithField("documents", len(paths)).WithField("failed", failed).Info("Batch finished")

	return docResults
}

// ProcessFile reads document paths from a list file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*DocumentResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessFiles(ctx, paths), nil
}

// ReadPathsFromFile reads document paths from a file (one per line).
// Relative paths are resolved against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}

// CollectDocuments returns the supported input files under root in lexical
// order. A root that is a file is returned as is.
func CollectDocuments(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if slices.Contains(pipeline.SupportedExtensions, strings.ToLower(filepath.Ext(path))) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return paths, nil
}
