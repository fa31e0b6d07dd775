package cli

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geotag/internal/geocode"
	"github.com/ppiankov/geotag/internal/pipeline"
	"github.com/ppiankov/geotag/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <list-file>",
	Short: "Process documents listed in a file in parallel",
	Long: `Batch processes multiple documents concurrently:
- Read document paths from the list file (one per line, # for comments)
- Process documents in parallel with a configurable worker count
- Each document is its own run with its own geocode cache
- Nominatim requests from all workers share one rate limit

Example:
  geotag batch inputs.txt
  geotag batch inputs.txt --concurrency 4 --output-dir ./tagged
  geotag batch inputs.txt --format sqlite --timeout 2h`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addPipelineFlags(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, fmt.Sprintf("number of concurrent documents (default from config, max useful %d)", runtime.NumCPU()))
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 0, "total timeout for batch processing (0 means none)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	ctx, cancel := signalContext(batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  geotag Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input list:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", cfg.Output.Format)
	fmt.Fprintf(os.Stderr, "  Geocoder:     %v\n", cfg.Geocoder.Enabled)
	if batchTimeout > 0 {
		fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	}
	fmt.Fprintf(os.Stderr, "\n")

	// One limiter for the process keeps all workers within the Nominatim policy
	limiter := geocode.NewLimiter(cfg.Geocoder.RequestsPerSecond, cfg.Geocoder.Burst)
	p, err := pipeline.NewFromConfig(cfg, limiter)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	sink, dest, err := openSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = sink.Close() }()

	processor := worker.NewBatchProcessor(p, sink, cfg.Concurrency.Workers)

	fmt.Fprintf(os.Stderr, "⚙️  Processing documents with %d workers...\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0
	pages := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		pages += result.Summary.UnitsFlushed
		printSummary(result.Path, result.Summary)
		if err := verifyStored(ctx, sink, result.Summary); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}
		successCount++
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Units:     %d\n", pages)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", dest)
	fmt.Fprintf(os.Stderr, "\n")

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
