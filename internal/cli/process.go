package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/geotag/internal/geocode"
	"github.com/ppiankov/geotag/internal/model"
	"github.com/ppiankov/geotag/internal/pipeline"
	"github.com/ppiankov/geotag/internal/worker"
)

var processTimeout time.Duration

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <file|dir>...",
	Short: "Tag and geocode documents one after another",
	Long: `Process runs each document through the tagging pipeline:
- Split the document into pages (JSON page lists, PDF, HTML, or form-feed text)
- Tag gazetteer entities and merge adjacent fragments
- Geocode place names with a per-document cache
- Write one IOB-tagged token unit per page

Directories are searched for supported files.

Example:
  geotag process journal.json
  geotag process ./letters --output-dir ./tagged
  geotag process tour.pdf --format sqlite --sqlite-path ./tagged/geotag.db
  geotag process notes.txt --no-geocode`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	addPipelineFlags(processCmd)

	processCmd.Flags().DurationVar(&processTimeout, "timeout", 0, "overall timeout (0 means none)")
}

// addPipelineFlags registers the flags shared by process and batch and binds
// them to their config keys
func addPipelineFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("output-dir", "", "output directory for page files")
	flags.String("format", "", "output format (json, sqlite)")
	flags.String("sqlite-path", "", "SQLite database path for --format sqlite")
	flags.String("analyzer", "", "base analyzer (prose, remote)")
	flags.String("analyzer-url", "", "remote analyzer base URL")
	flags.String("nominatim-url", "", "Nominatim base URL")
	flags.String("ua", "", "HTTP User-Agent for geocoding requests")
	flags.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	flags.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	flags.Bool("no-geocode", false, "disable geocoding")

	bindings := map[string]string{
		"output.dir":           "output-dir",
		"output.format":        "format",
		"output.sqlite_path":   "sqlite-path",
		"analyzer.kind":        "analyzer",
		"analyzer.remote_url":  "analyzer-url",
		"geocoder.base_url":    "nominatim-url",
		"geocoder.user_agent":  "ua",
		"geocoder.http_proxy":  "http-proxy",
		"geocoder.https_proxy": "https-proxy",
	}

	// Bound in PreRun so process and batch do not overwrite each other's bindings
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for key, name := range bindings {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return err
			}
		}
		return nil
	}
}

// applyFlagOverrides applies flags that cannot be expressed as a viper binding
func applyFlagOverrides(cmd *cobra.Command, cfg *model.Config) {
	if noGeocode, _ := cmd.Flags().GetBool("no-geocode"); noGeocode {
		cfg.Geocoder.Enabled = false
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM and after timeout, if set
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// openSink creates the sink selected by cfg.Output
func openSink(ctx context.Context, cfg *model.Config) (pipeline.Sink, string, error) {
	switch cfg.Output.Format {
	case "", "json":
		sink, err := pipeline.NewJSONSink(cfg.Output.Dir)
		return sink, cfg.Output.Dir, err
	case "sqlite":
		sink, err := pipeline.OpenSQLiteSink(ctx, cfg.Output.SQLitePath)
		return sink, cfg.Output.SQLitePath, err
	default:
		return nil, "", fmt.Errorf("unknown output format: %s (supported: json, sqlite)", cfg.Output.Format)
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	ctx, cancel := signalContext(processTimeout)
	defer cancel()

	var paths []string
	for _, arg := range args {
		found, err := worker.CollectDocuments(arg)
		if err != nil {
			return fmt.Errorf("collect documents: %w", err)
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported documents found (extensions: %v)", pipeline.SupportedExtensions)
	}

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

	if verbose {
		fmt.Fprintf(os.Stderr, "Documents: %d\n", len(paths))
		fmt.Fprintf(os.Stderr, "Output:    %s (%s)\n", dest, cfg.Output.Format)
		fmt.Fprintf(os.Stderr, "Geocoder:  %v\n", cfg.Geocoder.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	failures := 0
	for _, path := range paths {
		doc, err := pipeline.LoadDocument(path)
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			continue
		}

		summary, err := p.ProcessDocument(ctx, doc, sink)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			continue
		}

		printSummary(path, summary)
		if err := verifyStored(ctx, sink, summary); err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(paths))
	}
	return nil
}

func printSummary(path string, s *model.RunSummary) {
	fmt.Fprintf(os.Stderr, "✓ %s: %d pages (%d skipped), %d units, %d tokens, %d entities, geocode %d calls/%d hits [%s]\n",
		path, s.PagesSeen, s.PagesSkipped, s.UnitsFlushed, s.Tokens, s.Entities, s.GeocodeCalls, s.GeocodeHits, s.RunID)
}

// unitCounter is implemented by sinks that can count what they stored for a run
type unitCounter interface {
	PageCount(ctx context.Context, runID string) (int, error)
}

// verifyStored checks that a counting sink holds every unit the run flushed
func verifyStored(ctx context.Context, sink pipeline.Sink, s *model.RunSummary) error {
	counter, ok := sink.(unitCounter)
	if !ok {
		return nil
	}
	n, err := counter.PageCount(ctx, s.RunID)
	if err != nil {
		return fmt.Errorf("count stored units: %w", err)
	}
	if n != s.UnitsFlushed {
		return fmt.Errorf("run %s flushed %d units but %d are stored", s.RunID, s.UnitsFlushed, n)
	}
	return nil
}
