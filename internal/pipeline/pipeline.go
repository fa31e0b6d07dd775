// Package pipeline runs documents page by page through analysis, entity
// tagging, merging, geocoding and IOB conversion, and flushes one output unit
// per page.
package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/geotag/internal/analyze"
	"github.com/ppiankov/geotag/internal/cache"
	"github.com/ppiankov/geotag/internal/gazetteer"
	"github.com/ppiankov/geotag/internal/geocode"
	"github.com/ppiankov/geotag/internal/logging"
	"github.com/ppiankov/geotag/internal/model"
	"github.com/ppiankov/geotag/internal/ner"
)

// Options wires the collaborators of a Pipeline
type Options struct {
	Analyzer       analyze.Analyzer
	Store          *gazetteer.Store
	Geocoder       geocode.Geocoder // Upstream lookups; nil disables geocoding
	LocationLabels []string
	Families       []string // Semantic tag families to combine
}

// Pipeline orchestrates document processing. It is safe for concurrent use
// by several documents; per-run state lives in ProcessDocument.
type Pipeline struct {
	analyzer       analyze.Analyzer
	tagger         *ner.Tagger
	geocoder       geocode.Geocoder
	locationLabels []string
	families       []string
	log            *logrus.Logger
}

// New creates a pipeline from already-built collaborators
func New(opts Options) *Pipeline {
	store := opts.Store
	if store == nil {
		store = gazetteer.NewStore()
	}
	g := opts.Geocoder
	if g == nil {
		g = geocode.Disabled{}
	}

	return &Pipeline{
		analyzer:       opts.Analyzer,
		tagger:         ner.NewTagger(store),
		geocoder:       g,
		locationLabels: opts.LocationLabels,
		families:       opts.Families,
		log:            logging.GetLogger(),
	}
}

// NewFromConfig loads resources and builds every collaborator from cfg.
// limiter is shared with other pipelines of the process; it may be nil.
func NewFromConfig(cfg *model.Config, limiter *geocode.Limiter) (*Pipeline, error) {
	store, err := gazetteer.Load(cfg.Resources)
	if err != nil {
		return nil, err
	}

	lexicon, err := analyze.LoadSemanticLexicon(cfg.Resources.SemanticLexicon)
	if err != nil {
		return nil, err
	}

	analyzer, err := analyze.New(cfg.Analyzer, lexicon)
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}

	var g geocode.Geocoder
	if cfg.Geocoder.Enabled {
		if limiter == nil {
			limiter = geocode.NewLimiter(cfg.Geocoder.RequestsPerSecond, cfg.Geocoder.Burst)
		}
		g = geocode.NewNominatimClient(cfg.Geocoder, limiter)
	}

	logging.GetLogger().WithFields(logrus.Fields{
		"patterns": store.Len(),
		"labels":   store.CountByLabel(),
		"lexicon":  lexicon.Len(),
		"analyzer": cfg.Analyzer.Kind,
		"geocoder": cfg.Geocoder.Enabled,
	}).Debug("Pipeline resources loaded")

	return New(Options{
		Analyzer:       analyzer,
		Store:          store,
		Geocoder:       g,
		LocationLabels: cfg.Geocoder.LocationLabels,
		Families:       cfg.Semantic.Families,
	}), nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a new lexically sortable run id
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// ProcessDocument runs every page of doc in order and writes one unit per
// page id to sink. Each call is an independent run with its own geocode cache.
//
// A page that fails analysis is logged and skipped. On cancellation the page
// in flight and any records not yet flushed are dropped, units flushed earlier
// stay written, and ctx.Err() is returned with the partial summary.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc model.Document, sink Sink) (*model.RunSummary, error) {
	// Pages the loader already rejected count as seen and skipped
	summary := &model.RunSummary{
		RunID:        NewRunID(),
		Document:     doc.Name,
		PagesSeen:    doc.Skipped,
		PagesSkipped: doc.Skipped,
		StartedAt:    time.Now().UTC(),
	}
	log := p.log.WithFields(logrus.Fields{"run_id": summary.RunID, "document": doc.Name})

	places := cache.NewMemoryCache()
	geo := geocode.NewCachedGeocoder(p.geocoder, places)
	conv := ner.NewIOBConverter(geo, p.locationLabels)

	finish := func() {
		stats := geo.Stats()
		summary.GeocodeHits = stats.Hits
		summary.GeocodeMisses = stats.Misses
		summary.GeocodeCalls = stats.Calls
		summary.Duration = time.Since(summary.StartedAt)
	}

	acc := NewPageAccumulator(func(ctx context.Context, pageID int, records []model.TokenRecord) error {
		summary.UnitsFlushed++
		unit := model.PageRecord{
			RunID:        summary.RunID,
			DocumentName: doc.Name,
			PageID:       pageID,
			Sequence:     summary.UnitsFlushed,
			Tokens:       records,
		}
		if err := sink.WritePage(ctx, unit); err != nil {
			return fmt.Errorf("write page %d: %w", pageID, err)
		}
		log.WithFields(logrus.Fields{"page_id": pageID, "tokens": len(records)}).Debug("Flushed page")
		return nil
	})

	discard := func() {
		if n := acc.Pending(); n > 0 {
			log.WithField("records", n).Debug("Dropping unflushed records")
		}
		acc.Discard()
	}

	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			discard()
			finish()
			return summary, err
		}
		summary.PagesSeen++

		records, entities, err := p.processPage(ctx, conv, page)
		if err != nil {
			if ctx.Err() != nil {
				discard()
				finish()
				return summary, ctx.Err()
			}
			log.WithError(err).WithField("page_id", page.ID).Warn("Skipping page")
			summary.PagesSkipped++
			continue
		}

		for _, rec := range records {
			if err := acc.Add(ctx, rec); err != nil {
				finish()
				return summary, err
			}
		}
		summary.Tokens += len(records)
		summary.Entities += entities
	}

	if err := acc.Close(ctx); err != nil {
		finish()
		return summary, err
	}

	finish()
	if recorder, ok := sink.(RunRecorder); ok {
		if err := recorder.RecordRun(ctx, *summary); err != nil {
			return summary, fmt.Errorf("record run: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"pages":    summary.PagesSeen,
		"skipped":  summary.PagesSkipped,
		"units":    summary.UnitsFlushed,
		"tokens":   summary.Tokens,
		"entities": summary.Entities,
		"places":   places.Len(),
		"duration": summary.Duration.Round(time.Millisecond),
	}).Info("Document processed")

	return summary, nil
}

// processPage returns the token records of one page and its merged entity count
func (p *Pipeline) processPage(ctx context.Context, conv *ner.IOBConverter, page model.Page) ([]model.TokenRecord, int, error) {
	doc, err := p.analyzer.Analyze(ctx, page.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("analyze: %w", err)
	}

	merged := ner.Merge(p.tagger.Tag(page.Text, doc.Entities))
	semantic := ner.CombineSemantic(doc.Tokens, p.families)

	tagged, err := conv.Convert(ctx, doc.Tokens, doc.Sentences, merged)
	if err != nil {
		return nil, 0, err
	}

	return buildRecords(page.ID, doc.Tokens, tagged, semantic), len(merged), nil
}

func buildRecords(pageID int, tokens []model.Token, tagged []model.TaggedToken, semantic []model.SemanticSpan) []model.TokenRecord {
	semByStart := make(map[int]model.SemanticSpan, len(semantic))
	for _, s := range semantic {
		semByStart[s.Start] = s
	}

	records := make([]model.TokenRecord, len(tokens))
	for i, tok := range tokens {
		rec := model.TokenRecord{
			Text:      tok.Text,
			Lemma:     tok.Lemma,
			POS:       tok.POS,
			SemTags:   tok.SemTags,
			PageID:    pageID,
			StartChar: tok.Start,
			EndChar:   tok.End(),
		}

		if tt := tagged[i]; tt.Tag != model.TagOutside {
			rec.NE = &tt
			if tt.Geocode != nil {
				rec.Latitude = tt.Geocode.Latitude
				rec.Longitude = tt.Geocode.Longitude
			}
		}

		if s, ok := semByStart[tok.Start]; ok {
			rec.SemEntity = &s
		}

		records[i] = rec
	}
	return records
}
