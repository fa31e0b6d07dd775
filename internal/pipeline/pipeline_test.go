package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/geotag/internal/analyze"
	"github.com/ppiankov/geotag/internal/gazetteer"
	"github.com/ppiankov/geotag/internal/model"
)

// fakeAnalyzer splits on whitespace and treats the page as one sentence
type fakeAnalyzer struct {
	semTags map[string][]string
	fail    map[string]error
	onText  func(text string)
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, text string) (*analyze.Doc, error) {
	if a.onText != nil {
		a.onText(text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.fail[text]; err != nil {
		return nil, err
	}

	doc := &analyze.Doc{Sentences: []model.Sentence{{Start: 0, End: len(text)}}}
	cursor := 0
	for _, word := range strings.Fields(text) {
		start := cursor + strings.Index(text[cursor:], word)
		cursor = start + len(word)
		doc.Tokens = append(doc.Tokens, model.Token{
			Text:    word,
			Lemma:   strings.ToLower(word),
			POS:     "PROPN",
			Start:   start,
			SemTags: a.semTags[word],
		})
	}
	return doc, nil
}

type fakeGeocoder struct {
	known map[string]model.GeoResult
	fail  map[string]bool
	calls []string
}

func (g *fakeGeocoder) Geocode(ctx context.Context, place string) (model.GeoResult, error) {
	g.calls = append(g.calls, place)
	if err := ctx.Err(); err != nil {
		return model.GeoResult{}, err
	}
	if g.fail[place] {
		// Upstream failures surface as absent results
		return model.GeoResult{}, nil
	}
	return g.known[place], nil
}

type memorySink struct {
	pages []model.PageRecord
	runs  []model.RunSummary
	err   error
}

func (s *memorySink) WritePage(_ context.Context, page model.PageRecord) error {
	if s.err != nil {
		return s.err
	}
	s.pages = append(s.pages, page)
	return nil
}

func (s *memorySink) RecordRun(_ context.Context, summary model.RunSummary) error {
	s.runs = append(s.runs, summary)
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) pageIDs() []int {
	ids := make([]int, len(s.pages))
	for i, p := range s.pages {
		ids[i] = p.PageID
	}
	return ids
}

func newTestPipeline(a *fakeAnalyzer, g *fakeGeocoder) *Pipeline {
	store := gazetteer.NewStore()
	store.Add(gazetteer.LabelPlaceName, "Keswick", "Skiddaw", "Derwent Water")
	store.Add(gazetteer.LabelGeoNoun, "fell")

	opts := Options{
		Analyzer:       a,
		Store:          store,
		LocationLabels: []string{gazetteer.LabelPlaceName, gazetteer.LabelGeoNoun},
		Families:       []string{"Z2"},
	}
	if g != nil {
		opts.Geocoder = g
	}
	return New(opts)
}

func keswickGeocoder() *fakeGeocoder {
	return &fakeGeocoder{known: map[string]model.GeoResult{
		"Keswick": model.NewGeoResult(54.6, -3.13),
		"Skiddaw": model.NewGeoResult(54.65, -3.14),
	}}
}

func doc(pages ...model.Page) model.Document {
	return model.Document{Name: "journal", Pages: pages}
}

func TestProcessDocument_OneUnitPerPageRun(t *testing.T) {
	sink := &memorySink{}
	p := newTestPipeline(&fakeAnalyzer{}, keswickGeocoder())

	summary, err := p.ProcessDocument(context.Background(), doc(
		model.Page{ID: 1, Text: "a b"},
		model.Page{ID: 1, Text: "c"},
		model.Page{ID: 1, Text: "d"},
		model.Page{ID: 2, Text: "e"},
		model.Page{ID: 2, Text: "f"},
		model.Page{ID: 3, Text: "g"},
	), sink)
	require.NoError(t, err)

	require.Equal(t, []int{1, 2, 3}, sink.pageIDs())
	texts := func(p model.PageRecord) []string {
		out := make([]string, len(p.Tokens))
		for i, tok := range p.Tokens {
			out[i] = tok.Text
		}
		return out
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, texts(sink.pages[0]))
	assert.Equal(t, []string{"e", "f"}, texts(sink.pages[1]))
	assert.Equal(t, []string{"g"}, texts(sink.pages[2]))

	for i, page := range sink.pages {
		assert.Equal(t, i+1, page.Sequence)
		assert.Equal(t, summary.RunID, page.RunID)
		assert.Equal(t, "journal", page.DocumentName)
	}

	assert.Equal(t, 6, summary.PagesSeen)
	assert.Equal(t, 0, summary.PagesSkipped)
	assert.Equal(t, 3, summary.UnitsFlushed)
	assert.Equal(t, 7, summary.Tokens)
	require.Len(t, sink.runs, 1)
	assert.Equal(t, summary.RunID, sink.runs[0].RunID)
}

func TestProcessDocument_OutOfOrderPagesFlushAgain(t *testing.T) {
	sink := &memorySink{}
	p := newTestPipeline(&fakeAnalyzer{}, nil)

	_, err := p.ProcessDocument(context.Background(), doc(
		model.Page{ID: 1, Text: "a"},
		model.Page{ID: 2, Text: "b"},
		model.Page{ID: 1, Text: "c"},
	), sink)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 1}, sink.pageIDs())
}

func TestProcessDocument_TagsAndGeocodes(t *testing.T) {
	sink := &memorySink{}
	geo := keswickGeocoder()
	p := newTestPipeline(&fakeAnalyzer{}, geo)

	summary, err := p.ProcessDocument(context.Background(), doc(
		model.Page{ID: 1, Text: "Keswick fell by Derwent Water"},
		model.Page{ID: 2, Text: "back to Keswick"},
	), sink)
	require.NoError(t, err)
	require.Len(t, sink.pages, 2)

	toks := sink.pages[0].Tokens
	require.Len(t, toks, 5)

	assert.Equal(t, "B-PLNAME", toks[0].NE.Tag)
	require.NotNil(t, toks[0].Latitude)
	assert.InDelta(t, 54.6, *toks[0].Latitude, 1e-9)
	assert.InDelta(t, -3.13, *toks[0].Longitude, 1e-9)

	// Location entity without coordinates keeps a geocode with null fields
	assert.Equal(t, "B-GEONOUN", toks[1].NE.Tag)
	require.NotNil(t, toks[1].NE.Geocode)
	assert.False(t, toks[1].NE.Geocode.Found())
	assert.Nil(t, toks[1].Latitude)

	assert.Nil(t, toks[2].NE, "O tokens carry no NE")
	assert.Equal(t, "B-PLNAME", toks[3].NE.Tag)
	assert.Equal(t, "I-PLNAME", toks[4].NE.Tag)
	assert.Same(t, toks[3].NE.Geocode, toks[4].NE.Geocode)

	assert.Equal(t, 16, toks[3].StartChar)
	assert.Equal(t, 24, toks[4].StartChar)
	assert.Equal(t, len("Keswick fell by Derwent Water"), toks[4].EndChar)

	// Keswick on page 2 comes from the run cache
	assert.Equal(t, []string{"Keswick", "fell", "Derwent Water"}, geo.calls)
	assert.Equal(t, 1, summary.GeocodeHits)
	assert.Equal(t, 3, summary.GeocodeCalls)
	assert.Equal(t, 4, summary.Entities)
}

func TestProcessDocument_EachRunHasItsOwnCache(t *testing.T) {
	geo := keswickGeocoder()
	p := newTestPipeline(&fakeAnalyzer{}, geo)
	d := doc(model.Page{ID: 1, Text: "Keswick"})

	first, err := p.ProcessDocument(context.Background(), d, &memorySink{})
	require.NoError(t, err)
	second, err := p.ProcessDocument(context.Background(), d, &memorySink{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Keswick", "Keswick"}, geo.calls)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Less(t, first.RunID, second.RunID)
}

func TestProcessDocument_GeocodeFailureIsContained(t *testing.T) {
	sink := &memorySink{}
	geo := keswickGeocoder()
	geo.fail = map[string]bool{"Keswick": true}
	p := newTestPipeline(&fakeAnalyzer{}, geo)

	_, err := p.ProcessDocument(context.Background(), doc(
		model.Page{ID: 1, Text: "Keswick and Skiddaw"},
	), sink)
	require.NoError(t, err)

	toks := sink.pages[0].Tokens
	assert.Equal(t, "B-PLNAME", toks[0].NE.Tag)
	assert.Nil(t, toks[0].Latitude)
	require.NotNil(t, toks[2].Latitude)
	assert.InDelta(t, 54.65, *toks[2].Latitude, 1e-9)
}

func TestProcessDocument_AnalysisFailureSkipsPage(t *testing.T) {
	sink := &memorySink{}
	a := &fakeAnalyzer{fail: map[string]error{"broken": errors.New("tokenizer crashed")}}
	p := newTestPipeline(a, nil)

	summary, err := p.ProcessDocument(context.Background(), doc(
		model.Page{ID: 1, Text: "a"},
		model.Page{ID: 2, Text: "broken"},
		model.Page{ID: 3, Text: "c"},
	), sink)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, sink.pageIDs())
	assert.Equal(t, 3, summary.PagesSeen)
	assert.Equal(t, 1, summary.PagesSkipped)
}

func TestProcessDocument_LoaderSkipsCounted(t *testing.T) {
	p := newTestPipeline(&fakeAnalyzer{}, nil)
	d := doc(model.Page{ID: 1, Text: "a"})
	d.Skipped = 2

	summary, err := p.ProcessDocument(context.Background(), d, &memorySink{})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.PagesSeen)
	assert.Equal(t, 2, summary.PagesSkipped)
}

func TestProcessDocument_EmptyPageProducesNoUnit(t *testing.T) {
	sink := &memorySink{}
	p := newTestPipeline(&fakeAnalyzer{}, nil)

	summary, err := p.ProcessDocument(context.Background(), doc(
		model.Page{ID: 1, Text: "   "},
		model.Page{ID: 2, Text: "b"},
	), sink)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, sink.pageIDs())
	assert.Equal(t, 2, summary.PagesSeen)
}

func TestProcessDocument_CancellationDropsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &memorySink{}
	a := &fakeAnalyzer{onText: func(text string) {
		if text == "stop" {
			cancel()
		}
	}}
	p := newTestPipeline(a, nil)

	summary, err := p.ProcessDocument(ctx, doc(
		model.Page{ID: 1, Text: "a"},
		model.Page{ID: 2, Text: "b"},
		model.Page{ID: 3, Text: "stop"},
		model.Page{ID: 4, Text: "d"},
	), sink)
	require.ErrorIs(t, err, context.Canceled)

	// Page 1 was flushed when page 2 began; page 2 was still pending
	assert.Equal(t, []int{1}, sink.pageIDs())
	assert.Equal(t, 1, summary.UnitsFlushed)
	assert.Empty(t, sink.runs)
}

func TestProcessDocument_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memorySink{}
	p := newTestPipeline(&fakeAnalyzer{}, nil)

	_, err := p.ProcessDocument(ctx, doc(model.Page{ID: 1, Text: "a"}), sink)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.pages)
}

func TestProcessDocument_SinkErrorStopsRun(t *testing.T) {
	boom := errors.New("read-only filesystem")
	sink := &memorySink{err: boom}
	p := newTestPipeline(&fakeAnalyzer{}, nil)

	_, err := p.ProcessDocument(context.Background(), doc(
		model.Page{ID: 1, Text: "a"},
		model.Page{ID: 2, Text: "b"},
	), sink)
	assert.ErrorIs(t, err, boom)
}

func TestProcessDocument_SemanticSpans(t *testing.T) {
	sink := &memorySink{}
	a := &fakeAnalyzer{semTags: map[string][]string{
		"Lake":     {"Z2"},
		"District": {"Z2"},
	}}
	p := newTestPipeline(a, nil)

	_, err := p.ProcessDocument(context.Background(), doc(
		model.Page{ID: 1, Text: "the Lake District"},
	), sink)
	require.NoError(t, err)

	toks := sink.pages[0].Tokens
	assert.Nil(t, toks[0].SemEntity)
	require.NotNil(t, toks[1].SemEntity)
	assert.Equal(t, model.SemanticSpan{Start: 4, Text: "Lake District", Family: "Z2"}, *toks[1].SemEntity)
	assert.Nil(t, toks[2].SemEntity)
	assert.Equal(t, []string{"Z2"}, toks[1].SemTags)
}

func TestBuildRecords(t *testing.T) {
	geo := model.NewGeoResult(1, 2)
	tokens := []model.Token{
		{Text: "to", Lemma: "to", POS: "ADP", Start: 0},
		{Text: "Keswick", Lemma: "keswick", POS: "PROPN", Start: 3},
	}
	tagged := []model.TaggedToken{
		{Text: "to", Tag: model.TagOutside},
		{Text: "Keswick", Tag: "B-PLNAME", Geocode: &geo},
	}

	recs := buildRecords(9, tokens, tagged, nil)
	require.Len(t, recs, 2)

	assert.Nil(t, recs[0].NE)
	assert.Nil(t, recs[0].Latitude)
	assert.Equal(t, 9, recs[0].PageID)
	assert.Equal(t, 2, recs[0].EndChar)

	require.NotNil(t, recs[1].NE)
	assert.Equal(t, "B-PLNAME", recs[1].NE.Tag)
	assert.Equal(t, 3, recs[1].StartChar)
	assert.Equal(t, 10, recs[1].EndChar)
	assert.Equal(t, 1.0, *recs[1].Latitude)
	assert.Equal(t, 2.0, *recs[1].Longitude)
}
