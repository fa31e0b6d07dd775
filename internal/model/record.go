package model

import "time"

// TagOutside is the IOB tag for tokens outside any entity
const TagOutside = "O"

// TaggedToken is the IOB record produced for one input token
type TaggedToken struct {
	Text    string     `json:"text"`
	Tag     string     `json:"tag"`     // "O", "B-<label>" or "I-<label>"
	Geocode *GeoResult `json:"geocode"` // Nil for non-location entities
}

// Page is one unit of an input document
type Page struct {
	ID   int    `json:"page_id"`
	Text string `json:"text"`
}

// Document is an ordered sequence of pages loaded from one source file
type Document struct {
	Name    string // Stem used for output naming
	Path    string
	Pages   []Page
	Skipped int // Malformed pages dropped by the loader
}

// TokenRecord is the persisted per-token output row
// Field names follow the established output schema consumed downstream.
type TokenRecord struct {
	Text      string        `json:"text"`
	Lemma     string        `json:"lemma"`
	POS       string        `json:"POS"`
	SemTags   []string      `json:"USAS_tags"`
	PageID    int           `json:"page_id"`
	StartChar int           `json:"start_char"`
	EndChar   int           `json:"end_char"`
	NE        *TaggedToken  `json:"NE"`                   // Nil for tokens tagged "O"
	SemEntity *SemanticSpan `json:"sem_entity,omitempty"` // Combined semantic span starting here
	Latitude  *float64      `json:"latitude"`
	Longitude *float64      `json:"longitude"`
}

// PageRecord is one flushed output unit
type PageRecord struct {
	RunID        string        `json:"run_id"`
	DocumentName string        `json:"document"`
	PageID       int           `json:"page_id"`
	Sequence     int           `json:"sequence"` // Flush order within the run, from 1
	Tokens       []TokenRecord `json:"tokens"`
}

// RunSummary describes one document run
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Document      string        `json:"document"`
	PagesSeen     int           `json:"pages_seen"`
	PagesSkipped  int           `json:"pages_skipped"`
	UnitsFlushed  int           `json:"units_flushed"`
	Tokens        int           `json:"tokens"`
	Entities      int           `json:"entities"`
	GeocodeHits   int           `json:"geocode_hits"`
	GeocodeMisses int           `json:"geocode_misses"`
	GeocodeCalls  int           `json:"geocode_calls"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
}
