package model

import "strconv"

// EntitySpan is a labeled character range of a page.
// Gazetteer/NER spans and semantic spans share this shape but never mix labels.
type EntitySpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"` // Exclusive
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Len returns the span length in bytes
func (e EntitySpan) Len() int {
	return e.End - e.Start
}

// Overlaps reports whether the two spans share at least one byte
func (e EntitySpan) Overlaps(o EntitySpan) bool {
	return e.Start < o.End && o.Start < e.End
}

// SemanticSpan is a run of consecutive tokens sharing a semantic tag family
type SemanticSpan struct {
	Start  int    `json:"start"`
	Text   string `json:"text"`
	Family string `json:"family"`
}

// GeoResult holds coordinates for a place name. Nil fields mean "absent".
type GeoResult struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// NewGeoResult builds a result with both coordinates present
func NewGeoResult(lat, lon float64) GeoResult {
	return GeoResult{Latitude: &lat, Longitude: &lon}
}

// Found reports whether both coordinates are present
func (g GeoResult) Found() bool {
	return g.Latitude != nil && g.Longitude != nil
}

func (g GeoResult) String() string {
	if !g.Found() {
		return "absent"
	}
	return strconv.FormatFloat(*g.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(*g.Longitude, 'f', -1, 64)
}
