package gazetteer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/encoding/charmap"

	"github.com/ppiankov/geotag/internal/model"
)

// Entity labels produced by the gazetteer
const (
	LabelPlant      = "PLANT"
	LabelPlaceName  = "PLNAME"
	LabelGeoNoun    = "GEONOUN"
	LabelPositive   = "+EMOTION"
	LabelNegative   = "-EMOTION"
	LabelEvent      = "EVENT"
	LabelDate       = "DATE"
	LabelTime       = "TIME"
	LabelDistance   = "DISTANCE"
	LabelLocAdverb  = "LOCADV"
	LabelSpatialPrp = "SP-PREP"
)

// ErrResourceLoad marks a missing or unreadable word list
var ErrResourceLoad = errors.New("gazetteer resource load failed")

type category struct {
	label string
	path  string
	read  func(lines []string) []string
}

// Load reads every configured word list and builds the pattern store.
// Labels are registered in a fixed order so that a phrase listed in two
// categories resolves the same way on every run.
func Load(res model.ResourcesConfig) (*Store, error) {
	categories := []category{
		{LabelPlant, res.Plants, trimmed},
		{LabelPlaceName, res.PlaceNames, placeNames},
		{LabelGeoNoun, res.GeoNouns, geoNouns},
		{LabelPositive, res.PositiveWords, sentimentWords},
		{LabelNegative, res.NegativeWords, sentimentWords},
		{LabelEvent, res.Events, trimmed},
		{LabelDate, res.Dates, trimmed},
		{LabelTime, res.Times, trimmed},
		{LabelDistance, res.Distances, trimmed},
		{LabelLocAdverb, res.LocativeAdverbs, firstField},
		{LabelSpatialPrp, res.SpatialPrepositions, spatialPrepositions},
	}

	store := NewStore()
	for _, c := range categories {
		if c.path == "" {
			continue
		}
		lines, err := ReadLines(c.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrResourceLoad, c.label, err)
		}
		store.Add(c.label, c.read(lines)...)
	}

	return store, nil
}

// ReadLines reads a word list. Files that are not valid UTF-8 are decoded as Latin-1.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(data) {
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode latin-1: %w", err)
		}
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	return lines, nil
}

func trimmed(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// placeNames title-cases every name and adds its upper-cased variant
func placeNames(lines []string) []string {
	names := trimmed(lines)
	out := make([]string, 0, 2*len(names))
	for _, n := range names {
		out = append(out, strings.ReplaceAll(TitleCase(n), "'S", "'s"))
	}
	for _, n := range out[:len(names)] {
		out = append(out, strings.ToUpper(n))
	}
	return out
}

// geoNouns adds the plural inflection and singular lemma of every noun
func geoNouns(lines []string) []string {
	nouns := trimmed(lines)
	out := make([]string, 0, 3*len(nouns))
	for _, n := range nouns {
		out = append(out, n, inflection.Plural(n), inflection.Singular(n))
	}
	return out
}

// sentimentWords skips the ';' comment header of the opinion lexicon
func sentimentWords(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range trimmed(lines) {
		if strings.HasPrefix(l, ";") {
			continue
		}
		out = append(out, l)
	}
	return out
}

func firstField(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if f := strings.Fields(l); len(f) > 0 {
			out = append(out, f[0])
		}
	}
	return out
}

// spatialPrepositions drops entries of two characters or fewer ("in", "at")
func spatialPrepositions(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range trimmed(lines) {
		if utf8.RuneCountInString(l) > 2 {
			out = append(out, l)
		}
	}
	return out
}

// TitleCase upper-cases the first letter of every letter run and lower-cases the rest
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToTitle(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
