package model

import "time"

// Config is the complete geotag configuration
type Config struct {
	Resources   ResourcesConfig   `yaml:"resources" mapstructure:"resources"`
	Analyzer    AnalyzerConfig    `yaml:"analyzer" mapstructure:"analyzer"`
	Geocoder    GeocoderConfig    `yaml:"geocoder" mapstructure:"geocoder"`
	Semantic    SemanticConfig    `yaml:"semantic" mapstructure:"semantic"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// ResourcesConfig points at the gazetteer word lists. An empty path disables a category.
type ResourcesConfig struct {
	PlaceNames          string `yaml:"place_names" mapstructure:"place_names"`
	GeoNouns            string `yaml:"geo_nouns" mapstructure:"geo_nouns"`
	LocativeAdverbs     string `yaml:"locative_adverbs" mapstructure:"locative_adverbs"`
	SpatialPrepositions string `yaml:"spatial_prepositions" mapstructure:"spatial_prepositions"`
	Distances           string `yaml:"distances" mapstructure:"distances"`
	Dates               string `yaml:"dates" mapstructure:"dates"`
	Times               string `yaml:"times" mapstructure:"times"`
	Events              string `yaml:"events" mapstructure:"events"`
	Plants              string `yaml:"plants" mapstructure:"plants"`
	PositiveWords       string `yaml:"positive_words" mapstructure:"positive_words"`
	NegativeWords       string `yaml:"negative_words" mapstructure:"negative_words"`
	SemanticLexicon     string `yaml:"semantic_lexicon" mapstructure:"semantic_lexicon"`
}

// AnalyzerConfig selects the base tokenizer/tagger
type AnalyzerConfig struct {
	Kind      string        `yaml:"kind" mapstructure:"kind"` // "prose" or "remote"
	RemoteURL string        `yaml:"remote_url" mapstructure:"remote_url"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries   int           `yaml:"retries" mapstructure:"retries"`
}

// GeocoderConfig configures place lookups
type GeocoderConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries           int           `yaml:"retries" mapstructure:"retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	LocationLabels    []string      `yaml:"location_labels" mapstructure:"location_labels"`
}

// SemanticConfig lists the semantic tag families combined into spans
type SemanticConfig struct {
	Families []string `yaml:"families" mapstructure:"families"`
}

// OutputConfig controls where flushed pages go
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	Format     string `yaml:"format" mapstructure:"format"` // "json" or "sqlite"
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose"`
}

// ConcurrencyConfig controls batch parallelism across documents
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LogConfig sets the log level
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Resources: ResourcesConfig{
			PlaceNames:          "resources/LD_placenames.txt",
			GeoNouns:            "resources/geo_feature_nouns.txt",
			LocativeAdverbs:     "resources/locative_adverbs.txt",
			SpatialPrepositions: "resources/spatial_prepositions.txt",
			Distances:           "resources/distances.txt",
			Dates:               "resources/dates.txt",
			Times:               "resources/times.txt",
			Events:              "resources/events.txt",
			Plants:              "resources/Plant_list.txt",
			PositiveWords:       "resources/positive-words.txt",
			NegativeWords:       "resources/negative-words.txt",
			SemanticLexicon:     "resources/semantic_lexicon.tsv",
		},
		Analyzer: AnalyzerConfig{
			Kind:    "prose",
			Timeout: 30 * time.Second,
			Retries: 2,
		},
		Geocoder: GeocoderConfig{
			Enabled:           true,
			BaseURL:           "https://nominatim.openstreetmap.org",
			UserAgent:         "geotag/0.1 (+https://github.com/ppiankov/geotag)",
			Timeout:           10 * time.Second,
			Retries:           2,
			RequestsPerSecond: 1,
			Burst:             1,
			LocationLabels:    []string{"PLNAME", "GEONOUN", "GPE"},
		},
		Semantic: SemanticConfig{
			Families: []string{"Z2", "M", "T"},
		},
		Output: OutputConfig{
			Dir:        "./geotag-output",
			Format:     "json",
			SQLitePath: "./geotag-output/geotag.db",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
