package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/geotag/internal/logging"
	"github.com/ppiankov/geotag/internal/model"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string
)

// version is overridden at build time with -ldflags "-X .../internal/cli.version=..."
var version = "v0.1.0"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "geotag",
	Short: "geotag - spatial named entity tagging and geocoding for historical texts",
	Long: `geotag tags place names, geographic nouns and other spatial entities in
page-structured documents, geocodes the places it finds, and writes one
IOB-tagged token file per page.

Entities come from word-list gazetteers and a general-purpose recognizer.
Adjacent fragments are merged, locations are looked up in Nominatim with a
per-document cache, and semantic tag runs are combined into spans.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of geotag.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("geotag %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.geotag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	// A .env file in the working directory is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
		} else {
			// Search for config in home directory
			viper.AddConfigPath(home + "/.geotag")
			viper.SetConfigType("yaml")
			viper.SetConfigName("config")
		}
	}

	if err := bindEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindEnv reads environment variables that match GEOTAG_*, e.g. GEOTAG_GEOCODER_ENABLED
func bindEnv() error {
	viper.SetEnvPrefix("GEOTAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Every key needs a default for env overrides to reach Unmarshal
	return registerDefaults(model.DefaultConfig())
}

// registerDefaults flattens cfg into dotted viper keys
func registerDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}

	var walk func(prefix string, node map[string]interface{})
	walk = func(prefix string, node map[string]interface{}) {
		for k, v := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]interface{}); ok {
				walk(key, child)
				continue
			}
			viper.SetDefault(key, v)
		}
	}
	walk("", tree)

	// Omitted from the YAML when empty
	viper.SetDefault("geocoder.http_proxy", cfg.Geocoder.HTTPProxy)
	viper.SetDefault("geocoder.https_proxy", cfg.Geocoder.HTTPSProxy)

	return nil
}

// loadConfig builds the effective configuration and applies the log level
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if verbose {
		cfg.Log.Level = "debug"
		cfg.Output.Verbose = true
	}
	logging.SetLevel(cfg.Log.Level)

	return cfg, nil
}
