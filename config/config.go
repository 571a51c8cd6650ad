package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	SourceUSGS = "usgs"
	SourceSRTM = "srtm"
)

// Config holds all application configuration.
type Config struct {
	Source      string     `mapstructure:"source"`
	Output      string     `mapstructure:"output"`
	OutputDir   string     `mapstructure:"output_dir"`
	Batch       bool       `mapstructure:"batch"`
	NoViz       bool       `mapstructure:"no_viz"`
	Verbose     bool       `mapstructure:"verbose"`
	StatsJSON   bool       `mapstructure:"stats_json"`
	Workers     int        `mapstructure:"workers"`
	MetricsFile string     `mapstructure:"metrics_file"`
	USGS        USGSConfig `mapstructure:"usgs"`
	Log         LogConfig  `mapstructure:"log"`

	// Input is the positional argument: a track file, or a directory in batch mode.
	Input string `mapstructure:"-"`
}

type USGSConfig struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CachePath string        `mapstructure:"cache_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Flags returns the command line flags. Their values override every other layer of configuration, but only when set.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("gpxele", pflag.ContinueOnError)
	fs.StringP("output", "o", "", "output file (default <output-dir>/corrected_<input name>)")
	fs.StringP("source", "s", SourceUSGS, "elevation source: usgs or srtm")
	fs.BoolP("batch", "b", false, "process every .gpx and .kml file in the input directory")
	fs.Bool("no-viz", false, "skip the elevation profile chart")
	fs.BoolP("verbose", "v", false, "print the first points of each segment and every correction")
	fs.Bool("stats-json", false, "print the statistics as JSON")
	fs.Int("workers", 1, "concurrent elevation lookups")
	fs.String("cache", "", "usgs cache file (.json, or .db/.sqlite for sqlite)")
	fs.String("output-dir", "", "directory for default output paths")
	fs.String("metrics-file", "", "write prometheus metrics to this file on exit")
	fs.String("config", "", "config file (default gpxele.yaml in . or ./configs)")
	fs.Bool("version", false, "show version")
	return fs
}

// flag name -> config key
var bindings = map[string]string{
	"output":       "output",
	"source":       "source",
	"batch":        "batch",
	"no-viz":       "no_viz",
	"verbose":      "verbose",
	"stats-json":   "stats_json",
	"workers":      "workers",
	"cache":        "usgs.cache_path",
	"output-dir":   "output_dir",
	"metrics-file": "metrics_file",
}

// Load reads configuration from defaults, an optional config file, environment variables and the parsed flags, in
// increasing order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("source", SourceUSGS)
	v.SetDefault("output", "")
	v.SetDefault("output_dir", "data/output")
	v.SetDefault("batch", false)
	v.SetDefault("no_viz", false)
	v.SetDefault("verbose", false)
	v.SetDefault("stats_json", false)
	v.SetDefault("workers", 1)
	v.SetDefault("metrics_file", "")
	v.SetDefault("usgs.endpoint", "https://epqs.nationalmap.gov/v1/json")
	v.SetDefault("usgs.timeout", 10*time.Second)
	v.SetDefault("usgs.cache_path", "cache/usgs_elevations.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	var explicit string
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", explicit, err)
		}
	} else {
		v.SetConfigName("gpxele")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	// GPXELE_USGS_CACHE_PATH → usgs.cache_path
	v.SetEnvPrefix("GPXELE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range bindings {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %q: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if fs != nil {
		cfg.Input = fs.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Source != SourceUSGS && c.Source != SourceSRTM {
		errs = append(errs, fmt.Sprintf("source must be %q or %q, got %q", SourceUSGS, SourceSRTM, c.Source))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Sprintf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Source == SourceUSGS {
		if c.USGS.Endpoint == "" {
			errs = append(errs, "usgs.endpoint is required")
		}
		if c.USGS.Timeout <= 0 {
			errs = append(errs, "usgs.timeout must be positive")
		}
	}
	if c.Batch && c.Output != "" {
		errs = append(errs, "output can't be used in batch mode")
	}
	if c.Output == "" && c.OutputDir == "" {
		errs = append(errs, "output_dir is required when output is not set")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
