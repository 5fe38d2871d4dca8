package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Sample policies for reaches whose required raster has no data.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// Output formats.
const (
	FormatGeoJSON = "geojson"
	FormatSQLite  = "sqlite"
	FormatKafka   = "kafka"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	NetworkPath      string
	LayersPath       string
	ClipRegionPath   string
	SpatialReference string
	WorkspaceDir     string
	OutputFormats    []string
	TreeVariant      string

	TestingMode      bool
	TestingLimit     int
	ProgressInterval int
	Workers          int
	SamplePolicy     string

	// Raster sampling configuration. When RasterServiceURL is empty the
	// layers in the manifest are read from local ASCII grids.
	SampleCacheSize      int
	RasterServiceURL     string
	RasterServiceTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	MetricsAddr     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	rasterTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("RASTER_SERVICE_TIMEOUT", "5s"))
	if err != nil || rasterTimeout <= 0 {
		return nil, errors.New("invalid RASTER_SERVICE_TIMEOUT")
	}

	testingMode, err := parseBool("TESTING_MODE", false)
	if err != nil {
		return nil, err
	}
	testingLimit, err := parseInt("TESTING_LIMIT", 10, 1)
	if err != nil {
		return nil, err
	}
	progressInterval, err := parseInt("PROGRESS_INTERVAL", 100, 0)
	if err != nil {
		return nil, err
	}
	workers, err := parseInt("WORKERS", runtime.GOMAXPROCS(0), 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("SAMPLE_CACHE_SIZE", 1000, 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NetworkPath:      os.Getenv("NETWORK_PATH"),
		LayersPath:       os.Getenv("LAYERS_PATH"),
		ClipRegionPath:   os.Getenv("CLIP_REGION_PATH"),
		SpatialReference: os.Getenv("SPATIAL_REFERENCE"),
		WorkspaceDir:     sharedcfg.EnvOrDefault("WORKSPACE_DIR", "regimes"),
		OutputFormats:    splitList(sharedcfg.EnvOrDefault("OUTPUT_FORMATS", FormatGeoJSON)),
		TreeVariant:      sharedcfg.EnvOrDefault("REGIME_TREE", "standard"),

		TestingMode:      testingMode,
		TestingLimit:     testingLimit,
		ProgressInterval: progressInterval,
		Workers:          workers,
		SamplePolicy:     strings.ToLower(sharedcfg.EnvOrDefault("SAMPLE_POLICY", PolicyAbort)),

		SampleCacheSize:      cacheSize,
		RasterServiceURL:     strings.TrimRight(os.Getenv("RASTER_SERVICE_URL"), "/"),
		RasterServiceTimeout: rasterTimeout,

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "classified-reaches"),

		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.NetworkPath == "" {
		return errors.New("NETWORK_PATH is required")
	}
	if c.LayersPath == "" {
		return errors.New("LAYERS_PATH is required")
	}
	if c.SamplePolicy != PolicyAbort && c.SamplePolicy != PolicySkip {
		return fmt.Errorf("invalid SAMPLE_POLICY %q: want %q or %q", c.SamplePolicy, PolicyAbort, PolicySkip)
	}
	if len(c.OutputFormats) == 0 {
		return errors.New("OUTPUT_FORMATS is empty")
	}
	for _, f := range c.OutputFormats {
		switch f {
		case FormatGeoJSON, FormatSQLite:
		case FormatKafka:
			if len(c.KafkaBrokers) == 0 {
				return errors.New("OUTPUT_FORMATS includes kafka but KAFKA_BROKERS is not set")
			}
		default:
			return fmt.Errorf("invalid OUTPUT_FORMATS entry %q", f)
		}
	}
	return nil
}

// HasOutput reports whether format was requested.
func (c *Config) HasOutput(format string) bool {
	for _, f := range c.OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
