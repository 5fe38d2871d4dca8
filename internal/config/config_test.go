package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testNetwork = "data/network.geojson"
	testLayers  = "data/layers.yaml"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("NETWORK_PATH", testNetwork)
	t.Setenv("LAYERS_PATH", testLayers)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testNetwork, cfg.NetworkPath)
	assert.Equal(t, testLayers, cfg.LayersPath)
	assert.Empty(t, cfg.ClipRegionPath)
	assert.Equal(t, "regimes", cfg.WorkspaceDir)
	assert.Equal(t, []string{FormatGeoJSON}, cfg.OutputFormats)
	assert.Equal(t, "standard", cfg.TreeVariant)
	assert.False(t, cfg.TestingMode)
	assert.Equal(t, 10, cfg.TestingLimit)
	assert.Equal(t, 100, cfg.ProgressInterval)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	assert.Equal(t, PolicyAbort, cfg.SamplePolicy)
	assert.Equal(t, 1000, cfg.SampleCacheSize)
	assert.Empty(t, cfg.RasterServiceURL)
	assert.Equal(t, 5*time.Second, cfg.RasterServiceTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "classified-reaches", cfg.KafkaTopic)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("CLIP_REGION_PATH", "data/huc.geojson")
	t.Setenv("SPATIAL_REFERENCE", "EPSG:26911")
	t.Setenv("WORKSPACE_DIR", "/tmp/run")
	t.Setenv("OUTPUT_FORMATS", "geojson, SQLite,kafka")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "reaches")
	t.Setenv("TESTING_MODE", "true")
	t.Setenv("TESTING_LIMIT", "25")
	t.Setenv("PROGRESS_INTERVAL", "5")
	t.Setenv("WORKERS", "3")
	t.Setenv("SAMPLE_POLICY", "SKIP")
	t.Setenv("SAMPLE_CACHE_SIZE", "0")
	t.Setenv("RASTER_SERVICE_URL", "http://rasters.local/api/")
	t.Setenv("RASTER_SERVICE_TIMEOUT", "2s")
	t.Setenv("METRICS_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/huc.geojson", cfg.ClipRegionPath)
	assert.Equal(t, "EPSG:26911", cfg.SpatialReference)
	assert.Equal(t, "/tmp/run", cfg.WorkspaceDir)
	assert.Equal(t, []string{FormatGeoJSON, FormatSQLite, FormatKafka}, cfg.OutputFormats)
	assert.True(t, cfg.HasOutput(FormatSQLite))
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "reaches", cfg.KafkaTopic)
	assert.True(t, cfg.TestingMode)
	assert.Equal(t, 25, cfg.TestingLimit)
	assert.Equal(t, 5, cfg.ProgressInterval)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, PolicySkip, cfg.SamplePolicy)
	assert.Equal(t, 0, cfg.SampleCacheSize)
	assert.Equal(t, "http://rasters.local/api", cfg.RasterServiceURL)
	assert.Equal(t, 2*time.Second, cfg.RasterServiceTimeout)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_MissingNetwork(t *testing.T) {
	t.Setenv("LAYERS_PATH", testLayers)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NETWORK_PATH")
}

func TestLoad_MissingLayers(t *testing.T) {
	t.Setenv("NETWORK_PATH", testNetwork)
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LAYERS_PATH")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidIntegers(t *testing.T) {
	for _, key := range []string{"TESTING_LIMIT", "PROGRESS_INTERVAL", "WORKERS", "SAMPLE_CACHE_SIZE"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "-4")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_ZeroProgressIntervalDisables(t *testing.T) {
	setRequired(t)
	t.Setenv("PROGRESS_INTERVAL", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.ProgressInterval)
}

func TestLoad_InvalidTestingMode(t *testing.T) {
	setRequired(t)
	t.Setenv("TESTING_MODE", "maybe")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TESTING_MODE")
}

func TestLoad_InvalidPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("SAMPLE_POLICY", "retry")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAMPLE_POLICY")
}

func TestLoad_InvalidRasterTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("RASTER_SERVICE_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RASTER_SERVICE_TIMEOUT")
}

func TestLoad_KafkaOutputWithoutBrokers(t *testing.T) {
	setRequired(t)
	t.Setenv("OUTPUT_FORMATS", "kafka")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_UnknownOutputFormat(t *testing.T) {
	setRequired(t)
	t.Setenv("OUTPUT_FORMATS", "shapefile")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shapefile")
}
