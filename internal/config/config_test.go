package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker   = "localhost:9092"
	testMapboxToken = "pk.test-token"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/promediosSipsaCiudad.json", cfg.InputPath)
	assert.Equal(t, "public/data/dane_sipsa_data.json", cfg.OutputPath)
	assert.Equal(t, 90, cfg.WindowDays)
	assert.Equal(t, "-05:00", cfg.TimezoneOffset)
	assert.Empty(t, cfg.CoordinatesFile)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.WatchEnabled)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "sipsa-city-prices", cfg.KafkaSinkTopic)
	assert.False(t, cfg.MapboxEnabled)
	assert.Empty(t, cfg.MapboxToken)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 1000, cfg.MapboxCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("INPUT_PATH", "/srv/in.json")
	t.Setenv("OUTPUT_PATH", "/srv/out.json")
	t.Setenv("WINDOW_DAYS", "30")
	t.Setenv("TIMEZONE_OFFSET", "-04:00")
	t.Setenv("COORDINATES_FILE", "/srv/coords.yaml")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("WATCH_ENABLED", "true")
	t.Setenv("WATCH_DEBOUNCE", "500ms")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_TIMEOUT", "10s")
	t.Setenv("MAPBOX_CACHE_SIZE", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/in.json", cfg.InputPath)
	assert.Equal(t, "/srv/out.json", cfg.OutputPath)
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Equal(t, "-04:00", cfg.TimezoneOffset)
	assert.Equal(t, "/srv/coords.yaml", cfg.CoordinatesFile)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.True(t, cfg.WatchEnabled)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, testMapboxToken, cfg.MapboxToken)
	assert.Equal(t, 10*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 500, cfg.MapboxCacheSize)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidWindowDays(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"not a number", "ninety", "WINDOW_DAYS"},
		{"zero", "0", "WindowDays"},
		{"too large", "5000", "WindowDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WINDOW_DAYS", tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogLevel")
}

func TestLoad_InvalidWatchDebounce(t *testing.T) {
	t.Setenv("WATCH_DEBOUNCE", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WATCH_DEBOUNCE")
}

func TestLoad_InvalidMapboxTimeout(t *testing.T) {
	t.Setenv("MAPBOX_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TIMEOUT")
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MapboxToken")
}

func TestLoad_MapboxTokenImpliesEnabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.MapboxEnabled)
}

func TestLoad_MapboxExplicitlyDisabled(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", testMapboxToken)
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCoordinateTable_Empty(t *testing.T) {
	table, err := LoadCoordinateTable("")
	require.NoError(t, err)
	assert.Equal(t, domain.NewCoordinateTable().Len(), table.Len())
}

func TestLoadCoordinateTable_Overrides(t *testing.T) {
	path := writeFile(t, "coords.yaml", `
cities:
  sogamoso: {lat: 5.7145, lng: -72.9339}
  CALI: {lat: 3.45, lng: -76.53}
aliases:
  SANTA FE DE BOGOTÁ: BOGOTÁ
  ciudad del sol: SOGAMOSO
`)

	table, err := LoadCoordinateTable(path)
	require.NoError(t, err)

	c, ok := table.Lookup("SOGAMOSO")
	require.True(t, ok)
	assert.Equal(t, domain.Coordinate{Lat: 5.7145, Lng: -72.9339}, c)

	c, ok = table.Lookup("CALI")
	require.True(t, ok)
	assert.Equal(t, 3.45, c.Lat)

	c, ok = table.Lookup("SANTA FE DE BOGOTÁ")
	require.True(t, ok)
	assert.Equal(t, table.Default(), c)

	_, ok = table.Lookup("CIUDAD DEL SOL")
	assert.True(t, ok)
}

func TestLoadCoordinateTable_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed yaml", "cities: [", "parse coordinates file"},
		{"unknown alias target", "aliases:\n  FOO: NOWHERE\n", "unknown city"},
		{"missing coordinate", "cities:\n  FOO: {}\n", "missing lat/lng"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCoordinateTable(writeFile(t, "coords.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadCoordinateTable_MissingFile(t *testing.T) {
	_, err := LoadCoordinateTable(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
