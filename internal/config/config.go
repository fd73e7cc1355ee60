package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputPath       string `validate:"required"`
	OutputPath      string `validate:"required"`
	WindowDays      int    `validate:"min=1,max=3650"`
	TimezoneOffset  string `validate:"required"`
	CoordinatesFile string

	HTTPAddr        string `validate:"required"`
	LogLevel        string `validate:"oneof=debug info warn error"`
	LogFormat       string `validate:"oneof=json text"`
	ShutdownTimeout time.Duration

	WatchEnabled  bool
	WatchDebounce time.Duration `validate:"gte=0"`

	KafkaEnabled   bool
	KafkaBrokers   []string `validate:"required_if=KafkaEnabled true"`
	KafkaSinkTopic string   `validate:"required_if=KafkaEnabled true"`

	// Mapbox geocoding configuration.
	MapboxToken     string `validate:"required_if=MapboxEnabled true"`
	MapboxEnabled   bool
	MapboxTimeout   time.Duration `validate:"gt=0"`
	MapboxCacheSize int           `validate:"gt=0"`
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	windowDays, err := strconv.Atoi(sharedcfg.EnvOrDefault("WINDOW_DAYS", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid WINDOW_DAYS: %w", err)
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	debounce, err := time.ParseDuration(sharedcfg.EnvOrDefault("WATCH_DEBOUNCE", "2s"))
	if err != nil || debounce < 0 {
		return nil, errors.New("invalid WATCH_DEBOUNCE")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		InputPath:       sharedcfg.EnvOrDefault("INPUT_PATH", "data/promediosSipsaCiudad.json"),
		OutputPath:      sharedcfg.EnvOrDefault("OUTPUT_PATH", "public/data/dane_sipsa_data.json"),
		WindowDays:      windowDays,
		TimezoneOffset:  sharedcfg.EnvOrDefault("TIMEZONE_OFFSET", "-05:00"),
		CoordinatesFile: os.Getenv("COORDINATES_FILE"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		WatchEnabled:  os.Getenv("WATCH_ENABLED") == "true",
		WatchDebounce: debounce,

		KafkaEnabled:   os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "sipsa-city-prices"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
