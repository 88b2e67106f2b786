// Package config loads service settings from environment variables over
// struct defaults, using koanf for the layering. Env vars use flat upper-case
// names (KAFKA_BROKERS, BOUNDARY_DATASET, ...); unknown variables are
// ignored rather than mapped blindly into the config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all service settings.
type Config struct {
	KafkaBrokers     []string `koanf:"kafka_brokers"`
	KafkaSourceTopic string   `koanf:"kafka_source_topic"`
	KafkaSinkTopic   string   `koanf:"kafka_sink_topic"`
	KafkaGroupID     string   `koanf:"kafka_group_id"`

	HTTPAddr  string `koanf:"http_addr"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
	BatchSize          int           `koanf:"batch_size"`
	BatchFlushInterval time.Duration `koanf:"batch_flush_interval"`

	// Geometry resolution. Enabled implicitly when a boundary dataset path
	// is configured; GEO_ENABLED=false turns it off explicitly.
	BoundaryDataset string `koanf:"boundary_dataset"`
	GeoEnabled      bool   `koanf:"geo_enabled"`

	// TaxonomyPath overrides the embedded hazard profile dataset.
	TaxonomyPath string `koanf:"taxonomy_path"`
}

// knownKeys is the allowlist of environment variables mapped into the
// config; everything else in the process environment is ignored.
var knownKeys = map[string]bool{
	"kafka_brokers":        true,
	"kafka_source_topic":   true,
	"kafka_sink_topic":     true,
	"kafka_group_id":       true,
	"http_addr":            true,
	"log_level":            true,
	"log_format":           true,
	"shutdown_timeout":     true,
	"batch_size":           true,
	"batch_flush_interval": true,
	"boundary_dataset":     true,
	"geo_enabled":          true,
	"taxonomy_path":        true,
}

func defaultConfig() *Config {
	return &Config{
		KafkaBrokers:       []string{"localhost:9092"},
		KafkaSourceTopic:   "raw-disaster-records",
		KafkaSinkTopic:     "resolved-disaster-records",
		KafkaGroupID:       "disaster-etl",
		HTTPAddr:           ":8080",
		LogLevel:           "info",
		LogFormat:          "json",
		ShutdownTimeout:    10 * time.Second,
		BatchSize:          50,
		BatchFlushInterval: 5 * time.Second,
	}
}

// Load reads configuration from environment variables over built-in
// defaults and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	envProvider := env.Provider("", ".", func(key string) string {
		lower := strings.ToLower(key)
		if knownKeys[lower] {
			return lower
		}
		return ""
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Brokers arrive from the environment as one comma-separated string.
	if v, ok := k.Get("kafka_brokers").(string); ok {
		k.Set("kafka_brokers", splitBrokers(v))
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A configured boundary dataset switches geometry resolution on unless
	// GEO_ENABLED says otherwise.
	if os.Getenv("GEO_ENABLED") == "" {
		cfg.GeoEnabled = cfg.BoundaryDataset != ""
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	if c.KafkaGroupID == "" {
		return errors.New("KAFKA_GROUP_ID is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("BATCH_SIZE must be positive")
	}
	if c.BatchFlushInterval <= 0 {
		return errors.New("BATCH_FLUSH_INTERVAL must be positive")
	}
	if c.GeoEnabled && c.BoundaryDataset == "" {
		return errors.New("GEO_ENABLED is true but BOUNDARY_DATASET is not set")
	}
	return nil
}

func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
