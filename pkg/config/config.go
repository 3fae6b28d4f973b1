// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Boundary, Cache, Postgres, Kafka, Redis, Logging,
// Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Boundary BoundaryConfig `yaml:"boundary"`
	Cache    CacheConfig    `yaml:"cache"`
	Postgres PostgresConfig `yaml:"postgres"`
	Results  ResultsConfig  `yaml:"results"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds the admin (health) HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	HandlerTimeout  time.Duration `yaml:"handlerTimeout"`
}

// BoundaryConfig holds the location of the gzipped boundary payload and the
// limits applied when fetching it.
type BoundaryConfig struct {
	PayloadURL   string        `yaml:"payloadUrl"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	LoadAttempts int           `yaml:"loadAttempts"`
}

// CacheConfig holds the TTL knobs for the two cache tiers. BoundaryTTL covers
// the full boundary payload (long-lived); ResultsTTL covers derived tally
// datasets (short-lived). StaleGrace is how far past expiry a cached dataset
// may still be served when a fresh fetch fails.
type CacheConfig struct {
	KeyPrefix   string        `yaml:"keyPrefix"`
	BoundaryTTL time.Duration `yaml:"boundaryTtl"`
	ResultsTTL  time.Duration `yaml:"resultsTtl"`
	StaleGrace  time.Duration `yaml:"staleGrace"`
	ReadTimeout time.Duration `yaml:"readTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the tally store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ResultsConfig controls the tally-dataset warmer. An empty WarmElections
// list disables the warmer (and the Postgres connection with it).
type ResultsConfig struct {
	WarmElections []string `yaml:"warmElections"`
	WarmLevels    []string `yaml:"warmLevels"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ResultsInvalidate string `yaml:"resultsInvalidate"`
}

// RedisConfig holds Redis connection parameters for the persistent cache tier.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			HandlerTimeout:  10 * time.Second,
		},
		Boundary: BoundaryConfig{
			PayloadURL:   "https://data.electoralmap.ug/boundaries/uganda-villages-2021.geojson.gz",
			FetchTimeout: 2 * time.Minute,
			LoadAttempts: 3,
		},
		Cache: CacheConfig{
			KeyPrefix:   "emap:",
			BoundaryTTL: 24 * time.Hour,
			ResultsTTL:  60 * time.Second,
			StaleGrace:  15 * time.Minute,
			ReadTimeout: 2 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "electoralmap",
			User:            "electoralmap",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Results: ResultsConfig{
			WarmLevels: []string{"district"},
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "electoralmap-group",
			Topics: KafkaTopics{
				ResultsInvalidate: "results-invalidate",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads EMAP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMAP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EMAP_BOUNDARY_PAYLOAD_URL"); v != "" {
		cfg.Boundary.PayloadURL = v
	}
	if v := os.Getenv("EMAP_CACHE_BOUNDARY_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Cache.BoundaryTTL = ttl
		}
	}
	if v := os.Getenv("EMAP_CACHE_RESULTS_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ResultsTTL = ttl
		}
	}
	if v := os.Getenv("EMAP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("EMAP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("EMAP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("EMAP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("EMAP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("EMAP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("EMAP_RESULTS_WARM_ELECTIONS"); v != "" {
		cfg.Results.WarmElections = strings.Split(v, ",")
	}
	if v := os.Getenv("EMAP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EMAP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EMAP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EMAP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EMAP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("EMAP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
