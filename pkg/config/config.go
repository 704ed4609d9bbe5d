// Package config loads the service configuration from YAML and FBH_*
// environment overrides, then validates it.
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
	Corpus   CorpusConfig   `yaml:"corpus"`
	Digest   DigestConfig   `yaml:"digest"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// RequestTimeout is the per-request deadline handlers run under. It sits a
// tenth of WriteTimeout (at most one second) below the write deadline so a
// timeout response can still reach the client.
func (s ServerConfig) RequestTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return 0
	}
	margin := min(s.WriteTimeout/10, time.Second)
	return s.WriteTimeout - margin
}

// CorpusConfig locates the reference corpus and selects how document
// frequency is counted ("occurrence" or "containment").
type CorpusConfig struct {
	Path    string `yaml:"path"`
	Format  string `yaml:"format"`
	Mode    string `yaml:"mode"`
	Workers int    `yaml:"workers"`
}

// DigestConfig bounds digest requests and controls digest file output.
type DigestConfig struct {
	MaxDocumentBytes int64  `yaml:"maxDocumentBytes"`
	OutputDir        string `yaml:"outputDir"`
	RankLimit        int    `yaml:"rankLimit"`
}

// PostgresConfig holds PostgreSQL connection parameters for the digest store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// DSN returns a lib/pq key/value connection string. Values are quoted so
// passwords may contain spaces or quotes.
func (p PostgresConfig) DSN() string {
	pairs := []struct{ k, v string }{
		{"host", p.Host},
		{"port", strconv.Itoa(p.Port)},
		{"user", p.User},
		{"password", p.Password},
		{"dbname", p.Database},
		{"sslmode", p.SSLMode},
	}
	var b strings.Builder
	for _, kv := range pairs {
		if kv.v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(kv.k)
		b.WriteString("='")
		b.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(kv.v))
		b.WriteByte('\'')
	}
	return b.String()
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled      bool        `yaml:"enabled"`
	Brokers      []string    `yaml:"brokers"`
	Topics       KafkaTopics `yaml:"topics"`
	Compression  string      `yaml:"compression"`
	RequiredAcks string      `yaml:"requiredAcks"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Events string `yaml:"events"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	KeyPrefix string        `yaml:"keyPrefix"`
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
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Corpus.Mode {
	case "", "occurrence", "containment":
	default:
		return fmt.Errorf("invalid corpus.mode %q (want occurrence or containment)", c.Corpus.Mode)
	}
	switch c.Corpus.Format {
	case "", "dir", "lines":
	default:
		return fmt.Errorf("invalid corpus.format %q (want dir or lines)", c.Corpus.Format)
	}
	if c.Digest.MaxDocumentBytes <= 0 {
		return fmt.Errorf("digest.maxDocumentBytes must be positive")
	}
	switch c.Kafka.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("invalid kafka.compression %q", c.Kafka.Compression)
	}
	switch c.Kafka.RequiredAcks {
	case "", "none", "one", "all":
	default:
		return fmt.Errorf("invalid kafka.requiredAcks %q (want none, one or all)", c.Kafka.RequiredAcks)
	}
	return nil
}

// DefaultCorpusPath is the corpus location used when neither a config file
// nor FBH_CORPUS_PATH names one.
const DefaultCorpusPath = "data/corpus"

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Corpus: CorpusConfig{
			Path:   DefaultCorpusPath,
			Format: "",
			Mode:   "occurrence",
		},
		Digest: DigestConfig{
			MaxDocumentBytes: 16 * 1024 * 1024,
			RankLimit:        10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "fbhash",
			User:            "fbhash",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				Events: "fbhash-events",
			},
			Compression:  "snappy",
			RequiredAcks: "one",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Password:  "",
			DB:        0,
			PoolSize:  10,
			CacheTTL:  10 * time.Minute,
			KeyPrefix: "fbhash:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
		},
	}
}

// envVar binds one FBH_* environment variable to a config field.
type envVar struct {
	name string
	set  func(string) error
}

func envVars(cfg *Config) []envVar {
	return []envVar{
		{"FBH_SERVER_PORT", intVar(&cfg.Server.Port)},
		{"FBH_SERVER_WRITE_TIMEOUT", durationVar(&cfg.Server.WriteTimeout)},
		{"FBH_CORPUS_PATH", stringVar(&cfg.Corpus.Path)},
		{"FBH_CORPUS_FORMAT", stringVar(&cfg.Corpus.Format)},
		{"FBH_CORPUS_MODE", stringVar(&cfg.Corpus.Mode)},
		{"FBH_CORPUS_WORKERS", intVar(&cfg.Corpus.Workers)},
		{"FBH_DIGEST_MAX_DOCUMENT_BYTES", int64Var(&cfg.Digest.MaxDocumentBytes)},
		{"FBH_DIGEST_RANK_LIMIT", intVar(&cfg.Digest.RankLimit)},
		{"FBH_POSTGRES_ENABLED", boolVar(&cfg.Postgres.Enabled)},
		{"FBH_POSTGRES_HOST", stringVar(&cfg.Postgres.Host)},
		{"FBH_POSTGRES_PORT", intVar(&cfg.Postgres.Port)},
		{"FBH_POSTGRES_DATABASE", stringVar(&cfg.Postgres.Database)},
		{"FBH_POSTGRES_USER", stringVar(&cfg.Postgres.User)},
		{"FBH_POSTGRES_PASSWORD", stringVar(&cfg.Postgres.Password)},
		{"FBH_POSTGRES_SSLMODE", stringVar(&cfg.Postgres.SSLMode)},
		{"FBH_KAFKA_ENABLED", boolVar(&cfg.Kafka.Enabled)},
		{"FBH_KAFKA_BROKERS", listVar(&cfg.Kafka.Brokers)},
		{"FBH_KAFKA_COMPRESSION", stringVar(&cfg.Kafka.Compression)},
		{"FBH_REDIS_ENABLED", boolVar(&cfg.Redis.Enabled)},
		{"FBH_REDIS_ADDR", stringVar(&cfg.Redis.Addr)},
		{"FBH_REDIS_PASSWORD", stringVar(&cfg.Redis.Password)},
		{"FBH_REDIS_CACHE_TTL", durationVar(&cfg.Redis.CacheTTL)},
		{"FBH_LOGGING_LEVEL", stringVar(&cfg.Logging.Level)},
		{"FBH_LOGGING_FORMAT", stringVar(&cfg.Logging.Format)},
		{"FBH_METRICS_ENABLED", boolVar(&cfg.Metrics.Enabled)},
		{"FBH_METRICS_PORT", intVar(&cfg.Metrics.Port)},
	}
}

// applyEnvOverrides overrides config fields from set FBH_* variables. A
// malformed value is an error rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	for _, ev := range envVars(cfg) {
		v, ok := os.LookupEnv(ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(v); err != nil {
			return fmt.Errorf("%s: %w", ev.name, err)
		}
	}
	return nil
}

func stringVar(p *string) func(string) error {
	return func(v string) error { *p = v; return nil }
}

func listVar(p *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*p = out
		return nil
	}
}

func intVar(p *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*p = n
		return nil
	}
}

func int64Var(p *int64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*p = n
		return nil
	}
}

func boolVar(p *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*p = b
		return nil
	}
}

func durationVar(p *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q", v)
		}
		*p = d
		return nil
	}
}
