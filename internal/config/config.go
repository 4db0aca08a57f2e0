package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
)

// Default configuration values.
const (
	DefaultCrawlInterval   = time.Hour
	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultConcurrency     = 4
	DefaultVectorTimeout   = 10 * time.Second
	DefaultServerPort      = 8060
	DefaultSourcesPath     = "sources.yml"
	DefaultESIndex         = "notice_crawl_items"
	DefaultRedisKeyPrefix  = "notice:dedup:"
	DefaultOCRLanguages    = "chi_sim+eng"
	DefaultOCRMaxBytes     = 20 * 1024 * 1024
	DefaultTesseractBinary = "tesseract"
)

// Dedup backends.
const (
	DedupBackendVector = "vector"
	DedupBackendRedis  = "redis"
	DedupBackendNone   = "none"
)

// Config is the root crawler configuration.
type Config struct {
	Crawl         CrawlConfig         `yaml:"crawl"`
	Server        ServerConfig        `yaml:"server"`
	Dedup         DedupConfig         `yaml:"dedup"`
	VectorService VectorServiceConfig `yaml:"vector_service"`
	Redis         RedisConfig         `yaml:"redis"`
	OCR           OCRConfig           `yaml:"ocr"`
	Sinks         SinksConfig         `yaml:"sinks"`
	Logging       logger.Config       `yaml:"logging"`
}

// CrawlConfig controls fetching and scheduling.
type CrawlConfig struct {
	// SourcesPath points at the per-source selector file.
	SourcesPath string `env:"CRAWLER_SOURCES_PATH" yaml:"sources_path"`
	// Interval is the delay between the end of one periodic run and the next.
	Interval time.Duration `env:"CRAWLER_INTERVAL" yaml:"interval"`
	// Schedule is an optional cron spec; it takes precedence over Interval.
	Schedule       string        `env:"CRAWLER_SCHEDULE"        yaml:"schedule"`
	AutoCrawl      bool          `env:"CRAWLER_AUTO_CRAWL"      yaml:"auto_crawl"`
	RequestTimeout time.Duration `env:"CRAWLER_REQUEST_TIMEOUT" yaml:"request_timeout"`
	MaxRetries     int           `env:"CRAWLER_MAX_RETRIES"     yaml:"max_retries"`
	Concurrency    int           `env:"CRAWLER_CONCURRENCY"     yaml:"concurrency"`
	UserAgent      string        `env:"CRAWLER_USER_AGENT"      yaml:"user_agent"`
}

// ServerConfig holds the trigger API configuration.
type ServerConfig struct {
	Port  int  `env:"CRAWLER_PORT"  yaml:"port"`
	Debug bool `env:"CRAWLER_DEBUG" yaml:"debug"`
}

// DedupConfig selects the deduplication backend.
type DedupConfig struct {
	Backend string `env:"DEDUP_BACKEND" yaml:"backend"`
}

// VectorServiceConfig describes the external vector store.
type VectorServiceConfig struct {
	Enabled bool          `env:"VECTOR_SERVICE_ENABLED"  yaml:"enabled"`
	BaseURL string        `env:"VECTOR_SERVICE_BASE_URL" yaml:"base_url"`
	Timeout time.Duration `env:"VECTOR_SERVICE_TIMEOUT"  yaml:"timeout"`
	APIKey  string        `env:"VECTOR_SERVICE_API_KEY"  yaml:"api_key"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address   string `env:"REDIS_ADDRESS"    yaml:"address"`
	Password  string `env:"REDIS_PASSWORD"   yaml:"password"`
	DB        int    `env:"REDIS_DB"         yaml:"db"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" yaml:"key_prefix"`
}

// OCRConfig configures the external OCR engine.
type OCRConfig struct {
	Enabled      bool   `env:"OCR_ENABLED"       yaml:"enabled"`
	TesseractCmd string `env:"TESSERACT_CMD"     yaml:"tesseract_cmd"`
	TessdataDir  string `env:"TESSDATA_DIR"      yaml:"tessdata_dir"`
	Languages    string `env:"OCR_LANGUAGES"     yaml:"languages"`
	MaxBytes     int64  `env:"OCR_MAX_BYTES"     yaml:"max_bytes"`
}

// SinksConfig enables the optional downstream sinks.
type SinksConfig struct {
	Elasticsearch ElasticsearchSinkConfig `yaml:"elasticsearch"`
	Postgres      PostgresSinkConfig      `yaml:"postgres"`
}

// ElasticsearchSinkConfig configures the Elasticsearch sink.
type ElasticsearchSinkConfig struct {
	Enabled  bool   `env:"ES_SINK_ENABLED"        yaml:"enabled"`
	URL      string `env:"ELASTICSEARCH_URL"      yaml:"url"`
	Username string `env:"ELASTICSEARCH_USERNAME" yaml:"username"`
	Password string `env:"ELASTICSEARCH_PASSWORD" yaml:"password"`
	Index    string `env:"ES_SINK_INDEX"          yaml:"index"`
	// CACertPath is an optional PEM file for https clusters.
	CACertPath string `env:"ELASTICSEARCH_CA_CERT" yaml:"ca_cert_path"`
}

// PostgresSinkConfig configures the PostgreSQL sink.
type PostgresSinkConfig struct {
	Enabled bool   `env:"PG_SINK_ENABLED" yaml:"enabled"`
	DSN     string `env:"DATABASE_URL"    yaml:"dsn"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Crawl.SourcesPath == "" {
		c.Crawl.SourcesPath = DefaultSourcesPath
	}
	if c.Crawl.Interval <= 0 {
		c.Crawl.Interval = DefaultCrawlInterval
	}
	if c.Crawl.RequestTimeout <= 0 {
		c.Crawl.RequestTimeout = DefaultRequestTimeout
	}
	if c.Crawl.MaxRetries <= 0 {
		c.Crawl.MaxRetries = DefaultMaxRetries
	}
	if c.Crawl.Concurrency <= 0 {
		c.Crawl.Concurrency = DefaultConcurrency
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Dedup.Backend == "" {
		c.Dedup.Backend = DedupBackendVector
	}
	if c.VectorService.Timeout <= 0 {
		c.VectorService.Timeout = DefaultVectorTimeout
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.OCR.TesseractCmd == "" {
		c.OCR.TesseractCmd = DefaultTesseractBinary
	}
	if c.OCR.Languages == "" {
		c.OCR.Languages = DefaultOCRLanguages
	}
	if c.OCR.MaxBytes <= 0 {
		c.OCR.MaxBytes = DefaultOCRMaxBytes
	}
	if c.Sinks.Elasticsearch.URL == "" {
		c.Sinks.Elasticsearch.URL = "http://localhost:9200"
	}
	if c.Sinks.Elasticsearch.Index == "" {
		c.Sinks.Elasticsearch.Index = DefaultESIndex
	}
	c.Logging.SetDefaults()
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks cross-field constraints. Call after SetDefaults.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{Field: "server.port", Message: "must be between 1 and 65535"})
	}

	switch c.Dedup.Backend {
	case DedupBackendVector:
		if c.VectorService.Enabled && c.VectorService.BaseURL == "" {
			errs = append(errs, &ValidationError{Field: "vector_service.base_url", Message: "is required when enabled"})
		}
	case DedupBackendRedis, DedupBackendNone:
	default:
		errs = append(errs, &ValidationError{
			Field:   "dedup.backend",
			Message: "must be one of: vector, redis, none",
		})
	}

	if c.Sinks.Postgres.Enabled && c.Sinks.Postgres.DSN == "" {
		errs = append(errs, &ValidationError{Field: "sinks.postgres.dsn", Message: "is required when enabled"})
	}

	return errors.Join(errs...)
}

// LoadApp loads, defaults and validates the crawler configuration.
func LoadApp(path string) (*Config, error) {
	cfg, err := Load[Config](path, true)
	if err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}

	return cfg, nil
}
