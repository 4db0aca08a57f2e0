package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// === Errors ===

var (
	// errLoggerRequired is returned when CommandDeps.Logger is nil.
	errLoggerRequired = errors.New("logger is required")
	// errConfigRequired is returned when CommandDeps.Config is nil.
	errConfigRequired = errors.New("config is required")
)

// === Types ===

// Options carries command-line overrides.
type Options struct {
	// ConfigPath is the crawler YAML config file.
	ConfigPath string
	// SourcesPath overrides crawl.sources_path when set.
	SourcesPath string
	// Debug forces debug logging and gin debug mode.
	Debug   bool
	Version string
}

// CommandDeps holds common dependencies for every command.
type CommandDeps struct {
	Logger   logger.Logger
	Config   *config.Config
	Registry *sources.Registry
}

// === Config Loading ===

// NewCommandDeps loads config and sources and creates the logger.
func NewCommandDeps(opts Options) (*CommandDeps, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(logger.String("service", "notice-crawler"))

	registry, err := LoadSources(cfg)
	if err != nil {
		return nil, err
	}

	deps := &CommandDeps{
		Logger:   log,
		Config:   cfg,
		Registry: registry,
	}
	if validateErr := deps.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate deps: %w", validateErr)
	}

	log.Info("Configuration loaded",
		logger.String("sources_path", cfg.Crawl.SourcesPath),
		logger.Strings("sources", registry.IDs()),
		logger.String("dedup_backend", cfg.Dedup.Backend),
	)

	return deps, nil
}

// LoadConfig loads the crawler configuration and applies command-line overrides.
func LoadConfig(opts Options) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = "config.yml"
	}

	cfg, err := config.LoadApp(path)
	if err != nil {
		return nil, err
	}

	if opts.SourcesPath != "" {
		cfg.Crawl.SourcesPath = opts.SourcesPath
	}
	if opts.Debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
		cfg.Server.Debug = true
	}

	return cfg, nil
}

// LoadSources reads and validates the sources file.
func LoadSources(cfg *config.Config) (*sources.Registry, error) {
	registry, err := sources.LoadFile(cfg.Crawl.SourcesPath)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	return registry, nil
}

// Validate ensures all required dependencies are present.
func (d *CommandDeps) Validate() error {
	if d.Logger == nil {
		return errLoggerRequired
	}
	if d.Config == nil {
		return errConfigRequired
	}
	return nil
}
