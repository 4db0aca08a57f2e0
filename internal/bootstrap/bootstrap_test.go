package bootstrap_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/dedup"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

const testSources = `
sources:
  - id: bksy_ggtz
    name: 本科生院公告
    base_url: https://jw.nju.edu.cn
    list_url: https://jw.nju.edu.cn/ggtz/list{page}.htm
    max_pages: 2
    selectors:
      item_container: "#wp_news_w6 li.news"
      title: ".news_title a"
      url: ".news_title a"
      date: ".news_meta"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func defaults() *config.Config {
	cfg := &config.Config{}
	cfg.SetDefaults()
	return cfg
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yml", "crawl:\n  sources_path: other.yml\n")
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))

	cfg, err := bootstrap.LoadConfig(bootstrap.Options{
		ConfigPath:  cfgPath,
		SourcesPath: "override.yml",
		Debug:       true,
	})

	require.NoError(t, err)
	assert.Equal(t, "override.yml", cfg.Crawl.SourcesPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Server.Debug)
}

func TestNewCommandDeps_LoadsSources(t *testing.T) {
	dir := t.TempDir()
	srcPath := writeFile(t, dir, "sources.yml", testSources)
	cfgPath := writeFile(t, dir, "config.yml", "logging:\n  level: error\n")
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))

	deps, err := bootstrap.NewCommandDeps(bootstrap.Options{ConfigPath: cfgPath, SourcesPath: srcPath})

	require.NoError(t, err)
	assert.Equal(t, []string{"bksy_ggtz"}, deps.Registry.IDs())
}

func TestNewCommandDeps_EmptySources(t *testing.T) {
	dir := t.TempDir()
	srcPath := writeFile(t, dir, "sources.yml", "sources: []\n")
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))

	_, err := bootstrap.NewCommandDeps(bootstrap.Options{ConfigPath: filepath.Join(dir, "none.yml"), SourcesPath: srcPath})

	require.Error(t, err)
}

func TestSetupDedupStore(t *testing.T) {
	t.Parallel()

	log := logger.NewNop()

	t.Run("none", func(t *testing.T) {
		t.Parallel()
		cfg := defaults()
		cfg.Dedup.Backend = config.DedupBackendNone

		store, closeFn, err := bootstrap.SetupDedupStore(cfg, log)
		require.NoError(t, err)
		assert.IsType(t, dedup.DisabledStore{}, store)
		assert.NoError(t, closeFn())
	})

	t.Run("vector disabled", func(t *testing.T) {
		t.Parallel()
		cfg := defaults()

		store, _, err := bootstrap.SetupDedupStore(cfg, log)
		require.NoError(t, err)
		assert.IsType(t, dedup.DisabledStore{}, store)
	})

	t.Run("vector enabled", func(t *testing.T) {
		t.Parallel()
		cfg := defaults()
		cfg.VectorService.Enabled = true
		cfg.VectorService.BaseURL = "http://localhost:9000"

		store, _, err := bootstrap.SetupDedupStore(cfg, log)
		require.NoError(t, err)
		assert.IsType(t, &dedup.VectorStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		t.Parallel()
		mr := miniredis.RunT(t)
		cfg := defaults()
		cfg.Dedup.Backend = config.DedupBackendRedis
		cfg.Redis.Address = mr.Addr()

		store, closeFn, err := bootstrap.SetupDedupStore(cfg, log)
		require.NoError(t, err)
		assert.IsType(t, &dedup.RedisStore{}, store)

		exists, err := store.Exists(context.Background(), "x")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, closeFn())
	})
}

func TestSetupSinks_NoneEnabled(t *testing.T) {
	t.Parallel()

	out, closers, err := bootstrap.SetupSinks(context.Background(), defaults(), logger.NewNop())

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, closers)
}

func TestSetupServices_Wiring(t *testing.T) {
	t.Parallel()

	reg, err := bootstrapRegistry()
	require.NoError(t, err)

	cfg := defaults()
	cfg.Dedup.Backend = config.DedupBackendNone
	cfg.Crawl.Schedule = "@every 30m"

	svc, err := bootstrap.SetupServices(context.Background(), &bootstrap.CommandDeps{
		Logger: logger.NewNop(), Config: cfg, Registry: reg,
	})
	require.NoError(t, err)
	defer svc.Close()

	assert.NotNil(t, svc.Pipeline)
	assert.NotNil(t, svc.Scheduler)
	assert.Equal(t, reg, svc.Pipeline.Sources())

	families, err := svc.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSetupServices_BadSchedule(t *testing.T) {
	t.Parallel()

	reg, err := bootstrapRegistry()
	require.NoError(t, err)

	cfg := defaults()
	cfg.Dedup.Backend = config.DedupBackendNone
	cfg.Crawl.Schedule = "every tuesday"

	_, err = bootstrap.SetupServices(context.Background(), &bootstrap.CommandDeps{
		Logger: logger.NewNop(), Config: cfg, Registry: reg,
	})
	require.Error(t, err)
}

func bootstrapRegistry() (*sources.Registry, error) {
	return sources.Parse([]byte(testSources))
}
