package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/dedup"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sink"
)

// SetupDedupStore creates the configured dedup backend. The returned
// closer is never nil.
func SetupDedupStore(cfg *config.Config, log logger.Logger) (dedup.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Dedup.Backend {
	case config.DedupBackendVector:
		if !cfg.VectorService.Enabled {
			log.Warn("Vector service disabled, deduplication is off")
			return dedup.DisabledStore{}, noop, nil
		}
		log.Info("Using vector service dedup store", logger.String("base_url", cfg.VectorService.BaseURL))
		return dedup.NewVectorStore(cfg.VectorService.BaseURL, cfg.VectorService.APIKey, cfg.VectorService.Timeout), noop, nil

	case config.DedupBackendRedis:
		client, err := dedup.NewRedisClient(dedup.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("redis dedup store: %w", err)
		}
		log.Info("Using redis dedup store", logger.String("address", cfg.Redis.Address))
		return dedup.NewRedisStore(client, cfg.Redis.KeyPrefix), client.Close, nil

	default:
		log.Info("Deduplication disabled")
		return dedup.DisabledStore{}, noop, nil
	}
}

// SetupSinks connects every enabled output sink and prepares its schema.
// It returns nil when no sink is enabled.
func SetupSinks(ctx context.Context, cfg *config.Config, log logger.Logger) (sink.Sink, []func() error, error) {
	var (
		sinks   sink.Multi
		closers []func() error
	)

	if esCfg := cfg.Sinks.Elasticsearch; esCfg.Enabled {
		var caCert []byte
		if esCfg.CACertPath != "" {
			pem, err := os.ReadFile(esCfg.CACertPath)
			if err != nil {
				return nil, closers, fmt.Errorf("elasticsearch sink: read CA cert: %w", err)
			}
			caCert = pem
		}

		client, err := sink.NewElasticsearchClient(ctx, sink.ElasticsearchConfig{
			URL:      esCfg.URL,
			Username: esCfg.Username,
			Password: esCfg.Password,
			Index:    esCfg.Index,
			CACert:   caCert,
		}, log)
		if err != nil {
			return nil, closers, fmt.Errorf("elasticsearch sink: %w", err)
		}

		es := sink.NewElasticsearchSink(client, esCfg.Index, log)
		if err = es.EnsureIndex(ctx); err != nil {
			return nil, closers, fmt.Errorf("elasticsearch sink: %w", err)
		}
		sinks = append(sinks, es)
	}

	if pgCfg := cfg.Sinks.Postgres; pgCfg.Enabled {
		db, err := sink.NewPostgresConnection(ctx, pgCfg.DSN)
		if err != nil {
			return nil, closers, fmt.Errorf("postgres sink: %w", err)
		}
		closers = append(closers, db.Close)

		pg := sink.NewPostgresSink(db, log)
		if err = pg.EnsureSchema(ctx); err != nil {
			return nil, closers, fmt.Errorf("postgres sink: %w", err)
		}
		sinks = append(sinks, pg)
	}

	switch len(sinks) {
	case 0:
		return nil, closers, nil
	case 1:
		return sinks[0], closers, nil
	default:
		return sinks, closers, nil
	}
}
