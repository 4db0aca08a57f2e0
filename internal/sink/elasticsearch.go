package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/retry"
)

// Elasticsearch defaults.
const (
	DefaultIndex        = "notice_crawl_items"
	defaultESURL        = "http://localhost:9200"
	defaultIndexTimeout = 10 * time.Second
	defaultPingTimeout  = 5 * time.Second
	statusNotFound      = 404
)

// itemMapping is the index mapping for crawl items.
const itemMapping = `{
  "mappings": {
    "properties": {
      "id":           {"type": "keyword"},
      "title":        {"type": "text", "fields": {"raw": {"type": "keyword", "ignore_above": 512}}},
      "content":      {"type": "text"},
      "url":          {"type": "keyword"},
      "publish_time": {"type": "date"},
      "source":       {"type": "keyword"},
      "attachments": {
        "properties": {
          "url":       {"type": "keyword"},
          "filename":  {"type": "text"},
          "mime_type": {"type": "keyword"},
          "text":      {"type": "text"}
        }
      },
      "extra_meta": {"type": "object", "enabled": false}
    }
  }
}`

// ElasticsearchConfig holds Elasticsearch connection configuration.
type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
	Index    string
	// CACert is a PEM bundle trusted for https clusters.
	CACert []byte
}

// NewElasticsearchClient creates a client and verifies the connection,
// retrying the ping with exponential backoff.
func NewElasticsearchClient(ctx context.Context, cfg ElasticsearchConfig, log logger.Logger) (*es.Client, error) {
	if log == nil {
		log = logger.NewNop()
	}

	url := normalizeURL(cfg.URL)

	client, err := es.NewClient(es.Config{
		Addresses: []string{url},
		Username:  cfg.Username,
		Password:  cfg.Password,
		CACert:    cfg.CACert,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	log.Info("Verifying Elasticsearch connection", logger.String("url", url))

	retryCfg := retry.Config{MaxAttempts: 5, InitialDelay: 2 * time.Second, MaxDelay: 10 * time.Second}
	if pingErr := retry.Do(ctx, retryCfg, func(int) error {
		return ping(ctx, client)
	}); pingErr != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch after retries: %w", pingErr)
	}

	return client, nil
}

// normalizeURL adds the http scheme when missing.
func normalizeURL(url string) string {
	if url == "" {
		return defaultESURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

func ping(ctx context.Context, client *es.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer closeBody(res.Body)

	if res.IsError() {
		return fmt.Errorf("ping returned error [%s]", res.Status())
	}
	return nil
}

// ElasticsearchSink indexes one document per item, keyed by item id.
type ElasticsearchSink struct {
	client *es.Client
	index  string
	log    logger.Logger
}

// NewElasticsearchSink creates an Elasticsearch sink.
func NewElasticsearchSink(client *es.Client, index string, log logger.Logger) *ElasticsearchSink {
	if index == "" {
		index = DefaultIndex
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &ElasticsearchSink{
		client: client,
		index:  index,
		log:    log.With(logger.Component("sink.elasticsearch")),
	}
}

// EnsureIndex creates the index with the item mapping when it does not exist.
func (s *ElasticsearchSink) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	closeBody(res.Body)

	if res.StatusCode != statusNotFound {
		if res.IsError() {
			return fmt.Errorf("check index %s: %s", s.index, res.Status())
		}
		return nil
	}

	res, err = s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(itemMapping)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer closeBody(res.Body)

	if res.IsError() {
		return fmt.Errorf("create index %s: %s", s.index, res.String())
	}

	s.log.Info("Index created", logger.String("index", s.index))
	return nil
}

// Emit implements Sink.
func (s *ElasticsearchSink) Emit(ctx context.Context, item *domain.CrawlItem) error {
	ctx, cancel := context.WithTimeout(ctx, defaultIndexTimeout)
	defer cancel()

	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item for indexing: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(item.ID),
		s.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("failed to index item: %w", err)
	}
	defer closeBody(res.Body)

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}

	s.log.Debug("Item indexed",
		logger.String("index", s.index),
		logger.String("item_id", item.ID),
		logger.String("url", item.URL),
	)
	return nil
}

func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
