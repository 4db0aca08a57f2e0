package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 2
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout is the default timeout for ping operations
	DefaultPingTimeout = 5 * time.Second
)

// ErrEmptyDSN is returned when the Postgres DSN is not configured.
var ErrEmptyDSN = errors.New("postgres dsn is required")

// createItemsTable is applied by EnsureSchema.
const createItemsTable = `
CREATE TABLE IF NOT EXISTS crawl_items (
    id           UUID PRIMARY KEY,
    source       TEXT        NOT NULL,
    title        TEXT        NOT NULL,
    content      TEXT        NOT NULL,
    url          TEXT        NOT NULL,
    publish_time TIMESTAMPTZ NOT NULL,
    attachments  JSONB       NOT NULL DEFAULT '[]',
    extra_meta   JSONB       NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_crawl_items_source_publish ON crawl_items (source, publish_time DESC);
`

const upsertItem = `
INSERT INTO crawl_items (id, source, title, content, url, publish_time, attachments, extra_meta)
VALUES (:id, :source, :title, :content, :url, :publish_time, :attachments, :extra_meta)
ON CONFLICT (id) DO UPDATE SET
    title        = EXCLUDED.title,
    content      = EXCLUDED.content,
    url          = EXCLUDED.url,
    publish_time = EXCLUDED.publish_time,
    attachments  = EXCLUDED.attachments,
    extra_meta   = EXCLUDED.extra_meta,
    updated_at   = NOW()`

// itemRow is the crawl_items row of an item.
type itemRow struct {
	ID          string    `db:"id"`
	Source      string    `db:"source"`
	Title       string    `db:"title"`
	Content     string    `db:"content"`
	URL         string    `db:"url"`
	PublishTime time.Time `db:"publish_time"`
	Attachments []byte    `db:"attachments"`
	ExtraMeta   []byte    `db:"extra_meta"`
}

// NewPostgresConnection opens and verifies a PostgreSQL connection.
func NewPostgresConnection(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// PostgresSink upserts items into crawl_items.
type PostgresSink struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewPostgresSink creates a Postgres sink.
func NewPostgresSink(db *sqlx.DB, log logger.Logger) *PostgresSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &PostgresSink{db: db, log: log.With(logger.Component("sink.postgres"))}
}

// EnsureSchema creates the crawl_items table when missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createItemsTable); err != nil {
		return fmt.Errorf("create crawl_items: %w", err)
	}
	return nil
}

// Emit implements Sink. Re-emitting an item overwrites the stored row.
func (s *PostgresSink) Emit(ctx context.Context, item *domain.CrawlItem) error {
	row, err := toRow(item)
	if err != nil {
		return err
	}

	if _, execErr := s.db.NamedExecContext(ctx, upsertItem, row); execErr != nil {
		return fmt.Errorf("upsert item %s: %w", item.ID, execErr)
	}

	s.log.Debug("Item stored", logger.String("item_id", item.ID))
	return nil
}

func toRow(item *domain.CrawlItem) (itemRow, error) {
	attachments := item.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	attJSON, err := json.Marshal(attachments)
	if err != nil {
		return itemRow{}, fmt.Errorf("marshal attachments: %w", err)
	}

	meta := item.ExtraMeta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return itemRow{}, fmt.Errorf("marshal extra_meta: %w", err)
	}

	return itemRow{
		ID:          item.ID,
		Source:      item.Source,
		Title:       item.Title,
		Content:     item.Content,
		URL:         item.URL,
		PublishTime: item.PublishTime,
		Attachments: attJSON,
		ExtraMeta:   metaJSON,
	}, nil
}
