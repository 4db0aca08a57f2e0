// Package dedup suppresses items that were already ingested, using an
// external store. Store failures degrade to "not seen" and "not recorded".
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/metrics"
)

// ErrDedupUnavailable wraps store failures.
var ErrDedupUnavailable = errors.New("dedup store unavailable")

// Deduplicator answers Seen and Record against a Store.
type Deduplicator struct {
	store   Store
	log     logger.Logger
	metrics *metrics.Metrics
}

// New creates a Deduplicator. A nil store behaves as DisabledStore.
func New(store Store, log logger.Logger, m *metrics.Metrics) *Deduplicator {
	if store == nil {
		store = DisabledStore{}
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Deduplicator{
		store:   store,
		log:     log.With(logger.Component("dedup")),
		metrics: m,
	}
}

// Seen reports whether id was already recorded. Errors count as not seen.
func (d *Deduplicator) Seen(ctx context.Context, id string) bool {
	exists, err := d.store.Exists(ctx, id)
	if err != nil {
		d.metrics.DedupError("seen")
		d.log.Warn("Dedup lookup failed, treating item as new",
			logger.String("item_id", id),
			logger.Error(fmt.Errorf("%w: %w", ErrDedupUnavailable, err)),
		)
		return false
	}
	return exists
}

// Record stores id with its content and reports whether the store accepted it.
func (d *Deduplicator) Record(ctx context.Context, id, content string, metadata map[string]string) bool {
	err := d.store.Store(ctx, Document{ID: id, Text: content, Metadata: metadata})
	if errors.Is(err, ErrStoreDisabled) {
		return false
	}
	if err != nil {
		if !errors.Is(err, ErrStoreRejected) {
			d.metrics.DedupError("record")
		}
		d.log.Warn("Dedup record failed",
			logger.String("item_id", id),
			logger.Error(fmt.Errorf("%w: %w", ErrDedupUnavailable, err)),
		)
		return false
	}
	return true
}

// Clear deletes every record.
func (d *Deduplicator) Clear(ctx context.Context) (int, error) {
	n, err := d.store.Clear(ctx)
	if err != nil {
		d.metrics.DedupError("clear")
		return 0, fmt.Errorf("%w: %w", ErrDedupUnavailable, err)
	}

	d.log.Info("Dedup store cleared", logger.Int("deleted", n))
	return n, nil
}
