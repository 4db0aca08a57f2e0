// Package sink delivers assembled crawl items to downstream storage.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
)

// Sink receives finished items.
type Sink interface {
	Emit(ctx context.Context, item *domain.CrawlItem) error
}

// Multi fans an item out to every sink. All sinks are tried; the errors
// are joined.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ctx context.Context, item *domain.CrawlItem) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, item); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// Discard accepts every item and stores nothing.
type Discard struct{}

// Emit implements Sink.
func (Discard) Emit(context.Context, *domain.CrawlItem) error { return nil }
