// Package listing walks the paginated list pages of a source and yields
// article stubs.
package listing

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// Fetcher retrieves raw page bodies.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) ([]byte, error)
}

// Crawler paginates list pages.
type Crawler struct {
	fetcher  Fetcher
	limiters *fetcher.Limiters
	log      logger.Logger
}

// New creates a list crawler.
func New(f Fetcher, limiters *fetcher.Limiters, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.NewNop()
	}

	return &Crawler{
		fetcher:  f,
		limiters: limiters,
		log:      log.With(logger.Component("listing")),
	}
}

// CrawlList lazily yields the stubs of pages 1..MaxPages of src. Pagination
// stops at the first page without items. A page fetch failure is yielded
// once as an error and ends the sequence. Each range starts over at page 1.
func (c *Crawler) CrawlList(ctx context.Context, src *sources.Source) iter.Seq2[domain.ItemStub, error] {
	return func(yield func(domain.ItemStub, error) bool) {
		for page := 1; page <= src.MaxPages; page++ {
			if ctx.Err() != nil {
				yield(domain.ItemStub{}, ctx.Err())
				return
			}

			pageURL := src.PageURL(page)
			body, err := c.fetcher.Fetch(ctx, c.limiters.Request(src, pageURL))
			if err != nil {
				c.log.Warn("List page fetch failed, stopping pagination",
					logger.String("source_id", src.ID),
					logger.Int("page", page),
					logger.Error(err),
				)
				yield(domain.ItemStub{}, fmt.Errorf("list page %d: %w", page, err))
				return
			}

			stubs, err := c.ParsePage(src, body)
			if err != nil {
				yield(domain.ItemStub{}, fmt.Errorf("list page %d: %w", page, err))
				return
			}

			if len(stubs) == 0 {
				c.log.Debug("Empty list page, stopping pagination",
					logger.String("source_id", src.ID),
					logger.Int("page", page),
				)
				return
			}

			for _, stub := range stubs {
				if !yield(stub, nil) {
					return
				}
			}
		}
	}
}

// ParsePage extracts the stubs of one list page body. Nodes missing a
// title or URL are skipped.
func (c *Crawler) ParsePage(src *sources.Source, body []byte) ([]domain.ItemStub, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	sel := src.List
	var stubs []domain.ItemStub

	doc.Find(sel.ItemContainer).Each(func(i int, node *goquery.Selection) {
		title := normalizeSpace(node.Find(sel.Title).First().Text())
		href, _ := node.Find(sel.URL).First().Attr("href")

		if title == "" || strings.TrimSpace(href) == "" {
			c.log.Info("Skipping list item without title or url",
				logger.String("source_id", src.ID),
				logger.Int("index", i),
			)
			return
		}

		detailURL, resolveErr := src.Resolve(href)
		if resolveErr != nil {
			c.log.Info("Skipping list item with bad url",
				logger.String("source_id", src.ID),
				logger.String("href", href),
				logger.Error(resolveErr),
			)
			return
		}

		stub := domain.ItemStub{
			Title:    title,
			URL:      detailURL,
			SourceID: src.ID,
		}
		if sel.Date != "" {
			stub.PublishedAt = src.ParseDate(node.Find(sel.Date).First().Text())
		}
		if sel.Type != "" {
			stub.Category = normalizeSpace(node.Find(sel.Type).First().Text())
		}

		stubs = append(stubs, stub)
	})

	return stubs, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
