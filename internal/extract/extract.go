// Package extract turns a detail page into article text, metadata and
// attachment references using the selector groups of a source.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// ErrExtractionIncomplete reports a selector group that matched nothing.
// It is collected in Detail.Missing and never returned by Extract.
var ErrExtractionIncomplete = errors.New("extraction incomplete")

// Group names, in the order handlers run.
const (
	GroupMeta        = "meta"
	GroupText        = "text"
	GroupImage       = "image"
	GroupPDF         = "pdf"
	GroupDoc         = "doc"
	GroupEmbeddedPDF = "embedded_pdf"
)

// Detail is everything extracted from one detail page.
type Detail struct {
	Text        string
	Publisher   string
	Views       string
	PublishTime *time.Time
	Attachments []domain.Attachment
	// Missing lists the groups that found nothing.
	Missing []string
}

// Page is the parsed detail page handed to each handler.
type Page struct {
	Doc    *goquery.Document
	URL    string
	Body   []byte
	Source *sources.Source
}

// Handler extracts one selector group into the detail. It returns
// ErrExtractionIncomplete when the group found nothing.
type Handler interface {
	Name() string
	Extract(page *Page, detail *Detail) error
}

// Fetcher retrieves raw page bodies.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) ([]byte, error)
}

// Extractor runs every handler over a detail page.
type Extractor struct {
	fetcher  Fetcher
	limiters *fetcher.Limiters
	handlers []Handler
	log      logger.Logger
}

// New creates an Extractor with the default handler chain.
func New(f Fetcher, limiters *fetcher.Limiters, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}

	return &Extractor{
		fetcher:  f,
		limiters: limiters,
		handlers: DefaultHandlers(),
		log:      log.With(logger.Component("extract")),
	}
}

// DefaultHandlers returns the handler chain. Attachment groups run in the
// order image, pdf, doc, embedded pdf.
func DefaultHandlers() []Handler {
	return []Handler{
		MetaExtractor{},
		TextExtractor{},
		ImageExtractor{},
		PDFExtractor{},
		DocExtractor{},
		EmbeddedPDFExtractor{},
	}
}

// Extract fetches the detail page of stub once and extracts it. A fetch
// failure is returned as is; a group that finds nothing is not an error.
func (e *Extractor) Extract(ctx context.Context, stub domain.ItemStub, src *sources.Source) (*Detail, error) {
	body, err := e.fetcher.Fetch(ctx, e.limiters.Request(src, stub.URL))
	if err != nil {
		return nil, err
	}

	return e.Parse(src, stub.URL, body)
}

// Parse extracts a detail page body that was already fetched.
func (e *Extractor) Parse(src *sources.Source, pageURL string, body []byte) (*Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{Doc: doc, URL: pageURL, Body: body, Source: src}
	detail := &Detail{}

	for _, h := range e.handlers {
		if hErr := h.Extract(page, detail); hErr != nil {
			if !errors.Is(hErr, ErrExtractionIncomplete) {
				e.log.Warn("Handler failed",
					logger.String("group", h.Name()),
					logger.String("url", pageURL),
					logger.Error(hErr),
				)
			}
			detail.Missing = append(detail.Missing, h.Name())
		}
	}

	detail.Attachments = dedupeAttachments(detail.Attachments)

	if len(detail.Missing) > 0 {
		e.log.Debug("Extraction incomplete",
			logger.String("url", pageURL),
			logger.Strings("groups", detail.Missing),
		)
	}

	return detail, nil
}

// dedupeAttachments collapses repeated URLs, keeping the first occurrence.
func dedupeAttachments(atts []domain.Attachment) []domain.Attachment {
	if len(atts) < 2 {
		return atts
	}

	seen := make(map[string]struct{}, len(atts))
	out := atts[:0]
	for _, a := range atts {
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}
		out = append(out, a)
	}

	return out
}
