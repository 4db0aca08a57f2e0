// Package ocr recovers text from image and PDF attachments that carry none.
package ocr

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// DefaultMaxBytes is the largest payload handed to OCR. It matches the
// fetcher body cap so the OCR limit is the one that applies.
const DefaultMaxBytes = fetcher.DefaultMaxBodyBytes

// OCR outcomes recorded in metrics.
const (
	outcomeOK      = "ok"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

var (
	// ErrOCRFailed wraps every failure to recover attachment text.
	ErrOCRFailed = errors.New("ocr failed")
	// ErrUnsupportedPayload is returned for payloads that are neither image nor PDF.
	ErrUnsupportedPayload = errors.New("unsupported payload")
	// ErrPayloadTooLarge is returned for payloads over the size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNoImages is returned for PDFs without embedded images.
	ErrNoImages = errors.New("pdf has no embedded images")
)

var disablePDFConfigDir sync.Once

// Fetcher retrieves attachment payloads.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) ([]byte, error)
}

// Config configures the resolver.
type Config struct {
	Enabled  bool
	MaxBytes int64
}

// Resolver fills in attachment text through an Engine.
type Resolver struct {
	fetcher  Fetcher
	limiters *fetcher.Limiters
	engine   Engine
	cfg      Config
	log      logger.Logger
	metrics  *metrics.Metrics
}

// NewResolver creates a resolver. A disabled resolver passes attachments through.
func NewResolver(
	f Fetcher,
	limiters *fetcher.Limiters,
	engine Engine,
	cfg Config,
	log logger.Logger,
	m *metrics.Metrics,
) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	disablePDFConfigDir.Do(api.DisableConfigDir)

	return &Resolver{
		fetcher:  f,
		limiters: limiters,
		engine:   engine,
		cfg:      cfg,
		log:      log.With(logger.Component("ocr")),
		metrics:  m,
	}
}

// Resolve returns att with Text filled in when OCR succeeds. Attachments
// that already have text, documents, and every failure come back unchanged.
func (r *Resolver) Resolve(ctx context.Context, src *sources.Source, att domain.Attachment) domain.Attachment {
	if !r.cfg.Enabled || r.engine == nil || !att.MIMEType.OCRCapable() || att.HasText() {
		return att
	}

	text, err := r.recognize(ctx, src, att)
	if err != nil {
		outcome := outcomeFailed
		if errors.Is(err, ErrPayloadTooLarge) {
			outcome = outcomeSkipped
		}
		r.metrics.OCRResult(outcome)
		r.log.Warn("OCR failed, keeping attachment without text",
			logger.String("url", att.URL),
			logger.String("mime_hint", string(att.MIMEType)),
			logger.Error(err),
		)
		return att
	}

	r.metrics.OCRResult(outcomeOK)
	att.Text = &text
	return att
}

// ResolveAll resolves every attachment in order.
func (r *Resolver) ResolveAll(ctx context.Context, src *sources.Source, atts []domain.Attachment) []domain.Attachment {
	if len(atts) == 0 {
		return atts
	}

	out := make([]domain.Attachment, len(atts))
	for i, att := range atts {
		out[i] = r.Resolve(ctx, src, att)
	}
	return out
}

func (r *Resolver) recognize(ctx context.Context, src *sources.Source, att domain.Attachment) (string, error) {
	req := r.limiters.Request(src, att.URL)
	req.MaxBytes = r.cfg.MaxBytes

	data, err := r.fetcher.Fetch(ctx, req)
	if errors.Is(err, fetcher.ErrBodyTooLarge) {
		return "", fmt.Errorf("%w: %w: %w", ErrOCRFailed, ErrPayloadTooLarge, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: download: %w", ErrOCRFailed, err)
	}

	return r.Recognize(ctx, data)
}

// Recognize extracts text from an image or PDF payload.
func (r *Resolver) Recognize(ctx context.Context, data []byte) (string, error) {
	if int64(len(data)) > r.cfg.MaxBytes {
		return "", fmt.Errorf("%w: %w (%d bytes)", ErrOCRFailed, ErrPayloadTooLarge, len(data))
	}

	mtype := mimetype.Detect(data)

	var (
		text string
		err  error
	)
	switch {
	case mtype.Is("application/pdf"):
		text, err = r.recognizePDF(ctx, data)
	case strings.HasPrefix(mtype.String(), "image/"):
		text, err = r.engine.Recognize(ctx, data)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedPayload, mtype.String())
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOCRFailed, err)
	}

	if text = strings.TrimSpace(text); text == "" {
		return "", fmt.Errorf("%w: %w", ErrOCRFailed, ErrEmptyOutput)
	}

	return text, nil
}

// recognizePDF runs the engine over every image embedded in the PDF and
// joins the texts in page order.
func (r *Resolver) recognizePDF(ctx context.Context, data []byte) (string, error) {
	images, err := pdfImages(data)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", ErrNoImages
	}

	var texts []string
	for _, img := range images {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		text, recErr := r.engine.Recognize(ctx, img)
		if recErr != nil {
			r.log.Debug("Skipping unreadable PDF image", logger.Error(recErr))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, "\n"), nil
}

// pdfImages returns the rendered bytes of every image placed on the PDF
// pages, ordered by page then object number. Page thumbnails are skipped.
func pdfImages(data []byte) ([][]byte, error) {
	conf := model.NewDefaultConfiguration()

	pages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, fmt.Errorf("extract pdf images: %w", err)
	}

	var images []model.Image
	for _, page := range pages {
		for _, img := range page {
			if img.Thumb || img.Reader == nil {
				continue
			}
			images = append(images, img)
		}
	}
	slices.SortFunc(images, func(a, b model.Image) int {
		if c := cmp.Compare(a.PageNr, b.PageNr); c != 0 {
			return c
		}
		return cmp.Compare(a.ObjNr, b.ObjNr)
	})

	out := make([][]byte, 0, len(images))
	for _, img := range images {
		raw, readErr := io.ReadAll(img)
		if readErr != nil {
			return nil, fmt.Errorf("read pdf image %s on page %d: %w", img.Name, img.PageNr, readErr)
		}
		out = append(out, raw)
	}

	return out, nil
}
