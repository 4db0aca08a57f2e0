// Package pipeline runs one crawl of a source: list, extract, OCR,
// assemble, deduplicate and emit.
package pipeline

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/extract"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sink"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// DefaultConcurrency bounds detail extraction within one run.
const DefaultConcurrency = 4

// Drop reasons recorded in metrics.
const (
	dropFetch      = "fetch"
	dropEmpty      = "empty"
	dropSuppressed = "suppressed"
)

// Lister yields the stubs of a source.
type Lister interface {
	CrawlList(ctx context.Context, src *sources.Source) iter.Seq2[domain.ItemStub, error]
}

// DetailExtractor extracts a detail page.
type DetailExtractor interface {
	Extract(ctx context.Context, stub domain.ItemStub, src *sources.Source) (*extract.Detail, error)
}

// AttachmentResolver fills in attachment text.
type AttachmentResolver interface {
	ResolveAll(ctx context.Context, src *sources.Source, atts []domain.Attachment) []domain.Attachment
}

// Deduplicator tracks already-ingested items.
type Deduplicator interface {
	Seen(ctx context.Context, id string) bool
	Record(ctx context.Context, id, content string, metadata map[string]string) bool
}

// Result is the outcome of one run.
type Result struct {
	SourceID   string
	RunID      string
	Items      []*domain.CrawlItem
	Stubs      int
	Suppressed int
	Dropped    int
	// ListErr is set when pagination ended on a failed list page.
	ListErr    error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the run produced nothing because listing failed.
func (r *Result) Failed() bool {
	return len(r.Items) == 0 && r.ListErr != nil
}

// Pipeline wires the stages together.
type Pipeline struct {
	registry    *sources.Registry
	lister      Lister
	extractor   DetailExtractor
	resolver    AttachmentResolver
	dedup       Deduplicator
	sink        sink.Sink
	concurrency int
	log         logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds concurrent detail extraction.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithSink sets where emitted items are delivered.
func WithSink(s sink.Sink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline.
func New(
	registry *sources.Registry,
	lister Lister,
	extractor DetailExtractor,
	resolver AttachmentResolver,
	dedup Deduplicator,
	log logger.Logger,
	opts ...Option,
) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}

	p := &Pipeline{
		registry:    registry,
		lister:      lister,
		extractor:   extractor,
		resolver:    resolver,
		dedup:       dedup,
		sink:        sink.Discard{},
		concurrency: DefaultConcurrency,
		log:         log.With(logger.Component("pipeline")),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Sources returns the source registry.
func (p *Pipeline) Sources() *sources.Registry {
	return p.registry
}

// outcome is the per-stub result slot; slots keep list order.
type outcome struct {
	item *domain.CrawlItem
}

// Run crawls sourceID once. Only an unknown source is returned as an
// error; page, stub and attachment failures are contained and logged.
func (p *Pipeline) Run(ctx context.Context, sourceID string) (*Result, error) {
	src, err := p.registry.Get(sourceID)
	if err != nil {
		return nil, err
	}

	done := p.metrics.RunStarted(src.ID)
	defer done()

	run := RunInfo{ID: uuid.NewString(), CrawledAt: p.now()}
	res := &Result{SourceID: src.ID, RunID: run.ID, StartedAt: run.CrawledAt}
	log := p.log.With(logger.String("source_id", src.ID), logger.String("run_id", run.ID))

	log.Info("Crawl run started")

	var (
		mu       sync.Mutex
		outcomes []*outcome
		inRun    = make(map[string]struct{})
		g        errgroup.Group
	)
	g.SetLimit(p.concurrency)

	for stub, listErr := range p.lister.CrawlList(ctx, src) {
		if listErr != nil {
			res.ListErr = listErr
			break
		}

		res.Stubs++
		id := domain.ItemID(src.ID, stub.URL)
		if _, dup := inRun[id]; dup {
			continue
		}
		inRun[id] = struct{}{}

		slot := &outcome{}
		outcomes = append(outcomes, slot)

		g.Go(func() error {
			item, reason := p.process(ctx, src, stub, id, run, log)

			mu.Lock()
			defer mu.Unlock()
			switch reason {
			case "":
				slot.item = item
			case dropSuppressed:
				res.Suppressed++
			default:
				res.Dropped++
				p.metrics.StubDropped(src.ID, reason)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, slot := range outcomes {
		if slot.item == nil {
			continue
		}
		p.emit(ctx, slot.item, run, log)
		res.Items = append(res.Items, slot.item)
	}

	res.FinishedAt = p.now()
	fields := []logger.Field{
		logger.Int("stubs", res.Stubs),
		logger.Int("items", len(res.Items)),
		logger.Int("suppressed", res.Suppressed),
		logger.Int("dropped", res.Dropped),
		logger.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
	}
	if res.ListErr != nil {
		log.Warn("Crawl run finished with list failure", append(fields, logger.Error(res.ListErr))...)
	} else {
		log.Info("Crawl run finished", fields...)
	}

	return res, nil
}

// process turns one stub into an item, or returns the reason it was dropped.
func (p *Pipeline) process(
	ctx context.Context,
	src *sources.Source,
	stub domain.ItemStub,
	id string,
	run RunInfo,
	log logger.Logger,
) (*domain.CrawlItem, string) {
	if p.dedup.Seen(ctx, id) {
		p.metrics.ItemSuppressed(src.ID)
		log.Debug("Item already ingested", logger.String("item_id", id), logger.String("url", stub.URL))
		return nil, dropSuppressed
	}

	detail, err := p.extractor.Extract(ctx, stub, src)
	if err != nil {
		log.Warn("Detail extraction failed, dropping item",
			logger.String("url", stub.URL),
			logger.Error(err),
		)
		return nil, dropFetch
	}

	atts := p.resolver.ResolveAll(ctx, src, detail.Attachments)

	item, err := Assemble(stub, detail, atts, run)
	if err != nil {
		log.Info("Dropping item", logger.String("url", stub.URL), logger.Error(err))
		return nil, dropEmpty
	}

	return item, ""
}

// emit hands the item to the sink and records it only when the sink
// accepted it.
func (p *Pipeline) emit(ctx context.Context, item *domain.CrawlItem, run RunInfo, log logger.Logger) {
	p.metrics.ItemEmitted(item.Source)

	if err := p.sink.Emit(ctx, item); err != nil {
		log.Error("Sink rejected item, not recording it",
			logger.String("item_id", item.ID),
			logger.String("url", item.URL),
			logger.Error(err),
		)
		return
	}

	p.dedup.Record(ctx, item.ID, item.Content, map[string]string{
		"source":       item.Source,
		"title":        item.Title,
		"url":          item.URL,
		"publish_time": item.PublishTime.Format(time.RFC3339),
		"run_id":       run.ID,
	})
}
