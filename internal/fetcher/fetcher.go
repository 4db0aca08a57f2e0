// Package fetcher performs HTTP GETs with per-attempt timeouts, retry and
// exponential backoff, classifying the outcome as body or FetchFailed.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/metrics"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/retry"
)

// Default configuration values.
const (
	DefaultUserAgent      = "NoticeCrawler/1.0"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultMaxBodyBytes   = 20 * 1024 * 1024
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

// Config holds fetcher configuration.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	// MaxRetries is the maximum number of attempts per URL.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxBodyBytes   int64
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// Request describes one fetch.
type Request struct {
	URL     string
	Headers map[string]string
	// Timeout bounds each attempt; zero uses the configured request timeout.
	Timeout time.Duration
	// Limiter, when set, is waited on before every attempt.
	Limiter *rate.Limiter
	// MaxBytes caps the body; zero uses the configured limit.
	MaxBytes int64
}

// Fetcher executes HTTP GET requests.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	log     logger.Logger
	metrics *metrics.Metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithMetrics records attempt outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// New creates a Fetcher.
func New(cfg Config, log logger.Logger, opts ...Option) *Fetcher {
	if log == nil {
		log = logger.NewNop()
	}

	f := &Fetcher{
		client: NewHTTPClient(),
		cfg:    cfg.WithDefaults(),
		log:    log.With(logger.Component("fetcher")),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch returns the response body of req.URL. Transport errors, 5xx and 429
// are retried with exponential backoff; other non-2xx statuses fail at once.
// Any failure is returned as *FetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.cfg.RequestTimeout
	}
	if req.MaxBytes <= 0 {
		req.MaxBytes = f.cfg.MaxBodyBytes
	}

	var (
		body     []byte
		attempts int
		status   int
	)

	cfg := retry.Config{
		MaxAttempts:  f.cfg.MaxRetries,
		InitialDelay: f.cfg.InitialBackoff,
		MaxDelay:     f.cfg.MaxBackoff,
		IsRetryable:  isRetryable,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			f.metrics.FetchAttempt(metrics.FetchRetry)
			f.log.Debug("Retrying fetch",
				logger.String("url", req.URL),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", delay),
				logger.Error(err),
			)
		},
	}

	err := retry.Do(ctx, cfg, func(attempt int) error {
		attempts = attempt

		if req.Limiter != nil {
			if waitErr := req.Limiter.Wait(ctx); waitErr != nil {
				return waitErr
			}
		}

		var attemptErr error
		body, status, attemptErr = f.attempt(ctx, req, timeout)
		return attemptErr
	})
	if err == nil {
		f.metrics.FetchAttempt(metrics.FetchOK)
		return body, nil
	}

	outcome := metrics.FetchExhausted
	if !errors.Is(err, retry.ErrMaxAttemptsExceeded) {
		outcome = metrics.FetchPermanent
	}
	f.metrics.FetchAttempt(outcome)

	return nil, &FetchFailed{
		URL:        req.URL,
		Attempts:   attempts,
		StatusCode: status,
		Err:        err,
	}
}

// attempt performs a single GET bounded by timeout.
func (f *Fetcher) attempt(ctx context.Context, req Request, timeout time.Duration) ([]byte, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, http.NoBody)
	if err != nil {
		return nil, 0, &permanentError{err: fmt.Errorf("create request: %w", err)}
	}

	httpReq.Header.Set("User-Agent", f.cfg.UserAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, ErrTooManyRedirects) {
			return nil, 0, &permanentError{err: err}
		}
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, req.MaxBytes))
		return nil, resp.StatusCode, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, req.MaxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > req.MaxBytes {
		return nil, resp.StatusCode, &permanentError{err: ErrBodyTooLarge}
	}

	return body, resp.StatusCode, nil
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// isRetryable classifies an attempt error. Cancellation of the caller's
// context is handled by retry.Do before the next attempt.
func isRetryable(err error) bool {
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return !se.permanent()
	}

	return !errors.Is(err, context.Canceled)
}
