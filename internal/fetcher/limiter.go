package fetcher

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

// Limiters hands out one rate limiter per source so list, detail and
// attachment fetches toward the same site share a budget.
type Limiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiters creates an empty limiter set.
func NewLimiters() *Limiters {
	return &Limiters{limiters: make(map[string]*rate.Limiter)}
}

// For returns the limiter of src, or nil when the source is unlimited.
func (l *Limiters) For(src *sources.Source) *rate.Limiter {
	if l == nil || src.RateLimit <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[src.ID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(src.RateLimit), 1)
		l.limiters[src.ID] = lim
	}

	return lim
}

// Request builds a request toward src carrying its headers and limiter.
func (l *Limiters) Request(src *sources.Source, rawURL string) Request {
	return Request{
		URL:     rawURL,
		Headers: src.Headers,
		Limiter: l.For(src),
	}
}
