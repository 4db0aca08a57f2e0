package fetcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

func TestLimiters_SharedPerSource(t *testing.T) {
	t.Parallel()

	l := fetcher.NewLimiters()
	a := &sources.Source{ID: "a", RateLimit: 2}
	b := &sources.Source{ID: "b", RateLimit: 2}

	assert.Same(t, l.For(a), l.For(a))
	assert.NotSame(t, l.For(a), l.For(b))
	assert.Nil(t, l.For(&sources.Source{ID: "c"}))
}

func TestLimiters_Request(t *testing.T) {
	t.Parallel()

	src := &sources.Source{ID: "a", Headers: map[string]string{"Referer": "https://x"}}
	req := fetcher.NewLimiters().Request(src, "https://x/1.htm")

	assert.Equal(t, "https://x/1.htm", req.URL)
	assert.Equal(t, "https://x", req.Headers["Referer"])
	assert.Nil(t, req.Limiter)
}
