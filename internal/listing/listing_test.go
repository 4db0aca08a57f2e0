package listing_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/fetcher"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/listing"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sources"
)

func listPage(items ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul id="wp_news_w6">`)
	for _, item := range items {
		b.WriteString(item)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func listItem(title, href, date, category string) string {
	return fmt.Sprintf(`<li class="news">
  <span class="news_title"><a href="%s">%s</a></span>
  <span class="news_meta">%s</span>
  <span class="wjj"><span class="lj">%s</span></span>
</li>`, href, title, date, category)
}

func testSource(listURL string, maxPages int) *sources.Source {
	return &sources.Source{
		ID:          "bksy_ggtz",
		BaseURL:     "https://jw.nju.edu.cn",
		ListURL:     listURL,
		MaxPages:    maxPages,
		PageParam:   "page",
		DateLayouts: []string{"2006-01-02"},
		List: sources.ListSelectors{
			ItemContainer: "#wp_news_w6 li.news",
			Date:          ".news_meta",
			Title:         ".news_title a",
			URL:           ".news_title a",
			Type:          ".wjj .lj",
		},
	}
}

// pageFetcher serves canned bodies keyed by URL.
type pageFetcher struct {
	pages map[string]string
	fail  map[string]error
	calls atomic.Int32
}

func (f *pageFetcher) Fetch(_ context.Context, req fetcher.Request) ([]byte, error) {
	f.calls.Add(1)
	if err, ok := f.fail[req.URL]; ok {
		return nil, err
	}
	return []byte(f.pages[req.URL]), nil
}

func collect(t *testing.T, c *listing.Crawler, src *sources.Source) ([]domain.ItemStub, error) {
	t.Helper()

	var (
		stubs   []domain.ItemStub
		lastErr error
	)
	for stub, err := range c.CrawlList(context.Background(), src) {
		if err != nil {
			lastErr = err
			continue
		}
		stubs = append(stubs, stub)
	}
	return stubs, lastErr
}

func TestCrawlList_StopsAtEmptyPage(t *testing.T) {
	t.Parallel()

	src := testSource("https://jw.nju.edu.cn/ggtz/list{page}.htm", 5)
	f := &pageFetcher{pages: map[string]string{
		"https://jw.nju.edu.cn/ggtz/list1.htm": listPage(
			listItem("通知一", "/2025/0101/c1a1/page.htm", "2025-01-01", "教务"),
			listItem("通知二", "/2025/0102/c1a2/page.htm", "2025-01-02", "考试"),
		),
		"https://jw.nju.edu.cn/ggtz/list2.htm": listPage(
			listItem("通知三", "https://jw.nju.edu.cn/2025/0103/c1a3/page.htm", "2025-01-03", ""),
		),
		"https://jw.nju.edu.cn/ggtz/list3.htm": listPage(),
	}}

	stubs, err := collect(t, listing.New(f, fetcher.NewLimiters(), logger.NewNop()), src)

	require.NoError(t, err)
	require.Len(t, stubs, 3)
	assert.Equal(t, int32(3), f.calls.Load())

	first := stubs[0]
	assert.Equal(t, "通知一", first.Title)
	assert.Equal(t, "https://jw.nju.edu.cn/2025/0101/c1a1/page.htm", first.URL)
	assert.Equal(t, "教务", first.Category)
	assert.Equal(t, "bksy_ggtz", first.SourceID)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, time.January, first.PublishedAt.Month())
	assert.Empty(t, stubs[2].Category)
}

func TestCrawlList_RespectsMaxPages(t *testing.T) {
	t.Parallel()

	pages := make(map[string]string)
	for i := 1; i <= 10; i++ {
		pages[fmt.Sprintf("https://jw.nju.edu.cn/list%d.htm", i)] = listPage(
			listItem(fmt.Sprintf("item %d", i), fmt.Sprintf("/a/%d.htm", i), "", ""),
		)
	}
	f := &pageFetcher{pages: pages}

	stubs, err := collect(t, listing.New(f, nil, nil), testSource("https://jw.nju.edu.cn/list{page}.htm", 4))

	require.NoError(t, err)
	assert.Len(t, stubs, 4)
	assert.Equal(t, int32(4), f.calls.Load())
	assert.Nil(t, stubs[0].PublishedAt)
}

func TestCrawlList_SkipsNodesMissingFields(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{pages: map[string]string{
		"https://jw.nju.edu.cn/list1.htm": listPage(
			listItem("", "/a/1.htm", "2025-01-01", ""),
			listItem("no url", "", "2025-01-01", ""),
			listItem("kept", "/a/3.htm", "not a date", ""),
		),
	}}

	stubs, err := collect(t, listing.New(f, nil, nil), testSource("https://jw.nju.edu.cn/list{page}.htm", 1))

	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.Equal(t, "kept", stubs[0].Title)
	assert.Nil(t, stubs[0].PublishedAt)
}

func TestCrawlList_PageFailureKeepsEarlierStubs(t *testing.T) {
	t.Parallel()

	failure := &fetcher.FetchFailed{URL: "https://jw.nju.edu.cn/list2.htm", Attempts: 3, StatusCode: 503}
	f := &pageFetcher{
		pages: map[string]string{
			"https://jw.nju.edu.cn/list1.htm": listPage(listItem("one", "/a/1.htm", "", "")),
			"https://jw.nju.edu.cn/list3.htm": listPage(listItem("three", "/a/3.htm", "", "")),
		},
		fail: map[string]error{"https://jw.nju.edu.cn/list2.htm": failure},
	}

	stubs, err := collect(t, listing.New(f, nil, nil), testSource("https://jw.nju.edu.cn/list{page}.htm", 3))

	require.Len(t, stubs, 1)
	assert.Equal(t, "one", stubs[0].Title)
	require.ErrorIs(t, err, fetcher.ErrFetchFailed)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCrawlList_Restartable(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{pages: map[string]string{
		"https://jw.nju.edu.cn/list1.htm": listPage(listItem("one", "/a/1.htm", "", "")),
	}}
	c := listing.New(f, nil, nil)
	src := testSource("https://jw.nju.edu.cn/list{page}.htm", 2)

	first, err := collect(t, c, src)
	require.NoError(t, err)
	second, err := collect(t, c, src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(4), f.calls.Load())
}

func TestCrawlList_EarlyBreakStopsFetching(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{pages: map[string]string{
		"https://jw.nju.edu.cn/list1.htm": listPage(
			listItem("one", "/a/1.htm", "", ""),
			listItem("two", "/a/2.htm", "", ""),
		),
		"https://jw.nju.edu.cn/list2.htm": listPage(listItem("three", "/a/3.htm", "", "")),
	}}
	c := listing.New(f, nil, nil)

	for range c.CrawlList(context.Background(), testSource("https://jw.nju.edu.cn/list{page}.htm", 2)) {
		break
	}

	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCrawlList_QueryParamPagination(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		paths []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.RequestURI())
		mu.Unlock()
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(listPage()))
			return
		}
		_, _ = w.Write([]byte(listPage(listItem("one", "/a/1.htm", "2025-03-04", ""))))
	}))
	defer server.Close()

	src := testSource(server.URL+"/news", 3)
	src.BaseURL = server.URL
	f := fetcher.New(fetcher.Config{InitialBackoff: time.Millisecond}, logger.NewNop())

	stubs, err := collect(t, listing.New(f, fetcher.NewLimiters(), nil), src)

	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.Equal(t, server.URL+"/a/1.htm", stubs[0].URL)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/news", "/news?page=2"}, paths)
}

func TestCrawlList_CancelledContext(t *testing.T) {
	t.Parallel()

	f := &pageFetcher{pages: map[string]string{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range listing.New(f, nil, nil).CrawlList(ctx, testSource("https://x/list{page}.htm", 3)) {
		gotErr = err
	}

	assert.True(t, errors.Is(gotErr, context.Canceled))
	assert.Equal(t, int32(0), f.calls.Load())
}
