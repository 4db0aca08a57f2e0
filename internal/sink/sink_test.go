package sink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/sink"
)

func testItem() *domain.CrawlItem {
	text := "SAMPLE TEXT"
	return &domain.CrawlItem{
		ID:          domain.ItemID("bksy_ggtz", "https://jw.nju.edu.cn/2025/0101/c1a1/page.htm"),
		Title:       "关于期末考试安排的通知",
		Content:     "正文",
		URL:         "https://jw.nju.edu.cn/2025/0101/c1a1/page.htm",
		PublishTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:      "bksy_ggtz",
		Attachments: []domain.Attachment{
			{URL: "https://jw.nju.edu.cn/a.png", Filename: "a.png", MIMEType: domain.MIMEImage, Text: &text},
		},
		ExtraMeta: map[string]any{"publisher": "本科生院"},
	}
}

type recordingSink struct {
	err   error
	items []*domain.CrawlItem
}

func (r *recordingSink) Emit(_ context.Context, item *domain.CrawlItem) error {
	r.items = append(r.items, item)
	return r.err
}

func TestMulti_TriesEverySink(t *testing.T) {
	t.Parallel()

	errFirst := errors.New("first down")
	first := &recordingSink{err: errFirst}
	second := &recordingSink{}

	err := sink.Multi{first, second}.Emit(context.Background(), testItem())

	require.ErrorIs(t, err, errFirst)
	assert.Len(t, first.items, 1)
	assert.Len(t, second.items, 1)
}

func TestMulti_Empty(t *testing.T) {
	t.Parallel()

	require.NoError(t, sink.Multi{}.Emit(context.Background(), testItem()))
	require.NoError(t, sink.Discard{}.Emit(context.Background(), testItem()))
}
