package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/extract"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/pipeline"
)

var (
	crawlTime = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	testRun   = pipeline.RunInfo{ID: "run-1", CrawledAt: crawlTime}
)

func strPtr(s string) *string { return &s }

func testStub(url string) domain.ItemStub {
	return domain.ItemStub{Title: "通知", URL: url, SourceID: "bksy_ggtz", Category: "教务"}
}

func TestAssemble_ContentWithAttachmentText(t *testing.T) {
	t.Parallel()

	atts := []domain.Attachment{
		{URL: "https://x/a.png", Filename: "a.png", MIMEType: domain.MIMEImage, Text: strPtr("SAMPLE TEXT")},
		{URL: "https://x/b.docx", Filename: "b.docx", MIMEType: domain.MIMEDoc},
		{URL: "https://x/files/c.pdf", MIMEType: domain.MIMEPDF, Text: strPtr(" pdf text ")},
	}
	detail := &extract.Detail{Text: "正文", Publisher: "本科生院", Views: "42"}

	item, err := pipeline.Assemble(testStub("https://x/1.htm"), detail, atts, testRun)

	require.NoError(t, err)
	assert.Equal(t, "正文\n\n[a.png]\nSAMPLE TEXT\n\n[c.pdf]\npdf text", item.Content)
	assert.Equal(t, domain.ItemID("bksy_ggtz", "https://x/1.htm"), item.ID)
	assert.Equal(t, "通知", item.Title)
	assert.Equal(t, "bksy_ggtz", item.Source)
	assert.Len(t, item.Attachments, 3)
	assert.Equal(t, "本科生院", item.ExtraMeta[pipeline.MetaPublisher])
	assert.Equal(t, "42", item.ExtraMeta[pipeline.MetaViews])
	assert.Equal(t, "教务", item.ExtraMeta[pipeline.MetaCategory])
	assert.Equal(t, "run-1", item.ExtraMeta[pipeline.MetaRunID])
	assert.Equal(t, "2025-03-01T08:00:00Z", item.ExtraMeta[pipeline.MetaCrawledAt])
}

func TestAssemble_ManifestWhenNoText(t *testing.T) {
	t.Parallel()

	atts := []domain.Attachment{
		{URL: "https://x/a.pdf", Filename: "考试安排.pdf", MIMEType: domain.MIMEPDF},
		{URL: "https://x/files/b.docx", MIMEType: domain.MIMEDoc},
	}

	item, err := pipeline.Assemble(testStub("https://x/1.htm"), &extract.Detail{}, atts, testRun)

	require.NoError(t, err)
	assert.Equal(t, "考试安排.pdf https://x/a.pdf\nb.docx https://x/files/b.docx", item.Content)
}

func TestAssemble_EmptyContentDropped(t *testing.T) {
	t.Parallel()

	item, err := pipeline.Assemble(testStub("https://x/1.htm"), &extract.Detail{Text: "  "}, nil, testRun)

	require.ErrorIs(t, err, pipeline.ErrEmptyContent)
	assert.Nil(t, item)
}

func TestAssemble_PublishTimePrecedence(t *testing.T) {
	t.Parallel()

	stubDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	metaDate := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)

	stub := testStub("https://x/1.htm")
	stub.PublishedAt = &stubDate
	item, err := pipeline.Assemble(stub, &extract.Detail{Text: "t", PublishTime: &metaDate}, nil, testRun)
	require.NoError(t, err)
	assert.Equal(t, stubDate, item.PublishTime)

	item, err = pipeline.Assemble(testStub("https://x/1.htm"), &extract.Detail{Text: "t", PublishTime: &metaDate}, nil, testRun)
	require.NoError(t, err)
	assert.Equal(t, metaDate, item.PublishTime)

	item, err = pipeline.Assemble(testStub("https://x/1.htm"), &extract.Detail{Text: "t"}, nil, testRun)
	require.NoError(t, err)
	assert.Equal(t, crawlTime, item.PublishTime)
}

func TestAssemble_OptionalMetaOmitted(t *testing.T) {
	t.Parallel()

	stub := testStub("https://x/1.htm")
	stub.Category = ""

	item, err := pipeline.Assemble(stub, &extract.Detail{Text: "t"}, nil, testRun)

	require.NoError(t, err)
	assert.NotContains(t, item.ExtraMeta, pipeline.MetaPublisher)
	assert.NotContains(t, item.ExtraMeta, pipeline.MetaCategory)
	assert.Nil(t, item.Attachments)
}
