package domain_test

import (
	"testing"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestItemID_Deterministic(t *testing.T) {
	t.Parallel()

	const (
		source = "bksy_ggtz"
		url1   = "https://jw.nju.edu.cn/2025/0301/c26263a1.htm"
		url2   = "https://jw.nju.edu.cn/2025/0302/c26263a2.htm"
	)

	assert.Equal(t, domain.ItemID(source, url1), domain.ItemID(source, url1))
	assert.NotEqual(t, domain.ItemID(source, url1), domain.ItemID(source, url2))
	assert.NotEqual(t, domain.ItemID(source, url1), domain.ItemID("other", url1))
}

func TestItemID_NoConcatenationCollision(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t, domain.ItemID("ab", "c"), domain.ItemID("a", "bc"))
}

func TestMIMEHint_OCRCapable(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.MIMEImage.OCRCapable())
	assert.True(t, domain.MIMEPDF.OCRCapable())
	assert.False(t, domain.MIMEDoc.OCRCapable())
}

func TestAttachment_HasText(t *testing.T) {
	t.Parallel()

	empty := ""
	text := "x"

	assert.False(t, domain.Attachment{}.HasText())
	assert.False(t, domain.Attachment{Text: &empty}.HasText())
	assert.True(t, domain.Attachment{Text: &text}.HasText())
}
