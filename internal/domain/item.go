// Package domain defines the records that flow through the crawl pipeline.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MIMEHint classifies an attachment by the selector group that found it.
type MIMEHint string

const (
	MIMEImage MIMEHint = "image"
	MIMEPDF   MIMEHint = "pdf"
	MIMEDoc   MIMEHint = "doc"
)

// OCRCapable reports whether OCR may recover text for this hint.
// Office documents are excluded.
func (h MIMEHint) OCRCapable() bool {
	return h == MIMEImage || h == MIMEPDF
}

// ItemStub is an article reference discovered on a list page.
type ItemStub struct {
	Title       string
	URL         string
	PublishedAt *time.Time
	Category    string
	SourceID    string
}

// Attachment is a file linked from an article. URL is always absolute and non-empty.
type Attachment struct {
	URL      string   `json:"url"`
	Filename string   `json:"filename,omitempty"`
	MIMEType MIMEHint `json:"mime_type,omitempty"`
	// Text is nil until OCR recovers something.
	Text *string `json:"text,omitempty"`
}

// HasText reports whether the attachment carries non-empty text.
func (a Attachment) HasText() bool {
	return a.Text != nil && *a.Text != ""
}

// CrawlItem is the terminal artifact of a pipeline run.
type CrawlItem struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	URL         string         `json:"url"`
	PublishTime time.Time      `json:"publish_time"`
	Source      string         `json:"source"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	ExtraMeta   map[string]any `json:"extra_meta,omitempty"`
}

// itemNamespace scopes item identifiers; changing it changes every id.
var itemNamespace = uuid.MustParse("6f1c1c0e-4b7e-5d2a-9a57-0c7d2c1e8b41")

// ItemID derives the stable identifier of an article from its source and
// detail URL. Re-crawls of the same URL, in any spelling CanonicalURL
// folds together, always yield the same id.
func ItemID(sourceID, detailURL string) string {
	return uuid.NewSHA1(itemNamespace, []byte(sourceID+"\x00"+CanonicalURL(detailURL))).String()
}
