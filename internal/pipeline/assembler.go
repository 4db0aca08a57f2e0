package pipeline

import (
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/extract"
)

// ErrEmptyContent is returned for items with neither text nor attachments.
var ErrEmptyContent = errors.New("item has no content")

// Extension metadata keys.
const (
	MetaPublisher = "publisher"
	MetaViews     = "views"
	MetaCategory  = "category"
	MetaCrawledAt = "crawled_at"
	MetaRunID     = "run_id"
)

// RunInfo identifies the run an item was assembled in.
type RunInfo struct {
	ID        string
	CrawledAt time.Time
}

// Assemble merges a stub, its detail and its resolved attachments into a
// CrawlItem. Content is the body text followed by each attachment text
// under a "[filename]" header. With no text at all, content lists the
// attachments; with no attachments either, ErrEmptyContent is returned.
func Assemble(stub domain.ItemStub, detail *extract.Detail, atts []domain.Attachment, run RunInfo) (*domain.CrawlItem, error) {
	if detail == nil {
		detail = &extract.Detail{}
	}

	content := buildContent(detail.Text, atts)
	if content == "" {
		content = manifest(atts)
	}
	if content == "" {
		return nil, ErrEmptyContent
	}

	publish := run.CrawledAt
	switch {
	case stub.PublishedAt != nil:
		publish = *stub.PublishedAt
	case detail.PublishTime != nil:
		publish = *detail.PublishTime
	}

	meta := map[string]any{
		MetaCrawledAt: run.CrawledAt.UTC().Format(time.RFC3339),
		MetaRunID:     run.ID,
	}
	if detail.Publisher != "" {
		meta[MetaPublisher] = detail.Publisher
	}
	if detail.Views != "" {
		meta[MetaViews] = detail.Views
	}
	if stub.Category != "" {
		meta[MetaCategory] = stub.Category
	}

	var attachments []domain.Attachment
	if len(atts) > 0 {
		attachments = append(attachments, atts...)
	}

	return &domain.CrawlItem{
		ID:          domain.ItemID(stub.SourceID, stub.URL),
		Title:       stub.Title,
		Content:     content,
		URL:         stub.URL,
		PublishTime: publish,
		Source:      stub.SourceID,
		Attachments: attachments,
		ExtraMeta:   meta,
	}, nil
}

func buildContent(text string, atts []domain.Attachment) string {
	var parts []string
	if text = strings.TrimSpace(text); text != "" {
		parts = append(parts, text)
	}

	for _, a := range atts {
		if !a.HasText() {
			continue
		}
		body := strings.TrimSpace(*a.Text)
		if body == "" {
			continue
		}
		parts = append(parts, "["+displayName(a)+"]\n"+body)
	}

	return strings.Join(parts, "\n\n")
}

// manifest lists every attachment as "filename url".
func manifest(atts []domain.Attachment) string {
	lines := make([]string, 0, len(atts))
	for _, a := range atts {
		lines = append(lines, displayName(a)+" "+a.URL)
	}
	return strings.Join(lines, "\n")
}

func displayName(a domain.Attachment) string {
	if a.Filename != "" {
		return a.Filename
	}
	if u, err := url.Parse(a.URL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
	}
	return a.URL
}
