// Package sources holds the declarative per-source crawl configuration.
package sources

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// pagePlaceholder is replaced by the page number in list URLs.
const pagePlaceholder = "{page}"

// Source is the immutable configuration of one crawl target.
type Source struct {
	ID                  string            `mapstructure:"id"`
	Name                string            `mapstructure:"name"`
	BaseURL             string            `mapstructure:"base_url"`
	ListURL             string            `mapstructure:"list_url"`
	MaxPages            int               `mapstructure:"max_pages"`
	PageParam           string            `mapstructure:"page_param"`
	DateLayouts         []string          `mapstructure:"date_layouts"`
	RateLimit           float64           `mapstructure:"rate_limit"`
	ReadabilityFallback bool              `mapstructure:"readability_fallback"`
	Headers             map[string]string `mapstructure:"headers"`
	List                ListSelectors     `mapstructure:"selectors"`
	Detail              DetailSelectors   `mapstructure:"detail_selectors"`
}

// ListSelectors locate article stubs on a list page. Field selectors are
// evaluated relative to each ItemContainer match.
type ListSelectors struct {
	ItemContainer string `mapstructure:"item_container"`
	Date          string `mapstructure:"date"`
	Title         string `mapstructure:"title"`
	URL           string `mapstructure:"url"`
	Type          string `mapstructure:"type"`
}

// DetailSelectors groups the independent extraction rules for a detail page.
type DetailSelectors struct {
	Meta        MetaSelectors        `mapstructure:"meta"`
	Text        TextSelectors        `mapstructure:"text"`
	Image       ImageSelectors       `mapstructure:"image"`
	PDF         FileSelectors        `mapstructure:"pdf"`
	Doc         FileSelectors        `mapstructure:"doc"`
	EmbeddedPDF EmbeddedPDFSelectors `mapstructure:"embedded_pdf"`
}

// MetaSelectors extract best-effort article metadata.
type MetaSelectors struct {
	ItemContainer string `mapstructure:"item_container"`
	Publisher     string `mapstructure:"publisher"`
	Views         string `mapstructure:"views"`
	PublishTime   string `mapstructure:"publish_time"`
}

// TextSelectors extract the article body.
type TextSelectors struct {
	ItemContainer string `mapstructure:"item_container"`
	Content       string `mapstructure:"content"`
}

// ImageSelectors match inline images.
type ImageSelectors struct {
	ItemContainer string `mapstructure:"item_container"`
	Images        string `mapstructure:"images"`
}

// FileSelectors match downloadable file anchors. Name is looked up inside
// each matched anchor.
type FileSelectors struct {
	ItemContainer string `mapstructure:"item_container"`
	Files         string `mapstructure:"files"`
	Name          string `mapstructure:"name"`
}

// EmbeddedPDFSelectors pair a PDF viewer element with its download link.
type EmbeddedPDFSelectors struct {
	ItemContainer string `mapstructure:"item_container"`
	Viewer        string `mapstructure:"viewer"`
	DownloadLink  string `mapstructure:"download_link"`
}

// PageURL returns the list URL for the given 1-based page number.
func (s *Source) PageURL(page int) string {
	if strings.Contains(s.ListURL, pagePlaceholder) {
		return strings.ReplaceAll(s.ListURL, pagePlaceholder, strconv.Itoa(page))
	}
	if page <= 1 {
		return s.ListURL
	}

	u, err := url.Parse(s.ListURL)
	if err != nil {
		return s.ListURL
	}
	q := u.Query()
	q.Set(s.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String()
}

// Resolve returns ref as an absolute URL against the source base URL.
func (s *Source) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errEmptyURL
	}

	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", err
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(rel).String(), nil
}

// mergeDefaults fills every empty selector group from defaults.
func (d *DetailSelectors) mergeDefaults(defaults DetailSelectors) {
	if d.Meta == (MetaSelectors{}) {
		d.Meta = defaults.Meta
	}
	if d.Text == (TextSelectors{}) {
		d.Text = defaults.Text
	}
	if d.Image == (ImageSelectors{}) {
		d.Image = defaults.Image
	}
	if d.PDF == (FileSelectors{}) {
		d.PDF = defaults.PDF
	}
	if d.Doc == (FileSelectors{}) {
		d.Doc = defaults.Doc
	}
	if d.EmbeddedPDF == (EmbeddedPDFSelectors{}) {
		d.EmbeddedPDF = defaults.EmbeddedPDF
	}
}

// dateToken finds a numeric date inside decorated text such as "发布时间：2025-01-02".
var dateToken = regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}`)

// ParseDate parses raw with the first matching date layout of the source,
// falling back to the first date-looking token in raw. Returns nil when
// nothing parses.
func (s *Source) ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if t := parseLayouts(raw, s.DateLayouts); t != nil {
		return t
	}
	if token := dateToken.FindString(raw); token != "" && token != raw {
		return parseLayouts(token, s.DateLayouts)
	}

	return nil
}

func parseLayouts(raw string, layouts []string) *time.Time {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t
		}
	}
	return nil
}
