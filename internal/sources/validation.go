package sources

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/andybalholm/cascadia"
)

// Validate checks required fields and compiles every configured selector.
func Validate(src *Source) error {
	required := map[string]string{
		"id":                       src.ID,
		"base_url":                 src.BaseURL,
		"list_url":                 src.ListURL,
		"selectors.item_container": src.List.ItemContainer,
		"selectors.title":          src.List.Title,
		"selectors.url":            src.List.URL,
	}
	for field, value := range required {
		if value == "" {
			return &ConfigError{SourceID: src.ID, Field: field, Err: fmt.Errorf("%w: is required", ErrInvalidSource)}
		}
	}

	if u, err := url.Parse(src.BaseURL); err != nil || !u.IsAbs() {
		return &ConfigError{SourceID: src.ID, Field: "base_url", Err: fmt.Errorf("%w: must be absolute", ErrInvalidSource)}
	}

	if src.RateLimit < 0 {
		return &ConfigError{SourceID: src.ID, Field: "rate_limit", Err: fmt.Errorf("%w: must not be negative", ErrInvalidSource)}
	}

	for field, sel := range selectorFields(src) {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return &ConfigError{SourceID: src.ID, Field: field, Err: errors.Join(ErrInvalidSource, err)}
		}
	}

	return nil
}

func selectorFields(src *Source) map[string]string {
	d := src.Detail
	return map[string]string{
		"selectors.item_container":                     src.List.ItemContainer,
		"selectors.date":                               src.List.Date,
		"selectors.title":                              src.List.Title,
		"selectors.url":                                src.List.URL,
		"selectors.type":                               src.List.Type,
		"detail_selectors.meta.item_container":         d.Meta.ItemContainer,
		"detail_selectors.meta.publisher":              d.Meta.Publisher,
		"detail_selectors.meta.views":                  d.Meta.Views,
		"detail_selectors.meta.publish_time":           d.Meta.PublishTime,
		"detail_selectors.text.item_container":         d.Text.ItemContainer,
		"detail_selectors.text.content":                d.Text.Content,
		"detail_selectors.image.item_container":        d.Image.ItemContainer,
		"detail_selectors.image.images":                d.Image.Images,
		"detail_selectors.pdf.item_container":          d.PDF.ItemContainer,
		"detail_selectors.pdf.files":                   d.PDF.Files,
		"detail_selectors.pdf.name":                    d.PDF.Name,
		"detail_selectors.doc.item_container":          d.Doc.ItemContainer,
		"detail_selectors.doc.files":                   d.Doc.Files,
		"detail_selectors.doc.name":                    d.Doc.Name,
		"detail_selectors.embedded_pdf.item_container": d.EmbeddedPDF.ItemContainer,
		"detail_selectors.embedded_pdf.viewer":         d.EmbeddedPDF.Viewer,
		"detail_selectors.embedded_pdf.download_link":  d.EmbeddedPDF.DownloadLink,
	}
}
