package extract

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
)

// scope returns the nodes a group's selectors are evaluated against.
func scope(doc *goquery.Document, container string) *goquery.Selection {
	if container == "" {
		return doc.Selection
	}
	return doc.Find(container)
}

// MetaExtractor reads publisher, view count and publish time.
type MetaExtractor struct{}

func (MetaExtractor) Name() string { return GroupMeta }

func (MetaExtractor) Extract(page *Page, detail *Detail) error {
	sel := page.Source.Detail.Meta
	root := scope(page.Doc, sel.ItemContainer)

	if sel.Publisher != "" {
		detail.Publisher = normalizeSpace(root.Find(sel.Publisher).First().Text())
	}
	if sel.Views != "" {
		detail.Views = normalizeSpace(root.Find(sel.Views).First().Text())
	}
	if sel.PublishTime != "" {
		detail.PublishTime = page.Source.ParseDate(root.Find(sel.PublishTime).First().Text())
	}

	if detail.Publisher == "" && detail.Views == "" && detail.PublishTime == nil {
		return ErrExtractionIncomplete
	}
	return nil
}

// TextExtractor collects the article body, falling back to readability
// when the source allows it.
type TextExtractor struct{}

func (TextExtractor) Name() string { return GroupText }

func (TextExtractor) Extract(page *Page, detail *Detail) error {
	sel := page.Source.Detail.Text

	var parts []string
	if sel.Content != "" {
		scope(page.Doc, sel.ItemContainer).Find(sel.Content).Each(func(_ int, node *goquery.Selection) {
			if text := normalizeBlock(node.Text()); text != "" {
				parts = append(parts, text)
			}
		})
	}
	detail.Text = strings.Join(parts, "\n")

	if detail.Text == "" && page.Source.ReadabilityFallback {
		detail.Text = normalizeBlock(readabilityText(page.Body, page.URL))
	}

	if detail.Text == "" {
		return ErrExtractionIncomplete
	}
	return nil
}

// ImageExtractor turns every matched img[src] into an image attachment.
type ImageExtractor struct{}

func (ImageExtractor) Name() string { return GroupImage }

func (ImageExtractor) Extract(page *Page, detail *Detail) error {
	sel := page.Source.Detail.Image
	if sel.Images == "" {
		return ErrExtractionIncomplete
	}

	found := 0
	scope(page.Doc, sel.ItemContainer).Find(sel.Images).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		abs, err := page.Source.Resolve(src)
		if err != nil {
			return
		}

		name := normalizeSpace(img.AttrOr("alt", ""))
		if name == "" {
			name = baseName(abs)
		}

		detail.Attachments = append(detail.Attachments, domain.Attachment{
			URL:      abs,
			Filename: name,
			MIMEType: domain.MIMEImage,
		})
		found++
	})

	if found == 0 {
		return ErrExtractionIncomplete
	}
	return nil
}

// PDFExtractor collects linked PDF files.
type PDFExtractor struct{}

func (PDFExtractor) Name() string { return GroupPDF }

func (PDFExtractor) Extract(page *Page, detail *Detail) error {
	sel := page.Source.Detail.PDF
	return extractFiles(page, detail, sel.ItemContainer, sel.Files, sel.Name, domain.MIMEPDF)
}

// DocExtractor collects linked Office documents.
type DocExtractor struct{}

func (DocExtractor) Name() string { return GroupDoc }

func (DocExtractor) Extract(page *Page, detail *Detail) error {
	sel := page.Source.Detail.Doc
	return extractFiles(page, detail, sel.ItemContainer, sel.Files, sel.Name, domain.MIMEDoc)
}

// extractFiles appends one attachment per matched anchor. The filename
// comes from the name selector inside the anchor, else the anchor text,
// else the URL path base.
func extractFiles(page *Page, detail *Detail, container, files, nameSel string, hint domain.MIMEHint) error {
	if files == "" {
		return ErrExtractionIncomplete
	}

	found := 0
	scope(page.Doc, container).Find(files).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, err := page.Source.Resolve(href)
		if err != nil {
			return
		}

		var name string
		if nameSel != "" {
			name = normalizeSpace(a.Find(nameSel).First().Text())
		}
		if name == "" {
			name = normalizeSpace(a.Text())
		}
		if name == "" {
			name = baseName(abs)
		}

		detail.Attachments = append(detail.Attachments, domain.Attachment{
			URL:      abs,
			Filename: name,
			MIMEType: hint,
		})
		found++
	})

	if found == 0 {
		return ErrExtractionIncomplete
	}
	return nil
}

// EmbeddedPDFExtractor reads the download link paired with an inline PDF
// viewer. The viewer itself contributes no text.
type EmbeddedPDFExtractor struct{}

func (EmbeddedPDFExtractor) Name() string { return GroupEmbeddedPDF }

func (EmbeddedPDFExtractor) Extract(page *Page, detail *Detail) error {
	sel := page.Source.Detail.EmbeddedPDF
	if sel.Viewer == "" || sel.DownloadLink == "" {
		return ErrExtractionIncomplete
	}

	root := scope(page.Doc, sel.ItemContainer)
	if root.Find(sel.Viewer).Length() == 0 {
		return ErrExtractionIncomplete
	}

	found := 0
	root.Find(sel.DownloadLink).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs, err := page.Source.Resolve(href)
		if err != nil {
			return
		}

		name := normalizeSpace(a.Text())
		if name == "" {
			name = baseName(abs)
		}

		detail.Attachments = append(detail.Attachments, domain.Attachment{
			URL:      abs,
			Filename: name,
			MIMEType: domain.MIMEPDF,
		})
		found++
	})

	if found == 0 {
		return ErrExtractionIncomplete
	}
	return nil
}

// baseName returns the unescaped last path segment of rawURL.
func baseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	if unescaped, unescapeErr := url.PathUnescape(name); unescapeErr == nil {
		return unescaped
	}
	return name
}
