package ocr_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/notice-crawler/internal/ocr"
	ocrmocks "github.com/jonesrussell/north-cloud/notice-crawler/testutils/mocks/ocr"
)

// pageWidths gives every page image a distinct width so the engine can tell
// the pages apart.
var pageWidths = []int{11, 22, 33, 44, 55, 66}

// imagePDF builds a PDF with one grayscale image per page.
func imagePDF(t *testing.T, widths []int) []byte {
	t.Helper()
	api.DisableConfigDir()

	readers := make([]io.Reader, 0, len(widths))
	for _, w := range widths {
		img := image.NewGray(image.Rect(0, 0, w, 10))
		for x := range w {
			img.SetGray(x, 5, color.Gray{Y: 200})
		}

		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))
		readers = append(readers, &buf)
	}

	var out bytes.Buffer
	require.NoError(t, api.ImportImages(nil, &out, readers, nil, nil))

	return out.Bytes()
}

// textOnlyPDF builds a single page PDF with a text layer and no images.
func textOnlyPDF() []byte {
	content := "BT /F1 12 Tf 20 100 Td (exam schedule) Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Contents 4 0 R " +
			"/Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

// widthEngine answers with the width of the recognized image.
func widthEngine(_ context.Context, data []byte) (string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("W%d", cfg.Width), nil
}

func TestRecognize_PDFPagesInOrder(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	engine := ocrmocks.NewMockEngine(ctrl)
	engine.EXPECT().Recognize(gomock.Any(), gomock.Any()).DoAndReturn(widthEngine).AnyTimes()

	r := newResolver(&payloadFetcher{}, engine, ocr.Config{Enabled: true})
	payload := imagePDF(t, pageWidths)

	want := "W11\nW22\nW33\nW44\nW55\nW66"
	for range 10 {
		text, err := r.Recognize(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, want, text)
	}
}

func TestResolve_PDFAttachmentRecognized(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	engine := ocrmocks.NewMockEngine(ctrl)
	engine.EXPECT().Recognize(gomock.Any(), gomock.Any()).DoAndReturn(widthEngine).Times(2)

	f := &payloadFetcher{payloads: map[string][]byte{pdfURL: imagePDF(t, []int{40, 20})}}
	got := newResolver(f, engine, ocr.Config{Enabled: true}).
		Resolve(context.Background(), testSrc, domain.Attachment{URL: pdfURL, MIMEType: domain.MIMEPDF})

	require.NotNil(t, got.Text)
	assert.Equal(t, "W40\nW20", *got.Text)
}

func TestRecognize_PDFWithoutImages(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	engine := ocrmocks.NewMockEngine(ctrl)
	r := newResolver(&payloadFetcher{}, engine, ocr.Config{Enabled: true})

	payload := textOnlyPDF()
	require.True(t, strings.HasPrefix(string(payload), "%PDF-"))

	_, err := r.Recognize(context.Background(), payload)
	require.ErrorIs(t, err, ocr.ErrOCRFailed)
	require.ErrorIs(t, err, ocr.ErrNoImages)

	f := &payloadFetcher{payloads: map[string][]byte{pdfURL: payload}}
	got := newResolver(f, engine, ocr.Config{Enabled: true}).
		Resolve(context.Background(), testSrc, domain.Attachment{URL: pdfURL, MIMEType: domain.MIMEPDF})
	assert.Nil(t, got.Text)
}
