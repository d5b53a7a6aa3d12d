package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
	"github.com/otiai10/gosseract/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrUnreadable reports bytes that cannot be parsed as the declared format.
// It is a permanent failure: the document will never extract, so the task
// must be dead-lettered rather than retried.
var ErrUnreadable = errors.New("document cannot be parsed as its declared format")

// Extractor converts raw document bytes into plain text. An empty string with
// a nil error is a valid result: the document parsed but contained no
// recoverable text.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

// DocumentExtractor extracts text with docconv and, for PDFs whose text layer
// is empty (scanned documents), falls back to per-page OCR over the embedded
// page images.
type DocumentExtractor struct {
	languages []string
	pdfConf   *model.Configuration
}

var _ Extractor = (*DocumentExtractor)(nil)

// NewDocumentExtractor builds an extractor. languages are tesseract language
// codes for the OCR fallback (e.g. "ind", "eng"); empty means tesseract's
// default.
func NewDocumentExtractor(languages ...string) *DocumentExtractor {
	return &DocumentExtractor{
		languages: languages,
		pdfConf:   model.NewDefaultConfiguration(),
	}
}

func (e *DocumentExtractor) ExtractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrUnreadable)
	}

	switch {
	case contentType == "application/pdf":
		return e.extractPDF(ctx, data)
	case strings.HasPrefix(contentType, "image/"):
		text, err := e.ocrImage(data)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		return strings.TrimSpace(text), nil
	default:
		res, err := docconv.Convert(bytes.NewReader(data), contentType, false)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		return strings.TrimSpace(res.Body), nil
	}
}

func (e *DocumentExtractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	// Page count doubles as the structural sanity check: pdfcpu refuses
	// anything that is not a well-formed PDF.
	pageCount, err := api.PageCount(bytes.NewReader(data), e.pdfConf)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	// First try the embedded text layer.
	if res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false); err == nil {
		if text := strings.TrimSpace(res.Body); text != "" {
			return text, nil
		}
	} else {
		slog.Warn("pdf text layer extraction failed, falling back to OCR", "error", err)
	}

	// Scanned PDF: OCR every page image, concatenate page texts with a
	// newline. A page that OCRs to nothing contributes an empty string.
	pageTexts := make([]string, pageCount)
	images, err := e.pageImages(data, pageCount)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("set ocr language: %w", err)
		}
	}

	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var parts []string
		for _, img := range images[page] {
			if err := client.SetImageFromBytes(img); err != nil {
				slog.Warn("ocr rejected page image", "page", page, "error", err)
				continue
			}
			text, err := client.Text()
			if err != nil {
				slog.Warn("ocr failed for page image", "page", page, "error", err)
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				parts = append(parts, text)
			}
		}
		pageTexts[page-1] = strings.Join(parts, "\n")
	}

	return strings.TrimSpace(strings.Join(pageTexts, "\n")), nil
}

// pageImages extracts the embedded images of every page, keyed by page
// number and kept in extraction order within a page.
func (e *DocumentExtractor) pageImages(data []byte, pageCount int) (map[int][][]byte, error) {
	pages := make([]string, 0, pageCount)
	for p := 1; p <= pageCount; p++ {
		pages = append(pages, strconv.Itoa(p))
	}

	// One map per selected page, keyed by object number.
	pageMaps, err := api.ExtractImagesRaw(bytes.NewReader(data), pages, e.pdfConf)
	if err != nil {
		return nil, err
	}

	var imgs []model.Image
	for _, m := range pageMaps {
		for _, img := range m {
			imgs = append(imgs, img)
		}
	}
	sort.SliceStable(imgs, func(i, j int) bool {
		if imgs[i].PageNr != imgs[j].PageNr {
			return imgs[i].PageNr < imgs[j].PageNr
		}
		return imgs[i].ObjNr < imgs[j].ObjNr
	})

	out := make(map[int][][]byte, pageCount)
	for _, img := range imgs {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(img); err != nil {
			return nil, err
		}
		out[img.PageNr] = append(out[img.PageNr], buf.Bytes())
	}
	return out, nil
}

func (e *DocumentExtractor) ocrImage(data []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return "", err
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", err
	}
	return client.Text()
}
