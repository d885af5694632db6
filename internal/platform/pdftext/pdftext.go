// Package pdftext validates uploaded PDFs and pulls their text layer out page
// by page, falling back to OCR for scanned documents.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type Reason string

const (
	ReasonCorrupt Reason = "corrupt"
	ReasonEmpty   Reason = "empty"
	ReasonNoText  Reason = "no_text"
	ReasonFetch   Reason = "fetch"
)

// ExtractionError means the source document cannot yield usable text.
type ExtractionError struct {
	Reason Reason
	Err    error
}

func (e *ExtractionError) Error() string {
	switch e.Reason {
	case ReasonCorrupt:
		return fmt.Sprintf("pdf is corrupt or unreadable: %v", e.Err)
	case ReasonEmpty:
		return "pdf has no pages"
	case ReasonNoText:
		return "pdf has no extractable text"
	case ReasonFetch:
		return fmt.Sprintf("could not fetch pdf: %v", e.Err)
	default:
		return fmt.Sprintf("pdf extraction failed: %v", e.Err)
	}
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// OCR is the scanned-document fallback.
type OCR interface {
	PDFPages(ctx context.Context, data []byte) ([]string, error)
}

type Result struct {
	Text      string
	Pages     []string
	PageCount int
	UsedOCR   bool
}

type Extractor struct {
	log *logger.Logger
	ocr OCR
}

// NewExtractor builds an extractor. ocr may be nil.
func NewExtractor(log *logger.Logger, ocr OCR) *Extractor {
	return &Extractor{log: log.With("service", "PDFExtractor"), ocr: ocr}
}

// Inspect validates the document structure and returns its page count.
func Inspect(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, &ExtractionError{Reason: ReasonEmpty}
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, &ExtractionError{Reason: ReasonCorrupt, Err: err}
	}
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, &ExtractionError{Reason: ReasonCorrupt, Err: err}
	}
	if n <= 0 {
		return 0, &ExtractionError{Reason: ReasonEmpty}
	}
	return n, nil
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (Result, error) {
	pages, err := readPages(data)
	if err != nil {
		return Result{}, err
	}
	res := Result{Pages: pages, PageCount: len(pages)}
	res.Text = joinPages(pages)
	if res.Text != "" {
		return res, nil
	}
	if e.ocr == nil {
		return Result{}, &ExtractionError{Reason: ReasonNoText}
	}
	e.log.Info("pdf has no text layer, running OCR", "pages", len(pages))
	ocrPages, err := e.ocr.PDFPages(ctx, data)
	if err != nil {
		return Result{}, &ExtractionError{Reason: ReasonNoText, Err: fmt.Errorf("ocr: %w", err)}
	}
	for i := range ocrPages {
		ocrPages[i] = Sanitize(ocrPages[i])
	}
	res.Text = joinPages(ocrPages)
	res.UsedOCR = true
	if res.Text == "" {
		return Result{}, &ExtractionError{Reason: ReasonNoText}
	}
	return res, nil
}

// readPages walks every page with the text-layer reader. The reader panics on
// some malformed inputs, which is surfaced as a corrupt document.
func readPages(data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, &ExtractionError{Reason: ReasonEmpty}
	}
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &ExtractionError{Reason: ReasonCorrupt, Err: fmt.Errorf("reader panic: %v", r)}
		}
	}()
	r, openErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if openErr != nil {
		return nil, &ExtractionError{Reason: ReasonCorrupt, Err: openErr}
	}
	n := r.NumPage()
	if n <= 0 {
		return nil, &ExtractionError{Reason: ReasonEmpty}
	}
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, pErr := p.GetPlainText(nil)
		if pErr != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, Sanitize(text))
	}
	return pages, nil
}

func joinPages(pages []string) string {
	nonEmpty := make([]string, 0, len(pages))
	for _, p := range pages {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t]{2,}`)
	trailingWS = regexp.MustCompile(`[ \t]+\n`)
)

// Sanitize strips NULs and control characters Postgres text columns reject,
// drops invalid UTF-8 and collapses runs of whitespace.
func Sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case r == 0 || unicode.IsControl(r):
			return -1
		case r == ' ':
			return ' '
		default:
			return r
		}
	}, s)
	s = spaceRuns.ReplaceAllString(s, " ")
	s = trailingWS.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
