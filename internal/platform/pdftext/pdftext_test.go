package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

// onePagePDF assembles a minimal single-page PDF with a correct xref table.
func onePagePDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
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

type fakeOCR struct {
	pages []string
	err   error
	calls int
}

func (f *fakeOCR) PDFPages(ctx context.Context, data []byte) ([]string, error) {
	f.calls++
	return f.pages, f.err
}

func TestInspectCountsPages(t *testing.T) {
	n, err := Inspect(onePagePDF("Hello"))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if n != 1 {
		t.Fatalf("pages = %d", n)
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := Inspect([]byte("definitely not a pdf"))
	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonCorrupt {
		t.Fatalf("expected corrupt ExtractionError, got %v", err)
	}
	_, err = Inspect(nil)
	if !errors.As(err, &exErr) || exErr.Reason != ReasonEmpty {
		t.Fatalf("expected empty ExtractionError, got %v", err)
	}
}

func TestExtractReadsTextLayer(t *testing.T) {
	ocr := &fakeOCR{}
	res, err := NewExtractor(logger.Nop(), ocr).Extract(context.Background(), onePagePDF("Hello World"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.PageCount != 1 || !strings.Contains(res.Text, "Hello") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.UsedOCR || ocr.calls != 0 {
		t.Fatal("OCR should not run when a text layer exists")
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	ex := NewExtractor(logger.Nop(), nil)
	data := onePagePDF("Same text twice")
	first, err := ex.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	second, err := ex.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if first.Text != second.Text || first.PageCount != second.PageCount {
		t.Fatalf("extraction differs: %q vs %q", first.Text, second.Text)
	}
}

func TestExtractFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{pages: []string{"scanned\x00 page"}}
	res, err := NewExtractor(logger.Nop(), ocr).Extract(context.Background(), onePagePDF(""))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.UsedOCR || res.Text != "scanned page" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExtractNoTextWithoutOCR(t *testing.T) {
	_, err := NewExtractor(logger.Nop(), nil).Extract(context.Background(), onePagePDF(""))
	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonNoText {
		t.Fatalf("expected no_text, got %v", err)
	}
}

func TestExtractCorrupt(t *testing.T) {
	_, err := NewExtractor(logger.Nop(), nil).Extract(context.Background(), []byte("%PDF-1.4 truncated"))
	var exErr *ExtractionError
	if !errors.As(err, &exErr) || exErr.Reason != ReasonCorrupt {
		t.Fatalf("expected corrupt, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	in := "Title\x00\r\n\r\n\r\n\r\nBody  text\t\t here \nend\x07\xff"
	got := Sanitize(in)
	want := "Title\n\nBody text here\nend"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}

func TestTruncateIsRuneAware(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Fatalf("zero max should not truncate, got %q", got)
	}
}
