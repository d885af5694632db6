package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/yungbote/coursebuilder-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type DocumentAIConfig struct {
	ProjectID        string      `yaml:"project_id"`
	Location         string      `yaml:"location"`
	ProcessorID      string      `yaml:"processor_id"`
	ProcessorVersion string      `yaml:"processor_version"`
	Credentials      Credentials `yaml:"-"`
}

// Enabled reports whether enough is configured to call a processor.
func (c DocumentAIConfig) Enabled() bool {
	return processorName(c.ProjectID, c.location(), c.ProcessorID, c.ProcessorVersion) != ""
}

func (c DocumentAIConfig) location() string {
	if strings.TrimSpace(c.Location) == "" {
		return "us"
	}
	return strings.TrimSpace(c.Location)
}

// OCR turns scanned PDF bytes into per-page text.
type OCR interface {
	PDFPages(ctx context.Context, data []byte) ([]string, error)
	Close() error
}

type documentService struct {
	log       *logger.Logger
	client    *documentai.DocumentProcessorClient
	processor string
}

func NewDocumentOCR(ctx context.Context, log *logger.Logger, cfg DocumentAIConfig) (OCR, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	name := processorName(cfg.ProjectID, cfg.location(), cfg.ProcessorID, cfg.ProcessorVersion)
	if name == "" {
		return nil, fmt.Errorf("documentai: project id and processor id are required")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.location())
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, cfg.Credentials.ClientOptions()...)
	c, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	slog := log.With("service", "gcp.DocumentOCR")
	slog.Info("Document AI initialized", "endpoint", endpoint)
	return &documentService{log: slog, client: c, processor: name}, nil
}

func (s *documentService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *documentService) PDFPages(ctx context.Context, data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 3*time.Minute)
	defer cancel()

	resp, err := s.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: s.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: "application/pdf"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil {
		return nil, nil
	}
	return pageTexts(resp.GetDocument()), nil
}

// pageTexts rebuilds each page from its paragraph anchors. Processors that
// return no page layout yield the whole document text as one page.
func pageTexts(doc *documentaipb.Document) []string {
	if doc == nil {
		return nil
	}
	out := make([]string, 0, len(doc.GetPages()))
	for _, p := range doc.GetPages() {
		var b strings.Builder
		for _, para := range p.GetParagraphs() {
			t := strings.TrimSpace(textFromAnchor(doc.GetText(), para.GetLayout().GetTextAnchor()))
			if t == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(t)
		}
		out = append(out, b.String())
	}
	if strings.TrimSpace(strings.Join(out, "")) == "" && strings.TrimSpace(doc.GetText()) != "" {
		return []string{strings.TrimSpace(doc.GetText())}
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID, version string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	if project == "" || location == "" || processorID == "" {
		return ""
	}
	base := fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
	if v := strings.TrimSpace(version); v != "" {
		return base + "/processorVersions/" + v
	}
	return base
}
