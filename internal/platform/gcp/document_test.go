package gcp

import (
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
)

func anchor(start, end int64) *documentaipb.Document_TextAnchor {
	return &documentaipb.Document_TextAnchor{
		TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
	}
}

func TestPageTextsFromParagraphs(t *testing.T) {
	full := "Intro line\nSecond para\nPage two"
	doc := &documentaipb.Document{
		Text: full,
		Pages: []*documentaipb.Document_Page{
			{Paragraphs: []*documentaipb.Document_Page_Paragraph{
				{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(0, 10)}},
				{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(11, 22)}},
			}},
			{Paragraphs: []*documentaipb.Document_Page_Paragraph{
				{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(23, 999)}},
			}},
		},
	}
	pages := pageTexts(doc)
	if len(pages) != 2 {
		t.Fatalf("pages = %d", len(pages))
	}
	if pages[0] != "Intro line\nSecond para" || pages[1] != "Page two" {
		t.Fatalf("pages = %#v", pages)
	}
}

func TestPageTextsFallsBackToDocumentText(t *testing.T) {
	doc := &documentaipb.Document{Text: " scanned text ", Pages: []*documentaipb.Document_Page{{}}}
	pages := pageTexts(doc)
	if len(pages) != 1 || pages[0] != "scanned text" {
		t.Fatalf("pages = %#v", pages)
	}
}

func TestProcessorName(t *testing.T) {
	if got := processorName("p", "eu", "proc", ""); got != "projects/p/locations/eu/processors/proc" {
		t.Fatalf("got %q", got)
	}
	if got := processorName("p", "eu", "proc", "v2"); got != "projects/p/locations/eu/processors/proc/processorVersions/v2" {
		t.Fatalf("got %q", got)
	}
	if processorName("", "eu", "proc", "") != "" {
		t.Fatal("expected empty name without project")
	}
	if (DocumentAIConfig{ProjectID: "p", ProcessorID: "x"}).Enabled() != true {
		t.Fatal("expected enabled with default location")
	}
}
