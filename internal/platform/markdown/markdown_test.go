package markdown

import (
	"strings"
	"testing"
)

func TestWordCountIgnoresSyntax(t *testing.T) {
	src := "## Key Ideas\n\nThis is **very** important, see [the docs](https://example.com/x) today.\n\n- one item\n- two item\n"
	// Key Ideas (2) + This is very important, see the docs today. (8) + one item (2) + two item (2)
	if got := WordCount(src); got != 14 {
		t.Fatalf("WordCount = %d, want 14", got)
	}
}

func TestWordCountCodeBlock(t *testing.T) {
	src := "Intro words\n\n```go\nfmt.Println(x)\n```\n"
	if got := WordCount(src); got != 3 {
		t.Fatalf("WordCount = %d, want 3", got)
	}
	if WordCount("   ") != 0 {
		t.Fatal("blank should be zero")
	}
}

func TestToHTML(t *testing.T) {
	out, err := ToHTML("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if !strings.Contains(out, "<h1>Title</h1>") || !strings.Contains(out, "<table>") {
		t.Fatalf("unexpected html: %s", out)
	}
}
