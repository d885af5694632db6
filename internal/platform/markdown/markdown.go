// Package markdown counts words in lesson bodies and renders them to HTML for
// platforms that do not accept markdown.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
)

// WordCount counts words in the rendered text of a markdown document, so
// syntax such as "##", "**" and link targets does not inflate the total.
func WordCount(source string) int {
	if strings.TrimSpace(source) == "" {
		return 0
	}
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))
	count := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			count += len(strings.Fields(string(node.Segment.Value(src))))
		case *ast.String:
			count += len(strings.Fields(string(node.Value)))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				count += len(strings.Fields(string(seg.Value(src))))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return count
}

// ToHTML renders markdown to an HTML fragment.
func ToHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
