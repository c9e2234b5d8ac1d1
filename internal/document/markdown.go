package document

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser starts a chapter at every top-level heading. Code blocks
// and raw HTML are not narrated.
type MarkdownParser struct{}

// Parse implements Parser.
func (p *MarkdownParser) Parse(data []byte, _ string) ([]Chapter, error) {
	reader := text.NewReader(data)
	doc := goldmark.New().Parser().Parse(reader)
	src := reader.Source()

	top := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && (top == 0 || h.Level < top) {
			top = h.Level
		}
	}

	var (
		chapters []Chapter
		title    string
		started  bool
		body     []string
	)
	flush := func() {
		content := Normalize(strings.Join(body, "\n\n"))
		body = nil
		switch {
		case started:
			if content != "" || title != "" {
				chapters = append(chapters, Chapter{Title: title, Content: content})
			}
		case content != "":
			chapters = append(chapters, Chapter{Title: FrontMatterTitle, Content: content})
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == top {
			flush()
			title = strings.TrimSpace(inlineText(h, src))
			started = true
			continue
		}
		if t := blockText(n, src); t != "" {
			body = append(body, t)
		}
	}
	flush()

	if top == 0 && len(chapters) == 1 {
		chapters[0].Title = FullTextTitle
	}
	return chapters, nil
}

// blockText returns the speakable text of a block node.
func blockText(n ast.Node, src []byte) string {
	switch n := n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		return ""
	case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
		return inlineText(n, src)
	default:
		var parts []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t := blockText(c, src); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n\n")
	}
}

// inlineText concatenates the text segments below n.
func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := node.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteString(" ")
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}
