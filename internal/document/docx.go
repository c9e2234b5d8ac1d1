package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser starts a chapter at every top-level heading paragraph. Word
// files without heading styles fall back to "Chapter N" splitting.
type DOCXParser struct{}

// Parse implements Parser.
func (p *DOCXParser) Parse(data []byte, name string) ([]Chapter, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Name: name, Reason: "could not read Word document", Err: err}
	}

	type paragraph struct {
		level int
		text  string
	}
	var (
		paras []paragraph
		top   int
	)
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		level := docxHeadingLevel(para)
		if level > 0 && (top == 0 || level < top) {
			top = level
		}
		paras = append(paras, paragraph{level: level, text: text})
	}

	if top == 0 {
		texts := make([]string, len(paras))
		for i, p := range paras {
			texts[i] = p.text
		}
		return SplitChapters(strings.Join(texts, "\n\n")), nil
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
			chapters = append(chapters, Chapter{Title: title, Content: content})
		case content != "":
			chapters = append(chapters, Chapter{Title: FrontMatterTitle, Content: content})
		}
	}
	for _, p := range paras {
		if p.level == top {
			flush()
			title = p.text
			started = true
			continue
		}
		body = append(body, p.text)
	}
	flush()
	return chapters, nil
}

// docxHeadingLevel returns 1-6 for "Heading1" or "heading 1" styles and 0
// otherwise.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := para.Properties.Style.Val
	for level := 1; level <= 6; level++ {
		if strings.EqualFold(style, fmt.Sprintf("Heading%d", level)) ||
			strings.EqualFold(style, fmt.Sprintf("heading %d", level)) {
			return level
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
