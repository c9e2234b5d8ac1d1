package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser extracts page text and splits it on chapter headings.
type PDFParser struct{}

// Parse implements Parser.
func (p *PDFParser) Parse(data []byte, name string) (chapters []Chapter, err error) {
	// The pdf library panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			chapters = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug("skipping unreadable pdf page", "name", name, "page", i, "err", err)
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	log.Debug("extracted pdf text", "name", name, "pages", numPages, "bytes", buf.Len())
	return SplitChapters(buf.String()), nil
}

// TextParser splits plain text on chapter headings.
type TextParser struct{}

// Parse implements Parser.
func (p *TextParser) Parse(data []byte, _ string) ([]Chapter, error) {
	return SplitChapters(string(bytes.ToValidUTF8(data, []byte("�")))), nil
}
