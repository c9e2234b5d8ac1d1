package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
)

const ncxMediaType = "application/x-dtbncx+xml"

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap struct {
		NavPoints []navPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type navPoint struct {
	Label struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

type tocEntry struct {
	title string
	href  string
}

type section struct {
	href string
	text string
}

// EPUBParser builds chapters from the table of contents, falling back to
// spine order when the book has none.
type EPUBParser struct{}

// Parse implements Parser.
func (p *EPUBParser) Parse(data []byte, name string) ([]Chapter, error) {
	r, err := epub.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	if len(r.Rootfiles) == 0 {
		return nil, errors.New("no rootfiles found in epub")
	}
	book := r.Rootfiles[0]

	var sections []section
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		text, err := readItemText(ref.Item)
		if err != nil {
			log.Debug("skipping unreadable epub section", "name", name, "href", ref.Item.HREF, "err", err)
			continue
		}
		sections = append(sections, section{href: ref.Item.HREF, text: text})
	}

	toc, err := readTOC(book)
	if err != nil {
		log.Debug("epub has no usable toc, using spine order", "name", name, "err", err)
	}

	chapters := chaptersFromTOC(toc, sections)
	if len(chapters) == 0 {
		chapters = chaptersFromSpine(sections)
	}
	return chapters, nil
}

// chaptersFromTOC groups spine sections under the TOC entry that points
// at the first of them. Entries that do not resolve to a section, or that
// point into a section already claimed, are skipped.
func chaptersFromTOC(toc []tocEntry, sections []section) []Chapter {
	if len(toc) == 0 {
		return nil
	}

	index := make(map[string]int, len(sections))
	for i, s := range sections {
		if _, ok := index[hrefKey(s.href)]; !ok {
			index[hrefKey(s.href)] = i
		}
	}

	type start struct {
		title string
		at    int
	}
	var starts []start
	claimed := map[int]bool{}
	for _, e := range toc {
		i, ok := index[hrefKey(e.href)]
		if !ok || claimed[i] {
			continue
		}
		claimed[i] = true
		starts = append(starts, start{title: e.title, at: i})
	}
	if len(starts) == 0 {
		return nil
	}

	// Keep spine order even if the TOC lists entries out of order.
	for i := 1; i < len(starts); i++ {
		for j := i; j > 0 && starts[j].at < starts[j-1].at; j-- {
			starts[j], starts[j-1] = starts[j-1], starts[j]
		}
	}

	var chapters []Chapter
	if front := joinSections(sections[:starts[0].at]); front != "" {
		chapters = append(chapters, Chapter{Title: FrontMatterTitle, Content: front})
	}
	for k, s := range starts {
		end := len(sections)
		if k+1 < len(starts) {
			end = starts[k+1].at
		}
		content := joinSections(sections[s.at:end])
		if content == "" {
			continue
		}
		title := s.title
		if title == "" {
			title = fmt.Sprintf("Section %d", s.at+1)
		}
		chapters = append(chapters, Chapter{Title: title, Content: content})
	}
	return chapters
}

func chaptersFromSpine(sections []section) []Chapter {
	var chapters []Chapter
	for i, s := range sections {
		if s.text == "" {
			continue
		}
		chapters = append(chapters, Chapter{
			Title:   fmt.Sprintf("Section %d", i+1),
			Content: s.text,
		})
	}
	return chapters
}

func joinSections(sections []section) string {
	var parts []string
	for _, s := range sections {
		if s.text != "" {
			parts = append(parts, s.text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// hrefKey reduces an href to its file name so NCX and manifest paths,
// which are relative to different directories, can be compared.
func hrefKey(href string) string {
	if i := strings.Index(href, "#"); i != -1 {
		href = href[:i]
	}
	return path.Base(href)
}

func readTOC(book *epub.Rootfile) ([]tocEntry, error) {
	for i := range book.Manifest.Items {
		item := &book.Manifest.Items[i]
		if item.MediaType != ncxMediaType {
			continue
		}
		rc, err := item.Open()
		if err != nil {
			return nil, fmt.Errorf("open ncx: %w", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read ncx: %w", err)
		}
		return parseNCX(data)
	}
	return nil, errors.New("no NCX file found in epub")
}

func parseNCX(data []byte) ([]tocEntry, error) {
	var toc ncx
	if err := xml.Unmarshal(data, &toc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	var entries []tocEntry
	var flatten func(points []navPoint)
	flatten = func(points []navPoint) {
		for _, np := range points {
			entries = append(entries, tocEntry{
				title: strings.Join(strings.Fields(np.Label.Text), " "),
				href:  np.Content.Src,
			})
			flatten(np.Children)
		}
	}
	flatten(toc.NavMap.NavPoints)
	return entries, nil
}

func readItemText(item *epub.Item) (string, error) {
	rc, err := item.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return extractTextFromHTML(rc)
}

// blockElements end a paragraph in extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "pre": true,
}

// extractTextFromHTML returns the visible text of an XHTML document with
// block elements separated by blank lines.
func extractTextFromHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			out.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head", "title":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			out.WriteString("\n\n")
		}
	}
	walk(doc)
	return Normalize(out.String()), nil
}
