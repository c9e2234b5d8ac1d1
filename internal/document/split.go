package document

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Chapter titles used when a document has no headings.
const (
	FullTextTitle    = "Full Text"
	FrontMatterTitle = "Front Matter"
)

var (
	chapterHeading = regexp.MustCompile(`(?i)chapter\s+\d+`)
	blankLines     = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)
)

// SplitChapters splits text on "Chapter N" headings. Each heading becomes
// a chapter title and the text up to the next heading its content. Text
// before the first heading is kept as front matter. Without any heading the
// whole text is one chapter.
func SplitChapters(text string) []Chapter {
	text = Normalize(text)
	if text == "" {
		return nil
	}

	locs := chapterHeading.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []Chapter{{Title: FullTextTitle, Content: text}}
	}

	var chapters []Chapter
	if front := strings.TrimSpace(text[:locs[0][0]]); front != "" {
		chapters = append(chapters, Chapter{Title: FrontMatterTitle, Content: front})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		chapters = append(chapters, Chapter{
			Title:   strings.Join(strings.Fields(text[loc[0]:loc[1]]), " "),
			Content: strings.TrimSpace(text[loc[1]:end]),
		})
	}
	return chapters
}

// Normalize converts text to NFC, collapses runs of whitespace inside
// paragraphs and keeps blank lines between paragraphs.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []string
	for _, p := range blankLines.Split(text, -1) {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
