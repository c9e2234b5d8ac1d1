package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

var highlightStyle = lipgloss.NewStyle().
	Background(lipgloss.AdaptiveColor{Light: "#FFF59D", Dark: "#5C5300"}).
	Bold(true)

// highlight is the rendered chapter text with the narrated chunk marked.
type highlight struct {
	text string
	// line is the wrapped line the chunk starts on, -1 without a chunk.
	line int
	// end is the byte offset after the chunk in the raw content.
	end int
}

// highlightChunk finds chunk in content at or after from, falling back to
// the start, and wraps the result to width.
func highlightChunk(content, chunk string, from, width int) highlight {
	idx := -1
	if chunk != "" {
		if from >= 0 && from <= len(content) {
			if i := strings.Index(content[from:], chunk); i >= 0 {
				idx = from + i
			}
		}
		if idx < 0 {
			idx = strings.Index(content, chunk)
		}
	}
	if idx < 0 {
		return highlight{text: wrapText(content, width), line: -1}
	}

	end := idx + len(chunk)
	styled := content[:idx] + highlightStyle.Render(chunk) + content[end:]
	return highlight{
		text: wrapText(styled, width),
		line: strings.Count(wrapText(content[:idx]+firstWord(chunk), width), "\n"),
		end:  end,
	}
}

// wrapText word wraps s and hard wraps words longer than width.
func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wrap.String(wordwrap.String(s, width), width)
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}
