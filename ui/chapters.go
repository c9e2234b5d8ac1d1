package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/sparklereader/sparkle/internal/document"
)

var (
	listTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"}).
			Bold(true)
	listCursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"})
	listCurrentStyle = lipgloss.NewStyle().Bold(true)
	listDimStyle     = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"})
)

// chapterList is the navigable, filterable chapter pane.
type chapterList struct {
	titles []string
	// visible holds indexes into titles that match the filter.
	visible []int
	cursor  int
	offset  int
	current int

	filter    textinput.Model
	filtering bool
}

func newChapterList() chapterList {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter"
	return chapterList{filter: ti, current: -1}
}

func (l *chapterList) setChapters(chapters []document.Chapter) {
	l.titles = make([]string, len(chapters))
	for i, c := range chapters {
		l.titles[i] = c.Title
	}
	l.current = -1
	l.filter.SetValue("")
	l.applyFilter()
}

// setCurrent marks the selected chapter and moves the cursor to it when
// visible.
func (l *chapterList) setCurrent(i int) {
	l.current = i
	for pos, idx := range l.visible {
		if idx == i {
			l.cursor = pos
			return
		}
	}
}

func (l *chapterList) applyFilter() {
	l.visible = l.visible[:0]
	pattern := strings.TrimSpace(l.filter.Value())
	if pattern == "" {
		for i := range l.titles {
			l.visible = append(l.visible, i)
		}
	} else {
		for _, m := range fuzzy.Find(pattern, l.titles) {
			l.visible = append(l.visible, m.Index)
		}
	}
	l.cursor, l.offset = 0, 0
}

func (l *chapterList) move(delta int) {
	if len(l.visible) == 0 {
		return
	}
	l.cursor = min(max(l.cursor+delta, 0), len(l.visible)-1)
}

// selected returns the chapter index under the cursor.
func (l chapterList) selected() (int, bool) {
	if l.cursor < 0 || l.cursor >= len(l.visible) {
		return 0, false
	}
	return l.visible[l.cursor], true
}

func (l *chapterList) view(width, height int) string {
	var b strings.Builder
	b.WriteString(listTitleStyle.Render(runewidth.Truncate("Chapters", width, ellipsis)))
	b.WriteString("\n")
	rows := height - 1
	if l.filtering || l.filter.Value() != "" {
		l.filter.Width = max(width-2, 1)
		b.WriteString(l.filter.View())
		b.WriteString("\n")
		rows--
	}
	if rows <= 0 {
		return b.String()
	}

	if len(l.visible) == 0 {
		b.WriteString(listDimStyle.Render("No chapters"))
		return b.String()
	}

	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+rows {
		l.offset = l.cursor - rows + 1
	}

	end := min(l.offset+rows, len(l.visible))
	for pos := l.offset; pos < end; pos++ {
		idx := l.visible[pos]
		marker := "  "
		if idx == l.current {
			marker = "▶ "
		}
		line := runewidth.Truncate(fmt.Sprintf("%s%d. %s", marker, idx+1, l.titles[idx]), width, ellipsis)
		line = runewidth.FillRight(line, width)
		switch {
		case pos == l.cursor:
			line = listCursorStyle.Render(line)
		case idx == l.current:
			line = listCurrentStyle.Render(line)
		}
		b.WriteString(line)
		if pos < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
