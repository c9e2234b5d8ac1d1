package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/sparklereader/sparkle/internal/playback"
)

const statusBarHeight = 1

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarPlaybackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(lipgloss.Color("#FF5F87")).
				Render

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Render

	chapterTitleStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
)

// pager shows the selected chapter with the narrated chunk highlighted.
type pager struct {
	viewport viewport.Model
	index    int
	chapter  document.Chapter
	loaded   bool

	highlight bool
	chunk     string
	// from is where the chunk lookup starts and end is where the last
	// match finished, so repeated sentences highlight in reading order.
	from       int
	end        int
	followLine int
}

func newPager(highlight bool) pager {
	return pager{viewport: viewport.New(0, 0), highlight: highlight, followLine: -1}
}

func (p *pager) setSize(w, h int) {
	p.viewport.Width = w
	p.viewport.Height = h
	p.render()
}

func (p *pager) setChapter(index int, c document.Chapter) {
	p.index, p.chapter, p.loaded = index, c, true
	p.chunk, p.from, p.end, p.followLine = "", 0, 0, -1
	p.render()
	p.viewport.GotoTop()
}

func (p *pager) setStatus(s playback.Status) {
	chunk := ""
	if p.highlight && s.State != playback.Idle {
		chunk = s.Chunk
	}
	if chunk == p.chunk {
		return
	}
	if chunk == "" {
		p.from, p.end = 0, 0
	} else {
		p.from = p.end
	}
	p.chunk = chunk
	p.render()
}

func (p *pager) render() {
	if !p.loaded {
		p.viewport.SetContent("")
		return
	}
	width := max(p.viewport.Width, 1)
	title := chapterTitleStyle.Render(truncate.StringWithTail(p.chapter.Title, uint(width), ellipsis)) //nolint:gosec
	h := highlightChunk(p.chapter.Content, p.chunk, p.from, width)
	if h.line >= 0 {
		p.end = h.end
	}
	p.viewport.SetContent(title + "\n" + h.text)

	// Keep the narrated chunk on screen. The title occupies two lines.
	if h.line >= 0 && h.line != p.followLine {
		p.followLine = h.line
		line := h.line + 2
		if line < p.viewport.YOffset || line >= p.viewport.YOffset+p.viewport.Height {
			p.viewport.SetYOffset(line)
		}
	}
}

// statusBarView renders the bottom line: logo, note, playback, help.
func (m model) statusBarView(b *strings.Builder) {
	logo := logoStyle(" Sparkle ")

	playbackNote := statusBarPlaybackStyle(" " + compactStatus(m.status, m.spinner.View(), m.reader.Voice()) + " ")
	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	style := statusBarNoteStyle
	switch {
	case m.statusMessage != "":
		note = m.statusMessage
		style = statusBarMessageStyle
		if m.statusIsError {
			style = statusBarErrorStyle
		}
	case m.pager.loaded:
		note = fmt.Sprintf("%s · %d/%d %s", m.docName, m.pager.index+1, len(m.list.titles), m.pager.chapter.Title)
	default:
		note = m.docName
	}

	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(playbackNote)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	note = style(note)

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(playbackNote)-
			ansi.PrintableRuneWidth(helpNote),
	)
	fmt.Fprintf(b, "%s%s%s%s%s", logo, note, style(strings.Repeat(" ", padding)), playbackNote, helpNote)
}

// compactStatus summarizes playback for the status bar. While a chunk is
// submitted but not yet audible the spinner is shown.
func compactStatus(s playback.Status, spin, voice string) string {
	var icon string
	switch s.State {
	case playback.Speaking:
		icon = "▶"
		if !s.Speaking {
			icon = spin
		}
	case playback.Paused:
		icon = "⏸"
	default:
		icon = "■"
	}

	parts := []string{icon}
	if s.Total > 0 && s.State != playback.Idle {
		parts = append(parts, fmt.Sprintf("%d/%d", min(s.Cursor+1, s.Total), s.Total))
	}
	parts = append(parts, formatRate(s.Rate))
	if voice != "" {
		parts = append(parts, voice)
	}
	return strings.Join(parts, " ")
}

func formatRate(rate float64) string {
	if rate == 0 {
		rate = playback.DefaultRate
	}
	if rate == math.Trunc(rate) {
		return fmt.Sprintf("%.1fx", rate)
	}
	return strings.TrimRight(fmt.Sprintf("%.2f", rate), "0") + "x"
}
