// Package ui provides the terminal front end for reading a document aloud.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/sparklereader/sparkle/internal/playback"
	"github.com/sparklereader/sparkle/internal/reader"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
	listGap              = 2
)

var paneBorderStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderRight(true).
	BorderForeground(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
	PaddingRight(1)

// Document is the file to read.
type Document struct {
	Name string
	Data []byte
}

// NewProgram returns a new Tea program narrating doc through rd.
func NewProgram(cfg Config, rd *reader.Reader, doc Document) *tea.Program {
	log.Debug("starting sparkle", "document", doc.Name, "mouse", cfg.EnableMouse)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, rd, doc), opts...)
}

type model struct {
	cfg    Config
	reader *reader.Reader
	bridge *bridge
	doc    Document
	keys   keyMap

	width  int
	height int

	docName string
	list    chapterList
	pager   pager
	status  playback.Status

	spinner  spinner.Model
	help     help.Model
	showHelp bool

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer

	unsubscribe func()
}

func newModel(cfg Config, rd *reader.Reader, doc Document) model {
	if cfg.ListWidth <= 0 {
		cfg.ListWidth = 30
	}
	if cfg.RateStep <= 0 {
		cfg.RateStep = 0.25
	}

	b := newBridge()
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return model{
		cfg:         cfg,
		reader:      rd,
		bridge:      b,
		doc:         doc,
		keys:        newKeyMap(),
		docName:     doc.Name,
		list:        newChapterList(),
		pager:       newPager(cfg.Highlight),
		status:      rd.Status(),
		spinner:     sp,
		help:        help.New(),
		unsubscribe: rd.Subscribe(b),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.bridge.listen(),
		loadCmd(m.reader, m.doc.Data, m.doc.Name),
		m.spinner.Tick,
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()

	case tea.KeyMsg:
		if m.list.filtering {
			return m.updateFilter(msg)
		}
		return m.handleKey(msg)

	case chaptersMsg:
		m.list.setChapters(msg.chapters)
		m.docName = m.reader.DocumentName()
		return m, m.bridge.listen()

	case chapterMsg:
		m.list.setCurrent(msg.index)
		m.pager.setChapter(msg.index, msg.chapter)
		return m, m.bridge.listen()

	case playbackMsg:
		m.status = playback.Status(msg)
		m.pager.setStatus(m.status)
		return m, m.bridge.listen()

	case errMsg:
		cmds = append(cmds, m.showStatusMessage(userMessage(msg.err), true))
		if isListenerMsg(msg) {
			cmds = append(cmds, m.bridge.listen())
		}
		return m, tea.Batch(cmds...)

	case loadedMsg:
		if msg.err != nil {
			log.Debug("load failed", "name", msg.name, "err", msg.err)
			return m, nil
		}
		if msg.resumed {
			cmd := m.showStatusMessage(fmt.Sprintf("Welcome back! Resuming chapter %d", msg.index+1), false)
			return m, cmd
		}

	case statusMessageTimeoutMsg:
		m.statusMessage, m.statusIsError = "", false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.pager.viewport, cmd = m.pager.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// isListenerMsg reports whether an error came from the bridge. Command
// errors carry their own wrapper and must not start a second listener.
func isListenerMsg(msg errMsg) bool {
	var ce commandError
	return !errors.As(msg.err, &ce)
}

// commandError marks an error returned by a reader command.
type commandError struct{ err error }

func (e commandError) Error() string { return e.err.Error() }
func (e commandError) Unwrap() error { return e.err }

// command runs fn as a reader command.
func command(fn func() error) tea.Cmd {
	return readerCmd(func() error {
		if err := fn(); err != nil {
			return commandError{err}
		}
		return nil
	})
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rd := m.reader
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.bridge.close()
		m.unsubscribe()
		rd.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		return m, command(rd.TogglePlayPause)

	case key.Matches(msg, m.keys.Stop):
		return m, command(func() error { rd.Stop(); return nil })

	case key.Matches(msg, m.keys.Next):
		return m, command(func() error { rd.NextChapter(); return nil })

	case key.Matches(msg, m.keys.Previous):
		return m, command(func() error { rd.PreviousChapter(); return nil })

	case key.Matches(msg, m.keys.Up):
		m.list.move(-1)

	case key.Matches(msg, m.keys.Down):
		m.list.move(1)

	case key.Matches(msg, m.keys.Select):
		if i, ok := m.list.selected(); ok {
			return m, command(func() error { rd.SelectChapter(i); return nil })
		}

	case key.Matches(msg, m.keys.PageUp):
		m.pager.viewport.HalfViewUp()

	case key.Matches(msg, m.keys.PageDown):
		m.pager.viewport.HalfViewDown()

	case key.Matches(msg, m.keys.Faster):
		return m, m.changeRate(m.cfg.RateStep)

	case key.Matches(msg, m.keys.Slower):
		return m, m.changeRate(-m.cfg.RateStep)

	case key.Matches(msg, m.keys.Voice):
		return m.nextVoice()

	case key.Matches(msg, m.keys.Auto):
		return m.toggleAutoAdvance()

	case key.Matches(msg, m.keys.Copy):
		text := m.status.Chunk
		if text == "" {
			text = m.pager.chapter.Content
		}
		if text == "" {
			return m, nil
		}
		var cmd tea.Cmd
		if err := clipboard.WriteAll(text); err != nil {
			cmd = m.showStatusMessage("Could not copy: "+err.Error(), true)
		} else {
			cmd = m.showStatusMessage("Copied", false)
		}
		return m, cmd

	case key.Matches(msg, m.keys.Filter):
		m.list.filtering = true
		cmd := m.list.filter.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.ClearFocus):
		if m.list.filter.Value() != "" {
			m.list.filter.SetValue("")
			m.list.applyFilter()
			m.list.setCurrent(m.list.current)
			m.layout()
		}

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.layout()

	default:
		var cmd tea.Cmd
		m.pager.viewport, cmd = m.pager.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.list.filtering = false
		m.list.filter.Blur()
		if i, ok := m.list.selected(); ok {
			rd := m.reader
			return m, command(func() error { rd.SelectChapter(i); return nil })
		}
		return m, nil
	case tea.KeyEsc:
		m.list.filtering = false
		m.list.filter.Blur()
		m.list.filter.SetValue("")
		m.list.applyFilter()
		m.list.setCurrent(m.list.current)
		m.layout()
		return m, nil
	case tea.KeyUp:
		m.list.move(-1)
		return m, nil
	case tea.KeyDown:
		m.list.move(1)
		return m, nil
	}

	var cmd tea.Cmd
	before := m.list.filter.Value()
	m.list.filter, cmd = m.list.filter.Update(msg)
	if m.list.filter.Value() != before {
		m.list.applyFilter()
	}
	return m, cmd
}

func (m model) changeRate(delta float64) tea.Cmd {
	rate := m.reader.Rate() + delta
	rate = min(max(rate, reader.MinRate), reader.MaxRate)
	rd := m.reader
	return command(func() error { return rd.SetRate(rate) })
}

func (m model) nextVoice() (tea.Model, tea.Cmd) {
	voices := m.reader.Voices()
	if len(voices) == 0 {
		cmd := m.showStatusMessage("No voices available", true)
		return m, cmd
	}
	next := 0
	current := m.reader.Voice()
	for i, v := range voices {
		if v.ID == current {
			next = (i + 1) % len(voices)
			break
		}
	}
	voice := voices[next]
	rd := m.reader
	note := m.showStatusMessage("Voice: "+voice.Name, false)
	return m, tea.Batch(command(func() error { return rd.SetVoice(voice.ID) }), note)
}

func (m model) toggleAutoAdvance() (tea.Model, tea.Cmd) {
	enabled := !m.reader.AutoAdvance()
	m.reader.SetAutoAdvance(enabled)
	note := "Auto advance off"
	if enabled {
		note = "Auto advance on"
	}
	cmd := m.showStatusMessage(note, false)
	return m, cmd
}

func (m *model) showStatusMessage(msg string, isError bool) tea.Cmd {
	m.statusMessage, m.statusIsError = msg, isError
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m *model) layout() {
	height := m.height - statusBarHeight
	if m.showHelp {
		height -= lipgloss.Height(m.help.View(m.keys))
	}
	m.pager.setSize(max(m.width-m.listWidth()-listGap-1, 1), max(height, 1))
}

func (m model) listWidth() int {
	return min(m.cfg.ListWidth, max(m.width/3, 10))
}

func (m model) View() string {
	if m.width == 0 {
		return ""
	}

	height := m.pager.viewport.Height
	list := paneBorderStyle.Height(height).Render(m.list.view(m.listWidth(), height))

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, list, " ", m.pager.viewport.View()))
	b.WriteString("\n")
	m.statusBarView(&b)
	if m.showHelp {
		b.WriteString("\n" + m.help.View(m.keys))
	}
	return b.String()
}

// userMessage returns the text shown for err.
func userMessage(err error) string {
	var perr *document.ParseError
	if errors.As(err, &perr) && perr.Reason != "" {
		return perr.Reason
	}
	if errors.Is(err, reader.ErrNoDocument) {
		return "No document loaded"
	}
	return err.Error()
}
