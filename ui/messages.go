package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/sparklereader/sparkle/internal/playback"
	"github.com/sparklereader/sparkle/internal/reader"
)

type (
	chaptersMsg struct {
		chapters []document.Chapter
	}
	chapterMsg struct {
		index   int
		chapter document.Chapter
	}
	playbackMsg playback.Status
	errMsg      struct{ err error }

	// loadedMsg reports the initial document load.
	loadedMsg struct {
		name    string
		resumed bool
		index   int
		err     error
	}

	statusMessageTimeoutMsg struct{}
)

func (e errMsg) Error() string { return e.err.Error() }

// bridge turns reader notifications into tea messages.
type bridge struct {
	msgs chan tea.Msg
	done chan struct{}
}

func newBridge() *bridge {
	return &bridge{
		msgs: make(chan tea.Msg, 256),
		done: make(chan struct{}),
	}
}

func (b *bridge) send(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	case <-b.done:
	}
}

func (b *bridge) close() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

func (b *bridge) ChapterListChanged(chapters []document.Chapter) {
	b.send(chaptersMsg{chapters: chapters})
}

func (b *bridge) ChapterSelected(index int, c document.Chapter) {
	b.send(chapterMsg{index: index, chapter: c})
}

func (b *bridge) PlaybackStateChanged(s playback.Status) {
	b.send(playbackMsg(s))
}

func (b *bridge) ErrorOccurred(err error) {
	b.send(errMsg{err})
}

// listen waits for the next reader notification.
func (b *bridge) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.msgs:
			return msg
		case <-b.done:
			return nil
		}
	}
}

var _ reader.Listener = (*bridge)(nil)

// loadCmd loads the document and reports whether saved progress was
// restored.
func loadCmd(rd *reader.Reader, data []byte, name string) tea.Cmd {
	return func() tea.Msg {
		rec, saved := rd.SavedProgress()
		err := rd.LoadDocument(context.Background(), data, name)
		msg := loadedMsg{name: name, err: err}
		if err == nil && saved && rec.DocumentName == name {
			msg.index, _, _ = rd.CurrentChapter()
			msg.resumed = true
		}
		return msg
	}
}

// readerCmd runs a reader command off the update loop.
func readerCmd(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}
