package reader

import (
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/sparklereader/sparkle/internal/playback"
)

// Listener receives reader notifications. Front ends render from these.
type Listener interface {
	ChapterListChanged(chapters []document.Chapter)
	ChapterSelected(index int, chapter document.Chapter)
	PlaybackStateChanged(status playback.Status)
	ErrorOccurred(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are
// skipped.
type ListenerFuncs struct {
	OnChapterListChanged   func([]document.Chapter)
	OnChapterSelected      func(int, document.Chapter)
	OnPlaybackStateChanged func(playback.Status)
	OnError                func(error)
}

func (f ListenerFuncs) ChapterListChanged(chapters []document.Chapter) {
	if f.OnChapterListChanged != nil {
		f.OnChapterListChanged(chapters)
	}
}

func (f ListenerFuncs) ChapterSelected(index int, chapter document.Chapter) {
	if f.OnChapterSelected != nil {
		f.OnChapterSelected(index, chapter)
	}
}

func (f ListenerFuncs) PlaybackStateChanged(status playback.Status) {
	if f.OnPlaybackStateChanged != nil {
		f.OnPlaybackStateChanged(status)
	}
}

func (f ListenerFuncs) ErrorOccurred(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}
