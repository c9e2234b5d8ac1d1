// Package narration defines the port between the playback engine and an
// external speech capability.
package narration

import (
	"errors"
	"fmt"
)

// Common narration errors.
var (
	// ErrClosed is returned by a port that has been shut down.
	ErrClosed = errors.New("narration port closed")

	// ErrNotConnected is returned when no speech device is attached.
	ErrNotConnected = errors.New("no narration device connected")
)

// Tag identifies a submitted utterance. Events carry the tag back so stale
// completions can be recognised.
type Tag struct {
	Generation uint64
	Index      int
}

func (t Tag) String() string {
	return fmt.Sprintf("%d/%d", t.Generation, t.Index)
}

// Utterance is a single chunk handed to the backend.
type Utterance struct {
	Tag     Tag
	Text    string
	Rate    float64
	VoiceID string
}

// EventKind is the type of a narration event.
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
	EventError
)

var eventKindNames = map[EventKind]string{
	EventStart: "start",
	EventEnd:   "end",
	EventError: "error",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event reports progress of an utterance.
type Event struct {
	Kind EventKind
	Tag  Tag
	Err  error
}

// Voice is a selectable backend voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"lang"`
}

// Port is the narration capability consumed by the playback engine.
//
// Speak queues one utterance; the port reports EventStart, then EventEnd or
// EventError for it on the Events channel. Resume reports whether anything
// was actually paused. Cancel discards the in-flight utterance without
// emitting further events for it.
type Port interface {
	Speak(u Utterance) error
	Pause() error
	Resume() (bool, error)
	Cancel() error
	Voices() []Voice
	Events() <-chan Event
}

// SelectVoice returns id when voices contains it, the first voice
// otherwise, or "" to use the backend default when voices is empty.
func SelectVoice(voices []Voice, id string) string {
	for _, v := range voices {
		if v.ID == id {
			return id
		}
	}
	if len(voices) > 0 {
		return voices[0].ID
	}
	return ""
}

// Error describes a failed narration operation.
type Error struct {
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "narration " + e.Op
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a narration failure of op.
func NewError(op, reason string, err error) *Error {
	return &Error{Op: op, Reason: reason, Err: err}
}
