package playback

import "fmt"

// State represents the engine's playback state.
type State int

const (
	// Idle means nothing is playing. A finished session is Idle with the
	// cursor at the end of the chunk list.
	Idle State = iota
	// Speaking means a chunk has been submitted to the narration port.
	Speaking
	// Paused means the current chunk is suspended.
	Paused
)

var stateNames = map[State]string{
	Idle:     "idle",
	Speaking: "speaking",
	Paused:   "paused",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown playback state %q", text)
}

// Button labels for the play/pause control.
const (
	LabelPause = "⏸️ Pause"
	LabelPlay  = "▶️ Play"
)

// Status is a snapshot of a playback session.
type Status struct {
	State State `json:"state"`
	// Cursor is the index of the chunk being narrated, or len(chunks)
	// once the session has finished.
	Cursor int `json:"cursor"`
	Total  int `json:"total"`
	// Speaking is set between a chunk's start and end events.
	Speaking bool    `json:"speaking"`
	Finished bool    `json:"finished"`
	Rate     float64 `json:"rate"`
	VoiceID  string  `json:"voice"`
	// Chunk is the text at Cursor, empty when idle.
	Chunk string `json:"chunk"`
}

// IsPlaying reports whether the play/pause control should offer Pause.
func (s Status) IsPlaying() bool {
	return s.State == Speaking
}

// Label returns the play/pause control label.
func (s Status) Label() string {
	if s.IsPlaying() {
		return LabelPause
	}
	return LabelPlay
}

// Observer receives engine notifications. Methods are called without the
// engine lock held and may call back into the engine.
type Observer interface {
	PlaybackStateChanged(Status)
	PlaybackFailed(error)
}

type nopObserver struct{}

func (nopObserver) PlaybackStateChanged(Status) {}
func (nopObserver) PlaybackFailed(error)        {}
