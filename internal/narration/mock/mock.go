// Package mock provides a scriptable narration port for tests and demos.
package mock

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sparklereader/sparkle/internal/narration"
)

// Call records one port invocation.
type Call struct {
	Op        string
	Utterance narration.Utterance
}

// Port implements narration.Port in memory. In manual mode nothing is
// spoken until the test calls Begin, Complete or Fail. In auto mode each
// utterance completes after an estimated speaking time.
type Port struct {
	mu      sync.Mutex
	calls   []Call
	voices  []narration.Voice
	events  chan narration.Event
	current *narration.Utterance
	paused  bool

	// Control for testing
	shouldFail   bool
	failureError error

	// Auto mode
	auto      bool
	scale     float64
	timer     *time.Timer
	deadline  time.Time
	remaining time.Duration
}

// Option configures a Port.
type Option func(*Port)

// WithVoices sets the voices the port reports.
func WithVoices(voices ...narration.Voice) Option {
	return func(p *Port) {
		p.voices = voices
	}
}

// WithAutoComplete makes the port finish utterances on its own. scale
// multiplies the estimated speaking time; zero completes immediately.
func WithAutoComplete(scale float64) Option {
	return func(p *Port) {
		p.auto = true
		p.scale = scale
	}
}

// New creates a mock port.
func New(opts ...Option) *Port {
	p := &Port{
		events: make(chan narration.Event, 1024),
		voices: []narration.Voice{
			{ID: "mock-voice-1", Name: "Mock Voice 1", Language: "en-US"},
			{ID: "mock-voice-2", Name: "Mock Voice 2", Language: "en-GB"},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Speak implements narration.Port.
func (p *Port) Speak(u narration.Utterance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "speak", Utterance: u})
	if p.shouldFail {
		return p.failureError
	}
	p.stopTimer()
	p.current = &u
	p.paused = false
	if p.auto {
		// Start is queued before the timer can queue End.
		p.emit(narration.Event{Kind: narration.EventStart, Tag: u.Tag})
		p.remaining = p.estimateDuration(u)
		p.startTimer(u.Tag)
	}
	return nil
}

// Pause implements narration.Port.
func (p *Port) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "pause"})
	if p.current == nil || p.paused {
		return nil
	}
	p.paused = true
	if p.timer != nil {
		p.stopTimer()
		p.remaining = time.Until(p.deadline)
	}
	return nil
}

// Resume implements narration.Port.
func (p *Port) Resume() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "resume"})
	if !p.paused || p.current == nil {
		return false, nil
	}
	p.paused = false
	if p.auto {
		p.startTimer(p.current.Tag)
	}
	return true, nil
}

// Cancel implements narration.Port.
func (p *Port) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Op: "cancel"})
	p.stopTimer()
	p.current = nil
	p.paused = false
	return nil
}

// Voices implements narration.Port.
func (p *Port) Voices() []narration.Voice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]narration.Voice(nil), p.voices...)
}

// Events implements narration.Port.
func (p *Port) Events() <-chan narration.Event {
	return p.events
}

// Test control methods

// SetVoices replaces the reported voice list.
func (p *Port) SetVoices(voices ...narration.Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voices = voices
}

// SetFailure makes Speak return err.
func (p *Port) SetFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shouldFail = true
	p.failureError = err
}

// ClearFailure resets the port to normal operation.
func (p *Port) ClearFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shouldFail = false
	p.failureError = nil
}

// Calls returns every recorded invocation in order.
func (p *Port) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Ops returns the operation names of every recorded invocation.
func (p *Port) Ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := make([]string, len(p.calls))
	for i, c := range p.calls {
		ops[i] = c.Op
	}
	return ops
}

// Spoken returns the utterances passed to Speak.
func (p *Port) Spoken() []narration.Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []narration.Utterance
	for _, c := range p.calls {
		if c.Op == "speak" {
			out = append(out, c.Utterance)
		}
	}
	return out
}

// Current returns the in-flight utterance.
func (p *Port) Current() (narration.Utterance, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return narration.Utterance{}, false
	}
	return *p.current, true
}

// Paused reports whether the in-flight utterance is paused.
func (p *Port) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Reset forgets recorded calls.
func (p *Port) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// Begin reports the start of the in-flight utterance.
func (p *Port) Begin() narration.Event {
	return p.finish(narration.EventStart, nil, false)
}

// Complete reports the end of the in-flight utterance.
func (p *Port) Complete() narration.Event {
	return p.finish(narration.EventEnd, nil, true)
}

// Fail reports an error for the in-flight utterance.
func (p *Port) Fail(err error) narration.Event {
	return p.finish(narration.EventError, err, true)
}

func (p *Port) finish(kind narration.EventKind, err error, clear bool) narration.Event {
	p.mu.Lock()
	var ev narration.Event
	ev.Kind = kind
	ev.Err = err
	if p.current != nil {
		ev.Tag = p.current.Tag
	}
	if clear {
		p.stopTimer()
		p.current = nil
		p.paused = false
	}
	p.mu.Unlock()

	p.emit(ev)
	return ev
}

func (p *Port) emit(ev narration.Event) {
	select {
	case p.events <- ev:
	default:
		log.Warn("mock narration event dropped", "kind", ev.Kind, "tag", ev.Tag)
	}
}

// startTimer must be called with mu held.
func (p *Port) startTimer(tag narration.Tag) {
	p.deadline = time.Now().Add(p.remaining)
	p.timer = time.AfterFunc(p.remaining, func() {
		p.mu.Lock()
		if p.current == nil || p.current.Tag != tag || p.paused {
			p.mu.Unlock()
			return
		}
		p.current = nil
		p.timer = nil
		p.mu.Unlock()
		p.emit(narration.Event{Kind: narration.EventEnd, Tag: tag})
	})
}

// stopTimer must be called with mu held.
func (p *Port) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// estimateDuration estimates speaking time at ~150 words per minute.
func (p *Port) estimateDuration(u narration.Utterance) time.Duration {
	words := len(u.Text) / 5
	if words < 1 {
		words = 1
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	seconds := float64(words) * 60.0 / 150.0 / rate
	return time.Duration(seconds * p.scale * float64(time.Second))
}

var _ narration.Port = (*Port)(nil)
