// Package playback drives a narration port through a chapter one chunk at
// a time.
package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/sparklereader/sparkle/internal/chunker"
	"github.com/sparklereader/sparkle/internal/narration"
)

// ErrNothingToSpeak is returned by Start when the text yields no chunks.
var ErrNothingToSpeak = errors.New("nothing to speak")

// DefaultRate is the normal speaking rate.
const DefaultRate = 1.0

// Engine owns a playback session: the chunk list, the cursor and the
// play/pause/stop state machine.
//
// Every submission is tagged with the current generation. Start, Stop and
// restarts bump the generation so that late events from a cancelled
// utterance are ignored.
type Engine struct {
	mu       sync.Mutex
	port     narration.Port
	chunker  chunker.Chunker
	observer Observer

	text       string
	chunks     []string
	cursor     int
	state      State
	speaking   bool
	finished   bool
	rate       float64
	voice      string
	generation uint64
	resuming   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver sets the engine observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithChunker sets the chunking policy.
func WithChunker(c chunker.Chunker) Option {
	return func(e *Engine) {
		e.chunker = c
	}
}

// New creates an idle engine bound to port.
func New(port narration.Port, opts ...Option) *Engine {
	e := &Engine{
		port:     port,
		chunker:  &chunker.RegexChunker{},
		observer: nopObserver{},
		rate:     DefaultRate,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetObserver replaces the observer.
func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observer = o
}

// SetChunker changes the chunking policy. It applies from the next Start.
func (e *Engine) SetChunker(c chunker.Chunker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chunker = c
}

// Start narrates text from its first chunk, abandoning any session in
// progress.
func (e *Engine) Start(text string, rate float64, voice string) error {
	e.mu.Lock()
	e.rate = rate
	e.voice = voice
	err := e.startLocked(text)
	n := e.notification(err)
	e.mu.Unlock()

	n.deliver()
	return err
}

// Pause suspends narration. It does nothing unless the engine is Speaking.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != Speaking {
		e.mu.Unlock()
		return nil
	}

	var err error
	if perr := e.port.Pause(); perr != nil {
		err = e.failLocked(narration.NewError("pause", "", perr))
	} else {
		e.state = Paused
		log.Debug("playback paused", "cursor", e.cursor)
	}
	n := e.notification(err)
	e.mu.Unlock()

	n.deliver()
	return err
}

// Resume continues a paused session. It does nothing unless the engine is
// Paused. When the port has nothing suspended the current chunk is
// submitted again.
//
// The port may block while the device confirms, so the lock is released
// around port.Resume. A Stop, Start or end event in that window wins.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != Paused || e.resuming {
		e.mu.Unlock()
		return nil
	}
	e.resuming = true
	generation, cursor := e.generation, e.cursor
	e.mu.Unlock()

	resumed, err := e.port.Resume()

	e.mu.Lock()
	e.resuming = false
	if e.generation != generation || e.state != Paused {
		log.Debug("session changed while resuming", "state", e.state, "generation", e.generation)
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		err = e.failLocked(narration.NewError("resume", "", err))
	} else {
		e.state = Speaking
		if !resumed || e.cursor != cursor {
			log.Debug("port had nothing paused, resubmitting", "cursor", e.cursor)
			e.generation++
			e.speaking = false
			err = e.submitLocked()
		}
	}
	n := e.notification(err)
	e.mu.Unlock()

	n.deliver()
	return err
}

// Stop cancels narration and discards the session.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopLocked()
	n := e.notification(nil)
	e.mu.Unlock()

	n.deliver()
}

// SetRate changes the speaking rate. While Speaking the chapter restarts
// from its first chunk at the new rate; otherwise the rate applies to the
// next submission.
func (e *Engine) SetRate(rate float64) error {
	e.mu.Lock()
	if e.rate == rate {
		e.mu.Unlock()
		return nil
	}
	e.rate = rate
	return e.restartIfSpeaking()
}

// SetVoice changes the voice with the same restart rule as SetRate.
func (e *Engine) SetVoice(voice string) error {
	e.mu.Lock()
	if e.voice == voice {
		e.mu.Unlock()
		return nil
	}
	e.voice = voice
	return e.restartIfSpeaking()
}

// restartIfSpeaking is entered with mu held and releases it.
func (e *Engine) restartIfSpeaking() error {
	if e.state != Speaking {
		n := e.notification(nil)
		e.mu.Unlock()
		n.deliver()
		return nil
	}

	log.Debug("restarting chapter with new settings", "rate", e.rate, "voice", e.voice)
	err := e.startLocked(e.text)
	n := e.notification(err)
	e.mu.Unlock()

	n.deliver()
	return err
}

// HandleEvent applies a narration event. Events for another generation or
// for a chunk other than the current one are dropped.
func (e *Engine) HandleEvent(ev narration.Event) {
	e.mu.Lock()
	if e.state == Idle || ev.Tag.Generation != e.generation || ev.Tag.Index != e.cursor {
		log.Debug("dropping stale narration event",
			"kind", ev.Kind, "tag", ev.Tag, "generation", e.generation, "cursor", e.cursor)
		e.mu.Unlock()
		return
	}

	var err error
	switch ev.Kind {
	case narration.EventStart:
		e.speaking = true

	case narration.EventEnd:
		e.speaking = false
		e.cursor++
		if e.cursor >= len(e.chunks) {
			e.state = Idle
			e.finished = true
			log.Debug("playback finished", "chunks", len(e.chunks))
		} else if e.state == Speaking {
			err = e.submitLocked()
		}

	case narration.EventError:
		err = e.failLocked(narration.NewError("speak", "utterance failed", ev.Err))
	}
	n := e.notification(err)
	e.mu.Unlock()

	n.deliver()
}

// Run feeds port events into the engine until ctx is done or the port's
// event channel closes.
func (e *Engine) Run(ctx context.Context) error {
	events := e.port.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.HandleEvent(ev)
		}
	}
}

// Snapshot returns the current status.
func (e *Engine) Snapshot() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// IsPlaying reports whether the engine is Speaking.
func (e *Engine) IsPlaying() bool {
	return e.Snapshot().IsPlaying()
}

// Label returns the play/pause control label.
func (e *Engine) Label() string {
	return e.Snapshot().Label()
}

// Voices lists the port's voices.
func (e *Engine) Voices() []narration.Voice {
	return e.port.Voices()
}

// startLocked cancels the current session and begins text at chunk 0.
func (e *Engine) startLocked(text string) error {
	e.cancelLocked()
	e.text = text
	e.chunks = e.chunker.Chunk(text)
	e.cursor = 0
	e.finished = false

	if len(e.chunks) == 0 {
		e.state = Idle
		return ErrNothingToSpeak
	}

	e.state = Speaking
	log.Debug("playback started", "chunks", len(e.chunks), "rate", e.rate, "generation", e.generation)
	return e.submitLocked()
}

// submitLocked hands chunk[cursor] to the port.
func (e *Engine) submitLocked() error {
	u := narration.Utterance{
		Tag:     narration.Tag{Generation: e.generation, Index: e.cursor},
		Text:    e.chunks[e.cursor],
		Rate:    e.rate,
		VoiceID: narration.SelectVoice(e.port.Voices(), e.voice),
	}
	if err := e.port.Speak(u); err != nil {
		var nerr *narration.Error
		if !errors.As(err, &nerr) {
			nerr = narration.NewError("speak", "", err)
		}
		return e.failLocked(nerr)
	}
	return nil
}

// failLocked aborts the session. Narration failures are never retried.
func (e *Engine) failLocked(err error) error {
	log.Error("narration failed, stopping playback", "err", err, "cursor", e.cursor)
	e.stopLocked()
	return err
}

func (e *Engine) stopLocked() {
	e.cancelLocked()
	e.text = ""
	e.chunks = nil
	e.cursor = 0
	e.finished = false
	e.state = Idle
}

// cancelLocked silences the port and invalidates outstanding events.
func (e *Engine) cancelLocked() {
	if err := e.port.Cancel(); err != nil {
		log.Warn("narration cancel failed", "err", err)
	}
	e.generation++
	e.speaking = false
}

func (e *Engine) statusLocked() Status {
	s := Status{
		State:    e.state,
		Cursor:   e.cursor,
		Total:    len(e.chunks),
		Speaking: e.speaking,
		Finished: e.finished,
		Rate:     e.rate,
		VoiceID:  e.voice,
	}
	if e.cursor < len(e.chunks) {
		s.Chunk = e.chunks[e.cursor]
	}
	return s
}

type notification struct {
	observer Observer
	status   Status
	err      error
}

// notification captures what to report once the lock is released.
func (e *Engine) notification(err error) notification {
	if errors.Is(err, ErrNothingToSpeak) {
		err = nil
	}
	return notification{observer: e.observer, status: e.statusLocked(), err: err}
}

func (n notification) deliver() {
	if n.err != nil {
		n.observer.PlaybackFailed(n.err)
	}
	n.observer.PlaybackStateChanged(n.status)
}
