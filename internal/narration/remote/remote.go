// Package remote narrates through a browser's speech synthesis. The browser
// is reached through a send function, normally a websocket connection, and
// reports progress back with Deliver.
package remote

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sparklereader/sparkle/internal/narration"
)

// Message types exchanged with the browser.
const (
	TypeSpeak   = "speak"
	TypePause   = "pause"
	TypeResume  = "resume"
	TypeCancel  = "cancel"
	TypeVoices  = "voices"
	TypeStart   = "start"
	TypeEnd     = "end"
	TypeError   = "error"
	TypeResumed = "resumed"
)

// DefaultResumeTimeout bounds how long Resume waits for the browser.
const DefaultResumeTimeout = time.Second

// ErrUnknownMessage is returned by Deliver for unrecognized types.
var ErrUnknownMessage = errors.New("unknown message type")

// Message is the narration wire format.
type Message struct {
	Type   string            `json:"type"`
	Gen    uint64            `json:"gen,omitempty"`
	Index  int               `json:"index"`
	Text   string            `json:"text,omitempty"`
	Rate   float64           `json:"rate,omitempty"`
	Voice  string            `json:"voice,omitempty"`
	Reason string            `json:"reason,omitempty"`
	OK     bool              `json:"ok,omitempty"`
	Voices []narration.Voice `json:"voices,omitempty"`
}

func (m Message) tag() narration.Tag {
	return narration.Tag{Generation: m.Gen, Index: m.Index}
}

// SendFunc delivers a message to the browser.
type SendFunc func(Message) error

// Port is a narration.Port backed by a single attached browser.
type Port struct {
	events        chan narration.Event
	resumeTimeout time.Duration

	mu      sync.Mutex
	send    SendFunc
	voices  []narration.Voice
	current *narration.Tag
	paused  bool
	resumed chan bool
}

// Option configures a Port.
type Option func(*Port)

// WithResumeTimeout sets how long Resume waits for the browser's answer.
func WithResumeTimeout(d time.Duration) Option {
	return func(p *Port) {
		p.resumeTimeout = d
	}
}

// New creates a detached port.
func New(opts ...Option) *Port {
	p := &Port{
		events:        make(chan narration.Event, 64),
		resumeTimeout: DefaultResumeTimeout,
		resumed:       make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Attach routes narration to send, replacing any previous browser.
func (p *Port) Attach(send SendFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send = send
}

// Detach drops the browser. An utterance in flight fails.
func (p *Port) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.send = nil
	if p.current != nil {
		tag := *p.current
		p.current, p.paused = nil, false
		p.emitLocked(narration.Event{Kind: narration.EventError, Tag: tag,
			Err: narration.NewError("speak", "browser disconnected", narration.ErrNotConnected)})
	}
}

// Attached reports whether a browser is attached.
func (p *Port) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.send != nil
}

// SetVoices replaces the voice list.
func (p *Port) SetVoices(voices []narration.Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voices = append([]narration.Voice(nil), voices...)
}

// Deliver handles a message received from the browser.
func (p *Port) Deliver(m Message) error {
	switch m.Type {
	case TypeVoices:
		p.SetVoices(m.Voices)
		log.Debug("browser voices", "count", len(m.Voices))
	case TypeStart:
		p.emit(narration.Event{Kind: narration.EventStart, Tag: m.tag()})
	case TypeEnd:
		p.clear(m.tag())
		p.emit(narration.Event{Kind: narration.EventEnd, Tag: m.tag()})
	case TypeError:
		p.clear(m.tag())
		p.emit(narration.Event{Kind: narration.EventError, Tag: m.tag(),
			Err: narration.NewError("speak", m.Reason, nil)})
	case TypeResumed:
		select {
		case p.resumed <- m.OK:
		default:
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownMessage, m.Type)
	}
	return nil
}

func (p *Port) clear(tag narration.Tag) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && *p.current == tag {
		p.current, p.paused = nil, false
	}
}

// Speak implements narration.Port.
func (p *Port) Speak(u narration.Utterance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.send == nil {
		return narration.ErrNotConnected
	}
	tag := u.Tag
	p.current, p.paused = &tag, false
	return p.send(Message{
		Type:  TypeSpeak,
		Gen:   u.Tag.Generation,
		Index: u.Tag.Index,
		Text:  u.Text,
		Rate:  u.Rate,
		Voice: u.VoiceID,
	})
}

// Pause implements narration.Port.
func (p *Port) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.send == nil || p.current == nil || p.paused {
		return nil
	}
	p.paused = true
	return p.send(Message{Type: TypePause})
}

// Resume implements narration.Port. It waits for the browser to confirm and
// reports false when it does not answer in time.
func (p *Port) Resume() (bool, error) {
	p.mu.Lock()
	if p.send == nil || p.current == nil || !p.paused {
		p.mu.Unlock()
		return false, nil
	}
	p.paused = false
	// Drop a stale answer from an earlier resume.
	select {
	case <-p.resumed:
	default:
	}
	err := p.send(Message{Type: TypeResume})
	p.mu.Unlock()
	if err != nil {
		return false, err
	}

	select {
	case ok := <-p.resumed:
		return ok, nil
	case <-time.After(p.resumeTimeout):
		log.Warn("browser did not confirm resume", "timeout", p.resumeTimeout)
		return false, nil
	}
}

// Cancel implements narration.Port.
func (p *Port) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current, p.paused = nil, false
	if p.send == nil {
		return nil
	}
	return p.send(Message{Type: TypeCancel})
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

func (p *Port) emit(ev narration.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emitLocked(ev)
}

func (p *Port) emitLocked(ev narration.Event) {
	select {
	case p.events <- ev:
	default:
		log.Warn("narration event dropped", "kind", ev.Kind, "tag", ev.Tag)
	}
}

var _ narration.Port = (*Port)(nil)
