package local

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sparklereader/sparkle/internal/narration"
)

var pollInterval = 20 * time.Millisecond

// Port is a narration.Port that synthesizes each utterance and plays it
// through a Sink. One utterance is active at a time.
type Port struct {
	synth  Synthesizer
	sink   Sink
	events chan narration.Event

	mu      sync.Mutex
	current *job
	paused  bool
	closed  bool
	done    chan struct{}
}

type job struct {
	tag    narration.Tag
	cancel context.CancelFunc
	clip   Clip
}

// NewPort creates a port. Close releases it.
func NewPort(synth Synthesizer, sink Sink) *Port {
	return &Port{
		synth:  synth,
		sink:   sink,
		events: make(chan narration.Event, 16),
		done:   make(chan struct{}),
	}
}

// Speak implements narration.Port. Any active utterance is canceled.
func (p *Port) Speak(u narration.Utterance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return narration.ErrClosed
	}
	p.cancelLocked()

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{tag: u.Tag, cancel: cancel}
	p.current = j
	go p.run(ctx, j, u)
	return nil
}

func (p *Port) run(ctx context.Context, j *job, u narration.Utterance) {
	pcm, err := p.synth.Synthesize(ctx, u.Text, u.Rate, u.VoiceID)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.finish(j, narration.Event{Kind: narration.EventError, Tag: j.tag,
			Err: narration.NewError("speak", "synthesis failed", err)})
		return
	}

	clip, err := p.sink.Open(pcm)
	if err != nil {
		p.finish(j, narration.Event{Kind: narration.EventError, Tag: j.tag,
			Err: narration.NewError("speak", "audio output failed", err)})
		return
	}
	defer clip.Close()

	p.mu.Lock()
	if p.current != j {
		p.mu.Unlock()
		return
	}
	j.clip = clip
	if !p.paused {
		clip.Play()
	}
	p.mu.Unlock()
	p.emit(narration.Event{Kind: narration.EventStart, Tag: j.tag})

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			finished := p.current == j && !p.paused && clip.Done()
			p.mu.Unlock()
			if finished {
				p.finish(j, narration.Event{Kind: narration.EventEnd, Tag: j.tag})
				return
			}
		}
	}
}

// finish clears j if it is still current and reports ev.
func (p *Port) finish(j *job, ev narration.Event) {
	p.mu.Lock()
	if p.current != j {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.paused = false
	p.mu.Unlock()
	j.cancel()
	p.emit(ev)
}

func (p *Port) emit(ev narration.Event) {
	select {
	case p.events <- ev:
	case <-p.done:
		log.Debug("narration event dropped after close", "kind", ev.Kind, "tag", ev.Tag)
	}
}

// Pause implements narration.Port. Pausing during synthesis holds the clip
// until Resume.
func (p *Port) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.paused {
		return nil
	}
	p.paused = true
	if p.current.clip != nil {
		p.current.clip.Pause()
	}
	return nil
}

// Resume implements narration.Port.
func (p *Port) Resume() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || !p.paused {
		return false, nil
	}
	p.paused = false
	if p.current.clip != nil {
		p.current.clip.Play()
	}
	return true, nil
}

// Cancel implements narration.Port.
func (p *Port) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
	return nil
}

func (p *Port) cancelLocked() {
	if p.current != nil {
		p.current.cancel()
		p.current = nil
	}
	p.paused = false
}

// Voices implements narration.Port.
func (p *Port) Voices() []narration.Voice {
	return p.synth.Voices()
}

// Events implements narration.Port.
func (p *Port) Events() <-chan narration.Event {
	return p.events
}

// Close cancels the active utterance and stops event delivery.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancelLocked()
	close(p.done)
	return nil
}

var _ narration.Port = (*Port)(nil)
