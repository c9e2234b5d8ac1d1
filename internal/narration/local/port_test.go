package local

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sparklereader/sparkle/internal/narration"
)

type fakeSynth struct {
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (s *fakeSynth) Synthesize(ctx context.Context, text string, _ float64, _ string) ([]byte, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte(text), nil
}

func (s *fakeSynth) Voices() []narration.Voice {
	return []narration.Voice{{ID: "fake", Name: "Fake", Language: "en"}}
}

func (s *fakeSynth) SampleRate() int { return 44100 }

// fakeClip finishes when drained is closed.
type fakeClip struct {
	mu      sync.Mutex
	playing bool
	plays   int
	closed  bool
	drained chan struct{}
}

func (c *fakeClip) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
	c.plays++
}

func (c *fakeClip) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
}

func (c *fakeClip) Done() bool {
	select {
	case <-c.drained:
		return true
	default:
		return false
	}
}

func (c *fakeClip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClip) state() (playing bool, plays int, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing, c.plays, c.closed
}

type fakeSink struct {
	mu    sync.Mutex
	clips []*fakeClip
	err   error
}

func (s *fakeSink) Open(pcm []byte) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := &fakeClip{drained: make(chan struct{})}
	s.clips = append(s.clips, c)
	return c, nil
}

func (s *fakeSink) clip(t *testing.T, i int) *fakeClip {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		if len(s.clips) > i {
			c := s.clips[i]
			s.mu.Unlock()
			return c
		}
		s.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("clip %d never opened", i)
	return nil
}

func next(t *testing.T, p *Port) narration.Event {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for narration event")
		return narration.Event{}
	}
}

func noEvent(t *testing.T, p *Port) {
	t.Helper()
	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event %v %v", ev.Kind, ev.Tag)
	case <-time.After(5 * pollInterval):
	}
}

func utterance(gen uint64, index int, text string) narration.Utterance {
	return narration.Utterance{Tag: narration.Tag{Generation: gen, Index: index}, Text: text, Rate: 1}
}

func TestPort_SpeakLifecycle(t *testing.T) {
	sink := &fakeSink{}
	p := NewPort(&fakeSynth{}, sink)
	defer p.Close()

	if err := p.Speak(utterance(1, 0, "Hello there.")); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	start := next(t, p)
	if start.Kind != narration.EventStart || start.Tag.Index != 0 {
		t.Fatalf("first event = %v %v", start.Kind, start.Tag)
	}
	clip := sink.clip(t, 0)
	if playing, _, _ := clip.state(); !playing {
		t.Error("clip not playing after start")
	}

	close(clip.drained)
	if end := next(t, p); end.Kind != narration.EventEnd || end.Tag != start.Tag {
		t.Errorf("second event = %v %v", end.Kind, end.Tag)
	}
	if _, _, closed := clip.state(); !closed {
		t.Error("clip not closed after end")
	}
}

func TestPort_CancelSuppressesEnd(t *testing.T) {
	sink := &fakeSink{}
	p := NewPort(&fakeSynth{}, sink)
	defer p.Close()

	_ = p.Speak(utterance(1, 0, "One."))
	next(t, p)
	clip := sink.clip(t, 0)

	_ = p.Cancel()
	close(clip.drained)
	noEvent(t, p)

	if ok, _ := p.Resume(); ok {
		t.Error("Resume() after Cancel reported a paused utterance")
	}
}

func TestPort_SpeakReplacesCurrent(t *testing.T) {
	sink := &fakeSink{}
	p := NewPort(&fakeSynth{}, sink)
	defer p.Close()

	_ = p.Speak(utterance(1, 0, "One."))
	next(t, p)
	_ = p.Speak(utterance(2, 0, "Two."))
	ev := next(t, p)
	if ev.Kind != narration.EventStart || ev.Tag.Generation != 2 {
		t.Fatalf("event = %v %v, want start of generation 2", ev.Kind, ev.Tag)
	}

	close(sink.clip(t, 0).drained)
	noEvent(t, p)
}

func TestPort_PauseResume(t *testing.T) {
	sink := &fakeSink{}
	p := NewPort(&fakeSynth{}, sink)
	defer p.Close()

	if ok, _ := p.Resume(); ok {
		t.Error("Resume() with nothing spoken = true")
	}

	_ = p.Speak(utterance(1, 0, "Paused sentence."))
	next(t, p)
	clip := sink.clip(t, 0)

	_ = p.Pause()
	_ = p.Pause()
	if playing, _, _ := clip.state(); playing {
		t.Error("clip still playing after Pause")
	}

	// A drained but paused clip does not end.
	close(clip.drained)
	noEvent(t, p)

	ok, err := p.Resume()
	if !ok || err != nil {
		t.Fatalf("Resume() = %v, %v", ok, err)
	}
	if _, plays, _ := clip.state(); plays != 2 {
		t.Errorf("clip played %d times, want 2", plays)
	}
	if ev := next(t, p); ev.Kind != narration.EventEnd {
		t.Errorf("event after resume = %v", ev.Kind)
	}
}

func TestPort_PauseDuringSynthesis(t *testing.T) {
	synth := &fakeSynth{block: make(chan struct{})}
	sink := &fakeSink{}
	p := NewPort(synth, sink)
	defer p.Close()

	_ = p.Speak(utterance(1, 0, "Slow."))
	_ = p.Pause()
	close(synth.block)

	next(t, p)
	clip := sink.clip(t, 0)
	if _, plays, _ := clip.state(); plays != 0 {
		t.Errorf("clip played %d times while paused", plays)
	}

	if ok, _ := p.Resume(); !ok {
		t.Fatal("Resume() = false")
	}
	if playing, _, _ := clip.state(); !playing {
		t.Error("clip not playing after Resume")
	}
}

func TestPort_Errors(t *testing.T) {
	tests := []struct {
		description string
		synthErr    error
		sinkErr     error
		wantReason  string
	}{
		{"synthesis", errors.New("model missing"), nil, "synthesis failed"},
		{"audio output", nil, errors.New("no device"), "audio output failed"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			p := NewPort(&fakeSynth{err: tt.synthErr}, &fakeSink{err: tt.sinkErr})
			defer p.Close()

			_ = p.Speak(utterance(3, 1, "Broken."))
			ev := next(t, p)
			if ev.Kind != narration.EventError || ev.Tag.Generation != 3 {
				t.Fatalf("event = %v %v", ev.Kind, ev.Tag)
			}
			var nerr *narration.Error
			if !errors.As(ev.Err, &nerr) || nerr.Reason != tt.wantReason {
				t.Errorf("error = %v, want reason %q", ev.Err, tt.wantReason)
			}
		})
	}
}

func TestPort_Closed(t *testing.T) {
	p := NewPort(&fakeSynth{}, &fakeSink{})
	_ = p.Close()
	_ = p.Close()

	if err := p.Speak(utterance(1, 0, "Late.")); !errors.Is(err, narration.ErrClosed) {
		t.Errorf("Speak() after Close error = %v", err)
	}
	if v := p.Voices(); len(v) != 1 || v[0].ID != "fake" {
		t.Errorf("Voices() = %v", v)
	}
}
