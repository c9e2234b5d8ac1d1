package local

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Sink opens synthesized PCM for playback.
type Sink interface {
	Open(pcm []byte) (Clip, error)
}

// Clip is one opened utterance. Done reports whether a playing clip has
// drained; it is only meaningful after Play.
type Clip interface {
	Play()
	Pause()
	Done() bool
	Close() error
}

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// OtoSink plays PCM on the default audio device.
type OtoSink struct {
	ctx *oto.Context
}

// NewOtoSink opens the audio device for 16-bit mono PCM at sampleRate. The
// device can only be opened once per process; later calls share it.
func NewOtoSink(sampleRate int) (*OtoSink, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	if otoErr != nil {
		return nil, otoErr
	}
	return &OtoSink{ctx: otoCtx}, nil
}

// Open implements Sink. The PCM buffer is owned by the clip until Close.
func (s *OtoSink) Open(pcm []byte) (Clip, error) {
	if len(pcm) == 0 {
		return nil, errors.New("audio data is empty")
	}
	data := make([]byte, len(pcm))
	copy(data, pcm)
	return &otoClip{player: s.ctx.NewPlayer(bytes.NewReader(data)), data: data}, nil
}

type otoClip struct {
	player *oto.Player
	data   []byte
}

func (c *otoClip) Play()      { c.player.Play() }
func (c *otoClip) Pause()     { c.player.Pause() }
func (c *otoClip) Done() bool { return !c.player.IsPlaying() }

func (c *otoClip) Close() error {
	c.player.Pause()
	err := c.player.Close()
	c.data = nil
	return err
}
