package local

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sparklereader/sparkle/internal/narration"
	"golang.org/x/time/rate"
)

const (
	gttsTimeout   = 30 * time.Second
	ffmpegTimeout = 15 * time.Second
)

// GTTSConfig configures the gTTS synthesizer.
type GTTSConfig struct {
	Language          string
	Slow              bool
	RequestsPerMinute int
	SampleRate        int
}

// GTTS fetches MP3 audio with gtts-cli and decodes it to PCM with ffmpeg.
type GTTS struct {
	gttsBinary   string
	ffmpegBinary string
	language     string
	slow         bool
	sampleRate   int
	limiter      *rate.Limiter
}

// NewGTTS creates a gTTS synthesizer.
func NewGTTS(cfg GTTSConfig) *GTTS {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	return &GTTS{
		gttsBinary:   "gtts-cli",
		ffmpegBinary: "ffmpeg",
		language:     cfg.Language,
		slow:         cfg.Slow,
		sampleRate:   cfg.SampleRate,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}
}

// Voices implements Synthesizer. gTTS has one voice per language.
func (g *GTTS) Voices() []narration.Voice {
	return []narration.Voice{{ID: "gtts-" + g.language, Name: "Google " + g.language, Language: g.language}}
}

// SampleRate implements Synthesizer.
func (g *GTTS) SampleRate() int {
	return g.sampleRate
}

// Synthesize implements Synthesizer. The voice is ignored.
func (g *GTTS) Synthesize(ctx context.Context, text string, speed float64, _ string) ([]byte, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	args := []string{text, "-l", g.language}
	if g.slow {
		args = append(args, "--slow")
	}
	args = append(args, "-o", "-")
	mp3, err := runCommand(ctx, gttsTimeout, bytes.NewReader(nil), g.gttsBinary, args...)
	if err != nil {
		return nil, fmt.Errorf("mp3 generation: %w", err)
	}

	pcm, err := runCommand(ctx, ffmpegTimeout, bytes.NewReader(mp3), g.ffmpegBinary, ffmpegArgs(speed, g.sampleRate)...)
	if err != nil {
		return nil, fmt.Errorf("mp3 decoding: %w", err)
	}
	return pcm, nil
}

// ffmpegArgs decodes MP3 on stdin to raw PCM on stdout, applying speed with
// atempo, which accepts 0.5 to 2.0.
func ffmpegArgs(speed float64, sampleRate int) []string {
	args := []string{
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
	}
	if speed > 0 && speed != 1 {
		speed = min(max(speed, 0.5), 2.0)
		args = append(args, "-filter:a", fmt.Sprintf("atempo=%.2f", speed))
	}
	return append(args, "pipe:1")
}
