package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sparklereader/sparkle/internal/narration"
)

const piperTimeout = 10 * time.Second

// PiperConfig configures the Piper synthesizer. Each model file is one
// voice, identified by its base name.
type PiperConfig struct {
	Binary     string
	Models     []string
	Speaker    string
	SampleRate int
}

// Piper synthesizes with a fresh piper process per utterance.
type Piper struct {
	binary     string
	models     map[string]string
	voices     []narration.Voice
	speaker    string
	sampleRate int
}

// NewPiper validates the model files and builds the voice list.
func NewPiper(cfg PiperConfig) (*Piper, error) {
	if len(cfg.Models) == 0 {
		return nil, errors.New("piper: at least one model is required")
	}
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 22050
	}

	p := &Piper{
		binary:     cfg.Binary,
		models:     map[string]string{},
		speaker:    cfg.Speaker,
		sampleRate: cfg.SampleRate,
	}
	for _, path := range cfg.Models {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("piper: model not found: %w", err)
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p.models[id] = path
		p.voices = append(p.voices, narration.Voice{ID: id, Name: id, Language: modelLanguage(id)})
	}
	log.Debug("piper ready", "voices", len(p.voices))
	return p, nil
}

// modelLanguage extracts the locale from names like "en_US-lessac-medium".
func modelLanguage(id string) string {
	lang, _, _ := strings.Cut(id, "-")
	return strings.ReplaceAll(lang, "_", "-")
}

// Voices implements Synthesizer.
func (p *Piper) Voices() []narration.Voice {
	return append([]narration.Voice(nil), p.voices...)
}

// SampleRate implements Synthesizer.
func (p *Piper) SampleRate() int {
	return p.sampleRate
}

// Synthesize implements Synthesizer. An unknown voice uses the first model.
func (p *Piper) Synthesize(ctx context.Context, text string, rate float64, voice string) ([]byte, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	if rate <= 0 {
		rate = 1
	}
	model, ok := p.models[voice]
	if !ok {
		model = p.models[p.voices[0].ID]
	}

	args := []string{
		"--model", model,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", 1/rate),
	}
	if p.speaker != "" {
		args = append(args, "--speaker", p.speaker)
	}
	return runCommand(ctx, piperTimeout, strings.NewReader(text), p.binary, args...)
}
