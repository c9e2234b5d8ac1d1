package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/sparklereader/sparkle/internal/narration"
	"github.com/sparklereader/sparkle/internal/narration/local"
	"github.com/sparklereader/sparkle/internal/narration/mock"
	"github.com/sparklereader/sparkle/internal/reader"
)

// newSynthesizer returns the local synthesizer for o.Engine.
func newSynthesizer(o options) (local.Synthesizer, error) {
	switch o.Engine {
	case enginePiper:
		return local.NewPiper(o.Piper)
	case engineGTTS:
		return local.NewGTTS(o.GTTS), nil
	default:
		return nil, fmt.Errorf("engine %q has no synthesizer", o.Engine)
	}
}

// newPort opens the narration port for o.Engine. The mock engine paces
// utterances by their length so the TUI can be tried without audio.
func newPort(o options) (narration.Port, func() error, error) {
	if o.Engine == engineMock {
		return mock.New(mock.WithAutoComplete(1)), func() error { return nil }, nil
	}

	synth, err := newSynthesizer(o)
	if err != nil {
		return nil, nil, err
	}
	if err := local.CheckBinaries(local.Binaries(synth)...); err != nil {
		return nil, nil, err
	}
	sink, err := local.NewOtoSink(synth.SampleRate())
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open audio output: %w", err)
	}
	log.Info("narration ready", "engine", o.Engine, "voices", len(synth.Voices()), "sample_rate", synth.SampleRate())
	port := local.NewPort(synth, sink)
	return port, port.Close, nil
}

// voices lists the voices of o.Engine without opening the audio device.
func voices(o options) ([]narration.Voice, error) {
	if o.Engine == engineMock {
		return mock.New().Voices(), nil
	}
	synth, err := newSynthesizer(o)
	if err != nil {
		return nil, err
	}
	return synth.Voices(), nil
}

// newReader builds a reader narrating through port with the settings in o.
func newReader(port narration.Port, o options) (*reader.Reader, error) {
	ck, err := o.chunker()
	if err != nil {
		return nil, err
	}
	store, err := o.progressStore()
	if err != nil {
		return nil, err
	}
	log.Debug("progress file", "path", store.Path())

	return reader.New(port, store,
		reader.WithChunker(ck),
		reader.WithRate(o.Rate),
		reader.WithVoice(o.Voice),
		reader.WithAutoAdvance(o.AutoAdvance),
	), nil
}
