package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/sparklereader/sparkle/internal/chunker"
	"github.com/sparklereader/sparkle/internal/narration/local"
	"github.com/sparklereader/sparkle/internal/progress"
	"github.com/sparklereader/sparkle/internal/reader"
	"github.com/spf13/viper"
)

// Narration engines selectable with --engine.
const (
	engineMock  = "mock"
	enginePiper = "piper"
	engineGTTS  = "gtts"
)

var engines = []string{engineMock, enginePiper, engineGTTS}

// options is the reader configuration assembled from flags, environment
// and the config file.
type options struct {
	Engine        string
	Rate          float64
	Voice         string
	Chunking      chunker.Policy
	MaxChunkRunes int
	AutoAdvance   bool
	ProgressPath  string
	LogLevel      string

	Piper local.PiperConfig
	GTTS  local.GTTSConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine", engineMock)
	v.SetDefault("rate", 1.0)
	v.SetDefault("voice", "")
	v.SetDefault("chunking", string(chunker.PolicySentence))
	v.SetDefault("max_chunk_runes", 0)
	v.SetDefault("auto_advance", false)
	v.SetDefault("progress.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("mouse", false)

	v.SetDefault("piper.binary", "piper")
	v.SetDefault("piper.models", []string{})
	v.SetDefault("piper.speaker", "")
	v.SetDefault("piper.sample_rate", 22050)

	v.SetDefault("gtts.language", "en")
	v.SetDefault("gtts.slow", false)
	v.SetDefault("gtts.requests_per_minute", 50)
	v.SetDefault("gtts.sample_rate", 44100)

	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.max_upload_mb", 50)
}

// loadOptions reads and validates the reader configuration.
func loadOptions(v *viper.Viper) (options, error) {
	o := options{
		Engine:        v.GetString("engine"),
		Rate:          v.GetFloat64("rate"),
		Voice:         v.GetString("voice"),
		Chunking:      chunker.Policy(v.GetString("chunking")),
		MaxChunkRunes: v.GetInt("max_chunk_runes"),
		AutoAdvance:   v.GetBool("auto_advance"),
		ProgressPath:  v.GetString("progress.path"),
		LogLevel:      v.GetString("log.level"),
		Piper: local.PiperConfig{
			Binary:     v.GetString("piper.binary"),
			Speaker:    v.GetString("piper.speaker"),
			SampleRate: v.GetInt("piper.sample_rate"),
		},
		GTTS: local.GTTSConfig{
			Language:          v.GetString("gtts.language"),
			Slow:              v.GetBool("gtts.slow"),
			RequestsPerMinute: v.GetInt("gtts.requests_per_minute"),
			SampleRate:        v.GetInt("gtts.sample_rate"),
		},
	}

	if !slices.Contains(engines, o.Engine) {
		return o, fmt.Errorf("unknown engine %q: use one of %v", o.Engine, engines)
	}
	if o.Rate < reader.MinRate || o.Rate > reader.MaxRate {
		return o, fmt.Errorf("%w, got %.2f", reader.ErrInvalidRate, o.Rate)
	}
	if _, err := chunker.New(o.Chunking); err != nil {
		return o, err
	}
	if o.MaxChunkRunes < 0 {
		return o, errors.New("max_chunk_runes must not be negative")
	}
	if _, err := log.ParseLevel(o.LogLevel); err != nil {
		return o, fmt.Errorf("invalid log level %q: %w", o.LogLevel, err)
	}

	for _, m := range v.GetStringSlice("piper.models") {
		p, err := homedir.Expand(m)
		if err != nil {
			return o, fmt.Errorf("invalid piper model path %q: %w", m, err)
		}
		o.Piper.Models = append(o.Piper.Models, p)
	}
	if o.Engine == enginePiper && len(o.Piper.Models) == 0 {
		return o, errors.New("the piper engine needs at least one model in piper.models")
	}

	if o.ProgressPath != "" {
		p, err := homedir.Expand(o.ProgressPath)
		if err != nil {
			return o, fmt.Errorf("invalid progress path %q: %w", o.ProgressPath, err)
		}
		o.ProgressPath = p
	}
	return o, nil
}

// progressStore returns the file store configured in o.
func (o options) progressStore() (*progress.FileStore, error) {
	path := o.ProgressPath
	if path == "" {
		var err error
		if path, err = progress.DefaultPath(); err != nil {
			return nil, fmt.Errorf("unable to find data directory: %w", err)
		}
	}
	return progress.NewFileStore(path), nil
}

func (o options) chunker() (chunker.Chunker, error) {
	return chunker.New(o.Chunking, chunker.WithMaxRunes(o.MaxChunkRunes))
}

// applyConfig pushes live-reloadable settings from v into rd.
func applyConfig(v *viper.Viper, rd *reader.Reader) {
	if rate := v.GetFloat64("rate"); rate != rd.Rate() {
		if err := rd.SetRate(rate); err != nil {
			log.Warn("ignoring rate from config", "rate", rate, "err", err)
		}
	}
	if voice := v.GetString("voice"); voice != rd.Voice() {
		if err := rd.SetVoice(voice); err != nil {
			log.Warn("ignoring voice from config", "voice", voice, "err", err)
		}
	}
	if auto := v.GetBool("auto_advance"); auto != rd.AutoAdvance() {
		rd.SetAutoAdvance(auto)
	}
	if err := setLogLevel(v.GetString("log.level")); err != nil {
		log.Warn("ignoring log level from config", "err", err)
	}
}

// watchConfig applies config file edits to rd while it runs.
func watchConfig(v *viper.Viper, rd *reader.Reader) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Info("config changed", "file", e.Name)
		applyConfig(v, rd)
	})
	v.WatchConfig()
}
