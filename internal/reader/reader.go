// Package reader wires documents, chapters, playback and progress into the
// commands a front end drives.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/sparklereader/sparkle/internal/chunker"
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/sparklereader/sparkle/internal/library"
	"github.com/sparklereader/sparkle/internal/narration"
	"github.com/sparklereader/sparkle/internal/playback"
	"github.com/sparklereader/sparkle/internal/progress"
)

// Rate bounds accepted by SetRate.
const (
	MinRate = 0.5
	MaxRate = 3.0
)

var (
	// ErrNoDocument is returned by playback commands before a document
	// has been loaded.
	ErrNoDocument = errors.New("no document loaded")

	// ErrInvalidRate is returned for rates outside MinRate..MaxRate.
	ErrInvalidRate = fmt.Errorf("rate must be between %.1f and %.1f", MinRate, MaxRate)
)

// Reader is the application facade.
type Reader struct {
	engine   *playback.Engine
	chapters *library.Store
	progress progress.Store
	chunker  chunker.Chunker

	mu           sync.Mutex
	listeners    map[int]Listener
	nextID       int
	docName      string
	rate         float64
	voice        string
	autoAdvance  bool
	lastFinished bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithChunker sets the chunking policy.
func WithChunker(c chunker.Chunker) Option {
	return func(r *Reader) {
		r.chunker = c
	}
}

// WithRate sets the initial speaking rate.
func WithRate(rate float64) Option {
	return func(r *Reader) {
		r.rate = rate
	}
}

// WithVoice sets the preferred voice.
func WithVoice(id string) Option {
	return func(r *Reader) {
		r.voice = id
	}
}

// WithAutoAdvance starts the next chapter when one finishes.
func WithAutoAdvance(enabled bool) Option {
	return func(r *Reader) {
		r.autoAdvance = enabled
	}
}

// New creates a reader narrating through port. A nil store keeps progress
// in memory.
func New(port narration.Port, store progress.Store, opts ...Option) *Reader {
	if store == nil {
		store = progress.NewMemoryStore()
	}
	r := &Reader{
		progress:  store,
		listeners: map[int]Listener{},
		rate:      playback.DefaultRate,
	}

	for _, opt := range opts {
		opt(r)
	}

	engineOpts := []playback.Option{playback.WithObserver(engineObserver{r})}
	if r.chunker != nil {
		engineOpts = append(engineOpts, playback.WithChunker(r.chunker))
	}
	r.engine = playback.New(port, engineOpts...)
	r.chapters = library.NewStore(r.engine)
	return r
}

// Subscribe registers l and returns a function that removes it.
func (r *Reader) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// Run pumps narration events until ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	return r.engine.Run(ctx)
}

// LoadDocument parses data and replaces the chapter list. On failure the
// previous chapters stay loaded. When the saved progress names the same
// document its chapter is restored and the record is consumed.
func (r *Reader) LoadDocument(ctx context.Context, data []byte, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.engine.Stop()

	log.Info("loading document", "name", name, "size", humanize.Bytes(uint64(len(data))))
	chapters, err := document.Parse(data, name)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Error("failed to load document", "name", name, "err", err)
		r.emit(func(l Listener) { l.ErrorOccurred(err) })
		return err
	}

	r.mu.Lock()
	r.docName = name
	r.mu.Unlock()

	r.chapters.SetChapters(chapters)
	log.Info("document loaded", "name", name, "chapters", len(chapters))
	r.emit(func(l Listener) { l.ChapterListChanged(chapters) })

	index := r.restoreIndex(name, len(chapters))
	if r.chapters.GoTo(index) {
		r.emitSelected()
	}
	return nil
}

// restoreIndex consumes a matching progress record.
func (r *Reader) restoreIndex(name string, count int) int {
	rec, ok, err := r.progress.Load()
	if err != nil {
		log.Warn("could not load progress", "err", err)
		return 0
	}
	if !ok || rec.DocumentName != name {
		return 0
	}

	if err := r.progress.Clear(); err != nil {
		log.Warn("could not clear progress", "err", err)
	}
	if rec.ChapterIndex < 0 || rec.ChapterIndex >= count {
		log.Debug("saved chapter out of range", "index", rec.ChapterIndex, "chapters", count)
		return 0
	}
	log.Info("restored progress", "name", name, "chapter", rec.ChapterIndex)
	return rec.ChapterIndex
}

// SelectChapter selects chapter i. Out of range indexes are ignored.
func (r *Reader) SelectChapter(i int) bool {
	return r.navigate(func() bool { return r.chapters.GoTo(i) })
}

// PreviousChapter selects the preceding chapter, if any.
func (r *Reader) PreviousChapter() bool {
	return r.navigate(r.chapters.Previous)
}

// NextChapter selects the following chapter, if any.
func (r *Reader) NextChapter() bool {
	return r.navigate(r.chapters.Next)
}

func (r *Reader) navigate(move func() bool) bool {
	if !move() {
		log.Debug("chapter navigation ignored", "index", r.chapters.Index(), "chapters", r.chapters.Len())
		return false
	}
	r.emitSelected()
	r.saveProgress()
	return true
}

func (r *Reader) saveProgress() {
	r.mu.Lock()
	rec := progress.Record{DocumentName: r.docName, ChapterIndex: r.chapters.Index()}
	r.mu.Unlock()

	if err := r.progress.Save(rec); err != nil {
		log.Warn("could not save progress", "err", err)
	}
}

// TogglePlayPause pauses while speaking, resumes while paused and starts
// the current chapter otherwise.
func (r *Reader) TogglePlayPause() error {
	switch r.engine.Snapshot().State {
	case playback.Speaking:
		return r.engine.Pause()
	case playback.Paused:
		return r.engine.Resume()
	}

	chapter, ok := r.chapters.Current()
	if !ok {
		return ErrNoDocument
	}
	r.mu.Lock()
	rate, voice := r.rate, r.voice
	r.mu.Unlock()
	return r.engine.Start(chapter.Content, rate, voice)
}

// Stop halts playback.
func (r *Reader) Stop() {
	r.engine.Stop()
}

// SetRate changes the speaking rate.
func (r *Reader) SetRate(rate float64) error {
	if rate < MinRate || rate > MaxRate {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	r.mu.Lock()
	r.rate = rate
	r.mu.Unlock()
	return r.engine.SetRate(rate)
}

// SetVoice changes the preferred voice.
func (r *Reader) SetVoice(id string) error {
	r.mu.Lock()
	r.voice = id
	r.mu.Unlock()
	return r.engine.SetVoice(id)
}

// SetAutoAdvance toggles continuing into the next chapter.
func (r *Reader) SetAutoAdvance(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoAdvance = enabled
}

// AutoAdvance reports whether finishing a chapter moves to the next one.
func (r *Reader) AutoAdvance() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.autoAdvance
}

// Rate returns the speaking rate.
func (r *Reader) Rate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rate
}

// Voice returns the preferred voice id.
func (r *Reader) Voice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.voice
}

// Voices lists the narration port's voices.
func (r *Reader) Voices() []narration.Voice {
	return r.engine.Voices()
}

// Status returns the playback status.
func (r *Reader) Status() playback.Status {
	return r.engine.Snapshot()
}

// Chapters returns the loaded chapters.
func (r *Reader) Chapters() []document.Chapter {
	return r.chapters.Chapters()
}

// CurrentChapter returns the selected chapter and its index.
func (r *Reader) CurrentChapter() (int, document.Chapter, bool) {
	c, ok := r.chapters.Current()
	return r.chapters.Index(), c, ok
}

// DocumentName returns the loaded document's name.
func (r *Reader) DocumentName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docName
}

// SavedProgress returns the stored record without consuming it.
func (r *Reader) SavedProgress() (progress.Record, bool) {
	rec, ok, err := r.progress.Load()
	if err != nil {
		log.Warn("could not load progress", "err", err)
		return progress.Record{}, false
	}
	return rec, ok
}

func (r *Reader) emitSelected() {
	i, c, ok := r.CurrentChapter()
	if !ok {
		return
	}
	r.emit(func(l Listener) { l.ChapterSelected(i, c) })
}

func (r *Reader) emit(fn func(Listener)) {
	r.mu.Lock()
	listeners := make([]Listener, 0, len(r.listeners))
	for id := 0; id < r.nextID; id++ {
		if l, ok := r.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	r.mu.Unlock()

	for _, l := range listeners {
		fn(l)
	}
}

// engineObserver forwards engine notifications without exporting the
// observer methods on Reader.
type engineObserver struct {
	r *Reader
}

func (o engineObserver) PlaybackStateChanged(s playback.Status) {
	o.r.emit(func(l Listener) { l.PlaybackStateChanged(s) })

	// Only the transition into finished advances.
	o.r.mu.Lock()
	finished := s.Finished && !o.r.lastFinished
	o.r.lastFinished = s.Finished
	auto := o.r.autoAdvance
	o.r.mu.Unlock()

	if finished && auto {
		o.r.advance()
	}
}

// advance starts the next chapter that has something to speak.
func (r *Reader) advance() {
	for r.NextChapter() {
		err := r.TogglePlayPause()
		if !errors.Is(err, playback.ErrNothingToSpeak) {
			if err != nil {
				log.Error("could not start next chapter", "err", err)
			}
			return
		}
		log.Debug("skipping empty chapter", "index", r.chapters.Index())
	}
}

func (o engineObserver) PlaybackFailed(err error) {
	o.r.emit(func(l Listener) { l.ErrorOccurred(err) })
}
