// Package library holds the loaded document's chapters and the current
// chapter cursor.
package library

import (
	"sync"

	"github.com/sparklereader/sparkle/internal/document"
)

// Stopper halts playback. The playback engine satisfies it.
type Stopper interface {
	Stop()
}

// Store is an ordered chapter list with a cursor. The cursor is -1 when
// the list is empty and always in range otherwise.
type Store struct {
	mu       sync.RWMutex
	chapters []document.Chapter
	index    int
	player   Stopper
}

// NewStore creates an empty store. player is stopped before the cursor
// moves so stale chunks never play under a new chapter.
func NewStore(player Stopper) *Store {
	return &Store{index: -1, player: player}
}

// SetChapters replaces the chapter list and selects the first chapter.
func (s *Store) SetChapters(chapters []document.Chapter) {
	s.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters = append([]document.Chapter(nil), chapters...)
	s.index = -1
	if len(s.chapters) > 0 {
		s.index = 0
	}
}

// Chapters returns a copy of the chapter list.
func (s *Store) Chapters() []document.Chapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]document.Chapter(nil), s.chapters...)
}

// Len returns the number of chapters.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chapters)
}

// Index returns the current chapter index, or -1 when empty.
func (s *Store) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Current returns the selected chapter.
func (s *Store) Current() (document.Chapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index < 0 {
		return document.Chapter{}, false
	}
	return s.chapters[s.index], true
}

// GoTo selects chapter i. Out of range indexes are ignored and return
// false. Selecting a chapter, even the current one, stops playback.
func (s *Store) GoTo(i int) bool {
	if i < 0 || i >= s.Len() {
		return false
	}
	s.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	// The list may have been replaced while playback stopped.
	if i >= len(s.chapters) {
		return false
	}
	s.index = i
	return true
}

// Next selects the following chapter. It is a no-op on the last chapter.
func (s *Store) Next() bool {
	return s.GoTo(s.Index() + 1)
}

// Previous selects the preceding chapter. It is a no-op on the first
// chapter.
func (s *Store) Previous() bool {
	i := s.Index()
	if i <= 0 {
		return false
	}
	return s.GoTo(i - 1)
}

func (s *Store) stop() {
	if s.player != nil {
		s.player.Stop()
	}
}
