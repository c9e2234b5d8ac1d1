// Package progress persists the last chapter a reader selected.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	gap "github.com/muesli/go-app-paths"
)

// FileName is the progress file name inside the data directory.
const FileName = "progress.json"

// Record is the persisted reading position.
type Record struct {
	DocumentName string `json:"documentName"`
	ChapterIndex int    `json:"chapterIndex"`
}

// Store loads, saves and clears the single progress record.
type Store interface {
	Load() (Record, bool, error)
	Save(Record) error
	Clear() error
}

// DefaultPath returns the progress file in the user data directory.
func DefaultPath() (string, error) {
	return gap.NewScope(gap.User, "sparkle").DataPath(FileName)
}

// FileStore keeps the record as a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. A missing file is not an error.
func (s *FileStore) Load() (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("read progress: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode progress: %w", err)
	}
	if rec.DocumentName == "" {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Save writes the record, replacing any previous one.
func (s *FileStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create progress dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace progress: %w", err)
	}
	return nil
}

// Clear removes the record.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}

// MemoryStore keeps the record in memory.
type MemoryStore struct {
	mu    sync.Mutex
	rec   Record
	ok    bool
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (s *MemoryStore) Load() (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, s.ok, nil
}

// Save implements Store.
func (s *MemoryStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec, s.ok = rec, true
	s.saves++
	return nil
}

// Clear implements Store.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec, s.ok = Record{}, false
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
