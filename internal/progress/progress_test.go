package progress

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	store := NewFileStore(path)

	if _, ok, err := store.Load(); ok || err != nil {
		t.Fatalf("Load() on missing file = %v, %v", ok, err)
	}

	want := Record{DocumentName: "book.pdf", ChapterIndex: 2}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := string(data); got != `{"documentName":"book.pdf","chapterIndex":2}` {
		t.Errorf("file contents = %s", got)
	}

	// A second store sees the persisted record.
	got, ok, err := NewFileStore(path).Load()
	if err != nil || !ok || got != want {
		t.Errorf("Load() = %+v, %v, %v", got, ok, err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Error("Load() after Clear should find nothing")
	}
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := NewFileStore(path).Load(); ok || err == nil {
		t.Errorf("Load() = %v, %v, want decode error", ok, err)
	}
}

func TestFileStore_MissingName(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(`{"chapterIndex":3}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := NewFileStore(path).Load(); ok || err != nil {
		t.Errorf("Load() = %v, %v, want no record", ok, err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Save(Record{DocumentName: "a.epub", ChapterIndex: 1})

	rec, ok, _ := s.Load()
	if !ok || rec.ChapterIndex != 1 || s.Saves() != 1 {
		t.Errorf("Load() = %+v, %v saves=%d", rec, ok, s.Saves())
	}

	_ = s.Clear()
	if _, ok, _ := s.Load(); ok {
		t.Error("Load() after Clear should find nothing")
	}
}
