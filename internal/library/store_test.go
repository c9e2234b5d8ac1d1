package library

import (
	"testing"

	"github.com/sparklereader/sparkle/internal/document"
)

type countingStopper struct {
	stops int
}

func (c *countingStopper) Stop() { c.stops++ }

func chapters(titles ...string) []document.Chapter {
	out := make([]document.Chapter, len(titles))
	for i, title := range titles {
		out[i] = document.Chapter{Title: title, Content: title + " text."}
	}
	return out
}

func TestStore_Empty(t *testing.T) {
	s := NewStore(nil)

	if s.Index() != -1 {
		t.Errorf("Index() = %d, want -1", s.Index())
	}
	if _, ok := s.Current(); ok {
		t.Error("Current() on empty store should report false")
	}
	if s.Next() || s.Previous() || s.GoTo(0) {
		t.Error("navigation on empty store should be a no-op")
	}
}

func TestStore_Navigation(t *testing.T) {
	stopper := &countingStopper{}
	s := NewStore(stopper)
	s.SetChapters(chapters("One", "Two", "Three"))

	if stopper.stops != 1 {
		t.Errorf("SetChapters stopped %d times, want 1", stopper.stops)
	}
	if s.Index() != 0 {
		t.Fatalf("Index() = %d after SetChapters, want 0", s.Index())
	}

	tests := []struct {
		description string
		move        func() bool
		wantOK      bool
		wantIndex   int
		wantStops   int
	}{
		{"previous at first is a no-op", s.Previous, false, 0, 1},
		{"next", s.Next, true, 1, 2},
		{"next again", s.Next, true, 2, 3},
		{"next at last is a no-op", s.Next, false, 2, 3},
		{"goto negative", func() bool { return s.GoTo(-1) }, false, 2, 3},
		{"goto past end", func() bool { return s.GoTo(3) }, false, 2, 3},
		{"goto current still stops", func() bool { return s.GoTo(2) }, true, 2, 4},
		{"previous", s.Previous, true, 1, 5},
		{"goto first", func() bool { return s.GoTo(0) }, true, 0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			if ok := tt.move(); ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if s.Index() != tt.wantIndex {
				t.Errorf("Index() = %d, want %d", s.Index(), tt.wantIndex)
			}
			if stopper.stops != tt.wantStops {
				t.Errorf("stops = %d, want %d", stopper.stops, tt.wantStops)
			}
		})
	}

	cur, ok := s.Current()
	if !ok || cur.Title != "One" {
		t.Errorf("Current() = %+v, %v", cur, ok)
	}
}

func TestStore_SetChaptersReplaces(t *testing.T) {
	s := NewStore(nil)
	s.SetChapters(chapters("A", "B"))
	s.Next()

	s.SetChapters(chapters("X"))
	if s.Index() != 0 || s.Len() != 1 {
		t.Errorf("after replace Index() = %d Len() = %d", s.Index(), s.Len())
	}

	s.SetChapters(nil)
	if s.Index() != -1 {
		t.Errorf("after clearing Index() = %d, want -1", s.Index())
	}
}

func TestStore_ChaptersIsCopy(t *testing.T) {
	s := NewStore(nil)
	s.SetChapters(chapters("A"))

	got := s.Chapters()
	got[0].Title = "changed"
	if cur, _ := s.Current(); cur.Title != "A" {
		t.Error("Chapters() exposed internal slice")
	}
}
