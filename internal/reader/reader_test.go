package reader

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/sparklereader/sparkle/internal/document"
	"github.com/sparklereader/sparkle/internal/narration/mock"
	"github.com/sparklereader/sparkle/internal/playback"
	"github.com/sparklereader/sparkle/internal/progress"
)

const book = "Chapter 1 Alpha one. Alpha two. " +
	"Chapter 2 Beta one. Beta two. Beta three. " +
	"Chapter 3 Gamma one."

// events records listener notifications.
type events struct {
	mu       sync.Mutex
	lists    [][]document.Chapter
	selected []int
	statuses []playback.Status
	errs     []error
}

func (e *events) listener() Listener {
	return ListenerFuncs{
		OnChapterListChanged: func(c []document.Chapter) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.lists = append(e.lists, c)
		},
		OnChapterSelected: func(i int, _ document.Chapter) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.selected = append(e.selected, i)
		},
		OnPlaybackStateChanged: func(s playback.Status) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.statuses = append(e.statuses, s)
		},
		OnError: func(err error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.errs = append(e.errs, err)
		},
	}
}

func newReader(t *testing.T, store progress.Store, opts ...Option) (*Reader, *mock.Port, *events) {
	t.Helper()
	port := mock.New()
	r := New(port, store, opts...)
	ev := &events{}
	r.Subscribe(ev.listener())
	return r, port, ev
}

func load(t *testing.T, r *Reader, name string) {
	t.Helper()
	if err := r.LoadDocument(context.Background(), []byte(book), name); err != nil {
		t.Fatalf("LoadDocument() error = %v", err)
	}
}

func lastSpoken(port *mock.Port) string {
	spoken := port.Spoken()
	if len(spoken) == 0 {
		return ""
	}
	return spoken[len(spoken)-1].Text
}

func TestReader_SelectAndPlay(t *testing.T) {
	store := progress.NewMemoryStore()
	r, port, ev := newReader(t, store)
	load(t, r, "book.txt")

	if len(ev.lists) != 1 || len(ev.lists[0]) != 3 {
		t.Fatalf("chapter list notifications = %v", ev.lists)
	}

	if !r.SelectChapter(1) {
		t.Fatal("SelectChapter(1) = false")
	}
	if rec, ok, _ := store.Load(); !ok || rec != (progress.Record{DocumentName: "book.txt", ChapterIndex: 1}) {
		t.Errorf("saved progress = %+v, %v", rec, ok)
	}

	if err := r.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause() error = %v", err)
	}
	if got := lastSpoken(port); got != "Beta one." {
		t.Errorf("first utterance = %q", got)
	}

	r.engine.HandleEvent(port.Complete())
	r.engine.HandleEvent(port.Complete())

	if s := r.Status(); s.Cursor != 2 || s.State != playback.Speaking {
		t.Errorf("status = %+v", s)
	}
	if got := lastSpoken(port); got != "Beta three." {
		t.Errorf("third utterance = %q", got)
	}
	if want := []int{0, 1}; !reflect.DeepEqual(ev.selected, want) {
		t.Errorf("selected notifications = %v, want %v", ev.selected, want)
	}
}

func TestReader_RestoreProgress(t *testing.T) {
	tests := []struct {
		description string
		saved       progress.Record
		wantIndex   int
		wantKept    bool
	}{
		{"matching document", progress.Record{DocumentName: "book.txt", ChapterIndex: 2}, 2, false},
		{"other document", progress.Record{DocumentName: "other.pdf", ChapterIndex: 2}, 0, true},
		{"out of range", progress.Record{DocumentName: "book.txt", ChapterIndex: 9}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			store := progress.NewMemoryStore()
			_ = store.Save(tt.saved)
			r, _, ev := newReader(t, store)

			load(t, r, "book.txt")

			if i, _, _ := r.CurrentChapter(); i != tt.wantIndex {
				t.Errorf("current chapter = %d, want %d", i, tt.wantIndex)
			}
			if want := []int{tt.wantIndex}; !reflect.DeepEqual(ev.selected, want) {
				t.Errorf("selected notifications = %v, want %v", ev.selected, want)
			}
			if _, ok, _ := store.Load(); ok != tt.wantKept {
				t.Errorf("record kept = %v, want %v", ok, tt.wantKept)
			}
			if store.Saves() != 1 {
				t.Errorf("restoring saved progress again: %d saves", store.Saves())
			}
		})
	}
}

func TestReader_LoadFailureKeepsChapters(t *testing.T) {
	r, _, ev := newReader(t, nil)
	load(t, r, "book.txt")

	err := r.LoadDocument(context.Background(), []byte("x"), "photo.png")
	var perr *document.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("LoadDocument() error = %v, want ParseError", err)
	}
	if len(r.Chapters()) != 3 || r.DocumentName() != "book.txt" {
		t.Errorf("previous document lost: %d chapters, name %q", len(r.Chapters()), r.DocumentName())
	}
	if len(ev.errs) != 1 {
		t.Errorf("error notifications = %d, want 1", len(ev.errs))
	}
}

func TestReader_LoadCanceled(t *testing.T) {
	r, _, _ := newReader(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.LoadDocument(ctx, []byte(book), "book.txt"); !errors.Is(err, context.Canceled) {
		t.Errorf("LoadDocument() error = %v", err)
	}
}

func TestReader_TogglePlayPause(t *testing.T) {
	r, port, _ := newReader(t, nil)

	if err := r.TogglePlayPause(); !errors.Is(err, ErrNoDocument) {
		t.Errorf("TogglePlayPause() without document = %v", err)
	}

	load(t, r, "book.txt")
	want := []playback.State{playback.Speaking, playback.Paused, playback.Speaking}
	for i, state := range want {
		if err := r.TogglePlayPause(); err != nil {
			t.Fatalf("toggle %d error = %v", i, err)
		}
		if got := r.Status().State; got != state {
			t.Errorf("toggle %d state = %v, want %v", i, got, state)
		}
	}
	if n := len(port.Spoken()); n != 1 {
		t.Errorf("spoken %d utterances, want 1", n)
	}
	if got := r.Status().Label(); got != playback.LabelPause {
		t.Errorf("Label() = %q", got)
	}
}

func TestReader_NavigationStopsPlayback(t *testing.T) {
	store := progress.NewMemoryStore()
	r, port, _ := newReader(t, store)
	load(t, r, "book.txt")
	_ = r.TogglePlayPause()
	port.Reset()

	if !r.NextChapter() {
		t.Fatal("NextChapter() = false")
	}
	if ops := port.Ops(); len(ops) == 0 || ops[0] != "cancel" {
		t.Errorf("port ops = %v, want cancel first", ops)
	}
	if r.Status().State != playback.Idle {
		t.Error("playback continued after chapter change")
	}

	saves := store.Saves()
	r.NextChapter()
	if r.NextChapter() {
		t.Error("NextChapter() past last chapter should be a no-op")
	}
	if store.Saves() != saves+1 {
		t.Errorf("no-op navigation saved progress")
	}

	r.SelectChapter(0)
	if r.PreviousChapter() {
		t.Error("PreviousChapter() at first chapter should be a no-op")
	}
	if r.SelectChapter(7) {
		t.Error("SelectChapter(7) should be ignored")
	}
}

func TestReader_SetRate(t *testing.T) {
	r, port, _ := newReader(t, nil)
	load(t, r, "book.txt")

	if err := r.SetRate(9); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("SetRate(9) error = %v", err)
	}

	_ = r.TogglePlayPause()
	r.engine.HandleEvent(port.Complete())
	port.Reset()

	if err := r.SetRate(2.0); err != nil {
		t.Fatalf("SetRate() error = %v", err)
	}
	if ops, want := port.Ops(), []string{"cancel", "speak"}; !reflect.DeepEqual(ops, want) {
		t.Errorf("port ops = %v, want %v", ops, want)
	}
	u := port.Spoken()[0]
	if u.Text != "Alpha one." || u.Rate != 2.0 {
		t.Errorf("restart utterance = %+v", u)
	}
	if r.Rate() != 2.0 {
		t.Errorf("Rate() = %v", r.Rate())
	}
}

func TestReader_AutoAdvance(t *testing.T) {
	r, port, _ := newReader(t, nil, WithAutoAdvance(true))
	load(t, r, "book.txt")
	_ = r.TogglePlayPause()

	r.engine.HandleEvent(port.Complete())
	r.engine.HandleEvent(port.Complete())

	if i, _, _ := r.CurrentChapter(); i != 1 {
		t.Fatalf("current chapter = %d, want 1", i)
	}
	if got := lastSpoken(port); got != "Beta one." {
		t.Errorf("next chapter utterance = %q", got)
	}
	if !r.Status().IsPlaying() {
		t.Error("next chapter not playing")
	}
}

func TestReader_AutoAdvanceSkipsEmptyChapters(t *testing.T) {
	tests := []struct {
		description string
		text        string
		wantIndex   int
		wantSpoken  string
		wantPlaying bool
	}{
		{"empty chapter in the middle", "Chapter 1 Alpha one. Chapter 2 Chapter 3 Gamma one.", 2, "Gamma one.", true},
		{"empty chapter at the end", "Chapter 1 Alpha one. Chapter 2", 1, "Alpha one.", false},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			r, port, ev := newReader(t, nil, WithAutoAdvance(true))
			if err := r.LoadDocument(context.Background(), []byte(tt.text), "book.txt"); err != nil {
				t.Fatalf("LoadDocument() error = %v", err)
			}
			_ = r.TogglePlayPause()

			r.engine.HandleEvent(port.Complete())

			if i, _, _ := r.CurrentChapter(); i != tt.wantIndex {
				t.Errorf("current chapter = %d, want %d", i, tt.wantIndex)
			}
			if got := lastSpoken(port); got != tt.wantSpoken {
				t.Errorf("last utterance = %q, want %q", got, tt.wantSpoken)
			}
			if got := r.Status().IsPlaying(); got != tt.wantPlaying {
				t.Errorf("playing = %v, want %v", got, tt.wantPlaying)
			}
			if len(ev.errs) != 0 {
				t.Errorf("errors = %v", ev.errs)
			}
		})
	}
}

func TestReader_NarrationErrorReported(t *testing.T) {
	r, port, ev := newReader(t, nil)
	load(t, r, "book.txt")
	_ = r.TogglePlayPause()

	r.engine.HandleEvent(port.Fail(errors.New("voice missing")))

	if len(ev.errs) != 1 {
		t.Fatalf("error notifications = %d, want 1", len(ev.errs))
	}
	if r.Status().State != playback.Idle {
		t.Error("playback not stopped after narration error")
	}
}

func TestReader_Unsubscribe(t *testing.T) {
	r := New(mock.New(), nil)
	calls := 0
	unsubscribe := r.Subscribe(ListenerFuncs{OnChapterListChanged: func([]document.Chapter) { calls++ }})

	load(t, r, "a.txt")
	unsubscribe()
	load(t, r, "b.txt")

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}
