package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sparklereader/sparkle/internal/narration/mock"
	"github.com/sparklereader/sparkle/internal/narration/remote"
	"github.com/sparklereader/sparkle/internal/progress"
	"github.com/sparklereader/sparkle/internal/reader"
)

const book = "Chapter 1 Alpha one. Alpha two. " +
	"Chapter 2 Beta one. Beta two. " +
	"Chapter 3 Gamma one."

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *reader.Reader) {
	t.Helper()
	rd := reader.New(mock.New(), progress.NewMemoryStore())
	srv := New(rd, nil, cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return ts, rd
}

func upload(t *testing.T, url, name, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()

	res, err := http.Post(url+"/api/documents", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(res.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t, Config{MaxUploadMB: 1})

	res := do(t, http.MethodGet, ts.URL+"/health", "")
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || string(body) != `{"status":"ok"}` {
		t.Errorf("GET /health = %d %s", res.StatusCode, body)
	}

	res = do(t, http.MethodGet, ts.URL+"/", "")
	page, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(page), "<title>Sparkle</title>") {
		t.Errorf("GET / = %d", res.StatusCode)
	}
}

func TestServer_UploadAndNavigate(t *testing.T) {
	ts, _ := newTestServer(t, Config{MaxUploadMB: 1})

	res := upload(t, ts.URL, "book.txt", book)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", res.StatusCode)
	}
	got := decode[chaptersResponse](t, res)
	if got.Document != "book.txt" || got.Current != 0 || len(got.Chapters) != 3 || got.Chapters[1].Title != "Chapter 2" {
		t.Errorf("upload response = %+v", got)
	}

	tests := []struct {
		description string
		method      string
		path        string
		wantStatus  int
		want        navigationResponse
	}{
		{"select", http.MethodPost, "/api/chapters/1", http.StatusOK, navigationResponse{true, 1}},
		{"next", http.MethodPost, "/api/chapters/next", http.StatusOK, navigationResponse{true, 2}},
		{"next at end", http.MethodPost, "/api/chapters/next", http.StatusOK, navigationResponse{false, 2}},
		{"out of range", http.MethodPost, "/api/chapters/9", http.StatusOK, navigationResponse{false, 2}},
		{"previous", http.MethodPost, "/api/chapters/previous", http.StatusOK, navigationResponse{true, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			res := do(t, tt.method, ts.URL+tt.path, "")
			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if got := decode[navigationResponse](t, res); got != tt.want {
				t.Errorf("response = %+v, want %+v", got, tt.want)
			}
		})
	}

	if res := do(t, http.MethodPost, ts.URL+"/api/chapters/abc", ""); res.StatusCode != http.StatusBadRequest {
		t.Errorf("non-numeric index status = %d", res.StatusCode)
	}

	res = do(t, http.MethodGet, ts.URL+"/api/progress", "")
	if rec := decode[progress.Record](t, res); rec != (progress.Record{DocumentName: "book.txt", ChapterIndex: 1}) {
		t.Errorf("progress = %+v", rec)
	}
}

func TestServer_UploadErrors(t *testing.T) {
	tests := []struct {
		description string
		cfg         Config
		name        string
		content     string
		wantStatus  int
		wantError   string
	}{
		{"unsupported", Config{MaxUploadMB: 1}, "photo.png", "x", http.StatusUnsupportedMediaType,
			"Unsupported file type. Please upload a PDF or EPUB."},
		{"empty", Config{MaxUploadMB: 1}, "blank.txt", "   ", http.StatusUnprocessableEntity, "document is empty"},
		{"too large", Config{MaxUploadMB: 0}, "book.txt", book, http.StatusRequestEntityTooLarge, "file exceeds max size (0 B)"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			ts, _ := newTestServer(t, tt.cfg)
			res := upload(t, ts.URL, tt.name, tt.content)
			if res.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if got := decode[map[string]string](t, res); got["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", got["error"], tt.wantError)
			}
		})
	}
}

func TestServer_Playback(t *testing.T) {
	ts, rd := newTestServer(t, Config{MaxUploadMB: 1})

	if res := do(t, http.MethodPost, ts.URL+"/api/playback/toggle", ""); res.StatusCode != http.StatusConflict {
		t.Errorf("toggle without document status = %d", res.StatusCode)
	}
	if res := do(t, http.MethodGet, ts.URL+"/api/progress", ""); res.StatusCode != http.StatusNoContent {
		t.Errorf("progress without record status = %d", res.StatusCode)
	}

	upload(t, ts.URL, "book.txt", book)
	res := do(t, http.MethodPost, ts.URL+"/api/playback/toggle", "")
	st := decode[statusResponse](t, res)
	if st.Status.State.String() != "speaking" || st.Label != "⏸️ Pause" {
		t.Errorf("toggle response = %+v", st)
	}

	if res := do(t, http.MethodPut, ts.URL+"/api/playback/rate", `{"rate":9}`); res.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid rate status = %d", res.StatusCode)
	}
	if res := do(t, http.MethodPut, ts.URL+"/api/playback/rate", `nope`); res.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid body status = %d", res.StatusCode)
	}
	res = do(t, http.MethodPut, ts.URL+"/api/playback/rate", `{"rate":1.5}`)
	if st := decode[statusResponse](t, res); st.Status.Rate != 1.5 || rd.Rate() != 1.5 {
		t.Errorf("rate response = %+v", st)
	}

	res = do(t, http.MethodPut, ts.URL+"/api/playback/voice", `{"voice":"mock-voice-2"}`)
	if res.StatusCode != http.StatusOK || rd.Voice() != "mock-voice-2" {
		t.Errorf("voice status = %d, voice %q", res.StatusCode, rd.Voice())
	}

	res = do(t, http.MethodGet, ts.URL+"/api/voices", "")
	if v := decode[voicesResponse](t, res); v.Current != "mock-voice-2" || len(v.Voices) != 2 {
		t.Errorf("voices = %+v", v)
	}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

// until reads messages until one of type typ arrives.
func (c *wsClient) until(typ string) map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var m map[string]any
		if err := c.conn.ReadJSON(&m); err != nil {
			c.t.Fatalf("waiting for %q: %v", typ, err)
		}
		if m["type"] == typ {
			return m
		}
	}
}

func TestServer_WebsocketNarration(t *testing.T) {
	port := remote.New()
	rd := reader.New(port, progress.NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rd.Run(ctx)

	srv := New(rd, port, Config{MaxUploadMB: 1})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	c := &wsClient{t: t, conn: conn}

	if m := c.until(typePlayback); m["label"] != "▶️ Play" {
		t.Errorf("greeting = %v", m)
	}

	_ = conn.WriteJSON(remote.Message{Type: remote.TypeVoices, Voices: nil})
	upload(t, ts.URL, "book.txt", book)
	if m := c.until(typeChapters); len(m["chapters"].([]any)) != 3 {
		t.Errorf("chapters message = %v", m)
	}
	if m := c.until(typeChapter); m["title"] != "Chapter 1" {
		t.Errorf("chapter message = %v", m)
	}

	do(t, http.MethodPost, ts.URL+"/api/playback/toggle", "")
	first := c.until(remote.TypeSpeak)
	if first["text"] != "Alpha one." || first["index"] != 0.0 {
		t.Fatalf("first speak = %v", first)
	}

	gen := uint64(first["gen"].(float64))
	_ = conn.WriteJSON(remote.Message{Type: remote.TypeEnd, Gen: gen, Index: 0})
	if second := c.until(remote.TypeSpeak); second["text"] != "Alpha two." || second["index"] != 1.0 {
		t.Errorf("second speak = %v", second)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for port.Attached() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if port.Attached() {
		t.Error("port still attached after disconnect")
	}
}

func TestServer_NarrationMovesToRemainingClient(t *testing.T) {
	port := remote.New()
	rd := reader.New(port, progress.NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rd.Run(ctx)

	srv := New(rd, port, Config{MaxUploadMB: 1})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer srv.Close()

	dial := func() *wsClient {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		t.Cleanup(func() { conn.Close() })
		c := &wsClient{t: t, conn: conn}
		c.until(typePlayback)
		return c
	}
	older := dial()
	newer := dial()

	upload(t, ts.URL, "book.txt", book)
	newer.conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := srv.hub.Len(); n != 1 {
		t.Fatalf("clients = %d after disconnect, want 1", n)
	}
	if !port.Attached() {
		t.Fatal("port detached while a client is still connected")
	}

	res := do(t, http.MethodPost, ts.URL+"/api/playback/toggle", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle status = %d", res.StatusCode)
	}
	if m := older.until(remote.TypeSpeak); m["text"] != "Alpha one." {
		t.Errorf("speak = %v", m)
	}

	older.conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for port.Attached() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if port.Attached() {
		t.Error("port still attached after the last client left")
	}
}
