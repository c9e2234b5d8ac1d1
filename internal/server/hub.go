package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/sparklereader/sparkle/internal/narration"
	"github.com/sparklereader/sparkle/internal/narration/remote"
	"github.com/sparklereader/sparkle/internal/playback"
	"github.com/sparklereader/sparkle/internal/reader"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

var errSlowClient = errors.New("websocket client is not keeping up")

// Notification message types.
const (
	typeChapters = "chapters"
	typeChapter  = "chapter"
	typePlayback = "playback"
	typeError    = "error"
)

type chapterInfo struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

type chaptersMessage struct {
	Type     string        `json:"type"`
	Document string        `json:"document"`
	Chapters []chapterInfo `json:"chapters"`
}

type chapterMessage struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type playbackMessage struct {
	Type   string          `json:"type"`
	Status playback.Status `json:"status"`
	Label  string          `json:"label"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func chapterInfos(chapters []document.Chapter) []chapterInfo {
	infos := make([]chapterInfo, len(chapters))
	for i, c := range chapters {
		infos[i] = chapterInfo{Index: i, Title: c.Title}
	}
	return infos
}

// Hub fans reader notifications out to websocket clients. The most recently
// connected client narrates.
type Hub struct {
	reader *reader.Reader
	port   *remote.Port

	upgrader websocket.Upgrader

	mu       sync.Mutex
	clients  []*client // registration order
	narrator *client
}

// NewHub creates a hub. A nil port disables browser narration.
func NewHub(rd *reader.Reader, port *remote.Port) *Hub {
	return &Hub{
		reader: rd,
		port:   port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ChapterListChanged implements reader.Listener.
func (h *Hub) ChapterListChanged(chapters []document.Chapter) {
	h.broadcast(chaptersMessage{Type: typeChapters, Document: h.reader.DocumentName(), Chapters: chapterInfos(chapters)})
}

// ChapterSelected implements reader.Listener.
func (h *Hub) ChapterSelected(index int, c document.Chapter) {
	h.broadcast(chapterMessage{Type: typeChapter, Index: index, Title: c.Title, Content: c.Content})
}

// PlaybackStateChanged implements reader.Listener.
func (h *Hub) PlaybackStateChanged(s playback.Status) {
	h.broadcast(playbackMessage{Type: typePlayback, Status: s, Label: s.Label()})
}

// ErrorOccurred implements reader.Listener.
func (h *Hub) ErrorOccurred(err error) {
	h.broadcast(errorMessage{Type: typeError, Error: userMessage(err)})
}

func (h *Hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("could not encode notification", "err", err)
		return
	}

	clients := h.snapshot()
	for _, c := range clients {
		if err := c.enqueue(data); err != nil {
			log.Warn("dropping websocket client", "remote", c.conn.RemoteAddr(), "err", err)
			c.close()
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		c.close()
	}
}

func (h *Hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*client(nil), h.clients...)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients = append(h.clients, c)
	if h.port != nil {
		h.narrator = c
		h.port.Attach(c.sendNarration)
	}
	log.Info("websocket client connected", "remote", c.conn.RemoteAddr(), "clients", len(h.clients))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := slices.Index(h.clients, c)
	if i < 0 {
		return
	}
	h.clients = slices.Delete(h.clients, i, i+1)
	if h.narrator == c {
		// The utterance in flight went with the old narrator and fails.
		h.port.Detach()
		h.narrator = nil
		if n := len(h.clients); n > 0 {
			h.narrator = h.clients[n-1]
			h.port.Attach(h.narrator.sendNarration)
			log.Info("narration moved to another client", "remote", h.narrator.conn.RemoteAddr())
		}
	}
	log.Info("websocket client disconnected", "remote", c.conn.RemoteAddr(), "clients", len(h.clients))
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.register(c)
	h.greet(c)

	go c.writePump()
	c.readPump()
}

// greet sends the current state to a new client.
func (h *Hub) greet(c *client) {
	var msgs []any
	if chapters := h.reader.Chapters(); len(chapters) > 0 {
		msgs = append(msgs, chaptersMessage{Type: typeChapters, Document: h.reader.DocumentName(), Chapters: chapterInfos(chapters)})
		if i, ch, ok := h.reader.CurrentChapter(); ok {
			msgs = append(msgs, chapterMessage{Type: typeChapter, Index: i, Title: ch.Title, Content: ch.Content})
		}
	}
	s := h.reader.Status()
	msgs = append(msgs, playbackMessage{Type: typePlayback, Status: s, Label: s.Label()})

	for _, m := range msgs {
		if err := c.sendJSON(m); err != nil {
			log.Warn("could not greet websocket client", "err", err)
			return
		}
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return narration.ErrNotConnected
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return narration.ErrNotConnected
	default:
		return errSlowClient
	}
}

func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *client) sendNarration(m remote.Message) error {
	return c.sendJSON(m)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump delivers narration messages from the browser. It is the only
// reader of the connection.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", "err", err)
			}
			return
		}

		var m remote.Message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("invalid websocket message", "err", err)
			continue
		}
		if c.hub.port == nil {
			continue
		}
		if err := c.hub.port.Deliver(m); err != nil {
			log.Warn("unhandled websocket message", "err", err)
		}
	}
}

// writePump is the only writer of the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn("websocket write failed", "err", err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
