// Package server exposes a reader over HTTP and a websocket for a browser
// front end.
package server

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sparklereader/sparkle/internal/narration/remote"
	"github.com/sparklereader/sparkle/internal/reader"
)

//go:embed web
var webFS embed.FS

// Server is the HTTP front end of a reader.
type Server struct {
	router chi.Router
	reader *reader.Reader
	hub    *Hub
	cfg    Config
	logger *log.Logger

	unsubscribe func()
}

// New creates a server for rd. When port is set, the connected browser
// narrates through it.
func New(rd *reader.Reader, port *remote.Port, cfg Config) *Server {
	s := &Server{
		reader: rd,
		hub:    NewHub(rd, port),
		cfg:    cfg,
		logger: log.WithPrefix("http"),
	}
	s.unsubscribe = rd.Subscribe(s.hub)
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger))

	static, _ := fs.Sub(webFS, "web")
	r.Handle("/", http.FileServer(http.FS(static)))
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", s.handleUpload)

		r.Get("/chapters", s.handleChapters)
		r.Post("/chapters/next", s.handleNext)
		r.Post("/chapters/previous", s.handlePrevious)
		r.Post("/chapters/{index}", s.handleSelect)

		r.Post("/playback/toggle", s.handleToggle)
		r.Put("/playback/rate", s.handleRate)
		r.Put("/playback/voice", s.handleVoice)

		r.Get("/voices", s.handleVoices)
		r.Get("/status", s.handleStatus)
		r.Get("/progress", s.handleProgress)
	})

	s.router = r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close disconnects websocket clients and stops listening to the reader.
func (s *Server) Close() {
	s.unsubscribe()
	s.hub.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
