package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/sparklereader/sparkle/internal/document"
	"github.com/sparklereader/sparkle/internal/narration"
	"github.com/sparklereader/sparkle/internal/playback"
	"github.com/sparklereader/sparkle/internal/reader"
)

type chaptersResponse struct {
	Document string        `json:"document"`
	Current  int           `json:"current"`
	Chapters []chapterInfo `json:"chapters"`
}

type navigationResponse struct {
	Changed bool `json:"changed"`
	Current int  `json:"current"`
}

type statusResponse struct {
	Status playback.Status `json:"status"`
	Label  string          `json:"label"`
}

type voicesResponse struct {
	Current string            `json:"current"`
	Voices  []narration.Voice `json:"voices"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > limit {
		jsonError(w, fmt.Sprintf("file exceeds max size (%s)", humanize.IBytes(uint64(limit))), http.StatusRequestEntityTooLarge)
		return
	}

	name := sanitizeFilename(header.Filename)
	if err := s.reader.LoadDocument(r.Context(), data, name); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, document.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		jsonError(w, userMessage(err), status)
		return
	}
	writeJSON(w, http.StatusOK, s.chapters())
}

func (s *Server) chapters() chaptersResponse {
	i, _, _ := s.reader.CurrentChapter()
	return chaptersResponse{
		Document: s.reader.DocumentName(),
		Current:  i,
		Chapters: chapterInfos(s.reader.Chapters()),
	}
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chapters())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "chapter index must be an integer", http.StatusBadRequest)
		return
	}
	s.navigated(w, s.reader.SelectChapter(index))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.navigated(w, s.reader.NextChapter())
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.navigated(w, s.reader.PreviousChapter())
}

// navigated reports a navigation result. Moving past either end is not an
// error.
func (s *Server) navigated(w http.ResponseWriter, changed bool) {
	i, _, _ := s.reader.CurrentChapter()
	writeJSON(w, http.StatusOK, navigationResponse{Changed: changed, Current: i})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.reader.TogglePlayPause(); err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, reader.ErrNoDocument), errors.Is(err, playback.ErrNothingToSpeak):
			status = http.StatusConflict
		}
		jsonError(w, userMessage(err), status)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.reader.SetRate(body.Rate); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, reader.ErrInvalidRate) {
			status = http.StatusBadRequest
		}
		jsonError(w, err.Error(), status)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Voice string `json:"voice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := s.reader.SetVoice(body.Voice); err != nil {
		jsonError(w, userMessage(err), http.StatusBadGateway)
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices := s.reader.Voices()
	if voices == nil {
		voices = []narration.Voice{}
	}
	writeJSON(w, http.StatusOK, voicesResponse{Current: s.reader.Voice(), Voices: voices})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.reader.Status()
	writeJSON(w, http.StatusOK, statusResponse{Status: status, Label: status.Label()})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.reader.SavedProgress()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// userMessage returns the text shown to the user for err.
func userMessage(err error) string {
	var perr *document.ParseError
	if errors.As(err, &perr) && perr.Reason != "" {
		return perr.Reason
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("could not write response", "err", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "upload"
	}
	return name
}
