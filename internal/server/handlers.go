package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/MrWong99/quillfix/internal/learning"
	"github.com/MrWong99/quillfix/internal/observe"
	"github.com/MrWong99/quillfix/internal/resilience"
	"github.com/MrWong99/quillfix/pkg/correction"
)

// envelopeBytes is the allowance for JSON syntax around text fields.
const envelopeBytes = 4 << 10

type learnRequest struct {
	Original string `json:"original"`
	Edited   string `json:"edited"`
}

type learnResponse struct {
	Learned []learning.LearnedCorrection `json:"learned"`
}

type applyRequest struct {
	Text string `json:"text"`
}

type applyResponse struct {
	Text    string                       `json:"text"`
	Applied []learning.AppliedCorrection `json:"applied"`
}

type lookupResponse struct {
	Word      string `json:"word"`
	Corrected string `json:"corrected,omitempty"`
	Found     bool   `json:"found"`
}

type removeResponse struct {
	Word    string `json:"word"`
	Removed bool   `json:"removed"`
}

type minConfidenceJSON struct {
	Value *float64 `json:"value"`
}

type statsResponse struct {
	CacheSize     int     `json:"cache_size"`
	MinConfidence float64 `json:"min_confidence"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/learn", s.handleLearn)
	mux.HandleFunc("POST /v1/apply", s.handleApply)
	mux.HandleFunc("GET /v1/corrections", s.handleList)
	mux.HandleFunc("GET /v1/corrections/{word}", s.handleLookup)
	mux.HandleFunc("DELETE /v1/cache/{word}", s.handleRemove)
	mux.HandleFunc("DELETE /v1/cache", s.handleClear)
	mux.HandleFunc("POST /v1/reload", s.handleReload)
	mux.HandleFunc("GET /v1/settings/min-confidence", s.handleGetMinConfidence)
	mux.HandleFunc("PUT /v1/settings/min-confidence", s.handleSetMinConfidence)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if !s.decode(w, r, 2*s.maxTextBytes+envelopeBytes, &req) {
		return
	}
	if int64(len(req.Original)) > s.maxTextBytes || int64(len(req.Edited)) > s.maxTextBytes {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("text exceeds %d bytes", s.maxTextBytes))
		return
	}

	learned, err := s.engine.LearnFromEdit(r.Context(), req.Original, req.Edited)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, learnResponse{Learned: learned})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !s.decode(w, r, s.maxTextBytes+envelopeBytes, &req) {
		return
	}
	if int64(len(req.Text)) > s.maxTextBytes {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("text exceeds %d bytes", s.maxTextBytes))
		return
	}

	text, applied := s.engine.ApplyCorrections(req.Text)
	writeJSON(w, http.StatusOK, applyResponse{Text: text, Applied: applied})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	entries := s.engine.AllCorrections()
	if entries == nil {
		entries = []correction.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	word := r.PathValue("word")
	corrected, ok := s.engine.GetCorrection(word)
	writeJSON(w, http.StatusOK, lookupResponse{Word: word, Corrected: corrected, Found: ok})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	word := r.PathValue("word")
	writeJSON(w, http.StatusOK, removeResponse{Word: word, Removed: s.engine.RemoveFromCache(word)})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.engine.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ReloadFromStore(r.Context()); err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.handleStats(w, r)
}

func (s *Server) handleGetMinConfidence(w http.ResponseWriter, _ *http.Request) {
	v := s.engine.MinConfidence()
	writeJSON(w, http.StatusOK, minConfidenceJSON{Value: &v})
}

func (s *Server) handleSetMinConfidence(w http.ResponseWriter, r *http.Request) {
	var req minConfidenceJSON
	if !s.decode(w, r, envelopeBytes, &req) {
		return
	}
	if req.Value == nil {
		s.writeError(w, r, http.StatusBadRequest, errors.New("value is required"))
		return
	}
	if v := *req.Value; math.IsNaN(v) || v < 0 || v > 1 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("value %v is out of range [0, 1]", v))
		return
	}
	s.engine.SetMinConfidence(*req.Value)
	s.handleGetMinConfidence(w, r)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		CacheSize:     s.engine.CacheSize(),
		MinConfidence: s.engine.MinConfidence(),
	})
}

// decode reads a JSON body of at most limit bytes into v. On failure it
// writes the error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, err)
			return false
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, correction.ErrStorage),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, learning.ErrNoStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	log := observe.Logger(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		observe.MarkFailed(r.Context(), err)
		log.Error("server: request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		log.Debug("server: bad request", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}
