package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/irontracks/musclemap/internal/engine"
	"github.com/irontracks/musclemap/internal/muscle"
)

// maxBody bounds JSON request bodies; CSV uploads get maxUpload.
const (
	maxBody   = 1 << 20
	maxUpload = 20 << 20
)

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	var req engine.WeekRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.engine.Week(r.Context(), userIDFromContext(r), req)
	s.respond(w, r, res, err)
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	var req engine.DayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.engine.Day(r.Context(), userIDFromContext(r), req)
	s.respond(w, r, res, err)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.engine.Classify(r.Context(), userIDFromContext(r), req.Names)
	s.respond(w, r, res, err)
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req engine.BackfillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.engine.Backfill(r.Context(), userIDFromContext(r), req)
	s.respond(w, r, res, err)
}

func (s *Server) handleMuscles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "muscles": muscle.Groups})
}

func (s *Server) handleAlphaIngest(w http.ResponseWriter, r *http.Request) {
	if s.alpha == nil {
		writeError(w, http.StatusNotFound, "ingest not configured")
		return
	}
	result, err := s.alpha.Ingest(r.Context(), http.MaxBytesReader(w, r.Body, maxUpload), userIDFromContext(r))
	if err != nil {
		s.log.Error("alpha ingest error", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// respond writes an engine result. Invalid input is a 400; any other error
// is a 500.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, v)
	case errors.Is(err, engine.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "path", r.URL.Path, "user_id", userIDFromContext(r), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
