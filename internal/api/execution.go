package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/algolens/algolens/internal/dispatch"
	"github.com/algolens/algolens/internal/model"
	"github.com/algolens/algolens/internal/registry"
	"github.com/algolens/algolens/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// getOwnedExecution resolves the {id} path parameter (a correlation id) to a
// job owned by the caller. Unknown ids, expired ids and other users' jobs all
// read as absence; on failure the response has been written and ok is false.
func (s *Server) getOwnedExecution(w http.ResponseWriter, r *http.Request) (*model.ExecutionJob, bool) {
	id := chi.URLParam(r, "id")

	job, err := s.registry.GetByCorrelation(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) || errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "execution not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get execution", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get execution")
		return nil, false
	}
	if job.OwnerID != userFrom(r.Context()) {
		s.writeError(w, http.StatusNotFound, "execution not found")
		return nil, false
	}
	return job, true
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	job, ok := s.getOwnedExecution(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	job, ok := s.getOwnedExecution(w, r)
	if !ok {
		return
	}

	if err := s.dispatcher.Cancel(r.Context(), job.ID); err != nil {
		if errors.Is(err, dispatch.ErrNotRunning) {
			s.writeError(w, http.StatusConflict, "execution already finished")
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "execution not found")
			return
		}
		s.logger.Error("cancel execution", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to cancel execution")
		return
	}

	// Cancellation of a running job is cooperative, so the record may still
	// read RUNNING here; the terminal event follows on the stream.
	job, err := s.registry.Get(r.Context(), job.ID)
	if err != nil {
		s.logger.Error("get cancelled execution", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve execution")
		return
	}
	s.writeJSON(w, http.StatusAccepted, job)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
