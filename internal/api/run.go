package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/algolens/algolens/internal/dispatch"
	"github.com/algolens/algolens/internal/model"
)

// runRequest is the JSON body for POST /v1/run.
type runRequest struct {
	Algorithm string          `json:"algorithm"`
	Language  string          `json:"language"`
	Code      string          `json:"code"`
	Input     json.RawMessage `json:"input"`
	TimeoutMS int             `json:"timeoutMs"`
}

// runResponse acknowledges an accepted execution. ExecutionID is the public
// correlation id; the run itself happens out-of-band.
type runResponse struct {
	ExecutionID string `json:"executionId"`
	Status      string `json:"status"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	executionID, err := s.dispatcher.Submit(r.Context(), dispatch.SubmitRequest{
		OwnerID:   userFrom(r.Context()),
		Algorithm: req.Algorithm,
		Language:  req.Language,
		Code:      req.Code,
		Input:     req.Input,
		TimeoutMS: req.TimeoutMS,
	})
	var ve *dispatch.ValidationError
	if errors.As(err, &ve) {
		s.writeError(w, http.StatusBadRequest, ve.Reason)
		return
	}
	if err != nil {
		s.logger.Error("submit execution", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit execution")
		return
	}

	s.writeJSON(w, http.StatusAccepted, runResponse{
		ExecutionID: executionID,
		Status:      model.StatusPending,
	})
}
