package api

import (
	"net/http"

	"github.com/algolens/algolens/internal/model"
)

// stepsResponse is the JSON response for GET /v1/executions/{id}/steps.
type stepsResponse struct {
	ExecutionID string                `json:"executionId"`
	StepCount   int                   `json:"stepCount"`
	Steps       []model.ExecutionStep `json:"steps"`
}

// handleGetSteps returns the persisted step trace for an execution. Jobs
// without a trace (still running, cancelled mid-run, or sandboxed) yield an
// empty list rather than an error.
func (s *Server) handleGetSteps(w http.ResponseWriter, r *http.Request) {
	job, ok := s.getOwnedExecution(w, r)
	if !ok {
		return
	}

	steps, err := s.store.GetSteps(r.Context(), job.ID)
	if err != nil {
		s.logger.Error("get step trace", "job_id", job.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get step trace")
		return
	}
	if steps == nil {
		steps = []model.ExecutionStep{}
	}

	s.writeJSON(w, http.StatusOK, stepsResponse{
		ExecutionID: job.CorrelationID,
		StepCount:   len(steps),
		Steps:       steps,
	})
}
