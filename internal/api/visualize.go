package api

import (
	"net/http"

	"github.com/algolens/algolens/internal/engine"
	"github.com/algolens/algolens/internal/model"
)

// visualizeResponse carries a freshly regenerated step trace and the
// decision tree derived from it.
type visualizeResponse struct {
	ExecutionID   string                  `json:"executionId"`
	StepCount     int                     `json:"stepCount"`
	SolutionCount int                     `json:"solutionCount"`
	Steps         []model.ExecutionStep   `json:"steps"`
	Tree          *model.DecisionTreeNode `json:"tree"`
}

// handleVisualize re-runs the instrumented engine on a finished job's stored
// input. The search is deterministic, so the regenerated trace is exactly the
// one streamed while the job ran; it replaces the persisted trace and is
// returned together with the reconstructed decision tree. Only successful
// builtin runs have a trace to regenerate; everything else reads as absence.
func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	job, ok := s.getOwnedExecution(w, r)
	if !ok {
		return
	}
	if job.Status != model.StatusSuccess {
		s.writeError(w, http.StatusNotFound, "no completed execution to visualize")
		return
	}
	if job.Algorithm != model.AlgorithmSubsets {
		s.writeError(w, http.StatusNotFound, "execution has no step trace")
		return
	}

	// The input passed submit validation, so a parse failure here means the
	// stored record is corrupt.
	params, err := engine.ParseParams(job.Input)
	if err != nil {
		s.logger.Error("parse stored input", "job_id", job.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to regenerate trace")
		return
	}

	steps, solutions, err := engine.Collect(r.Context(), params)
	if err != nil {
		s.logger.Error("regenerate trace", "job_id", job.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to regenerate trace")
		return
	}

	if err := s.store.SaveSteps(r.Context(), job.ID, steps); err != nil {
		s.logger.Error("persist regenerated trace", "job_id", job.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store trace")
		return
	}

	s.writeJSON(w, http.StatusOK, visualizeResponse{
		ExecutionID:   job.CorrelationID,
		StepCount:     len(steps),
		SolutionCount: len(solutions),
		Steps:         steps,
		Tree:          engine.BuildDecisionTree(steps),
	})
}
