package model

import "time"

// Step type constants. Each step documents one decision the search engine
// made about its own recursion.
const (
	StepChoice          = "choice"
	StepBacktrack       = "backtrack"
	StepSolution        = "solution"
	StepPruning         = "pruning"
	StepConstraintCheck = "constraint-check"
)

// Constraint severity constants.
const (
	SeverityInfo     = "info"
	SeverityBlocking = "blocking"
)

// Constraint type constants.
const (
	ConstraintMinLength = "min-length"
	ConstraintMaxLength = "max-length"
	ConstraintTargetSum = "target-sum"
)

// Constraint records one constraint evaluation, attached to the step that
// performed it. A violated constraint is always blocking: the branch it was
// evaluated on is abandoned.
type Constraint struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	IsViolated  bool   `json:"isViolated"`
	Severity    string `json:"severity"`
}

// PerformanceSnapshot captures cheap engine counters at step-emission time.
type PerformanceSnapshot struct {
	ElapsedMicros  int64 `json:"elapsedMicros"`
	StepsEmitted   int   `json:"stepsEmitted"`
	SolutionsFound int   `json:"solutionsFound"`
	MaxDepth       int   `json:"maxDepth"`
}

// ExecutionStep is one instrumented step of a backtracking search. Steps are
// emitted in strictly increasing ID order per job; Depth starts at 0, moves
// by at most ±1 between consecutive steps, and is back at 0 on the final
// step of a completed search.
type ExecutionStep struct {
	ID               int                 `json:"id"`
	Type             string              `json:"type"`
	Timestamp        time.Time           `json:"timestamp"`
	Depth            int                 `json:"depth"`
	CurrentPath      []int               `json:"currentPath"`
	AvailableChoices []int               `json:"availableChoices,omitempty"`
	ChoiceMade       *int                `json:"choiceMade,omitempty"`
	Constraints      []Constraint        `json:"constraints,omitempty"`
	Performance      PerformanceSnapshot `json:"performanceSnapshot"`
}
