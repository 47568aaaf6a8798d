package model

import (
	"encoding/json"
	"time"
)

// Job status constants. Transitions are monotonic; terminal statuses accept
// no further transitions.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSuccess   = "SUCCESS"
	StatusError     = "ERROR"
	StatusCancelled = "CANCELLED"
)

// Language constants for submitted code.
const (
	LanguagePython     = "python"
	LanguageJavaScript = "javascript"
	LanguageGo         = "go"
)

// Builtin algorithm references understood by the instrumented engine.
const (
	AlgorithmSubsets = "subsets"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusError:     true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusSuccess:   true,
		StatusError:     true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	_, ok := validTransitions[status]
	return !ok && status != ""
}

// ExecutionJob is an algorithm-execution job tracked by the registry.
// It is owned by the dispatcher/registry pair; the streaming gateway only
// ever sees event payloads derived from it, never the record itself.
type ExecutionJob struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlationId"`
	OwnerID       string          `json:"ownerId"`
	Algorithm     string          `json:"algorithm"`
	Language      string          `json:"language"`
	Code          string          `json:"code,omitempty"`
	Input         json.RawMessage `json:"input,omitempty"`
	Status        string          `json:"status"`
	TimeoutMS     int             `json:"timeoutMs,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// JobSummary is the trimmed job view returned by history listings.
// Code, input and output are omitted to keep pages small.
type JobSummary struct {
	ID            string     `json:"id"`
	CorrelationID string     `json:"correlationId"`
	Algorithm     string     `json:"algorithm"`
	Language      string     `json:"language"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// ExecutionResult carries the outcome recorded on a terminal status update.
type ExecutionResult struct {
	Output json.RawMessage
	Error  string
}
