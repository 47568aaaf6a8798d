package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/algolens/algolens/internal/model"
)

// ErrNoExecutor is returned when no sandbox executor is registered for a
// requested language.
var ErrNoExecutor = errors.New("no sandbox executor registered")

// SandboxResult is the outcome of a sandboxed code run.
type SandboxResult struct {
	Output          json.RawMessage
	ExecutionTimeMS int64
	MemoryBytes     int64
}

// ExecutorCapabilities describes a registered executor.
type ExecutorCapabilities struct {
	Name           string   `json:"name"`
	Languages      []string `json:"languages"`
	MaxConcurrency int      `json:"maxConcurrency"`
}

// SandboxExecutor runs user-submitted code in an isolated environment.
// Implementations must honor context cancellation; a context error return is
// classified as a cancelled run rather than a sandbox fault.
type SandboxExecutor interface {
	Run(ctx context.Context, job *model.ExecutionJob) (SandboxResult, error)
	Capabilities() ExecutorCapabilities
}

// ExecutorInfo pairs a language with the capabilities of its executor.
type ExecutorInfo struct {
	Language     string               `json:"language"`
	Capabilities ExecutorCapabilities `json:"capabilities"`
}

// ExecutorRegistry maps languages to sandbox executors. Registration happens
// at startup; resolution runs concurrently with in-flight jobs.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]SandboxExecutor
}

// NewExecutorRegistry creates an empty executor registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[string]SandboxExecutor),
	}
}

// Register binds an executor to a language, replacing any previous binding.
func (r *ExecutorRegistry) Register(language string, ex SandboxExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[language] = ex
}

// Resolve returns the executor bound to the given language.
func (r *ExecutorRegistry) Resolve(language string) (SandboxExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.executors[language]
	if !ok {
		return nil, fmt.Errorf("%w for language %q", ErrNoExecutor, language)
	}
	return ex, nil
}

// List returns information about all registered executors, sorted by
// language for a stable API response.
func (r *ExecutorRegistry) List() []ExecutorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ExecutorInfo, 0, len(r.executors))
	for language, ex := range r.executors {
		infos = append(infos, ExecutorInfo{
			Language:     language,
			Capabilities: ex.Capabilities(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Language < infos[j].Language
	})
	return infos
}
