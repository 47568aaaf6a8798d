package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/algolens/algolens/internal/model"
)

// StepBufferSize is the recommended capacity for the step channel handed to
// Run. The search blocks while the channel is full, so the consumer's read
// rate bounds overall execution speed.
const StepBufferSize = 64

// Params configure one subset search.
type Params struct {
	Numbers         []int `json:"numbers"`
	MinLength       int   `json:"minLength,omitempty"`
	MaxLength       int   `json:"maxLength,omitempty"` // 0 means unbounded
	TargetSum       *int  `json:"targetSum,omitempty"`
	AllowDuplicates bool  `json:"allowDuplicates"`
	IncludeEmpty    bool  `json:"includeEmpty"`
}

// ParseParams decodes search parameters from a job's input document.
// includeEmpty defaults to true when absent; every other field defaults to
// its zero value.
func ParseParams(input []byte) (Params, error) {
	var raw struct {
		Numbers         []int `json:"numbers"`
		MinLength       int   `json:"minLength"`
		MaxLength       int   `json:"maxLength"`
		TargetSum       *int  `json:"targetSum"`
		AllowDuplicates bool  `json:"allowDuplicates"`
		IncludeEmpty    *bool `json:"includeEmpty"`
	}
	if err := json.Unmarshal(input, &raw); err != nil {
		return Params{}, fmt.Errorf("decode input: %w", err)
	}
	return Params{
		Numbers:         raw.Numbers,
		MinLength:       raw.MinLength,
		MaxLength:       raw.MaxLength,
		TargetSum:       raw.TargetSum,
		AllowDuplicates: raw.AllowDuplicates,
		IncludeEmpty:    raw.IncludeEmpty == nil || *raw.IncludeEmpty,
	}, nil
}

// SubsetSearch is one instrumented backtracking search over a sorted copy of
// the input. Each instance is single-use and exclusively owned by the
// goroutine that calls Run.
type SubsetSearch struct {
	params         Params
	nums           []int
	allNonNegative bool

	ctx       context.Context
	steps     chan<- model.ExecutionStep
	started   time.Time
	path      []int
	sum       int
	nextID    int
	maxDepth  int
	solutions [][]int
	cancelled bool
}

// NewSubsetSearch prepares a search. The input is copied and sorted;
// sortedness is what makes sibling-duplicate skipping correct.
func NewSubsetSearch(params Params) *SubsetSearch {
	nums := slices.Clone(params.Numbers)
	slices.Sort(nums)

	allNonNegative := true
	for _, n := range nums {
		if n < 0 {
			allNonNegative = false
			break
		}
	}

	return &SubsetSearch{
		params:         params,
		nums:           nums,
		allNonNegative: allNonNegative,
	}
}

// Run executes the search, sending every emitted step into steps. The
// channel is closed before Run returns, whatever the outcome. When ctx is
// cancelled the search stops emitting and unwinds; Run then returns the
// context's error.
func (s *SubsetSearch) Run(ctx context.Context, steps chan<- model.ExecutionStep) error {
	s.ctx = ctx
	s.steps = steps
	s.started = time.Now()
	defer close(steps)

	s.recurse(0, 0)

	if s.cancelled {
		return ctx.Err()
	}
	return nil
}

// Solutions returns the recorded results in discovery order. It is only
// meaningful after Run has returned.
func (s *SubsetSearch) Solutions() [][]int {
	return s.solutions
}

// Collect runs a search to completion and returns the full step trace along
// with the solutions. It serves synchronous consumers such as trace
// regeneration; streaming consumers drive Run themselves so they control
// pacing and delivery.
func Collect(ctx context.Context, params Params) ([]model.ExecutionStep, [][]int, error) {
	search := NewSubsetSearch(params)
	steps := make(chan model.ExecutionStep, StepBufferSize)

	var trace []model.ExecutionStep
	done := make(chan struct{})
	go func() {
		defer close(done)
		for step := range steps {
			trace = append(trace, step)
		}
	}()

	err := search.Run(ctx, steps)
	<-done
	if err != nil {
		return nil, nil, err
	}
	return trace, search.Solutions(), nil
}

// recurse explores every extension of the current path using candidates from
// start onward. depth is the recursion level and always equals len(s.path)
// at entry.
func (s *SubsetSearch) recurse(start, depth int) {
	if s.ctx.Err() != nil {
		s.cancelled = true
		return
	}

	if s.isSolution() {
		s.solutions = append(s.solutions, clonePath(s.path))
		if !s.emit(model.ExecutionStep{
			Type:             model.StepSolution,
			Depth:            depth,
			CurrentPath:      clonePath(s.path),
			AvailableChoices: slices.Clone(s.nums[start:]),
		}) {
			return
		}
	}

	for i := start; i < len(s.nums); i++ {
		// Sibling duplicates produce duplicate solutions; skip them
		// without emitting. Relies on sortedness.
		if !s.params.AllowDuplicates && i > start && s.nums[i] == s.nums[i-1] {
			continue
		}

		candidate := s.nums[i]
		if !s.emit(model.ExecutionStep{
			Type:             model.StepChoice,
			Depth:            depth,
			CurrentPath:      clonePath(s.path),
			AvailableChoices: slices.Clone(s.nums[i:]),
			ChoiceMade:       &candidate,
		}) {
			return
		}

		s.push(candidate)
		evals := s.evaluateConstraints(i)
		if anyViolated(evals) {
			ok := s.emit(model.ExecutionStep{
				Type:        model.StepPruning,
				Depth:       depth,
				CurrentPath: clonePath(s.path),
				ChoiceMade:  &candidate,
				Constraints: evals,
			})
			s.pop(candidate)
			if !ok {
				return
			}
			continue
		}
		if len(evals) > 0 {
			if !s.emit(model.ExecutionStep{
				Type:        model.StepConstraintCheck,
				Depth:       depth,
				CurrentPath: clonePath(s.path),
				ChoiceMade:  &candidate,
				Constraints: evals,
			}) {
				s.pop(candidate)
				return
			}
		}

		s.recurse(i+1, depth+1)
		s.pop(candidate)
		if s.cancelled {
			return
		}

		if !s.emit(model.ExecutionStep{
			Type:        model.StepBacktrack,
			Depth:       depth,
			CurrentPath: clonePath(s.path),
		}) {
			return
		}
	}
}

// isSolution reports whether the current path is a valid complete result.
func (s *SubsetSearch) isSolution() bool {
	n := len(s.path)
	if n == 0 && !s.params.IncludeEmpty {
		return false
	}
	if n < s.params.MinLength {
		return false
	}
	if s.params.MaxLength > 0 && n > s.params.MaxLength {
		return false
	}
	if s.params.TargetSum != nil && s.sum != *s.params.TargetSum {
		return false
	}
	return true
}

func (s *SubsetSearch) push(n int) {
	s.path = append(s.path, n)
	s.sum += n
}

func (s *SubsetSearch) pop(n int) {
	s.path = s.path[:len(s.path)-1]
	s.sum -= n
}

// emit assigns the step its ID, timestamp and performance snapshot, then
// sends it. A false return means the context was cancelled before the send
// completed; the step was not delivered and no further steps may be emitted.
func (s *SubsetSearch) emit(step model.ExecutionStep) bool {
	if s.cancelled {
		return false
	}

	step.ID = s.nextID
	step.Timestamp = time.Now().UTC()
	if step.Depth > s.maxDepth {
		s.maxDepth = step.Depth
	}
	step.Performance = model.PerformanceSnapshot{
		ElapsedMicros:  time.Since(s.started).Microseconds(),
		StepsEmitted:   s.nextID + 1,
		SolutionsFound: len(s.solutions),
		MaxDepth:       s.maxDepth,
	}

	select {
	case s.steps <- step:
		s.nextID++
		return true
	case <-s.ctx.Done():
		s.cancelled = true
		return false
	}
}

// clonePath copies a path, keeping empty paths non-nil so they serialize as
// [] rather than null.
func clonePath(p []int) []int {
	out := make([]int, len(p))
	copy(out, p)
	return out
}
