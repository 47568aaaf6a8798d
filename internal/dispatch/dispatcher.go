package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/algolens/algolens/internal/bus"
	"github.com/algolens/algolens/internal/engine"
	"github.com/algolens/algolens/internal/model"
	"github.com/algolens/algolens/internal/registry"
	"github.com/algolens/algolens/internal/store"
)

// MaxInputNumbers caps the input size for the instrumented engine. Step
// counts grow exponentially with input length and every step crosses the
// bus, so larger inputs are rejected up front.
const MaxInputNumbers = 10

// MaxTimeout bounds the per-job execution budget a request may ask for.
const MaxTimeout = 2 * time.Minute

// ErrNotRunning is returned by Cancel when the job has nothing to cancel.
var ErrNotRunning = errors.New("job is not running")

// ValidationError rejects a submit request before any job record is created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// LifecyclePayload is the event payload published on the lifecycle channel.
type LifecyclePayload struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// SubmitRequest carries an execution request into the dispatcher.
type SubmitRequest struct {
	OwnerID   string
	Algorithm string
	Language  string
	Code      string
	Input     json.RawMessage
	TimeoutMS int
}

// subsetsOutput is the terminal output recorded for builtin subset runs.
type subsetsOutput struct {
	Solutions [][]int `json:"solutions"`
	Count     int     `json:"count"`
	Steps     int     `json:"steps"`
}

// Dispatcher validates execution requests, runs them asynchronously and
// publishes lifecycle and step events. Exactly one terminal lifecycle event
// is published per job, on every exit path.
type Dispatcher struct {
	registry  *registry.Registry
	store     store.Store
	bus       *bus.Bus
	executors *ExecutorRegistry
	logger    *slog.Logger

	timeout   time.Duration
	stepDelay time.Duration

	wg      sync.WaitGroup
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a Dispatcher. timeout is the execution budget applied when a
// request does not carry its own; stepDelay paces step publication so
// subscribers can render the search as it unfolds (zero publishes
// back-to-back).
func New(reg *registry.Registry, st store.Store, eventBus *bus.Bus, executors *ExecutorRegistry, logger *slog.Logger, timeout, stepDelay time.Duration) *Dispatcher {
	return &Dispatcher{
		registry:  reg,
		store:     st,
		bus:       eventBus,
		executors: executors,
		logger:    logger.With("component", "dispatch"),
		timeout:   timeout,
		stepDelay: stepDelay,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Submit validates the request, creates the job and launches asynchronous
// execution. It returns the correlation id callers use as the public
// execution id; the job is PENDING when Submit returns. The goroutine
// operates on a copy of the job to avoid data races with the caller.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	job := &model.ExecutionJob{
		OwnerID:   req.OwnerID,
		Algorithm: req.Algorithm,
		Language:  req.Language,
		Code:      req.Code,
		Input:     req.Input,
		TimeoutMS: req.TimeoutMS,
	}
	correlationID, err := d.registry.Create(ctx, job)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	jobCopy := *job
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(&jobCopy)
	}()

	return correlationID, nil
}

// Cancel requests cancellation of an execution. Running jobs are cancelled
// cooperatively through their context; jobs still waiting to start are
// finalized directly, and the run goroutine's later transitions lose against
// the committed terminal status.
func (d *Dispatcher) Cancel(ctx context.Context, jobID string) error {
	d.mu.Lock()
	cancel, ok := d.cancels[jobID]
	d.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	job, err := d.registry.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.StatusPending {
		return ErrNotRunning
	}

	result := &model.ExecutionResult{Error: "cancelled before start"}
	if err := d.registry.UpdateStatus(ctx, jobID, model.StatusCancelled, result); err != nil {
		return ErrNotRunning
	}
	executionsTotal.WithLabelValues(job.Algorithm, metricStatusCancelled).Inc()
	d.bus.Publish(bus.ChannelLifecycle, bus.NewEnvelope(bus.EventExecutionCancelled, job.CorrelationID, LifecyclePayload{
		Status: model.StatusCancelled,
		Error:  result.Error,
	}))
	return nil
}

// Wait blocks until all in-flight execution goroutines complete.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// run walks one job through its lifecycle: pending, running, then exactly
// one terminal status.
func (d *Dispatcher) run(job *model.ExecutionJob) {
	logger := d.logger.With("job_id", job.ID, "execution_id", job.CorrelationID)

	timeout := d.timeout
	if job.TimeoutMS > 0 {
		timeout = time.Duration(job.TimeoutMS) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	d.trackCancel(job.ID, cancel)
	defer d.untrackCancel(job.ID)

	executionsInFlight.Inc()
	defer executionsInFlight.Dec()

	start := time.Now()
	finalized := false
	finalize := func(event, status string, result *model.ExecutionResult) {
		if finalized {
			return
		}
		finalized = true
		if err := d.registry.UpdateStatus(context.Background(), job.ID, status, result); err != nil {
			logger.Error("failed to finalize job", "status", status, "error", err)
			return
		}
		executionsTotal.WithLabelValues(job.Algorithm, metricStatus(status)).Inc()
		executionDuration.Observe(time.Since(start).Seconds())

		payload := LifecyclePayload{Status: status}
		if result != nil {
			payload.Output = result.Output
			payload.Error = result.Error
		}
		d.bus.Publish(bus.ChannelLifecycle, bus.NewEnvelope(event, job.CorrelationID, payload))
		logger.Info("execution finished", "status", status, "duration_ms", time.Since(start).Milliseconds())
	}

	// A panicking executor must not take the dispatcher down; the job ends
	// in ERROR like any other fault.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("execution panicked", "panic", r)
			finalize(bus.EventExecutionError, model.StatusError, &model.ExecutionResult{
				Error: fmt.Sprintf("internal fault: %v", r),
			})
		}
	}()

	if err := d.registry.UpdateStatus(context.Background(), job.ID, model.StatusRunning, nil); err != nil {
		logger.Error("failed to transition to running", "error", err)
		finalize(bus.EventExecutionError, model.StatusError, &model.ExecutionResult{
			Error: fmt.Sprintf("failed to start: %v", err),
		})
		return
	}
	d.bus.Publish(bus.ChannelLifecycle, bus.NewEnvelope(bus.EventExecutionStarted, job.CorrelationID, LifecyclePayload{
		Status: model.StatusRunning,
	}))

	var output json.RawMessage
	var runErr error
	if job.Algorithm == model.AlgorithmSubsets {
		output, runErr = d.runBuiltin(ctx, logger, job)
	} else {
		output, runErr = d.runSandbox(ctx, job)
	}

	switch {
	case runErr == nil:
		finalize(bus.EventExecutionCompleted, model.StatusSuccess, &model.ExecutionResult{Output: output})
	case errors.Is(runErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		finalize(bus.EventExecutionCancelled, model.StatusCancelled, &model.ExecutionResult{
			Error: fmt.Sprintf("execution budget of %s exceeded", timeout),
		})
	case errors.Is(runErr, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		finalize(bus.EventExecutionCancelled, model.StatusCancelled, &model.ExecutionResult{
			Error: "cancelled by request",
		})
	default:
		finalize(bus.EventExecutionError, model.StatusError, &model.ExecutionResult{Error: runErr.Error()})
	}
}

// runBuiltin drives the instrumented engine, forwarding every step to the
// bus while accumulating the trace for persistence. The forwarder goroutine
// owns the receiving side of the step channel; Run closes it when the
// search ends.
func (d *Dispatcher) runBuiltin(ctx context.Context, logger *slog.Logger, job *model.ExecutionJob) (json.RawMessage, error) {
	params, err := engine.ParseParams(job.Input)
	if err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	search := engine.NewSubsetSearch(params)
	steps := make(chan model.ExecutionStep, engine.StepBufferSize)

	var trace []model.ExecutionStep
	done := make(chan struct{})
	go func() {
		defer close(done)
		for step := range steps {
			trace = append(trace, step)
			d.bus.Publish(bus.ChannelSteps, bus.NewEnvelope(bus.EventExecutionStep, job.CorrelationID, step))
			stepsPublished.Inc()
			d.pace(ctx)
		}
	}()

	runErr := search.Run(ctx, steps)
	<-done
	if runErr != nil {
		return nil, runErr
	}

	// The trace is persisted for replay; a storage fault degrades replay but
	// does not fail the finished job.
	if err := d.store.SaveSteps(context.Background(), job.ID, trace); err != nil {
		logger.Error("failed to persist step trace", "error", err)
	}

	solutions := search.Solutions()
	if solutions == nil {
		solutions = [][]int{}
	}
	output, err := json.Marshal(subsetsOutput{
		Solutions: solutions,
		Count:     len(solutions),
		Steps:     len(trace),
	})
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return output, nil
}

// runSandbox resolves the executor for the job's language and hands the code
// over. Executor faults surface as run errors; the caller classifies them.
func (d *Dispatcher) runSandbox(ctx context.Context, job *model.ExecutionJob) (json.RawMessage, error) {
	ex, err := d.executors.Resolve(job.Language)
	if err != nil {
		return nil, err
	}
	result, err := ex.Run(ctx, job)
	if err != nil {
		return nil, err
	}
	return result.Output, nil
}

// pace spaces successive step publications.
func (d *Dispatcher) pace(ctx context.Context) {
	if d.stepDelay <= 0 {
		return
	}
	select {
	case <-time.After(d.stepDelay):
	case <-ctx.Done():
	}
}

func (d *Dispatcher) trackCancel(jobID string, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancels[jobID] = cancel
}

func (d *Dispatcher) untrackCancel(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cancels, jobID)
}

func validate(req SubmitRequest) error {
	if req.OwnerID == "" {
		return &ValidationError{Reason: "ownerId is required"}
	}
	if req.Algorithm == "" {
		return &ValidationError{Reason: "algorithm is required"}
	}
	switch req.Language {
	case model.LanguagePython, model.LanguageJavaScript, model.LanguageGo:
	default:
		return &ValidationError{Reason: fmt.Sprintf("unsupported language %q", req.Language)}
	}
	if req.TimeoutMS < 0 {
		return &ValidationError{Reason: "timeoutMs must not be negative"}
	}
	if time.Duration(req.TimeoutMS)*time.Millisecond > MaxTimeout {
		return &ValidationError{Reason: fmt.Sprintf("timeoutMs exceeds maximum of %s", MaxTimeout)}
	}

	if req.Algorithm == model.AlgorithmSubsets {
		return validateSubsetsInput(req.Input)
	}
	if req.Code == "" {
		return &ValidationError{Reason: "code is required for sandboxed algorithms"}
	}
	return nil
}

func validateSubsetsInput(input json.RawMessage) error {
	if len(input) == 0 {
		return &ValidationError{Reason: "input is required"}
	}
	params, err := engine.ParseParams(input)
	if err != nil {
		return &ValidationError{Reason: fmt.Sprintf("invalid input: %v", err)}
	}
	if len(params.Numbers) == 0 {
		return &ValidationError{Reason: "input.numbers must not be empty"}
	}
	if len(params.Numbers) > MaxInputNumbers {
		return &ValidationError{Reason: fmt.Sprintf("input.numbers exceeds maximum length of %d", MaxInputNumbers)}
	}
	if params.MinLength < 0 || params.MaxLength < 0 {
		return &ValidationError{Reason: "length bounds must not be negative"}
	}
	if params.MaxLength > 0 && params.MinLength > params.MaxLength {
		return &ValidationError{Reason: "minLength exceeds maxLength"}
	}
	return nil
}
