package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/registry"
)

// Stage identifies a phase of a single execution's lifecycle.
type Stage string

const (
	StagePreparing  Stage = "preparing"
	StageLoading    Stage = "loading"
	StageExecuting  Stage = "executing"
	StageProcessing Stage = "processing"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// Default ceilings. Overridable per Config; the concurrency ceiling is
// enforced fail-fast, not by queueing.
const (
	DefaultMaxConcurrent = 5
	DefaultTimeout       = 30 * time.Second
)

// Progress is one lifecycle event of an execution. Events for a single
// execution arrive in stage order and never resume after a terminal
// complete or error event.
type Progress struct {
	ExecutionID string
	ComponentID string
	Stage       Stage
	Message     string
	At          time.Time
}

// ProgressFunc receives progress events synchronously on the execution
// goroutine. Implementations must be fast and must not call back into
// the executor.
type ProgressFunc func(Progress)

// Request describes one method invocation.
type Request struct {
	ComponentID string
	Method      string
	Args        []any

	// Timeout bounds the invocation. 0 means DefaultTimeout.
	Timeout time.Duration

	OnProgress ProgressFunc
}

// Result is the terminal outcome of an execution. Failures are carried
// in Error with Success false; Execute never reports them any other
// way.
type Result struct {
	ExecutionID string
	ComponentID string
	Method      string
	Success     bool
	Value       any
	Error       string
	Elapsed     time.Duration
	MemoryBytes uint64
	CompletedAt time.Time
}

// Config holds executor construction parameters.
type Config struct {
	// MaxConcurrent is the in-flight execution ceiling.
	// 0 means DefaultMaxConcurrent.
	MaxConcurrent int

	// DefaultTimeout applies to requests with no explicit timeout.
	// 0 means DefaultTimeout.
	DefaultTimeout time.Duration

	Logger *zap.Logger
}

type execution struct {
	componentID string
	method      string
	stage       Stage
	startedAt   time.Time
	cancel      context.CancelFunc
}

// Engine runs component methods under a concurrency ceiling with
// per-execution timeouts, staged progress and cancellation. Terminal
// results are retained by execution id until swept by Cleanup.
type Engine struct {
	registry       *registry.Registry
	sem            *semaphore.Weighted
	maxConcurrent  int
	defaultTimeout time.Duration
	logger         *zap.Logger
	seq            atomic.Uint64

	mu      sync.Mutex
	active  map[string]*execution
	results map[string]*Result
}

// New creates an executor bound to a component registry.
func New(reg *registry.Registry, cfg Config) *Engine {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:       reg,
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
		maxConcurrent:  maxConcurrent,
		defaultTimeout: timeout,
		logger:         logger,
		active:         make(map[string]*execution),
		results:        make(map[string]*Result),
	}
}

// Execute runs one component method to completion. It always returns a
// Result; every failure mode, including admission rejection and
// timeout, is reported through Success and Error rather than a Go
// error.
//
// A timed-out execution stops being waited for and its slot is freed,
// but the guest may take a moment longer to actually halt.
func (e *Engine) Execute(ctx context.Context, req Request) *Result {
	execID := fmt.Sprintf("exec-%d", e.seq.Add(1))
	started := time.Now()

	exec := &execution{
		componentID: req.ComponentID,
		method:      req.Method,
		stage:       StagePreparing,
		startedAt:   started,
	}
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	exec.cancel = cancelRun

	e.mu.Lock()
	e.active[execID] = exec
	e.mu.Unlock()

	e.emit(&req, exec, execID, StagePreparing, "validating request")

	if req.ComponentID == "" || req.Method == "" {
		return e.fail(&req, exec, execID, started,
			errors.InvalidInput(errors.PhaseExecute, "component id and method are required"))
	}

	if !e.sem.TryAcquire(1) {
		return e.fail(&req, exec, execID, started, errors.ConcurrencyLimit(e.maxConcurrent))
	}
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { e.sem.Release(1) }) }
	defer release()

	e.emit(&req, exec, execID, StageLoading, "loading component")

	inst, err := e.registry.Load(runCtx, req.ComponentID)
	if err != nil {
		return e.fail(&req, exec, execID, started, err)
	}

	if !inst.HasMethod(req.Method) {
		werr := errors.MethodNotFound(req.ComponentID, req.Method)
		e.registry.RecordError(req.ComponentID, werr.Error())
		return e.fail(&req, exec, execID, started, werr)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	e.emit(&req, exec, execID, StageExecuting, "invoking "+req.Method)

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, callErr := inst.Call(callCtx, req.Method, req.Args)
		done <- outcome{value: v, err: callErr}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if ctxErr := callCtx.Err(); ctxErr != nil {
				werr := e.classifyCtx(ctxErr, timeout, execID)
				e.registry.RecordError(req.ComponentID, werr.Error())
				return e.fail(&req, exec, execID, started, werr)
			}
			werr := errors.From(out.err, errors.PhaseExecute,
				errors.KindExecutionFailed, "method invocation failed")
			e.registry.RecordError(req.ComponentID, werr.Error())
			return e.fail(&req, exec, execID, started, werr)
		}

		e.emit(&req, exec, execID, StageProcessing, "processing result")

		result := &Result{
			ExecutionID: execID,
			ComponentID: req.ComponentID,
			Method:      req.Method,
			Success:     true,
			Value:       out.value,
			Elapsed:     time.Since(started),
			MemoryBytes: inst.MemoryBytes(),
			CompletedAt: time.Now(),
		}
		e.finish(&req, exec, execID, result)
		return result

	case <-callCtx.Done():
		// Stop waiting. The call goroutine drains into the buffered
		// channel whenever the guest actually unwinds.
		release()
		werr := e.classifyCtx(callCtx.Err(), timeout, execID)
		e.registry.RecordError(req.ComponentID, werr.Error())
		return e.fail(&req, exec, execID, started, werr)
	}
}

func (e *Engine) classifyCtx(ctxErr error, timeout time.Duration, execID string) error {
	if ctxErr == context.DeadlineExceeded {
		return errors.Timeout(timeout)
	}
	return errors.Cancelled(execID)
}

// fail records a terminal failure result and emits the error stage.
func (e *Engine) fail(req *Request, exec *execution, execID string, started time.Time, err error) *Result {
	result := &Result{
		ExecutionID: execID,
		ComponentID: req.ComponentID,
		Method:      req.Method,
		Success:     false,
		Error:       err.Error(),
		Elapsed:     time.Since(started),
		CompletedAt: time.Now(),
	}
	e.finish(req, exec, execID, result)
	return result
}

// finish retires the execution: stores the result, drops the active
// record and emits the terminal progress event.
func (e *Engine) finish(req *Request, exec *execution, execID string, result *Result) {
	e.mu.Lock()
	delete(e.active, execID)
	e.results[execID] = result
	e.mu.Unlock()

	if result.Success {
		e.emit(req, exec, execID, StageComplete, "execution complete")
		e.logger.Debug("execution complete",
			zap.String("execution", execID),
			zap.String("component", result.ComponentID),
			zap.String("method", result.Method),
			zap.Duration("elapsed", result.Elapsed))
		return
	}

	e.emit(req, exec, execID, StageError, result.Error)
	e.logger.Warn("execution failed",
		zap.String("execution", execID),
		zap.String("component", result.ComponentID),
		zap.String("method", result.Method),
		zap.String("error", result.Error),
		zap.Duration("elapsed", result.Elapsed))
}

func (e *Engine) emit(req *Request, exec *execution, execID string, stage Stage, msg string) {
	now := time.Now()
	e.mu.Lock()
	exec.stage = stage
	e.mu.Unlock()

	if req.OnProgress != nil {
		req.OnProgress(Progress{
			ExecutionID: execID,
			ComponentID: exec.componentID,
			Stage:       stage,
			Message:     msg,
			At:          now,
		})
	}
}

// Cancel aborts an in-flight execution. The execution's Result reports
// the cancellation; cancelling an unknown or finished execution is an
// error.
func (e *Engine) Cancel(execID string) error {
	e.mu.Lock()
	exec, ok := e.active[execID]
	e.mu.Unlock()

	if !ok {
		return errors.NotFound("execution", execID)
	}
	exec.cancel()
	e.logger.Info("execution cancelled", zap.String("execution", execID))
	return nil
}

// Progress reports the current stage of an execution, in-flight or
// retained.
func (e *Engine) Progress(execID string) (Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if exec, ok := e.active[execID]; ok {
		return Progress{
			ExecutionID: execID,
			ComponentID: exec.componentID,
			Stage:       exec.stage,
			At:          exec.startedAt,
		}, true
	}
	if result, ok := e.results[execID]; ok {
		stage := StageComplete
		if !result.Success {
			stage = StageError
		}
		return Progress{
			ExecutionID: execID,
			ComponentID: result.ComponentID,
			Stage:       stage,
			Message:     result.Error,
			At:          result.CompletedAt,
		}, true
	}
	return Progress{}, false
}

// ResultOf returns the retained terminal result of an execution.
func (e *Engine) ResultOf(execID string) (*Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	result, ok := e.results[execID]
	return result, ok
}

// Active lists in-flight executions.
func (e *Engine) Active() []Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Progress, 0, len(e.active))
	for id, exec := range e.active {
		out = append(out, Progress{
			ExecutionID: id,
			ComponentID: exec.componentID,
			Stage:       exec.stage,
			At:          exec.startedAt,
		})
	}
	return out
}

// Cleanup drops retained results older than maxAge and returns how
// many were removed. In-flight executions are never touched.
func (e *Engine) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for id, result := range e.results {
		if result.CompletedAt.Before(cutoff) {
			delete(e.results, id)
			removed++
		}
	}
	return removed
}
