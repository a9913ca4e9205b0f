package host

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/component-host/analyze"
	"github.com/wippyai/component-host/engine"
	"github.com/wippyai/component-host/executor"
	"github.com/wippyai/component-host/registry"
	"github.com/wippyai/component-host/translate"
)

// Config holds the runtime's construction parameters. All knobs are
// set here, once; there is no environment or dynamic reconfiguration.
type Config struct {
	// CacheCapacity bounds the component cache.
	// 0 means registry.DefaultCapacity.
	CacheCapacity int

	// MaxConcurrent is the execution ceiling.
	// 0 means executor.DefaultMaxConcurrent.
	MaxConcurrent int

	// DefaultTimeout applies to executions with no explicit timeout.
	// 0 means executor.DefaultTimeout.
	DefaultTimeout time.Duration

	// MaxComponentSize is the upload size ceiling in bytes.
	// 0 means wasm.DefaultMaxSize.
	MaxComponentSize int

	// KnownModules extends the set of import modules treated as
	// host-provided during analysis.
	KnownModules []string

	Logger *zap.Logger

	// Engine overrides the execution engine configuration.
	Engine *engine.Config
}

// Host is the runtime facade: one object wiring the engine, the
// translation pipeline, the component cache and the executor.
type Host struct {
	engine     *engine.Engine
	registry   *registry.Registry
	translator *translate.Translator
	executor   *executor.Engine
	logger     *zap.Logger
}

// New assembles a runtime from cfg.
func New(ctx context.Context, cfg Config) (*Host, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	eng, err := engine.New(ctx, cfg.Engine)
	if err != nil {
		return nil, err
	}

	reg := registry.New(registry.Config{
		Capacity: cfg.CacheCapacity,
		Logger:   logger.Named("registry"),
	})

	tr := translate.New(eng, reg, translate.Config{
		MaxComponentSize: cfg.MaxComponentSize,
		KnownModules:     cfg.KnownModules,
		Logger:           logger.Named("translate"),
	})

	exec := executor.New(reg, executor.Config{
		MaxConcurrent:  cfg.MaxConcurrent,
		DefaultTimeout: cfg.DefaultTimeout,
		Logger:         logger.Named("executor"),
	})

	return &Host{
		engine:     eng,
		registry:   reg,
		translator: tr,
		executor:   exec,
		logger:     logger,
	}, nil
}

// Upload translates a component binary and returns its content id.
// Uploading the same bytes again returns the same id without repeating
// the work, regardless of the suggested name.
func (h *Host) Upload(ctx context.Context, data []byte, name string) (string, error) {
	tc, err := h.translator.Translate(ctx, data, name)
	if err != nil {
		return "", err
	}
	return tc.ID, nil
}

// Execute runs a component method. The returned Result carries every
// failure mode; Execute never panics or returns a Go error.
func (h *Host) Execute(ctx context.Context, req executor.Request) *executor.Result {
	return h.executor.Execute(ctx, req)
}

// Component returns the translated component for id, refreshing its
// cache recency.
func (h *Host) Component(id string) (*translate.TranslatedComponent, bool) {
	return h.registry.Lookup(id)
}

// List returns metadata for cached components matching the filter,
// sorted by name.
func (h *Host) List(f *registry.Filter) []analyze.ComponentMetadata {
	return h.registry.List(f)
}

// Status reports a component's cache entry.
func (h *Host) Status(id string) registry.Status {
	return h.registry.Status(id)
}

// Unload tears down a component's live instance, keeping it cached.
func (h *Host) Unload(ctx context.Context, id string) error {
	return h.registry.Unload(ctx, id)
}

// Remove evicts a component from the cache entirely.
func (h *Host) Remove(ctx context.Context, id string) error {
	return h.registry.Remove(ctx, id)
}

// Cancel aborts an in-flight execution.
func (h *Host) Cancel(execID string) error {
	return h.executor.Cancel(execID)
}

// ExecutionProgress reports the stage of an in-flight or retained
// execution.
func (h *Host) ExecutionProgress(execID string) (executor.Progress, bool) {
	return h.executor.Progress(execID)
}

// ExecutionResult returns the retained result of a finished execution.
func (h *Host) ExecutionResult(execID string) (*executor.Result, bool) {
	return h.executor.ResultOf(execID)
}

// ActiveExecutions lists executions currently in flight.
func (h *Host) ActiveExecutions() []executor.Progress {
	return h.executor.Active()
}

// CleanupExecutions drops retained execution results older than
// maxAge.
func (h *Host) CleanupExecutions(maxAge time.Duration) int {
	return h.executor.Cleanup(maxAge)
}

// Close releases every cached component and shuts the engine down.
func (h *Host) Close(ctx context.Context) error {
	if err := h.registry.Close(ctx); err != nil {
		h.logger.Warn("closing registry", zap.Error(err))
	}
	return h.engine.Close(ctx)
}
