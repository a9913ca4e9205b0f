package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	componenthost "github.com/wippyai/component-host"
	"github.com/wippyai/component-host/errors"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// DisableWASI disables automatic provisioning of the
	// wasi_snapshot_preview1 host module for components that import it.
	DisableWASI bool
}

// Engine is the wazero-backed compiler/instantiation capability.
// It implements componenthost.Compiler.
type Engine struct {
	runtime      wazero.Runtime
	cfg          Config
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
	instanceSeq  atomic.Uint64
}

var _ componenthost.Compiler = (*Engine)(nil)

// New creates a new wazero-based engine. Guest calls honor context
// cancellation: the runtime is built with close-on-context-done so a
// timed-out invocation aborts best-effort instead of running away.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)

	e := &Engine{}
	if cfg != nil {
		e.cfg = *cfg
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return e, nil
}

// Close releases all engine resources.
// All instances must be closed before calling this.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Compile translates raw component bytes into an executable module.
// The caller owns the returned module and must Close it.
func (e *Engine) Compile(ctx context.Context, wasm []byte) (componenthost.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Translation(err)
	}

	return &Module{
		engine:   e,
		compiled: compiled,
	}, nil
}

// ensureWASI instantiates the wasi_snapshot_preview1 host module once
// per runtime so modules importing it can link.
func (e *Engine) ensureWASI(ctx context.Context) error {
	if e.cfg.DisableWASI || e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()
	if e.wasiInitDone.Load() {
		return nil
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInstantiation, err, "provision WASI host module")
	}
	e.wasiInitDone.Store(true)
	Logger().Debug("provisioned wasi_snapshot_preview1")
	return nil
}

// nextInstanceName returns a unique wazero module name. wazero requires
// distinct names for concurrently live instances.
func (e *Engine) nextInstanceName(base string) string {
	if base == "" {
		base = "component"
	}
	return fmt.Sprintf("%s-%d", base, e.instanceSeq.Add(1))
}

// SetLogger replaces the package logger. Pass nil to restore no-op.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

var (
	logger   = zap.NewNop()
	loggerMu sync.RWMutex
)

// Logger returns the engine's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}
