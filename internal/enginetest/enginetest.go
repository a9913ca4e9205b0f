// Package enginetest provides fake engine capabilities for tests that
// exercise the translation, caching and execution contracts without a
// real WebAssembly engine.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	componenthost "github.com/wippyai/component-host"
)

// Compiler is a fake componenthost.Compiler that records invocations.
type Compiler struct {
	// Err, when set, is returned by every Compile call.
	Err error

	// NewModule, when set, customizes the module produced per call.
	NewModule func() *Module

	calls atomic.Int64
}

var _ componenthost.Compiler = (*Compiler)(nil)

func (c *Compiler) Compile(_ context.Context, _ []byte) (componenthost.CompiledModule, error) {
	c.calls.Add(1)
	if c.Err != nil {
		return nil, c.Err
	}
	if c.NewModule != nil {
		return c.NewModule(), nil
	}
	return &Module{}, nil
}

// Calls returns how many times Compile ran.
func (c *Compiler) Calls() int {
	return int(c.calls.Load())
}

// Module is a fake compiled module.
type Module struct {
	// InstantiateErr, when set, fails every Instantiate call.
	InstantiateErr error

	// Instance customizes the produced instance. A fresh default
	// instance is created per call when nil.
	Instance *Instance

	Defs string

	closed atomic.Bool
}

var _ componenthost.CompiledModule = (*Module)(nil)

func (m *Module) TypeDefs() string {
	return m.Defs
}

func (m *Module) Methods() []componenthost.MethodInfo {
	if m.Instance != nil {
		return m.Instance.Methods()
	}
	return nil
}

func (m *Module) Instantiate(_ context.Context, name string) (componenthost.Instance, error) {
	if m.InstantiateErr != nil {
		return nil, m.InstantiateErr
	}
	if m.Instance != nil {
		return m.Instance, nil
	}
	return &Instance{Name: name}, nil
}

func (m *Module) Close(context.Context) error {
	m.closed.Store(true)
	return nil
}

// Closed reports whether the module was closed.
func (m *Module) Closed() bool {
	return m.closed.Load()
}

// Instance is a fake live instance with scriptable methods.
type Instance struct {
	Name string

	// Exports maps method names to behaviors. A nil map still exposes
	// a "ping" method returning "pong".
	Exports map[string]func(ctx context.Context, args []any) (any, error)

	// CleanupErr is returned from Cleanup when set.
	CleanupErr error

	// Memory is the value MemoryBytes reports.
	Memory uint64

	mu           sync.Mutex
	cleanupCalls int
	closeCalls   int
	killed       bool
}

var _ componenthost.Instance = (*Instance)(nil)

func (i *Instance) exports() map[string]func(ctx context.Context, args []any) (any, error) {
	if i.Exports != nil {
		return i.Exports
	}
	return map[string]func(ctx context.Context, args []any) (any, error){
		"ping": func(context.Context, []any) (any, error) { return "pong", nil },
	}
}

func (i *Instance) HasMethod(name string) bool {
	_, ok := i.exports()[name]
	return ok
}

func (i *Instance) Methods() []componenthost.MethodInfo {
	var out []componenthost.MethodInfo
	for name := range i.exports() {
		out = append(out, componenthost.MethodInfo{Name: name})
	}
	return out
}

func (i *Instance) Call(ctx context.Context, name string, args []any) (any, error) {
	fn, ok := i.exports()[name]
	if !ok {
		return nil, fmt.Errorf("method %q not found", name)
	}
	return fn(ctx, args)
}

func (i *Instance) MemoryBytes() uint64 {
	return i.Memory
}

func (i *Instance) Live() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.killed && i.closeCalls == 0
}

// Kill marks the instance dead without going through Close, the way a
// timed-out call context kills a real module.
func (i *Instance) Kill() {
	i.mu.Lock()
	i.killed = true
	i.mu.Unlock()
}

func (i *Instance) Cleanup(context.Context) error {
	i.mu.Lock()
	i.cleanupCalls++
	i.mu.Unlock()
	return i.CleanupErr
}

func (i *Instance) Close(context.Context) error {
	i.mu.Lock()
	i.closeCalls++
	i.mu.Unlock()
	return nil
}

// CleanupCalls reports how many times Cleanup ran.
func (i *Instance) CleanupCalls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cleanupCalls
}

// CloseCalls reports how many times Close ran.
func (i *Instance) CloseCalls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closeCalls
}

// Blocking returns a method behavior that blocks until ctx is done.
func Blocking() func(ctx context.Context, args []any) (any, error) {
	return func(ctx context.Context, _ []any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// Slow returns a method behavior that sleeps d then returns v.
func Slow(d time.Duration, v any) func(ctx context.Context, args []any) (any, error) {
	return func(ctx context.Context, _ []any) (any, error) {
		select {
		case <-time.After(d):
			return v, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
