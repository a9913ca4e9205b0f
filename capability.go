package componenthost

import (
	"context"

	"go.bytecodealliance.org/wit"
)

// Compiler translates a validated WebAssembly binary into an executable
// artifact. Implemented by engine.Engine; faked in tests.
type Compiler interface {
	// Compile produces an executable module from raw component bytes.
	// The returned module is safe to cache and instantiate repeatedly.
	Compile(ctx context.Context, wasm []byte) (CompiledModule, error)
}

// CompiledModule is an executable module handle produced by a Compiler.
type CompiledModule interface {
	// TypeDefs returns generated WIT-style type definitions for the
	// module's exported functions.
	TypeDefs() string

	// Methods enumerates exported functions with inferred signatures.
	// The result is advisory display metadata, never used for dispatch.
	Methods() []MethodInfo

	// Instantiate creates a live instance. name must be unique among
	// concurrently live instances of the same engine.
	Instantiate(ctx context.Context, name string) (Instance, error)

	// Close releases compilation resources. Instances created from the
	// module must be closed first.
	Close(ctx context.Context) error
}

// Instance is a live, callable realization of a compiled module.
type Instance interface {
	// HasMethod reports whether the instance exports a function name.
	HasMethod(name string) bool

	// Methods enumerates callable exports. Advisory only.
	Methods() []MethodInfo

	// Call invokes an exported function. Blocking; honors ctx
	// cancellation on a best-effort basis.
	Call(ctx context.Context, name string, args []any) (any, error)

	// MemoryBytes returns the current size of the instance's exported
	// linear memory, or 0 if the module exports none.
	MemoryBytes() uint64

	// Live reports whether the instance can still be called. Instances
	// can die asynchronously: a timed-out call context closes the
	// underlying module, so holders must re-check before reuse.
	Live() bool

	// Cleanup invokes the instance's own cleanup hook if it exports
	// one. Best-effort; callers log rather than propagate failures.
	Cleanup(ctx context.Context) error

	// Close releases the instance.
	Close(ctx context.Context) error
}

// MethodInfo describes one exported function of an instance.
//
// Parameter names are recovered from the binary's name section when
// present and are otherwise synthesized (arg0, arg1, ...). Types are
// mapped from core WASM value types, which carry no interface-level
// information; treat the whole structure as display metadata.
type MethodInfo struct {
	Name    string
	Params  []ParamInfo
	Results []wit.Type
}

// ParamInfo describes a single parameter of an exported function.
type ParamInfo struct {
	Name string
	Type wit.Type
}
