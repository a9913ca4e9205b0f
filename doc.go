// Package componenthost orchestrates externally supplied WebAssembly
// components: translation and structural analysis, a content-addressed
// component cache with LRU eviction, and bounded-concurrency execution.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	component-host/      Root package with the engine capability interfaces
//	├── host/            High-level facade: upload, execute, list, evict
//	├── executor/        Admission control, staged progress, timeouts
//	├── registry/        Bounded content/name-addressable component cache
//	├── translate/       Validation, content hashing, memoized translation
//	├── analyze/         Structural analysis and complexity scoring
//	├── scan/            Heuristic security scan of component binaries
//	├── engine/          wazero-backed compile/instantiate/call capability
//	├── wasm/            Core WASM binary introspection primitives
//	└── errors/          Structured error taxonomy
//
// # Quick Start
//
// Upload and invoke a component:
//
//	h, err := host.New(ctx, host.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close(ctx)
//
//	id, err := h.Upload(ctx, wasmBytes, "adder")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res := h.Execute(ctx, executor.Request{
//	    ComponentID: id,
//	    Method:      "add",
//	    Args:        []any{int32(2), int32(3)},
//	})
//	if !res.Success {
//	    log.Fatal(res.Error)
//	}
//
// The underlying engine is an injected capability (see Compiler,
// CompiledModule and Instance in this package), so translation and
// execution can be tested against fakes and the wazero engine can be
// swapped without touching the cache or execution contracts.
package componenthost
