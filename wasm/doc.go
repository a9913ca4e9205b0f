// Package wasm provides the binary introspection primitives the
// translation pipeline needs: header validation and import/export
// extraction from core WebAssembly modules.
//
// The package deliberately parses only the sections required for
// component metadata (import, export, memory, and the byte sizes of
// the rest). It is not a validator or an execution engine; structural
// soundness beyond the header is the compiler capability's problem.
//
// All functions are pure and never touch the component cache, so
// malformed input is rejected after a handful of cheap byte
// inspections.
package wasm
