// Package engine provides the wazero-backed compile/instantiate/call
// capability consumed by the rest of the host.
//
// The engine implements the root capability interfaces
// (componenthost.Compiler, CompiledModule, Instance) so the
// translation pipeline, cache and executor stay engine-agnostic: tests
// substitute fakes and the engine can be replaced without touching the
// caching or execution contracts.
//
// Guest calls honor context cancellation on a best-effort basis: the
// runtime is created with close-on-context-done, so a cancelled call
// context aborts in-flight guest code where wazero can. Callers must
// still treat "timed out" as "no longer being waited for", not
// "definitely halted".
package engine
