// Package host is the runtime facade over the component pipeline.
//
// A Host owns one engine, one component cache, one translator and one
// executor, wired at construction from a single Config. Uploading the
// same bytes twice yields the same component id; executing never
// returns a Go error. An optional directory watcher keeps the cache in
// sync with .wasm files on disk.
package host
