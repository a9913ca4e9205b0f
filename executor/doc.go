// Package executor runs component methods under a concurrency ceiling.
//
// Admission is fail-fast: when the ceiling is reached new executions
// are rejected immediately instead of queued. Each execution walks a
// fixed stage sequence (preparing, loading, executing, processing,
// then complete or error) and finishes with a Result; failures of any
// kind, including rejection and timeout, are carried in the Result
// rather than returned as errors. Timeout means the executor stops
// waiting and frees the slot; halting the guest is best effort.
package executor
