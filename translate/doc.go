// Package translate turns raw component binaries into cached
// executable artifacts.
//
// The pipeline runs cheap structural checks first, hashes the payload,
// and short-circuits on a cache hit so translation is idempotent and
// memoized by content. Only validated, previously unseen payloads
// reach the compiler capability.
package translate
