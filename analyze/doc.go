// Package analyze derives structural reports from introspected
// component binaries: dependency groups checked against a registry of
// host-provided modules, advisory optimization suggestions, a
// compatibility verdict and a capped 0-100 complexity score.
//
// Everything here is an advisory signal. The analyzer never fails on
// input the introspector accepted, and nothing in this package is
// consulted by the cache or the execution engine.
package analyze
