// Package errors provides structured error types for the component host.
//
// Errors carry a Phase (where in the component lifecycle) and a Kind
// (what went wrong), so callers can match on taxonomy rather than
// message text:
//
//	if errors.Is(err, &errors.Error{Phase: errors.PhaseValidate, Kind: errors.KindInvalidMagic}) {
//	    // reject the upload
//	}
//
// Validation failures additionally carry the full list of reasons
// produced by the header checker.
package errors
