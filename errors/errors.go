package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Phase indicates where in the component lifecycle the error occurred
type Phase string

const (
	PhaseValidate  Phase = "validate"  // pre-hash structural checks
	PhaseTranslate Phase = "translate" // compilation to executable form
	PhaseRegistry  Phase = "registry"  // cache operations
	PhaseLoad      Phase = "load"      // module instantiation
	PhaseExecute   Phase = "execute"   // method invocation
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindEmptyInput       Kind = "empty_input"
	KindOversized        Kind = "oversized"
	KindInvalidMagic     Kind = "invalid_magic"
	KindCompileFailed    Kind = "compile_failed"
	KindInstantiation    Kind = "instantiation"
	KindNotFound         Kind = "not_found"
	KindMethodNotFound   Kind = "method_not_found"
	KindConcurrencyLimit Kind = "concurrency_limit"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindExecutionFailed  Kind = "execution_failed"
)

// Error is the structured error type used throughout the host
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Detail  string
	Reasons []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if len(e.Reasons) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Reasons, "; "))
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Reasons sets the validation reason list
func (b *Builder) Reasons(reasons ...string) *Builder {
	b.err.Reasons = reasons
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Validation creates a validation failure carrying the checker's reasons
func Validation(reasons []string) *Error {
	return &Error{
		Phase:   PhaseValidate,
		Kind:    KindInvalidInput,
		Detail:  "component failed validation",
		Reasons: reasons,
	}
}

// EmptyInput creates an error for a zero-length payload
func EmptyInput() *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindEmptyInput,
		Detail: "component binary is empty",
	}
}

// Oversized creates an error for a payload above the size ceiling
func Oversized(size, limit int) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindOversized,
		Detail: fmt.Sprintf("component is %d bytes, ceiling is %d", size, limit),
	}
}

// InvalidMagic creates an error for a payload without the WASM magic header
func InvalidMagic(got uint32) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidMagic,
		Detail: fmt.Sprintf("invalid WASM magic number 0x%08x", got),
	}
}

// Translation creates an error for an underlying compiler failure
func Translation(cause error) *Error {
	return &Error{
		Phase:  PhaseTranslate,
		Kind:   KindCompileFailed,
		Detail: "compile component",
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(id string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: fmt.Sprintf("instantiate component %s", id),
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(what, id string) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, id),
	}
}

// MethodNotFound creates an error for a missing exported function
func MethodNotFound(component, method string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindMethodNotFound,
		Detail: fmt.Sprintf("method %q not found on component %s", method, component),
	}
}

// ConcurrencyLimit creates an admission rejection error
func ConcurrencyLimit(limit int) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindConcurrencyLimit,
		Detail: fmt.Sprintf("maximum concurrent executions reached (%d)", limit),
	}
}

// Timeout creates an error for an invocation that outlived its deadline.
// Best-effort semantics: the call is no longer being waited for, not
// necessarily halted.
func Timeout(d time.Duration) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindTimeout,
		Detail: fmt.Sprintf("execution timed out after %s", d),
	}
}

// Cancelled creates an error for an externally cancelled execution
func Cancelled(id string) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindCancelled,
		Detail: fmt.Sprintf("execution %s cancelled", id),
	}
}

// Execution wraps a failure raised by the invoked method itself
func Execution(cause error) *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindExecutionFailed,
		Detail: "method invocation failed",
		Cause:  cause,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// From returns err unchanged when it already carries this taxonomy,
// wrapping it with the given phase, kind and detail otherwise. Use at
// layer boundaries so an error classified once is never re-wrapped.
func From(err error, phase Phase, kind Kind, detail string) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  err,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
