package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "phase and kind",
			err:  &Error{Phase: PhaseValidate, Kind: KindInvalidMagic},
			want: []string{"[validate]", "invalid_magic"},
		},
		{
			name: "with detail",
			err:  Oversized(100, 50),
			want: []string{"[validate]", "oversized", "100 bytes", "ceiling is 50"},
		},
		{
			name: "with reasons",
			err:  Validation([]string{"Invalid WASM magic number", "truncated header"}),
			want: []string{"invalid_input", "Invalid WASM magic number; truncated header"},
		},
		{
			name: "with cause",
			err:  Translation(fmt.Errorf("unsupported opcode")),
			want: []string{"[translate]", "compile_failed", "caused by: unsupported opcode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.want {
				if !strings.Contains(msg, want) {
					t.Errorf("error %q missing %q", msg, want)
				}
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := MethodNotFound("abc123", "run")

	if !stderrors.Is(err, &Error{Phase: PhaseExecute, Kind: KindMethodNotFound}) {
		t.Error("expected Is match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseExecute, Kind: KindTimeout}) {
		t.Error("unexpected Is match on different kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Execution(cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap to expose cause")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseLoad, KindInstantiation).
		Detail("instantiate %s", "abc").
		Cause(fmt.Errorf("oom")).
		Build()

	if err.Phase != PhaseLoad || err.Kind != KindInstantiation {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Detail != "instantiate abc" {
		t.Errorf("unexpected detail: %q", err.Detail)
	}
	if err.Cause == nil {
		t.Error("missing cause")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	if got := ConcurrencyLimit(5); got.Kind != KindConcurrencyLimit {
		t.Errorf("ConcurrencyLimit kind = %s", got.Kind)
	}
	if got := Timeout(50 * time.Millisecond); !strings.Contains(got.Error(), "50ms") {
		t.Errorf("Timeout message = %q", got.Error())
	}
	if got := EmptyInput(); got.Kind != KindEmptyInput {
		t.Errorf("EmptyInput kind = %s", got.Kind)
	}
	if got := NotFound("component", "deadbeef"); !strings.Contains(got.Error(), `"deadbeef"`) {
		t.Errorf("NotFound message = %q", got.Error())
	}
}

func TestFrom(t *testing.T) {
	classified := Execution(fmt.Errorf("trap"))
	if got := From(classified, PhaseExecute, KindExecutionFailed, "invoke"); got != classified {
		t.Error("From re-wrapped an already classified error")
	}

	wrapped := fmt.Errorf("outer: %w", classified)
	if got := From(wrapped, PhaseExecute, KindExecutionFailed, "invoke"); got != classified {
		t.Error("From did not unwrap to the classified error")
	}

	raw := fmt.Errorf("plain failure")
	got := From(raw, PhaseTranslate, KindCompileFailed, "compile component")
	if got.Phase != PhaseTranslate || got.Kind != KindCompileFailed {
		t.Errorf("unexpected phase/kind: %s/%s", got.Phase, got.Kind)
	}
	if got.Cause != raw {
		t.Error("cause not retained")
	}
	if strings.Count(got.Error(), "[translate]") != 1 {
		t.Errorf("message = %q", got.Error())
	}
}
