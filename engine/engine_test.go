package engine

import (
	"context"
	"testing"
	"time"

	"github.com/wippyai/component-host/internal/testwasm"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()
	e, err := New(ctx, nil)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func TestCompileAndCall(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mod, err := e.Compile(ctx, testwasm.Add())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx, "add-test")
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	result, err := inst.Call(ctx, "add", []any{int32(5), int32(3)})
	if err != nil {
		t.Fatalf("call add: %v", err)
	}
	if result != int32(8) {
		t.Errorf("add(5, 3) = %v, want 8", result)
	}
}

func TestCompileInvalid(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	if _, err := e.Compile(ctx, testwasm.BadMagic()); err == nil {
		t.Fatal("expected compile failure for bad magic")
	}
}

func TestCallUnknownMethod(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mod, err := e.Compile(ctx, testwasm.Add())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx, "t")
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if inst.HasMethod("missing") {
		t.Error("HasMethod(missing) = true")
	}
	if _, err := inst.Call(ctx, "missing", nil); err == nil {
		t.Error("expected error calling missing method")
	}
}

func TestCallArgumentMismatch(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mod, err := e.Compile(ctx, testwasm.Add())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx, "t")
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if _, err := inst.Call(ctx, "add", []any{int32(1)}); err == nil {
		t.Error("expected error for wrong arity")
	}
	if _, err := inst.Call(ctx, "add", []any{"x", "y"}); err == nil {
		t.Error("expected error for wrong argument type")
	}
}

func TestCallContextCancellation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mod, err := e.Compile(ctx, testwasm.Spin())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx, "spin-test")
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = inst.Call(callCtx, "spin", nil)
	if err == nil {
		t.Fatal("expected error from cancelled infinite loop")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %s", elapsed)
	}

	// Cancellation closes the module under the instance.
	if inst.Live() {
		t.Error("instance still live after cancelled call")
	}

	// The compiled module survives; fresh instances still work.
	again, err := mod.Instantiate(ctx, "spin-test-2")
	if err != nil {
		t.Fatalf("instantiate after cancellation: %v", err)
	}
	defer again.Close(ctx)
	if !again.Live() {
		t.Error("fresh instance not live")
	}
}

func TestMethodDiscovery(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mod, err := e.Compile(ctx, testwasm.Add())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer mod.Close(ctx)

	methods := mod.Methods()
	if len(methods) != 1 {
		t.Fatalf("methods: got %d, want 1", len(methods))
	}

	m := methods[0]
	if m.Name != "add" {
		t.Errorf("name: got %q", m.Name)
	}
	if len(m.Params) != 2 || len(m.Results) != 1 {
		t.Errorf("signature: %d params, %d results", len(m.Params), len(m.Results))
	}
	// No name section in the fixture, so names are synthesized.
	if m.Params[0].Name != "arg0" || m.Params[1].Name != "arg1" {
		t.Errorf("param names: %v", m.Params)
	}
}

func TestTypeDefs(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mod, err := e.Compile(ctx, testwasm.Add())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer mod.Close(ctx)

	defs := mod.TypeDefs()
	want := "add: func(arg0: s32, arg1: s32) -> s32;\n"
	if defs != want {
		t.Errorf("typedefs:\ngot  %q\nwant %q", defs, want)
	}
}

func TestCleanupHookAbsent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mod, err := e.Compile(ctx, testwasm.Add())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx, "t")
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if err := inst.Cleanup(ctx); err != nil {
		t.Errorf("cleanup without hook: %v", err)
	}
}

func TestMemoryBytesNoMemory(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mod, err := e.Compile(ctx, testwasm.Add())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx, "t")
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if got := inst.MemoryBytes(); got != 0 {
		t.Errorf("memory bytes: got %d, want 0", got)
	}
}
