package executor

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/component-host/analyze"
	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/internal/enginetest"
	"github.com/wippyai/component-host/registry"
	"github.com/wippyai/component-host/translate"
)

func newTestSetup(t *testing.T, cfg Config) (*Engine, *registry.Registry) {
	t.Helper()
	reg := registry.New(registry.Config{})
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return New(reg, cfg), reg
}

func register(reg *registry.Registry, id string, inst *enginetest.Instance) {
	reg.Register(&translate.TranslatedComponent{
		ID:       id,
		Module:   &enginetest.Module{Instance: inst},
		Metadata: analyze.ComponentMetadata{Name: id},
	})
}

// gated returns an instance whose "block" method parks until release
// is called, plus the release function.
func gated() (*enginetest.Instance, func()) {
	gate := make(chan struct{})
	var once sync.Once
	inst := &enginetest.Instance{
		Exports: map[string]func(ctx context.Context, args []any) (any, error){
			"block": func(ctx context.Context, _ []any) (any, error) {
				select {
				case <-gate:
					return "released", nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
	}
	return inst, func() { once.Do(func() { close(gate) }) }
}

func TestExecuteSuccess(t *testing.T) {
	e, reg := newTestSetup(t, Config{})
	register(reg, "comp", &enginetest.Instance{Memory: 65536})

	var stages []Stage
	result := e.Execute(context.Background(), Request{
		ComponentID: "comp",
		Method:      "ping",
		OnProgress:  func(p Progress) { stages = append(stages, p.Stage) },
	})

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "pong", result.Value)
	assert.Equal(t, uint64(65536), result.MemoryBytes)
	assert.Empty(t, result.Error)
	assert.NotEmpty(t, result.ExecutionID)
	assert.Equal(t, []Stage{
		StagePreparing, StageLoading, StageExecuting, StageProcessing, StageComplete,
	}, stages)
}

func TestExecuteUnknownComponent(t *testing.T) {
	e, _ := newTestSetup(t, Config{})

	result := e.Execute(context.Background(), Request{
		ComponentID: "missing",
		Method:      "ping",
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestExecuteMethodNotFound(t *testing.T) {
	e, reg := newTestSetup(t, Config{})
	register(reg, "comp", &enginetest.Instance{})

	result := e.Execute(context.Background(), Request{
		ComponentID: "comp",
		Method:      "nope",
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "nope")

	st := reg.Status("comp")
	assert.Contains(t, st.LastError, "nope", "failure should be mirrored to the cache entry")
}

func TestExecuteEmptyRequest(t *testing.T) {
	e, _ := newTestSetup(t, Config{})

	result := e.Execute(context.Background(), Request{})
	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestExecuteGuestFailure(t *testing.T) {
	e, reg := newTestSetup(t, Config{})
	inst := &enginetest.Instance{
		Exports: map[string]func(ctx context.Context, args []any) (any, error){
			"boom": func(context.Context, []any) (any, error) {
				return nil, stderrors.New("guest trapped")
			},
		},
	}
	register(reg, "comp", inst)

	var stages []Stage
	result := e.Execute(context.Background(), Request{
		ComponentID: "comp",
		Method:      "boom",
		OnProgress:  func(p Progress) { stages = append(stages, p.Stage) },
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "guest trapped")
	assert.Equal(t, StageError, stages[len(stages)-1])
	assert.NotContains(t, stages, StageProcessing)

	st := reg.Status("comp")
	assert.Contains(t, st.LastError, "guest trapped")
}

func TestExecuteErrorWrappedOnce(t *testing.T) {
	e, reg := newTestSetup(t, Config{})
	inst := &enginetest.Instance{
		Exports: map[string]func(ctx context.Context, args []any) (any, error){
			"boom": func(context.Context, []any) (any, error) {
				// Lower layers hand up already-classified errors.
				return nil, errors.Execution(stderrors.New("trap"))
			},
		},
	}
	register(reg, "comp", inst)

	result := e.Execute(context.Background(), Request{
		ComponentID: "comp",
		Method:      "boom",
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "trap")
	assert.Equal(t, 1, strings.Count(result.Error, "[execute]"),
		"classified errors must not be wrapped twice")
}

func TestExecuteTimeout(t *testing.T) {
	e, reg := newTestSetup(t, Config{MaxConcurrent: 1})
	register(reg, "comp", &enginetest.Instance{
		Exports: map[string]func(ctx context.Context, args []any) (any, error){
			"block": enginetest.Blocking(),
			"ping":  func(context.Context, []any) (any, error) { return "pong", nil },
		},
	})

	start := time.Now()
	result := e.Execute(context.Background(), Request{
		ComponentID: "comp",
		Method:      "block",
		Timeout:     50 * time.Millisecond,
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, reg.Status("comp").LastError, "timed out",
		"timeout must be retained on the cache entry")

	// The slot freed on timeout admits the next execution immediately.
	next := e.Execute(context.Background(), Request{
		ComponentID: "comp",
		Method:      "ping",
	})
	assert.True(t, next.Success, "error: %s", next.Error)
}

func TestExecuteConcurrencyCeiling(t *testing.T) {
	e, reg := newTestSetup(t, Config{MaxConcurrent: 2})

	instA, releaseA := gated()
	instB, releaseB := gated()
	register(reg, "a", instA)
	register(reg, "b", instB)
	register(reg, "c", &enginetest.Instance{})

	started := make(chan struct{}, 2)
	onProgress := func(p Progress) {
		if p.Stage == StageExecuting {
			started <- struct{}{}
		}
	}

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = e.Execute(context.Background(), Request{
				ComponentID: id,
				Method:      "block",
				OnProgress:  onProgress,
			})
		}(i, id)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("executions did not reach the executing stage")
		}
	}

	// Both slots held; the third request is rejected without queueing.
	rejected := e.Execute(context.Background(), Request{
		ComponentID: "c",
		Method:      "ping",
	})
	require.False(t, rejected.Success)
	assert.Contains(t, rejected.Error, "maximum concurrent executions")

	releaseA()
	releaseB()
	wg.Wait()

	for i, r := range results {
		assert.True(t, r.Success, "execution %d: %s", i, r.Error)
	}

	// Slots released; admission works again.
	after := e.Execute(context.Background(), Request{
		ComponentID: "c",
		Method:      "ping",
	})
	assert.True(t, after.Success, "error: %s", after.Error)
}

func TestCancel(t *testing.T) {
	e, reg := newTestSetup(t, Config{})
	inst, release := gated()
	defer release()
	register(reg, "comp", inst)

	executing := make(chan string, 1)
	done := make(chan *Result, 1)
	go func() {
		done <- e.Execute(context.Background(), Request{
			ComponentID: "comp",
			Method:      "block",
			OnProgress: func(p Progress) {
				if p.Stage == StageExecuting {
					executing <- p.ExecutionID
				}
			},
		})
	}()

	var execID string
	select {
	case execID = <-executing:
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not start")
	}

	require.NoError(t, e.Cancel(execID))

	select {
	case result := <-done:
		require.False(t, result.Success)
		assert.Contains(t, result.Error, "cancelled")
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled execution did not finish")
	}
	assert.Contains(t, reg.Status("comp").LastError, "cancelled",
		"cancellation must be retained on the cache entry")

	err := e.Cancel(execID)
	require.Error(t, err, "cancelling a finished execution")
	err = e.Cancel("exec-999")
	require.Error(t, err)
}

func TestUnloadReloadTransparent(t *testing.T) {
	ctx := context.Background()
	e, reg := newTestSetup(t, Config{})
	register(reg, "comp", &enginetest.Instance{})

	first := e.Execute(ctx, Request{ComponentID: "comp", Method: "ping"})
	require.True(t, first.Success, "error: %s", first.Error)

	require.NoError(t, reg.Unload(ctx, "comp"))

	second := e.Execute(ctx, Request{ComponentID: "comp", Method: "ping"})
	assert.True(t, second.Success, "execute after unload: %s", second.Error)
}

func TestProgressAndResultLifecycle(t *testing.T) {
	e, reg := newTestSetup(t, Config{})
	register(reg, "comp", &enginetest.Instance{})

	result := e.Execute(context.Background(), Request{
		ComponentID: "comp",
		Method:      "ping",
	})
	require.True(t, result.Success)

	p, ok := e.Progress(result.ExecutionID)
	require.True(t, ok)
	assert.Equal(t, StageComplete, p.Stage)

	got, ok := e.ResultOf(result.ExecutionID)
	require.True(t, ok)
	assert.Same(t, result, got)

	_, ok = e.Progress("exec-999")
	assert.False(t, ok)
	_, ok = e.ResultOf("exec-999")
	assert.False(t, ok)

	assert.Empty(t, e.Active())
}

func TestExecutionIDsUnique(t *testing.T) {
	e, reg := newTestSetup(t, Config{})
	register(reg, "comp", &enginetest.Instance{})

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		r := e.Execute(context.Background(), Request{ComponentID: "comp", Method: "ping"})
		require.True(t, r.Success)
		assert.False(t, seen[r.ExecutionID], "duplicate id %s", r.ExecutionID)
		seen[r.ExecutionID] = true
	}
}

func TestCleanup(t *testing.T) {
	e, reg := newTestSetup(t, Config{})
	register(reg, "comp", &enginetest.Instance{})

	for i := 0; i < 3; i++ {
		r := e.Execute(context.Background(), Request{ComponentID: "comp", Method: "ping"})
		require.True(t, r.Success)
	}

	assert.Equal(t, 0, e.Cleanup(time.Hour), "fresh results must survive")

	time.Sleep(10 * time.Millisecond)
	removed := e.Cleanup(time.Nanosecond)
	assert.Equal(t, 3, removed)

	_, ok := e.ResultOf("exec-1")
	assert.False(t, ok)
}
