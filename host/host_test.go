package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/component-host/executor"
	"github.com/wippyai/component-host/internal/testwasm"
	"github.com/wippyai/component-host/registry"
)

func newTestHost(t *testing.T, cfg Config) *Host {
	t.Helper()
	ctx := context.Background()
	h, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(ctx) })
	return h
}

func TestUploadAndExecute(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})

	id, err := h.Upload(ctx, testwasm.Add(), "calc")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	result := h.Execute(ctx, executor.Request{
		ComponentID: id,
		Method:      "add",
		Args:        []any{int32(2), int32(40)},
	})
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, int32(42), result.Value)
	assert.Greater(t, result.Elapsed, time.Duration(0))
}

func TestUploadIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})

	first, err := h.Upload(ctx, testwasm.Add(), "calc")
	require.NoError(t, err)
	second, err := h.Upload(ctx, testwasm.Add(), "renamed")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, h.List(nil), 1)
}

func TestUploadInvalid(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})

	_, err := h.Upload(ctx, testwasm.BadMagic(), "bad")
	require.Error(t, err)
	_, err = h.Upload(ctx, nil, "empty")
	require.Error(t, err)
	assert.Empty(t, h.List(nil))
}

func TestComponentLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})

	id, err := h.Upload(ctx, testwasm.Add(), "calc")
	require.NoError(t, err)

	st := h.Status(id)
	require.True(t, st.Exists)
	assert.False(t, st.Loaded)
	assert.Equal(t, "calc", st.Name)

	result := h.Execute(ctx, executor.Request{
		ComponentID: id,
		Method:      "add",
		Args:        []any{int32(1), int32(2)},
	})
	require.True(t, result.Success, "error: %s", result.Error)
	assert.True(t, h.Status(id).Loaded, "execution should load the component")

	require.NoError(t, h.Unload(ctx, id))
	assert.False(t, h.Status(id).Loaded)

	// Execution after unload reloads transparently.
	result = h.Execute(ctx, executor.Request{
		ComponentID: id,
		Method:      "add",
		Args:        []any{int32(3), int32(4)},
	})
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, int32(7), result.Value)

	require.NoError(t, h.Remove(ctx, id))
	assert.False(t, h.Status(id).Exists)
	assert.Empty(t, h.List(nil))
}

func TestListFilter(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})

	_, err := h.Upload(ctx, testwasm.Add(), "calc-add")
	require.NoError(t, err)
	_, err = h.Upload(ctx, testwasm.Spin(), "spinner")
	require.NoError(t, err)

	all := h.List(nil)
	require.Len(t, all, 2)
	assert.Equal(t, "calc-add", all[0].Name)

	filtered := h.List(&registry.Filter{NameContains: "calc"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "calc-add", filtered[0].Name)
}

func TestComponentMetadataSurface(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})

	id, err := h.Upload(ctx, testwasm.Importer(), "importer")
	require.NoError(t, err)

	tc, ok := h.Component(id)
	require.True(t, ok)
	assert.Equal(t, "importer", tc.Metadata.Name)
	assert.Contains(t, tc.Metadata.Interfaces, "wasi_snapshot_preview1")
	assert.Contains(t, tc.Metadata.Exports, "run")
	require.NotNil(t, tc.Security)
	require.NotNil(t, tc.Metadata.Analysis)
}

func TestExecutionBookkeeping(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})

	id, err := h.Upload(ctx, testwasm.Add(), "calc")
	require.NoError(t, err)

	result := h.Execute(ctx, executor.Request{
		ComponentID: id,
		Method:      "add",
		Args:        []any{int32(1), int32(1)},
	})
	require.True(t, result.Success)

	p, ok := h.ExecutionProgress(result.ExecutionID)
	require.True(t, ok)
	assert.Equal(t, executor.StageComplete, p.Stage)

	got, ok := h.ExecutionResult(result.ExecutionID)
	require.True(t, ok)
	assert.Same(t, result, got)

	assert.Empty(t, h.ActiveExecutions())

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, h.CleanupExecutions(time.Nanosecond))
}

func TestExecuteAfterTimeoutRecovers(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})

	id, err := h.Upload(ctx, testwasm.AddSpin(), "mixed")
	require.NoError(t, err)

	// The hung call times out; the expired context closes the module
	// underneath the cache.
	hung := h.Execute(ctx, executor.Request{
		ComponentID: id,
		Method:      "spin",
		Timeout:     50 * time.Millisecond,
	})
	require.False(t, hung.Success)
	assert.Contains(t, hung.Error, "timed out")

	// The failure is visible on the cache entry.
	assert.Contains(t, h.Status(id).LastError, "timed out")

	// A later execution must get a fresh instance, not the dead one.
	after := h.Execute(ctx, executor.Request{
		ComponentID: id,
		Method:      "add",
		Args:        []any{int32(5), int32(3)},
	})
	require.True(t, after.Success, "execute after timeout: %s", after.Error)
	assert.Equal(t, int32(8), after.Value)
}

func TestWatcher(t *testing.T) {
	ctx := context.Background()
	h := newTestHost(t, Config{})
	dir := t.TempDir()

	// Pre-existing file is picked up at watch start.
	existing := filepath.Join(dir, "calc.wasm")
	require.NoError(t, os.WriteFile(existing, testwasm.Add(), 0o644))

	w, err := h.Watch(ctx, dir)
	require.NoError(t, err)
	defer w.Close()

	require.Len(t, h.List(nil), 1)
	assert.Equal(t, "calc", h.List(nil)[0].Name)

	// A new file appears.
	added := filepath.Join(dir, "spinner.wasm")
	require.NoError(t, os.WriteFile(added, testwasm.Spin(), 0o644))
	waitFor(t, func() bool { return len(h.List(nil)) == 2 })

	// Non-component files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	// Deleting a file evicts its component.
	require.NoError(t, os.Remove(added))
	waitFor(t, func() bool { return len(h.List(nil)) == 1 })
	assert.Equal(t, "calc", h.List(nil)[0].Name)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
