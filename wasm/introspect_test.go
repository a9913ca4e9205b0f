package wasm

import (
	"testing"

	"github.com/wippyai/component-host/internal/testwasm"
)

func TestIntrospectAdd(t *testing.T) {
	info, err := Introspect(testwasm.Add())
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	if len(info.Imports) != 0 {
		t.Errorf("imports: got %d, want 0", len(info.Imports))
	}
	if len(info.Exports) != 1 {
		t.Fatalf("exports: got %d, want 1", len(info.Exports))
	}
	if info.Exports[0].Name != "add" || info.Exports[0].Kind != KindFunc {
		t.Errorf("export: got %+v", info.Exports[0])
	}
	if info.DeclaredFuncs != 1 {
		t.Errorf("declared funcs: got %d, want 1", info.DeclaredFuncs)
	}
}

func TestIntrospectImporter(t *testing.T) {
	info, err := Introspect(testwasm.Importer())
	if err != nil {
		t.Fatalf("introspect: %v", err)
	}

	if len(info.Imports) != 4 {
		t.Fatalf("imports: got %d, want 4", len(info.Imports))
	}

	want := []Import{
		{Module: "wasi_snapshot_preview1", Name: "proc_exit", Kind: KindFunc},
		{Module: "wasi_snapshot_preview1", Name: "fd_write", Kind: KindFunc},
		{Module: "env", Name: "log_message", Kind: KindFunc},
		{Module: "env", Name: "memory", Kind: KindMemory},
	}
	for i, w := range want {
		if info.Imports[i] != w {
			t.Errorf("import %d: got %+v, want %+v", i, info.Imports[i], w)
		}
	}

	if got := info.FuncImports(); got != 3 {
		t.Errorf("func imports: got %d, want 3", got)
	}
	if got := info.MemoryImports(); got != 1 {
		t.Errorf("memory imports: got %d, want 1", got)
	}

	modules := info.ImportModules()
	if len(modules) != 2 || modules[0] != "wasi_snapshot_preview1" || modules[1] != "env" {
		t.Errorf("import modules: got %v", modules)
	}

	if len(info.Exports) != 1 || info.Exports[0].Name != "run" {
		t.Errorf("exports: got %+v", info.Exports)
	}
}

func TestIntrospectBadMagic(t *testing.T) {
	if _, err := Introspect(testwasm.BadMagic()); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestIntrospectTruncatedSection(t *testing.T) {
	data := testwasm.Add()
	// Chop the binary mid-section.
	if _, err := Introspect(data[:len(data)-4]); err == nil {
		t.Fatal("expected error for truncated section")
	}
}

func TestIntrospectOutOfOrderSection(t *testing.T) {
	// export section (7) before type section (1)
	data := append([]byte{}, testwasm.Header...)
	data = append(data, 0x07, 0x01, 0x00) // empty export section
	data = append(data, 0x01, 0x01, 0x00) // empty type section
	if _, err := Introspect(data); err == nil {
		t.Fatal("expected error for out-of-order sections")
	}
}

func TestKindName(t *testing.T) {
	tests := []struct {
		kind byte
		want string
	}{
		{KindFunc, "function"},
		{KindTable, "table"},
		{KindMemory, "memory"},
		{KindGlobal, "global"},
		{KindTag, "tag"},
		{0xFF, "unknown"},
	}
	for _, tt := range tests {
		if got := KindName(tt.kind); got != tt.want {
			t.Errorf("KindName(%d) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
