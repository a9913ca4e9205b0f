package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	componenthost "github.com/wippyai/component-host"
	"github.com/wippyai/component-host/errors"
)

// Module is a compiled, instantiable wazero module.
// It implements componenthost.CompiledModule.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

var _ componenthost.CompiledModule = (*Module)(nil)

// TypeDefs renders WIT-style type definitions for the module's
// exported functions, in name order.
func (m *Module) TypeDefs() string {
	exports := m.compiled.ExportedFunctions()

	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		def := exports[name]
		b.WriteString(name)
		b.WriteString(": func(")
		for i, p := range paramInfos(def) {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString(": ")
			b.WriteString(coreTypeName(def.ParamTypes()[i]))
		}
		b.WriteByte(')')
		if results := def.ResultTypes(); len(results) > 0 {
			b.WriteString(" -> ")
			if len(results) == 1 {
				b.WriteString(coreTypeName(results[0]))
			} else {
				b.WriteByte('(')
				for i, r := range results {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(coreTypeName(r))
				}
				b.WriteByte(')')
			}
		}
		b.WriteString(";\n")
	}
	return b.String()
}

// Methods enumerates exported functions. Advisory display metadata.
func (m *Module) Methods() []componenthost.MethodInfo {
	return methodsFromDefs(m.compiled.ExportedFunctions())
}

// Instantiate creates a live instance of the module. WASI host
// functions are provisioned on demand when the module imports them.
// Start functions are not run automatically; execution happens only
// through named method invocation.
func (m *Module) Instantiate(ctx context.Context, name string) (componenthost.Instance, error) {
	if m.importsWASI() {
		if err := m.engine.ensureWASI(ctx); err != nil {
			return nil, err
		}
	}

	modCfg := wazero.NewModuleConfig().
		WithName(m.engine.nextInstanceName(name)).
		WithStartFunctions()

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if err != nil {
		return nil, errors.Instantiation(name, err)
	}

	return &Instance{module: mod}, nil
}

// Close releases compilation resources.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

func (m *Module) importsWASI() bool {
	for _, def := range m.compiled.ImportedFunctions() {
		module, _, _ := def.Import()
		if strings.HasPrefix(module, "wasi_snapshot_preview1") || strings.HasPrefix(module, "wasi_unstable") {
			return true
		}
	}
	return false
}

func coreTypeName(t api.ValueType) string {
	switch t {
	case api.ValueTypeI32:
		return "s32"
	case api.ValueTypeI64:
		return "s64"
	case api.ValueTypeF32:
		return "f32"
	case api.ValueTypeF64:
		return "f64"
	default:
		return "u64"
	}
}
