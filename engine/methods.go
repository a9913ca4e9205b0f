package engine

import (
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	componenthost "github.com/wippyai/component-host"
)

// Method discovery maps core value types onto WIT types for display.
// Core types carry no signedness or interface information, so the
// mapping is a guess; descriptors are advisory and never drive dispatch.

func witType(t api.ValueType) wit.Type {
	switch t {
	case api.ValueTypeI32:
		return wit.S32{}
	case api.ValueTypeI64:
		return wit.S64{}
	case api.ValueTypeF32:
		return wit.F32{}
	case api.ValueTypeF64:
		return wit.F64{}
	default:
		return wit.U64{}
	}
}

// paramInfos builds parameter descriptors from a function definition,
// using declared names from the binary's name section when present and
// synthesizing argN otherwise.
func paramInfos(def api.FunctionDefinition) []componenthost.ParamInfo {
	types := def.ParamTypes()
	names := def.ParamNames()

	params := make([]componenthost.ParamInfo, len(types))
	for i, t := range types {
		name := fmt.Sprintf("arg%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		params[i] = componenthost.ParamInfo{
			Name: name,
			Type: witType(t),
		}
	}
	return params
}

func methodsFromDefs(defs map[string]api.FunctionDefinition) []componenthost.MethodInfo {
	methods := make([]componenthost.MethodInfo, 0, len(defs))
	for name, def := range defs {
		results := make([]wit.Type, len(def.ResultTypes()))
		for i, r := range def.ResultTypes() {
			results[i] = witType(r)
		}
		methods = append(methods, componenthost.MethodInfo{
			Name:    name,
			Params:  paramInfos(def),
			Results: results,
		})
	}

	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Name < methods[j].Name
	})
	return methods
}
