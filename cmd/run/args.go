package main

import (
	"fmt"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	componenthost "github.com/wippyai/component-host"
)

// defaultMethod picks an entry point when none was given: a common
// name if exported, otherwise the sole export.
func defaultMethod(methods []componenthost.MethodInfo) string {
	for _, candidate := range []string{"_start", "run", "main"} {
		for _, m := range methods {
			if m.Name == candidate {
				return candidate
			}
		}
	}
	if len(methods) == 1 {
		return methods[0].Name
	}
	return ""
}

// parseArgs converts a comma-separated argument string against the
// method's declared parameter types.
func parseArgs(methods []componenthost.MethodInfo, funcName, argsStr string) ([]any, error) {
	var method *componenthost.MethodInfo
	for i := range methods {
		if methods[i].Name == funcName {
			method = &methods[i]
			break
		}
	}
	if method == nil {
		return nil, fmt.Errorf("method %q not exported", funcName)
	}

	var raw []string
	if argsStr != "" {
		raw = strings.Split(argsStr, ",")
	}
	if len(raw) != len(method.Params) {
		return nil, fmt.Errorf("%s takes %d argument(s), got %d",
			funcName, len(method.Params), len(raw))
	}

	args := make([]any, len(raw))
	for i, v := range raw {
		args[i] = convertArg(strings.TrimSpace(v), method.Params[i].Type)
	}
	return args, nil
}

func convertArg(value string, t wit.Type) any {
	switch t.(type) {
	case wit.String:
		return value
	case wit.U8, wit.U16, wit.U32:
		v, _ := strconv.ParseUint(value, 10, 32)
		return uint32(v)
	case wit.S8, wit.S16, wit.S32:
		v, _ := strconv.ParseInt(value, 10, 32)
		return int32(v)
	case wit.U64:
		v, _ := strconv.ParseUint(value, 10, 64)
		return v
	case wit.S64:
		v, _ := strconv.ParseInt(value, 10, 64)
		return v
	case wit.F32:
		v, _ := strconv.ParseFloat(value, 32)
		return float32(v)
	case wit.F64:
		v, _ := strconv.ParseFloat(value, 64)
		return v
	case wit.Bool:
		return value == "true" || value == "1"
	default:
		return value
	}
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}
