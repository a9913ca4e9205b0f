package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	componenthost "github.com/wippyai/component-host"
	"github.com/wippyai/component-host/errors"
)

// Instance is a live wazero module instance.
// It implements componenthost.Instance.
type Instance struct {
	module api.Module
}

var _ componenthost.Instance = (*Instance)(nil)

// cleanupHooks are the export names probed, in order, when the host
// releases an instance. The first zero-argument match is invoked.
var cleanupHooks = []string{"cleanup", "dispose", "_cleanup"}

// HasMethod reports whether the instance exports a callable function.
func (i *Instance) HasMethod(name string) bool {
	return i.module.ExportedFunction(name) != nil
}

// Methods enumerates callable exports. Advisory display metadata.
func (i *Instance) Methods() []componenthost.MethodInfo {
	return methodsFromDefs(i.module.ExportedFunctionDefinitions())
}

// Call invokes an exported function, converting Go arguments to core
// stack values per the function's declared signature. Cancelling ctx
// aborts the guest best-effort (the engine is built with
// close-on-context-done).
func (i *Instance) Call(ctx context.Context, name string, args []any) (any, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.MethodNotFound(i.module.Name(), name)
	}

	stack, err := encodeArgs(fn.Definition(), args)
	if err != nil {
		return nil, err
	}

	raw, err := fn.Call(ctx, stack...)
	if err != nil {
		return nil, errors.Execution(err)
	}

	return decodeResults(fn.Definition(), raw), nil
}

// MemoryBytes samples the current size of the instance's linear memory.
func (i *Instance) MemoryBytes() uint64 {
	mem := i.module.Memory()
	if mem == nil {
		return 0
	}
	return uint64(mem.Size())
}

// Live reports whether the underlying module is still open. A call
// context expiring mid-invocation closes the module, so an instance
// that timed out once is dead for every later call.
func (i *Instance) Live() bool {
	return !i.module.IsClosed()
}

// Cleanup invokes the instance's own cleanup hook if it exports one
// taking no arguments. Best-effort by contract.
func (i *Instance) Cleanup(ctx context.Context) error {
	for _, hook := range cleanupHooks {
		fn := i.module.ExportedFunction(hook)
		if fn == nil {
			continue
		}
		if len(fn.Definition().ParamTypes()) != 0 {
			Logger().Debug("skipping cleanup hook with parameters",
				zap.String("instance", i.module.Name()),
				zap.String("hook", hook))
			continue
		}
		_, err := fn.Call(ctx)
		return err
	}
	return nil
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

// encodeArgs converts Go values to the core stack representation the
// function's signature declares.
func encodeArgs(def api.FunctionDefinition, args []any) ([]uint64, error) {
	types := def.ParamTypes()
	if len(args) != len(types) {
		return nil, errors.InvalidInput(errors.PhaseExecute,
			fmt.Sprintf("method %s takes %d arguments, got %d", def.Name(), len(types), len(args)))
	}

	stack := make([]uint64, len(args))
	for idx, arg := range args {
		v, err := encodeValue(types[idx], arg)
		if err != nil {
			return nil, errors.InvalidInput(errors.PhaseExecute,
				fmt.Sprintf("argument %d: %v", idx, err))
		}
		stack[idx] = v
	}
	return stack, nil
}

func encodeValue(t api.ValueType, arg any) (uint64, error) {
	switch t {
	case api.ValueTypeI32:
		switch v := arg.(type) {
		case int32:
			return api.EncodeI32(v), nil
		case uint32:
			return api.EncodeU32(v), nil
		case int:
			if v > math.MaxInt32 || v < math.MinInt32 {
				return 0, fmt.Errorf("value %d overflows i32", v)
			}
			return api.EncodeI32(int32(v)), nil
		case float64: // JSON-decoded numbers
			return api.EncodeI32(int32(v)), nil
		case bool:
			if v {
				return 1, nil
			}
			return 0, nil
		}
	case api.ValueTypeI64:
		switch v := arg.(type) {
		case int64:
			return api.EncodeI64(v), nil
		case uint64:
			return v, nil
		case int:
			return api.EncodeI64(int64(v)), nil
		case float64:
			return api.EncodeI64(int64(v)), nil
		}
	case api.ValueTypeF32:
		switch v := arg.(type) {
		case float32:
			return api.EncodeF32(v), nil
		case float64:
			return api.EncodeF32(float32(v)), nil
		case int:
			return api.EncodeF32(float32(v)), nil
		}
	case api.ValueTypeF64:
		switch v := arg.(type) {
		case float64:
			return api.EncodeF64(v), nil
		case float32:
			return api.EncodeF64(float64(v)), nil
		case int:
			return api.EncodeF64(float64(v)), nil
		}
	}
	return 0, fmt.Errorf("cannot pass %T as %s", arg, coreTypeName(t))
}

// decodeResults converts the raw result stack back to Go values:
// nil for none, a single value, or a slice for multi-value returns.
func decodeResults(def api.FunctionDefinition, raw []uint64) any {
	types := def.ResultTypes()
	if len(types) == 0 || len(raw) == 0 {
		return nil
	}
	if len(types) == 1 {
		return decodeValue(types[0], raw[0])
	}

	out := make([]any, len(types))
	for i, t := range types {
		out[i] = decodeValue(t, raw[i])
	}
	return out
}

func decodeValue(t api.ValueType, v uint64) any {
	switch t {
	case api.ValueTypeI32:
		return api.DecodeI32(v)
	case api.ValueTypeI64:
		return int64(v)
	case api.ValueTypeF32:
		return api.DecodeF32(v)
	case api.ValueTypeF64:
		return api.DecodeF64(v)
	default:
		return v
	}
}
