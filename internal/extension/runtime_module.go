package extension

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// runtimeModule is the real wazeroModule: a wazero api.Module plus the two
// guest-provided exports ("allocate"/"deallocate") every world's core
// interface requires, used to marshal JSON argument/result buffers across
// the linear-memory boundary.
type runtimeModule struct {
	mod api.Module
}

// Instantiate instantiates compiled against loader's runtime, configured
// for the named extension instance.
func (l *Loader) Instantiate(ctx context.Context, compiled wazero.CompiledModule, instanceName string) (*runtimeModule, error) {
	cfg := wazero.NewModuleConfig().WithName(instanceName).WithStartFunctions("_initialize")
	mod, err := l.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, newErr(ErrWasmLoad, "instantiate "+instanceName, err)
	}
	return &runtimeModule{mod: mod}, nil
}

func (m *runtimeModule) ExportedFunctionNames() []string {
	names := make([]string, 0, len(m.mod.ExportedFunctionDefinitions()))
	for name := range m.mod.ExportedFunctionDefinitions() {
		names = append(names, name)
	}
	return names
}

// CallExport writes argJSON into guest memory via its "allocate" export,
// invokes export with the (ptr, len) pair, reads back the packed
// (resultPtr<<32|resultLen) the export returns, and frees both buffers via
// "deallocate" before returning the result bytes.
func (m *runtimeModule) CallExport(ctx context.Context, export string, argJSON []byte) ([]byte, error) {
	alloc := m.mod.ExportedFunction("allocate")
	dealloc := m.mod.ExportedFunction("deallocate")
	fn := m.mod.ExportedFunction(export)
	if alloc == nil || dealloc == nil {
		return nil, fmt.Errorf("extension module missing allocate/deallocate exports")
	}
	if fn == nil {
		return nil, fmt.Errorf("extension module has no export %q", export)
	}

	argLen := uint64(len(argJSON))
	allocated, err := alloc.Call(ctx, argLen)
	if err != nil {
		return nil, fmt.Errorf("allocate %d bytes: %w", argLen, err)
	}
	argPtr := uint32(allocated[0])
	defer dealloc.Call(ctx, uint64(argPtr), argLen)

	if len(argJSON) > 0 {
		if !m.mod.Memory().Write(argPtr, argJSON) {
			return nil, fmt.Errorf("write %d bytes at offset %d out of range", len(argJSON), argPtr)
		}
	}

	packed, err := fn.Call(ctx, uint64(argPtr), argLen)
	if err != nil {
		return nil, fmt.Errorf("call export %q: %w", export, err)
	}
	if len(packed) != 1 {
		return nil, fmt.Errorf("export %q returned %d values, expected 1 packed (ptr,len)", export, len(packed))
	}

	resultPtr, resultLen := unpackPtrLen(packed[0])
	if resultLen == 0 {
		return []byte("null"), nil
	}
	defer dealloc.Call(ctx, uint64(resultPtr), uint64(resultLen))

	result, ok := m.mod.Memory().Read(resultPtr, resultLen)
	if !ok {
		return nil, fmt.Errorf("read %d result bytes at offset %d out of range", resultLen, resultPtr)
	}
	out := make([]byte, len(result))
	copy(out, result)
	return out, nil
}

// Close tears down the instantiated module.
func (m *runtimeModule) Close(ctx context.Context) error {
	return m.mod.Close(ctx)
}
