package extension

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Loader owns the shared wazero runtime every extension instance is
// compiled and instantiated against, mirroring original_source's single
// Arc<Engine> shared across ExtensionInstances.
type Loader struct {
	runtime wazero.Runtime
}

// NewLoader builds a Loader with WASI preview1 wired into its runtime,
// grounded on original_source/loader.rs's add_to_linker_sync/_async calls.
func NewLoader(ctx context.Context) (*Loader, error) {
	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return nil, fmt.Errorf("wire WASI into extension runtime: %w", err)
	}
	return &Loader{runtime: rt}, nil
}

// Close releases every compiled module and the underlying runtime.
func (l *Loader) Close(ctx context.Context) error {
	return l.runtime.Close(ctx)
}

// Compile precompiles a .wasm binary, checking the abk:api-version custom
// section (if present) against HostAPIVersion before returning, per
// original_source/loader.rs's parse_api_version + check_version_compatibility.
func (l *Loader) Compile(ctx context.Context, wasmBytes []byte) (wazero.CompiledModule, error) {
	compiled, err := l.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, newErr(ErrWasmLoad, "compile module", err)
	}
	if v := apiVersionSection(compiled); v != "" && !CompatibleVersion(v, HostAPIVersion) {
		return nil, newErr(ErrIncompatibleVersion, fmt.Sprintf("extension targets api_version %s, host is %s", v, HostAPIVersion), nil)
	}
	return compiled, nil
}

func apiVersionSection(compiled wazero.CompiledModule) string {
	for _, sec := range compiled.CustomSections() {
		if sec.Name() == "abk:api-version" {
			return string(sec.Data())
		}
	}
	return ""
}

// Instance is one instantiated extension module, bound to the guest's
// ptr/len call ABI: exported functions take a JSON-encoded argument buffer
// and return a packed (ptr<<32|len) reference to a JSON-encoded result the
// guest itself allocated, the same convention original_source's bindgen
// produces for WIT record/variant marshaling.
type Instance struct {
	mod   wazeroModule
	world World
}

// wazeroModule narrows api.Module to what Instance needs, so tests can
// substitute a fake without standing up a real wazero runtime.
type wazeroModule interface {
	ExportedFunctionNames() []string
	CallExport(ctx context.Context, name string, argJSON []byte) ([]byte, error)
}

func newInstance(mod wazeroModule, world World) *Instance {
	return &Instance{mod: mod, world: world}
}

// World reports which of the three bindgen worlds this instance was bound
// to at instantiation.
func (i *Instance) World() World { return i.world }

func (i *Instance) callJSON(ctx context.Context, export string, arg any, out any) error {
	argJSON, err := json.Marshal(arg)
	if err != nil {
		return newErr(ErrCallFailed, export+": marshal arguments", err)
	}
	resultJSON, err := i.mod.CallExport(ctx, export, argJSON)
	if err != nil {
		return newErr(ErrCallFailed, export+" failed", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resultJSON, out); err != nil {
		return newErr(ErrCallFailed, export+": unmarshal result", err)
	}
	return nil
}

// GetMetadata calls the core.get_metadata export.
func (i *Instance) GetMetadata(ctx context.Context) (ExtensionMetadata, error) {
	var meta ExtensionMetadata
	err := i.callJSON(ctx, "get_metadata", nil, &meta)
	return meta, err
}

// ListCapabilities calls the core.list_capabilities export.
func (i *Instance) ListCapabilities(ctx context.Context) ([]string, error) {
	var caps []string
	err := i.callJSON(ctx, "list_capabilities", nil, &caps)
	return caps, err
}

// Init calls the core.init export exactly once per instance lifetime; the
// caller (Registry) is responsible for the once-only guarantee.
func (i *Instance) Init(ctx context.Context) error {
	return i.callJSON(ctx, "init", nil, nil)
}

// ClassifyTask calls the lifecycle.classify_task export.
func (i *Instance) ClassifyTask(ctx context.Context, taskDescription string) (ClassifyResult, error) {
	var result ClassifyResult
	err := i.callJSON(ctx, "classify_task", map[string]string{"task_description": taskDescription}, &result)
	return result, err
}

// LoadTemplate calls the lifecycle.load_template export.
func (i *Instance) LoadTemplate(ctx context.Context, templateName string) (string, error) {
	var out string
	err := i.callJSON(ctx, "load_template", map[string]string{"template_name": templateName}, &out)
	return out, err
}

// RenderTemplate calls the lifecycle.render_template export.
func (i *Instance) RenderTemplate(ctx context.Context, content string, variables []TemplateVariable) (string, error) {
	var out string
	args := map[string]any{"content": content, "variables": variables}
	err := i.callJSON(ctx, "render_template", args, &out)
	return out, err
}

// FormatRequest calls the provider.format_request export.
func (i *Instance) FormatRequest(ctx context.Context, messages []ProviderMessage, cfg ProviderConfigArgs, tools []ProviderTool) (string, error) {
	var out string
	args := map[string]any{"messages": messages, "config": cfg, "tools": tools}
	err := i.callJSON(ctx, "format_request", args, &out)
	return out, err
}

// ParseResponse calls the provider.parse_response export.
func (i *Instance) ParseResponse(ctx context.Context, body, model string) (AssistantMessage, error) {
	var out AssistantMessage
	args := map[string]string{"body": body, "model": model}
	err := i.callJSON(ctx, "parse_response", args, &out)
	return out, err
}

// HandleStreamChunk calls the provider.handle_stream_chunk export.
func (i *Instance) HandleStreamChunk(ctx context.Context, chunk string) (*ContentDelta, error) {
	var out ContentDelta
	if err := i.callJSON(ctx, "handle_stream_chunk", map[string]string{"chunk": chunk}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SupportsStreaming calls the provider.supports_streaming export.
func (i *Instance) SupportsStreaming(ctx context.Context, model string) (bool, error) {
	var out bool
	err := i.callJSON(ctx, "supports_streaming", map[string]string{"model": model}, &out)
	return out, err
}

// GetAPIURL calls the provider.get_api_url export.
func (i *Instance) GetAPIURL(ctx context.Context, baseURL, model string) (string, error) {
	var out string
	args := map[string]string{"base_url": baseURL, "model": model}
	err := i.callJSON(ctx, "get_api_url", args, &out)
	return out, err
}

func packPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

func unpackPtrLen(packed uint64) (uint32, uint32) {
	return uint32(packed >> 32), uint32(packed)
}
