package extension

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// loadedExtension pairs a discovered manifest with its (possibly not yet
// instantiated) runtime instance.
type loadedExtension struct {
	manifest Manifest
	instance *Instance
	module   *runtimeModule
	initDone bool
}

// Registry tracks every discovered extension manifest and, once
// instantiated, its running module, per original_source/registry.rs's
// ExtensionRegistry.
type Registry struct {
	mu       sync.Mutex
	loader   *Loader
	byID     map[string]*loadedExtension
}

// NewRegistry builds an empty Registry bound to loader.
func NewRegistry(loader *Loader) *Registry {
	return &Registry{loader: loader, byID: make(map[string]*loadedExtension)}
}

// Register adds a discovered manifest under its ID, overwriting a prior
// entry for the same ID.
func (r *Registry) Register(m Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[m.Extension.ID] = &loadedExtension{manifest: m}
}

// Manifest returns the manifest registered under id.
func (r *Registry) Manifest(id string) (Manifest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return Manifest{}, false
	}
	return e.manifest, true
}

// ListAll returns every registered manifest, sorted by ID.
func (r *Registry) ListAll() []Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Manifest, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e.manifest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Extension.ID < out[j].Extension.ID })
	return out
}

// ByCapability returns every registered manifest declaring capability.
func (r *Registry) ByCapability(capability string) []Manifest {
	var out []Manifest
	for _, m := range r.ListAll() {
		if m.HasCapability(capability) {
			out = append(out, m)
		}
	}
	return out
}

// Instantiate loads and instantiates the extension registered under id,
// selecting its world from its declared capabilities, and calls its
// core.init export exactly once. Returns the cached instance on repeat
// calls.
func (r *Registry) Instantiate(ctx context.Context, id string) (*Instance, error) {
	r.mu.Lock()
	e, ok := r.byID[id]
	r.mu.Unlock()
	if !ok {
		return nil, newErr(ErrExtensionNotFound, id, nil)
	}
	if e.instance != nil {
		return e.instance, nil
	}

	world, err := e.manifest.SelectWorld()
	if err != nil {
		return nil, newErr(ErrCapabilityNotFound, err.Error(), err)
	}

	wasmPath := filepath.Join(e.manifest.Dir, e.manifest.Lib.Path)
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, newErr(ErrWasmLoad, "read "+wasmPath, err)
	}
	compiled, err := r.loader.Compile(ctx, wasmBytes)
	if err != nil {
		return nil, err
	}
	mod, err := r.loader.Instantiate(ctx, compiled, id)
	if err != nil {
		return nil, err
	}

	instance := newInstance(mod, world)
	if err := instance.Init(ctx); err != nil {
		_ = mod.Close(ctx)
		return nil, newErr(ErrCallFailed, "init "+id, err)
	}

	r.mu.Lock()
	e.instance = instance
	e.module = mod
	e.initDone = true
	r.mu.Unlock()
	return instance, nil
}

// Instance returns the already-instantiated instance for id, if any.
func (r *Registry) Instance(id string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok || e.instance == nil {
		return nil, false
	}
	return e.instance, true
}

// Close tears down every instantiated module.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, e := range r.byID {
		if e.module == nil {
			continue
		}
		if err := e.module.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close extension module: %w", err)
		}
	}
	return firstErr
}
