// Package registry implements the capability registry and dispatcher of
// SPEC_FULL §4.3: a reader/writer-lock-guarded, source-tagged, name-unique
// index of invocable operations, plus the adapter ingestion helpers and
// the schema-validating dispatch path. Grounded on the reference repository's
// internal/app/toolregistry/registry.go.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"agentcore/internal/core"
)

// ErrDuplicateName is returned by Register when name is already taken.
type ErrDuplicateName struct{ Name string }

func (e *ErrDuplicateName) Error() string { return fmt.Sprintf("duplicate capability name: %s", e.Name) }

// ErrInvalidName is returned by Register when name fails the
// [A-Za-z0-9_-]+ invariant.
type ErrInvalidName struct{ Name string }

func (e *ErrInvalidName) Error() string { return fmt.Sprintf("invalid capability name: %q", e.Name) }

// Executor runs one capability invocation. Implementations route by
// source: in-process native call, remote MCP JSON-RPC, or extension
// invocation.
type Executor interface {
	Execute(arguments map[string]any) (string, error)
}

type entry struct {
	def      core.InvokerDefinition
	executor Executor
}

// Registry is the reference reader/writer-lock-guarded capability index.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry

	cachedDefs []core.InvokerDefinition
	defsDirty  bool
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry), defsDirty: true}
}

// Register adds def with its executor. Returns *ErrInvalidName or
// *ErrDuplicateName on invariant violation.
func (r *Registry) Register(def core.InvokerDefinition, exec Executor) error {
	if !core.ValidCapabilityName(def.Name) {
		return &ErrInvalidName{Name: def.Name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[def.Name]; exists {
		return &ErrDuplicateName{Name: def.Name}
	}
	r.entries[def.Name] = entry{def: def, executor: exec}
	r.defsDirty = true
	return nil
}

// Get returns the definition and executor registered under name.
func (r *Registry) Get(name string) (core.InvokerDefinition, Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.def, e.executor, ok
}

// Find is an alias of Get returning only the definition, matching the
// spec's separate get/find operations (Get is the full lookup used by the
// dispatcher; Find is the metadata-only lookup the orchestration loop uses
// to label the tool-error metric by source).
func (r *Registry) Find(name string) (core.InvokerDefinition, bool) {
	def, _, ok := r.Get(name)
	return def, ok
}

// Remove deletes name from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
	r.defsDirty = true
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]entry)
	r.defsDirty = true
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IsEmpty reports whether the registry has no entries.
func (r *Registry) IsEmpty() bool { return r.Len() == 0 }

// List returns every definition, cached and sorted by name; the cache is
// invalidated on the next Register/Remove/Clear.
func (r *Registry) List() []core.InvokerDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.defsDirty {
		return append([]core.InvokerDefinition(nil), r.cachedDefs...)
	}
	defs := make([]core.InvokerDefinition, 0, len(r.entries))
	for _, e := range r.entries {
		defs = append(defs, e.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	r.cachedDefs = defs
	r.defsDirty = false
	return append([]core.InvokerDefinition(nil), defs...)
}

// ListBySource filters List by source.
func (r *Registry) ListBySource(source core.InvokerSource) []core.InvokerDefinition {
	var out []core.InvokerDefinition
	for _, def := range r.List() {
		if def.Source == source {
			out = append(out, def)
		}
	}
	return out
}

// ToolNames returns every registered name, sorted.
func (r *Registry) ToolNames() []string {
	defs := r.List()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// OpenAISchemas renders every (or, with source set, every matching-source)
// definition in the OpenAI tools wire format, per SPEC_FULL §4.3.
func (r *Registry) OpenAISchemas(source *core.InvokerSource) []map[string]any {
	defs := r.List()
	if source != nil {
		defs = r.ListBySource(*source)
	}
	schemas := make([]map[string]any, len(defs))
	for i, d := range defs {
		schemas[i] = d.OpenAIFunctionSchema()
	}
	return schemas
}
