package registry

import (
	"fmt"

	"agentcore/internal/core"
)

// DiscoveredCapability pairs a definition with the Executor able to run it,
// as produced by an Adapter.
type DiscoveredCapability struct {
	Definition core.InvokerDefinition
	Executor   Executor
}

// Adapter is the trait every capability source (native tool library, MCP
// server, extension host) implements to feed the registry.
type Adapter interface {
	Source() core.InvokerSource
	Discover() ([]DiscoveredCapability, error)
}

// RegisterAll registers every capability Adapter discovers, failing fast
// on the first error (including a duplicate name).
func RegisterAll(r *Registry, adapter Adapter) error {
	discovered, err := adapter.Discover()
	if err != nil {
		return fmt.Errorf("discover from %s adapter: %w", adapter.Source(), err)
	}
	for _, d := range discovered {
		if err := r.Register(d.Definition, d.Executor); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAllSkipDuplicates registers every capability Adapter discovers,
// skipping (not failing on) duplicate names, and returns the count
// actually registered.
func RegisterAllSkipDuplicates(r *Registry, adapter Adapter) (int, error) {
	discovered, err := adapter.Discover()
	if err != nil {
		return 0, fmt.Errorf("discover from %s adapter: %w", adapter.Source(), err)
	}
	count := 0
	for _, d := range discovered {
		if err := r.Register(d.Definition, d.Executor); err != nil {
			if _, dup := err.(*ErrDuplicateName); dup {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// StaticAdapter is a fixed, in-memory Adapter, sufficient for tests and for
// native tool libraries whose capability set is known at construction time.
type StaticAdapter struct {
	source       core.InvokerSource
	capabilities []DiscoveredCapability
}

// NewStaticAdapter builds a StaticAdapter tagging every capability with
// source.
func NewStaticAdapter(source core.InvokerSource, capabilities ...DiscoveredCapability) *StaticAdapter {
	return &StaticAdapter{source: source, capabilities: capabilities}
}

func (a *StaticAdapter) Source() core.InvokerSource { return a.source }

func (a *StaticAdapter) Discover() ([]DiscoveredCapability, error) {
	return a.capabilities, nil
}
