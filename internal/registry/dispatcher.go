package registry

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"agentcore/internal/agenterrors"
	"agentcore/internal/core"
)

// Dispatcher routes a parsed tool call to its registered Executor, per
// SPEC_FULL §4.3's dispatcher responsibilities (specified alongside the
// registry, delegated in practice to the orchestration loop). Argument
// validation against the capability's JSON-Schema is the one cross-cutting
// concern layered on here, grounded on the reference repository's onion-
// wrapped dispatch (validation -> retry -> SLA) in
// internal/app/toolregistry/registry.go, generalized to the explicit
// InvokerSource tag this spec requires.
type Dispatcher struct {
	registry        *Registry
	validateSchemas bool
	compiled        map[string]*jsonschema.Schema
}

// NewDispatcher builds a Dispatcher over registry. When validateSchemas is
// true, arguments are checked against the capability's declared parameter
// schema before execution.
func NewDispatcher(r *Registry, validateSchemas bool) *Dispatcher {
	return &Dispatcher{registry: r, validateSchemas: validateSchemas, compiled: map[string]*jsonschema.Schema{}}
}

// Dispatch executes the named tool call and maps every failure into a
// tool-result-safe error: an unknown tool or a schema violation is a
// Logical error, and is never fatal to the orchestration loop.
func (d *Dispatcher) Dispatch(call core.ToolCall) (string, error) {
	def, exec, ok := d.registry.Get(call.Name)
	if !ok {
		return "", agenterrors.New(agenterrors.KindLogical, fmt.Sprintf("unknown tool %q", call.Name), nil)
	}

	if d.validateSchemas && def.Parameters != nil {
		if err := d.validate(def, call.Arguments); err != nil {
			return "", agenterrors.New(agenterrors.KindLogical, fmt.Sprintf("invalid arguments for %q", call.Name), err)
		}
	}

	result, err := exec.Execute(call.Arguments)
	if err != nil {
		return "", agenterrors.Wrap(agenterrors.KindTransport, err)
	}
	return result, nil
}

func (d *Dispatcher) validate(def core.InvokerDefinition, args map[string]any) error {
	schema, err := d.compile(def)
	if err != nil {
		// A malformed schema never blocks dispatch; it only disables
		// validation for that capability.
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	return schema.Validate(decoded)
}

func (d *Dispatcher) compile(def core.InvokerDefinition) (*jsonschema.Schema, error) {
	if cached, ok := d.compiled[def.Name]; ok {
		return cached, nil
	}
	raw, err := json.Marshal(def.Parameters)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	url := "mem://" + def.Name + ".json"
	if err := compiler.AddResource(url, decoded); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	d.compiled[def.Name] = schema
	return schema, nil
}
