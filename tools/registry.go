package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sidekick-cli/sidekick/llm"
)

// Args holds the parsed argument mapping of a tool call.
type Args map[string]interface{}

// String extracts a string argument.
func (a Args) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int extracts an integer argument. JSON numbers arrive as float64.
func (a Args) Int(key string) (int, bool) {
	switch n := a[key].(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// Bool extracts a boolean argument.
func (a Args) Bool(key string) (bool, bool) {
	v, ok := a[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// RunFunc executes a tool against the executor's environment.
type RunFunc func(ctx context.Context, ex *Executor, args Args) (string, error)

// Spec declares one tool: its schema for the model, its confirmation
// classification, and its implementation.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON Schema object
	Required    []string
	Mutating    bool
	Run         RunFunc
}

// Registry is the closed set of tools available to the model.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewEmptyRegistry creates a registry with no tools. Production code uses
// NewRegistry, which registers the builtin set.
func NewEmptyRegistry() *Registry {
	return &Registry{specs: make(map[string]*Spec)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = &spec
}

// Get returns the spec for name, or nil when unknown.
func (r *Registry) Get(name string) *Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the tool declarations sent with every model request.
func (r *Registry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolSchema, 0, len(r.specs))
	for _, name := range r.names() {
		spec := r.specs[name]
		out = append(out, llm.ToolSchema{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		})
	}
	return out
}

// names returns sorted names without locking; callers hold the lock.
func (r *Registry) names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseArgs unmarshals raw tool call arguments.
func ParseArgs(raw json.RawMessage) (Args, error) {
	if len(raw) == 0 {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// ValidateArgs checks the argument mapping against the spec's required set
// and declared property types.
func ValidateArgs(spec *Spec, args Args) error {
	for _, req := range spec.Required {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("%s: missing required argument %q", spec.Name, req)
		}
	}
	props, _ := spec.Parameters["properties"].(map[string]interface{})
	for key, val := range args {
		prop, ok := props[key].(map[string]interface{})
		if !ok {
			return fmt.Errorf("%s: unexpected argument %q", spec.Name, key)
		}
		want, _ := prop["type"].(string)
		if !typeMatches(want, val) {
			return fmt.Errorf("%s: argument %q must be a %s", spec.Name, key, want)
		}
	}
	return nil
}

func typeMatches(schemaType string, val interface{}) bool {
	switch schemaType {
	case "string":
		_, ok := val.(string)
		return ok
	case "integer", "number":
		switch val.(type) {
		case float64, int, json.Number:
			return true
		}
		return false
	case "boolean":
		_, ok := val.(bool)
		return ok
	default:
		return true
	}
}
