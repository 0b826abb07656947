package tool

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds the tools available to a run. Lookup favors an exact
// name match and falls back to case-insensitive matching, so reasoning
// replies that vary capitalization still resolve.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool // canonical name -> tool
	fold  map[string]Tool // lowercased name -> tool
}

// NewRegistry creates a registry pre-populated with the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{
		tools: map[string]Tool{},
		fold:  map[string]Tool{},
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.fold[strings.ToLower(t.Name())] = t
}

// Lookup resolves a tool by name: exact match first, then
// case-insensitive.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tools[name]; ok {
		return t, true
	}
	t, ok := r.fold[strings.ToLower(name)]
	return t, ok
}

// Names returns the canonical tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the registered tools in sorted name order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
