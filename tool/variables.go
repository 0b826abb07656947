package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// VariablesTool exposes the run's shared variable map to agents: one agent
// can stash an intermediate result that a later node's owner reads back.
// The map is the ExecutionContext.Variables store. Tool calls for distinct
// agents may run concurrently within a round, so access is mutex guarded.
type VariablesTool struct {
	mu   sync.Mutex
	vars map[string]any
}

// NewVariablesTool wraps the given variable map, normally
// ExecutionContext.Variables for the current run.
func NewVariablesTool(vars map[string]any) *VariablesTool {
	if vars == nil {
		vars = map[string]any{}
	}
	return &VariablesTool{vars: vars}
}

// Name implements Tool.
func (t *VariablesTool) Name() string { return "variables" }

// Description implements Tool.
func (t *VariablesTool) Description() string {
	return "Read or write shared run variables. Use action 'set' with key and value, 'get' with key, or 'list'."
}

// Parameters implements Tool.
func (t *VariablesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{"type": "string", "description": "One of: get, set, list"},
			"key":    map[string]any{"type": "string", "description": "Variable name"},
			"value":  map[string]any{"description": "Value to store (set only)"},
		},
		"required": []string{"action"},
	}
}

// Call implements Tool.
func (t *VariablesTool) Call(_ context.Context, args map[string]any) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	action, _ := args["action"].(string)
	key, _ := args["key"].(string)

	switch action {
	case "set":
		if key == "" {
			return nil, NewToolError(t.Name(), "'set' requires a key", "VALIDATION_ERROR")
		}
		t.vars[key] = args["value"]
		return map[string]any{"stored": key}, nil

	case "get":
		if key == "" {
			return nil, NewToolError(t.Name(), "'get' requires a key", "VALIDATION_ERROR")
		}
		value, ok := t.vars[key]
		if !ok {
			return nil, NewToolError(t.Name(), fmt.Sprintf("variable %q not set", key), "NOT_FOUND")
		}
		return map[string]any{"key": key, "value": value}, nil

	case "list":
		keys := make([]string, 0, len(t.vars))
		for k := range t.vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return map[string]any{"keys": keys}, nil

	default:
		return nil, NewToolError(t.Name(), fmt.Sprintf("unknown action %q", action), "VALIDATION_ERROR")
	}
}
