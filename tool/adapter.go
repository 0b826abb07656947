package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgrid/core"
	"github.com/hupe1980/agentgrid/logging"
)

// Adapter executes tool directives produced by agents. It never returns an
// error to the round loop: unknown tools, validation failures and
// execution failures are all captured in-band as a ToolCallRecord so they
// travel on the agent's outgoing response like any other data.
type Adapter struct {
	registry *Registry
	logger   logging.Logger
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Logger logging.Logger
}

// NewAdapter creates an adapter over the given registry. A nil registry
// behaves like an empty one.
func NewAdapter(registry *Registry, optFns ...func(o *AdapterOptions)) *Adapter {
	opts := AdapterOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Adapter{registry: registry, logger: opts.Logger}
}

// Invoke looks up and executes the named tool, capturing either output or
// error into an immutable record. Both outcomes are data; only the record
// distinguishes them.
func (a *Adapter) Invoke(ctx context.Context, name string, args map[string]any) *core.ToolCallRecord {
	record := &core.ToolCallRecord{Tool: name, Input: args}

	t, ok := a.registry.Lookup(name)
	if !ok {
		record.Error = fmt.Sprintf("tool %q is not registered", name)
		a.logger.Warn("tool.invoke.unknown", "tool", name)
		return record
	}

	out, err := t.Call(ctx, args)
	if err != nil {
		record.Error = err.Error()
		a.logger.Warn("tool.invoke.failed", "tool", t.Name(), "error", err.Error())
		return record
	}

	record.Output = out
	a.logger.Debug("tool.invoke.ok", "tool", t.Name())
	return record
}
