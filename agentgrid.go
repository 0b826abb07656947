// Package agentgrid provides a high-level façade over the planner, the
// message bus and the round-based scheduler, enabling single-call execution
// of a natural-language task by a dynamically planned set of agents. Most
// applications interact with this package by:
//  1. Creating an Executor via New() with a reasoning backend
//  2. Optionally registering tools the agents may invoke
//  3. Calling Execute() with a task and optional progress callbacks
//
// The façade delegates orchestration to scheduler.Scheduler while keeping
// setup ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply an LLM-backed reasoner
// and a structured logger.
package agentgrid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentgrid/core"
	"github.com/hupe1980/agentgrid/logging"
	"github.com/hupe1980/agentgrid/plan"
	"github.com/hupe1980/agentgrid/reasoning"
	"github.com/hupe1980/agentgrid/scheduler"
	"github.com/hupe1980/agentgrid/tool"
)

// Callbacks are the optional observation points of one Execute call. All
// fields may be nil; Execute never requires them.
type Callbacks struct {
	// OnStart fires once before planning begins.
	OnStart func()
	// OnStep fires when a task node is dispatched, completes or fails.
	OnStep func(scheduler.StepEvent)
	// OnToolUse fires after every tool invocation, successful or not.
	OnToolUse func(scheduler.ToolUseEvent)
	// OnComplete fires with the final response when the run produced one.
	OnComplete func(*Response)
	// OnError fires for run-level failures (timeouts, cancellation).
	OnError func(error)
}

// Response is the final result of one Execute call.
type Response struct {
	// Content is a human-readable report of the run.
	Content string
	// Metadata carries run statistics: status, node and message counts,
	// duration, and the failure reason when the run failed.
	Metadata map[string]any
	// ToolCalls lists every tool invocation made during the run.
	ToolCalls []core.ToolCallRecord
}

// Options configures an Executor.
type Options struct {
	// Planner decomposes tasks into agents and a dependency graph.
	// Defaults to a ReasonerPlanner over the configured reasoner.
	Planner plan.Planner

	// Interpreter turns raw reasoning replies into agent outputs.
	// Defaults to the strict-JSON-then-heuristic chain.
	Interpreter reasoning.Interpreter

	// Tools are made available to every run, alongside the built-in
	// variables tool bound to the run's shared variable map.
	Tools []tool.Tool

	// MaxSteps caps the number of scheduler rounds per run. Values < 1
	// fall back to scheduler.DefaultMaxSteps.
	MaxSteps int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Executor is the high-level façade aggregating planner, scheduler and
// tool registry. It is safe for sequential reuse across tasks; every
// Execute call gets a fresh execution context.
type Executor struct {
	reasoner reasoning.Reasoner
	planner  plan.Planner
	interp   reasoning.Interpreter
	tools    []tool.Tool
	maxSteps int
	logger   logging.Logger
}

// New creates an Executor backed by the given reasoner. A nil reasoner is
// a configuration error.
func New(reasoner reasoning.Reasoner, optFns ...func(o *Options)) (*Executor, error) {
	if reasoner == nil {
		return nil, &scheduler.ConfigurationError{Reason: "no reasoner configured"}
	}

	opts := Options{
		MaxSteps: scheduler.DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)
	if opts.Planner == nil {
		opts.Planner = plan.NewReasonerPlanner(reasoner, func(o *plan.Options) { o.Logger = logger })
	}
	if opts.Interpreter == nil {
		opts.Interpreter = reasoning.NewDefaultInterpreter()
	}

	return &Executor{
		reasoner: reasoner,
		planner:  opts.Planner,
		interp:   opts.Interpreter,
		tools:    opts.Tools,
		maxSteps: opts.MaxSteps,
		logger:   logger,
	}, nil
}

// Execute plans the task, runs the scheduler round loop over the planned
// agents, and returns the assembled response. A timed-out run is still a
// response: the timeout is reported through callbacks and the metadata, not
// as a returned error. Only setup failures and context cancellation return
// an error.
func (e *Executor) Execute(ctx context.Context, task string, callbacks *Callbacks) (*Response, error) {
	if callbacks == nil {
		callbacks = &Callbacks{}
	}
	if callbacks.OnStart != nil {
		callbacks.OnStart()
	}

	pl, err := e.planner.Plan(ctx, task)
	if err != nil {
		err = fmt.Errorf("plan task: %w", err)
		if callbacks.OnError != nil {
			callbacks.OnError(err)
		}
		return nil, err
	}

	ec := core.NewExecutionContext(task, pl.Graph, pl.Agents)

	// The variables tool is bound per run so agents share state through
	// the context without leaking it across tasks.
	registry := tool.NewRegistry(e.tools...)
	registry.Register(tool.NewVariablesTool(ec.Variables))

	sched, err := scheduler.New(e.reasoner, func(o *scheduler.Options) {
		o.MaxSteps = e.maxSteps
		o.Interpreter = e.interp
		o.Tools = registry
		o.Logger = e.logger
	})
	if err != nil {
		if callbacks.OnError != nil {
			callbacks.OnError(err)
		}
		return nil, err
	}

	hooks := &scheduler.Hooks{
		OnStep:    callbacks.OnStep,
		OnToolUse: callbacks.OnToolUse,
	}

	runErr := sched.Run(ctx, ec, hooks)

	var terr *scheduler.TimeoutError
	switch {
	case runErr == nil:
		// settled
	case errors.As(runErr, &terr):
		e.logger.Warn("run timed out", "task", task, "rounds", terr.Rounds)
		if callbacks.OnError != nil {
			callbacks.OnError(runErr)
		}
	default:
		// Cancellation or another hard failure: no response to assemble.
		if callbacks.OnError != nil {
			callbacks.OnError(runErr)
		}
		return nil, runErr
	}

	resp := buildResponse(ec, pl)
	if callbacks.OnComplete != nil {
		callbacks.OnComplete(resp)
	}
	return resp, nil
}

// buildResponse assembles the report and metadata from the sealed context.
func buildResponse(ec *core.ExecutionContext, pl *plan.Plan) *Response {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run Report\n\n")
	fmt.Fprintf(&b, "**Goal:** %s\n\n", ec.Goal)
	fmt.Fprintf(&b, "**Status:** %s\n\n", ec.Status)
	if ec.FailureReason != "" {
		fmt.Fprintf(&b, "**Failure reason:** %s\n\n", ec.FailureReason)
	}

	b.WriteString("## Results\n\n")
	results := nodeResults(ec)
	for _, node := range ec.Graph.Nodes() {
		result, ok := results[node.ID]
		if !ok {
			fmt.Fprintf(&b, "- **%s** (%s): _incomplete_\n", node.ID, node.AgentID)
			continue
		}
		fmt.Fprintf(&b, "- **%s** (%s): %s\n", node.ID, node.AgentID, result)
	}

	toolCalls := ec.ToolCalls()
	if len(toolCalls) > 0 {
		b.WriteString("\n## Tool Calls\n\n")
		for _, call := range toolCalls {
			if call.Error != "" {
				fmt.Fprintf(&b, "- %s: error: %s\n", call.Tool, call.Error)
				continue
			}
			fmt.Fprintf(&b, "- %s: %v\n", call.Tool, call.Output)
		}
	}

	metadata := map[string]any{
		"executionId":   ec.ID,
		"status":        string(ec.Status),
		"rounds":        ec.Rounds,
		"agents":        len(ec.Agents()),
		"nodes":         ec.Graph.Len(),
		"messages":      len(ec.Log),
		"duration":      ec.Duration().String(),
		"fallbackPlan":  pl.Fallback,
		"failureReason": ec.FailureReason,
	}

	return &Response{
		Content:   b.String(),
		Metadata:  metadata,
		ToolCalls: toolCalls,
	}
}

// nodeResults maps each completed node id to the result text of its
// completion response. Later responses for the same node win, which cannot
// happen in practice since nodes complete at most once.
func nodeResults(ec *core.ExecutionContext) map[string]string {
	results := make(map[string]string)
	for _, msg := range ec.Log {
		resp, ok := msg.Payload.(core.ResponsePayload)
		if !ok || resp.Status != core.StatusCompleted {
			continue
		}
		results[resp.NodeID] = resp.Result
	}
	return results
}
