// Package scheduler drives a run to completion in bounded rounds. Each
// round dequeues at most one message per live agent, fans the reasoning and
// tool work out concurrently, applies the results at a barrier in fixed
// agent order, flushes outboxes, and dispatches newly ready task nodes.
// The loop ends when every agent is terminal or the round budget expires.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentgrid/bus"
	"github.com/hupe1980/agentgrid/core"
	"github.com/hupe1980/agentgrid/internal/util"
	"github.com/hupe1980/agentgrid/logging"
	"github.com/hupe1980/agentgrid/reasoning"
	"github.com/hupe1980/agentgrid/tool"
)

// DefaultMaxSteps is the round budget applied when none is configured.
const DefaultMaxSteps = 15

// schedulerSender is the sender id stamped on messages the scheduler
// itself originates (commands, cancellation notices).
const schedulerSender = "scheduler"

// Options configures a Scheduler.
type Options struct {
	// MaxSteps caps the number of rounds per run. Values < 1 fall back to
	// DefaultMaxSteps.
	MaxSteps int

	// Interpreter turns raw reasoning replies into agent outputs. Defaults
	// to the strict-JSON-then-heuristic chain.
	Interpreter reasoning.Interpreter

	// Tools is the registry agents may invoke. A nil registry means every
	// tool directive resolves to an unknown-tool record.
	Tools *tool.Registry

	Logger logging.Logger
}

// Scheduler owns the round loop. It is stateless across runs; all per-run
// bookkeeping lives in an unexported run value, so one Scheduler may serve
// sequential runs.
type Scheduler struct {
	reasoner reasoning.Reasoner
	interp   reasoning.Interpreter
	tools    *tool.Registry
	maxSteps int
	logger   logging.Logger
}

// New creates a Scheduler backed by the given reasoner. A nil reasoner is
// a configuration error: the scheduler cannot ask agents to think without
// one.
func New(reasoner reasoning.Reasoner, optFns ...func(o *Options)) (*Scheduler, error) {
	if reasoner == nil {
		return nil, &ConfigurationError{Reason: "no reasoner configured"}
	}

	opts := Options{
		MaxSteps: DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps < 1 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Interpreter == nil {
		opts.Interpreter = reasoning.NewDefaultInterpreter()
	}

	return &Scheduler{
		reasoner: reasoner,
		interp:   opts.Interpreter,
		tools:    opts.Tools,
		maxSteps: opts.MaxSteps,
		logger:   logging.OrNoOp(opts.Logger),
	}, nil
}

// MaxSteps returns the configured round budget.
func (s *Scheduler) MaxSteps() int { return s.maxSteps }

// Run executes the round loop over ec until quiescence, budget exhaustion
// or cancellation. On quiescence ec is finished with StatusCompletedRun
// even when individual agents failed; their errors remain visible in the
// message log. Budget exhaustion returns a *TimeoutError, cancellation
// returns the context's error; both finish ec with StatusFailedRun.
func (s *Scheduler) Run(ctx context.Context, ec *core.ExecutionContext, hooks *Hooks) error {
	r := &run{
		sched:      s,
		ec:         ec,
		hooks:      hooks,
		completed:  make(map[string]bool),
		dispatched: make(map[string]bool),
	}
	r.bus = bus.New(r, func(o *bus.Options) { o.Logger = s.logger })
	r.adapter = tool.NewAdapter(s.tools, func(o *tool.AdapterOptions) { o.Logger = s.logger })
	return r.execute(ctx)
}

// run holds the per-run bookkeeping: which nodes completed, which were
// dispatched, and the bus whose server sink it implements.
type run struct {
	sched      *Scheduler
	ec         *core.ExecutionContext
	bus        *bus.MessageBus
	adapter    *tool.Adapter
	hooks      *Hooks
	completed  map[string]bool
	dispatched map[string]bool
}

func (r *run) execute(ctx context.Context) error {
	r.dispatchReady()
	r.retireSettledAgents()
	if r.ec.AllAgentsTerminal() {
		// Degenerate graphs (no agents, or nothing dispatchable to live
		// agents) settle without a single round.
		r.ec.Finish(core.StatusCompletedRun, "")
		return nil
	}

	for round := 1; round <= r.sched.maxSteps; round++ {
		if err := ctx.Err(); err != nil {
			return r.cancel(err)
		}
		r.ec.Rounds = round
		r.ec.Tracef("round %d: %d message(s) pending", round, r.pendingTotal())

		r.processRound(ctx)
		if err := ctx.Err(); err != nil {
			return r.cancel(err)
		}

		r.bus.Flush(r.ec)
		r.dispatchReady()
		r.retireSettledAgents()

		if r.ec.AllAgentsTerminal() {
			r.ec.Tracef("quiescent after %d round(s)", round)
			r.ec.Finish(core.StatusCompletedRun, "")
			return nil
		}
	}

	terr := &TimeoutError{
		Rounds:    r.sched.maxSteps,
		Remaining: r.remainingNodes(),
		Cycle:     r.ec.Graph.FindCycle(),
	}
	r.sched.logger.Warn("run timed out", "rounds", terr.Rounds, "remaining", terr.Remaining)
	r.ec.Finish(core.StatusFailedRun, terr.Error())
	return terr
}

// cancel seals the context as failed and records a system notice in the
// message log so the abort is visible in the audit trail.
func (r *run) cancel(cause error) error {
	notice := r.bus.NewMessage(
		core.MessageSystem,
		schedulerSender,
		[]string{core.ServerRecipient},
		core.SystemPayload{
			Action: "cancelled",
			Data:   map[string]any{"reason": cause.Error()},
		},
		core.MaxPriority,
	)
	r.bus.Deliver(r.ec, notice)
	r.ec.Finish(core.StatusFailedRun, fmt.Sprintf("cancelled: %v", cause))
	return cause
}

// dispatchReady sends a command for every task node whose dependencies are
// satisfied and which has not been dispatched yet. Each node is dispatched
// at most once per run.
func (r *run) dispatchReady() {
	for _, node := range r.ec.Graph.ReadyNodes(r.completed, r.dispatched) {
		agent, ok := r.ec.Agent(node.AgentID)
		if !ok {
			r.sched.logger.Warn("task node owned by unknown agent", "node", node.ID, "agent", node.AgentID)
			continue
		}
		if agent.State().Terminal() {
			r.sched.logger.Warn("task node owned by terminal agent", "node", node.ID, "agent", node.AgentID)
			continue
		}

		r.dispatched[node.ID] = true
		cmd := r.bus.NewMessage(
			core.MessageCommand,
			schedulerSender,
			[]string{agent.ID},
			core.CommandPayload{Task: node.Task, NodeID: node.ID},
			core.DefaultPriority,
		)
		r.bus.Deliver(r.ec, cmd)
		if agent.State() == core.StateIdle {
			agent.SetState(core.StateWaiting)
		}
		r.hooks.emitStep(StepEvent{Name: node.ID, Description: node.Task, Status: StepStarted})
	}
}

// retireSettledAgents completes every idle or waiting agent with a drained
// inbox and no uncompleted owned nodes. An agent is completed exactly when
// all its owned nodes have routed completions, which holds vacuously for
// agents the plan declared but never assigned a node; without this sweep
// such agents idle forever and burn the whole round budget.
func (r *run) retireSettledAgents() {
	for _, agent := range r.ec.Agents() {
		state := agent.State()
		if state != core.StateIdle && state != core.StateWaiting {
			continue
		}
		if agent.PendingMessages() > 0 {
			continue
		}
		settled := true
		for _, node := range r.ec.Graph.NodesOwnedBy(agent.ID) {
			if !r.completed[node.ID] {
				settled = false
				break
			}
		}
		if !settled {
			continue
		}
		agent.SetState(core.StateCompleted)
		r.ec.Tracef("agent %s retired with no remaining nodes", agent.ID)
	}
}

// stepResult carries the outcome of one agent's work for the apply phase.
type stepResult struct {
	agent  *core.Agent
	msg    core.Message
	output *reasoning.AgentOutput
	record *core.ToolCallRecord
	err    error
}

// processRound dequeues one message per live agent with pending work, fans
// reasoning and tool invocation out concurrently, then applies all results
// sequentially in registration order so the message log stays
// deterministic.
func (r *run) processRound(ctx context.Context) {
	var work []*stepResult
	for _, agent := range r.ec.Agents() {
		if agent.State().Terminal() || agent.PendingMessages() == 0 {
			continue
		}
		msg, _ := agent.Dequeue()
		if agent.State() == core.StateWaiting {
			agent.SetState(core.StateThinking)
		}
		work = append(work, &stepResult{agent: agent, msg: msg})
	}
	if len(work) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, res := range work {
		if res.msg.Type != core.MessageCommand {
			continue // handled inline in the apply phase
		}
		wg.Add(1)
		go func(res *stepResult) {
			defer wg.Done()
			r.think(ctx, res)
		}(res)
	}
	wg.Wait()

	for _, res := range work {
		r.apply(res)
	}
}

// think runs the reasoning call, interprets the reply, and invokes any
// requested tool. It mutates only its own stepResult; agent state is
// untouched until the apply phase.
func (r *run) think(ctx context.Context, res *stepResult) {
	cmd, ok := res.msg.Payload.(core.CommandPayload)
	if !ok {
		res.err = fmt.Errorf("command message %d carries no command payload", res.msg.ID)
		return
	}

	prompt, err := r.buildPrompt(res.agent, cmd)
	if err != nil {
		res.err = fmt.Errorf("build prompt for node %q: %w", cmd.NodeID, err)
		return
	}

	raw, err := r.sched.reasoner.Predict(ctx, prompt)
	if err != nil {
		res.err = err
		return
	}

	output, err := r.sched.interp.Interpret(raw)
	if err != nil {
		res.err = fmt.Errorf("interpret reply for node %q: %w", cmd.NodeID, err)
		return
	}
	res.output = output

	if output.Tool != nil && output.Tool.Name != "" {
		res.record = r.adapter.Invoke(ctx, output.Tool.Name, output.Tool.Args)
	}
}

// apply folds one step result back into agent state and outboxes. Command
// replies become server-addressed responses; processing errors become
// error messages rather than panics or returned errors, so a single bad
// reply never takes the run down.
func (r *run) apply(res *stepResult) {
	agent := res.agent

	switch payload := res.msg.Payload.(type) {
	case core.CommandPayload:
		r.applyCommand(res, payload)
	case core.NotificationPayload:
		r.rememberIncoming(agent, "notifications", payload.Information)
		r.settle(agent)
	case core.ErrorPayload:
		r.rememberIncoming(agent, "errors", payload.Message)
		r.settle(agent)
	default:
		r.ec.Tracef("agent %s ignored %s message %d", agent.ID, res.msg.Type, res.msg.ID)
		r.settle(agent)
	}
}

func (r *run) applyCommand(res *stepResult, cmd core.CommandPayload) {
	agent := res.agent

	if res.err != nil {
		unrecoverable := reasoning.IsFatal(res.err)
		agent.Send(r.bus.NewMessage(
			core.MessageError,
			agent.ID,
			[]string{core.ServerRecipient},
			core.ErrorPayload{
				Message:           res.err.Error(),
				OriginalMessageID: res.msg.ID,
				Unrecoverable:     unrecoverable,
			},
			core.DefaultPriority,
		))
		r.hooks.emitStep(StepEvent{
			Name:        cmd.NodeID,
			Description: cmd.Task,
			Status:      StepFailed,
			Error:       res.err.Error(),
		})
		if unrecoverable {
			agent.SetState(core.StateFailed)
			r.sched.logger.Error("agent failed", "agent", agent.ID, "node", cmd.NodeID, "error", res.err)
			return
		}
		r.sched.logger.Warn("agent step failed", "agent", agent.ID, "node", cmd.NodeID, "error", res.err)
		r.settle(agent)
		return
	}

	agent.SetState(core.StateExecuting)

	status := res.output.Status
	if status == "" {
		status = core.StatusCompleted
	}
	agent.Remember("node:"+cmd.NodeID, res.output.Result)

	agent.Send(r.bus.NewMessage(
		core.MessageResponse,
		agent.ID,
		[]string{core.ServerRecipient},
		core.ResponsePayload{
			NodeID:   cmd.NodeID,
			Status:   status,
			Result:   res.output.Result,
			ToolCall: res.record,
		},
		core.DefaultPriority,
	))
	r.hooks.emitToolUse(res.record)

	for _, target := range res.output.Notify {
		if target == agent.ID || target == core.ServerRecipient {
			continue
		}
		agent.Send(r.bus.NewMessage(
			core.MessageNotification,
			agent.ID,
			[]string{target},
			core.NotificationPayload{Information: res.output.Result},
			core.DefaultPriority,
		))
	}

	agent.SetState(core.StateWaiting)
}

// settle walks a thinking agent back to Waiting through the executing
// sub-phase so the transition table stays authoritative.
func (r *run) settle(agent *core.Agent) {
	if agent.State() != core.StateThinking {
		return
	}
	agent.SetState(core.StateExecuting)
	agent.SetState(core.StateWaiting)
}

// rememberIncoming appends an incoming payload to a named slice in agent
// memory so later reasoning prompts can surface it.
func (r *run) rememberIncoming(agent *core.Agent, key, value string) {
	existing, _ := agent.Recall(key)
	items, _ := existing.([]string)
	agent.Remember(key, append(items, value))
}

// HandleServerMessage implements bus.Sink: completion responses mark their
// node done, and when an agent's last owned node completes the agent is
// retired. Everything else addressed to the server is audit-only.
func (r *run) HandleServerMessage(ec *core.ExecutionContext, msg core.Message) {
	resp, ok := msg.Payload.(core.ResponsePayload)
	if !ok || resp.Status != core.StatusCompleted || resp.NodeID == "" {
		ec.Tracef("server received %s message %d from %s", msg.Type, msg.ID, msg.Sender)
		return
	}
	if r.completed[resp.NodeID] {
		return
	}
	node, ok := ec.Graph.Node(resp.NodeID)
	if !ok {
		r.sched.logger.Warn("completion for unknown node", "node", resp.NodeID, "sender", msg.Sender)
		return
	}

	r.completed[resp.NodeID] = true
	ec.Tracef("node %s completed by %s", resp.NodeID, msg.Sender)
	r.hooks.emitStep(StepEvent{
		Name:        node.ID,
		Description: node.Task,
		Status:      StepCompleted,
		Output:      resp.Result,
	})

	owner, ok := ec.Agent(node.AgentID)
	if !ok || owner.State().Terminal() {
		return
	}
	for _, owned := range ec.Graph.NodesOwnedBy(node.AgentID) {
		if !r.completed[owned.ID] {
			return
		}
	}
	if owner.State() == core.StateWaiting {
		owner.SetState(core.StateCompleted)
	}
}

func (r *run) pendingTotal() int {
	total := 0
	for _, agent := range r.ec.Agents() {
		total += agent.PendingMessages()
	}
	return total
}

func (r *run) remainingNodes() []string {
	var remaining []string
	for _, node := range r.ec.Graph.Nodes() {
		if !r.completed[node.ID] {
			remaining = append(remaining, node.ID)
		}
	}
	return remaining
}

// agentPromptTemplate frames one command for the reasoner. The reply
// contract matches what the default interpreter chain expects.
const agentPromptTemplate = `You are {{.name}} ({{.role}}). {{.description}}
Capabilities: {{default "none" (join ", " .capabilities)}}.
Available tools: {{default "none" .tools}}.

Overall goal: {{.goal}}

Your current task ({{.node}}): {{.task}}

Reply with a single JSON object:
{"result": "<outcome of the task>", "status": "completed", "tool": {"name": "<tool>", "args": {}}, "notify": ["<agent id>"]}
Omit "tool" and "notify" unless needed. Use status "failed" only when the task cannot be done.`

func (r *run) buildPrompt(agent *core.Agent, cmd core.CommandPayload) (string, error) {
	var toolNames string
	if r.sched.tools != nil {
		toolNames = strings.Join(r.sched.tools.Names(), ", ")
	}
	return util.RenderTemplate(agentPromptTemplate, map[string]any{
		"name":         agent.Name,
		"role":         agent.Role,
		"description":  agent.Description,
		"capabilities": agent.Capabilities,
		"tools":        toolNames,
		"goal":         r.ec.Goal,
		"node":         cmd.NodeID,
		"task":         cmd.Task,
	})
}
