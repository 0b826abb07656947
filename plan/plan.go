// Package plan turns a goal into a task dependency graph plus the agent
// set that will execute it. Planning output from the reasoning capability
// is parsed strictly; when it is malformed the package substitutes a
// linear fallback chain instead of failing the run, because forward
// progress is worth more than plan fidelity.
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentgrid/core"
	"github.com/hupe1980/agentgrid/logging"
	"github.com/hupe1980/agentgrid/reasoning"
)

// Plan pairs a dependency graph with the agents that own its nodes.
type Plan struct {
	Graph  *core.TaskGraph
	Agents []*core.Agent

	// Fallback is true when the plan is the substituted linear chain
	// rather than parsed planner output.
	Fallback bool
}

// Planner produces a Plan for a goal.
type Planner interface {
	Plan(ctx context.Context, goal string) (*Plan, error)
}

// ParseError reports unusable planner output. It is non-fatal: callers
// substitute the fallback chain and continue.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unusable planner output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// planDoc is the wire shape expected from the planning prompt.
type planDoc struct {
	Agents []struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Role         string   `json:"role"`
		Description  string   `json:"description"`
		Capabilities []string `json:"capabilities"`
	} `json:"agents"`
	Nodes []struct {
		ID           string   `json:"id"`
		Agent        string   `json:"agent"`
		Task         string   `json:"task"`
		Dependencies []string `json:"dependencies"`
	} `json:"nodes"`
	Edges []struct {
		Source string `json:"source"`
		Target string `json:"target"`
	} `json:"edges"`
}

// Parse converts raw planner output into a Plan. It locates the first
// JSON object in the text, decodes it and validates referential
// integrity: at least one node, every node owned by a declared agent,
// every edge endpoint known.
func Parse(raw string) (*Plan, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("no JSON object found")}
	}

	var doc planDoc
	if err := json.Unmarshal([]byte(raw[start:end+1]), &doc); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if len(doc.Nodes) == 0 {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("plan has no task nodes")}
	}

	agents := make([]*core.Agent, 0, len(doc.Agents))
	known := map[string]bool{}
	for _, a := range doc.Agents {
		if a.ID == "" {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("agent without id")}
		}
		agents = append(agents, core.NewAgent(a.ID, a.Name, a.Role, a.Description, a.Capabilities...))
		known[a.ID] = true
	}

	graph := core.NewTaskGraph()
	for _, n := range doc.Nodes {
		if !known[n.Agent] {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("node %q owned by undeclared agent %q", n.ID, n.Agent)}
		}
		node := &core.TaskNode{ID: n.ID, AgentID: n.Agent, Task: n.Task, Dependencies: n.Dependencies}
		if err := graph.AddNode(node); err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
	}
	for _, e := range doc.Edges {
		if err := graph.AddEdge(e.Source, e.Target); err != nil {
			return nil, &ParseError{Raw: raw, Err: err}
		}
	}

	return &Plan{Graph: graph, Agents: agents}, nil
}

// FallbackPlan builds the linear coordinator -> researcher -> executor
// chain used whenever planner output is unusable. The executor's
// completion flows back to the coordinator through the normal response
// routing, so no fourth node is needed.
func FallbackPlan(goal string) *Plan {
	agents := []*core.Agent{
		core.NewAgent("coordinator", "Coordinator", "coordinator",
			"Breaks the goal into steps and assembles the final answer", "planning", "synthesis"),
		core.NewAgent("researcher", "Researcher", "researcher",
			"Gathers the information the goal needs", "research"),
		core.NewAgent("executor", "Executor", "executor",
			"Carries out the concrete work and reports back", "execution"),
	}

	graph := core.NewTaskGraph()
	nodes := []*core.TaskNode{
		{ID: "coordinate", AgentID: "coordinator", Task: "Outline how to accomplish: " + goal},
		{ID: "research", AgentID: "researcher", Task: "Collect what is needed for: " + goal, Dependencies: []string{"coordinate"}},
		{ID: "execute", AgentID: "executor", Task: "Complete and summarize: " + goal, Dependencies: []string{"research"}},
	}
	for _, n := range nodes {
		// Construction cannot fail: ids are fixed and unique.
		_ = graph.AddNode(n)
	}

	return &Plan{Graph: graph, Agents: agents, Fallback: true}
}

// Options configures a ReasonerPlanner.
type Options struct {
	Logger logging.Logger
}

// ReasonerPlanner asks the reasoning capability to decompose a goal into
// agents and task nodes. Any failure, transport or parse, degrades to the
// fallback chain; planning never aborts a run.
type ReasonerPlanner struct {
	reasoner reasoning.Reasoner
	logger   logging.Logger
}

// NewReasonerPlanner creates a planner over the given reasoner.
func NewReasonerPlanner(r reasoning.Reasoner, optFns ...func(o *Options)) *ReasonerPlanner {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ReasonerPlanner{reasoner: r, logger: opts.Logger}
}

const planPromptFormat = `Decompose the following goal into a small team of agents and a dependency graph of tasks.

Goal: %s

Respond with a single JSON object of the shape:
{"agents": [{"id": "...", "name": "...", "role": "...", "description": "...", "capabilities": ["..."]}],
 "nodes": [{"id": "...", "agent": "<agent id>", "task": "...", "dependencies": ["<node id>"]}],
 "edges": [{"source": "<node id>", "target": "<node id>"}]}

Keep the team to at most five agents. Every node must name an agent from the list.`

// Plan implements Planner.
func (p *ReasonerPlanner) Plan(ctx context.Context, goal string) (*Plan, error) {
	raw, err := p.reasoner.Predict(ctx, fmt.Sprintf(planPromptFormat, goal))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("plan.predict_failed", "error", err.Error())
		return FallbackPlan(goal), nil
	}

	plan, err := Parse(raw)
	if err != nil {
		p.logger.Warn("plan.parse_failed", "error", err.Error())
		return FallbackPlan(goal), nil
	}
	return plan, nil
}
