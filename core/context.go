package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of an execution context.
type Status string

const (
	// StatusRunning means the round loop is still driving agents.
	StatusRunning Status = "running"
	// StatusCompletedRun means every agent reached a terminal state.
	StatusCompletedRun Status = "completed"
	// StatusFailedRun means the run timed out, was cancelled, or could not
	// start.
	StatusFailedRun Status = "failed"
)

// ToolCallRecord captures one tool invocation for audit and response
// formatting. Exactly one of Output or Error is meaningful. Records are
// never mutated after creation.
type ToolCallRecord struct {
	Tool   string         `json:"tool"`
	Input  map[string]any `json:"input,omitempty"`
	Output any            `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ExecutionContext aggregates all state for one task submission: the agent
// set, the dependency graph, the append-only message log, shared variables
// and timing. It is created once per submission, owned exclusively by the
// scheduler for the run's lifetime, and discarded afterwards.
type ExecutionContext struct {
	ID        string
	Goal      string
	Graph     *TaskGraph
	Variables map[string]any

	// Log is the append-only record of every routed message.
	Log []Message

	// ExecutionLog holds human-readable trace lines for diagnostics.
	ExecutionLog []string

	// Rounds counts the scheduler rounds actually executed.
	Rounds int

	StartTime     time.Time
	EndTime       time.Time
	Status        Status
	FailureReason string

	agents     map[string]*Agent
	agentOrder []string
}

// NewExecutionContext builds a running context for the given goal, graph
// and agent set. Agent iteration order is fixed to registration order so
// rounds stay deterministic.
func NewExecutionContext(goal string, graph *TaskGraph, agents []*Agent) *ExecutionContext {
	ec := &ExecutionContext{
		ID:        uuid.NewString(),
		Goal:      goal,
		Graph:     graph,
		Variables: map[string]any{},
		StartTime: time.Now().UTC(),
		Status:    StatusRunning,
		agents:    make(map[string]*Agent, len(agents)),
	}
	for _, a := range agents {
		if _, exists := ec.agents[a.ID]; exists {
			continue
		}
		ec.agents[a.ID] = a
		ec.agentOrder = append(ec.agentOrder, a.ID)
	}
	return ec
}

// Agent returns the agent with the given id.
func (ec *ExecutionContext) Agent(id string) (*Agent, bool) {
	a, ok := ec.agents[id]
	return a, ok
}

// Agents returns every agent in registration order.
func (ec *ExecutionContext) Agents() []*Agent {
	out := make([]*Agent, 0, len(ec.agentOrder))
	for _, id := range ec.agentOrder {
		out = append(out, ec.agents[id])
	}
	return out
}

// AppendLog records a routed message in the append-only global log.
func (ec *ExecutionContext) AppendLog(msg Message) {
	ec.Log = append(ec.Log, msg)
}

// Tracef appends a formatted line to the human-readable execution log.
func (ec *ExecutionContext) Tracef(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	ec.ExecutionLog = append(ec.ExecutionLog, line)
}

// AllAgentsTerminal reports whether every agent is Completed or Failed.
func (ec *ExecutionContext) AllAgentsTerminal() bool {
	for _, id := range ec.agentOrder {
		if !ec.agents[id].State().Terminal() {
			return false
		}
	}
	return true
}

// Finish seals the context with a terminal status. It is a no-op if the
// context is already finished.
func (ec *ExecutionContext) Finish(status Status, reason string) {
	if ec.Status != StatusRunning {
		return
	}
	ec.Status = status
	ec.FailureReason = reason
	ec.EndTime = time.Now().UTC()
}

// Duration returns the elapsed run time, using the current time while the
// run is still in flight.
func (ec *ExecutionContext) Duration() time.Duration {
	if ec.EndTime.IsZero() {
		return time.Since(ec.StartTime)
	}
	return ec.EndTime.Sub(ec.StartTime)
}

// ToolCalls collects every tool call record carried by logged responses,
// in log order.
func (ec *ExecutionContext) ToolCalls() []ToolCallRecord {
	var records []ToolCallRecord
	for _, msg := range ec.Log {
		if resp, ok := msg.Payload.(ResponsePayload); ok && resp.ToolCall != nil {
			records = append(records, *resp.ToolCall)
		}
	}
	return records
}
