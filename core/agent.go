package core

import (
	"container/heap"
	"fmt"
	"strings"
)

// AgentState enumerates the lifecycle of an agent. Idle is the initial
// state; Completed and Failed are terminal and absorbing.
type AgentState int

const (
	// StateIdle means the agent has not yet been assigned work.
	StateIdle AgentState = iota
	// StateWaiting means the agent has been assigned work and is waiting
	// for its next inbox message to be selected.
	StateWaiting
	// StateThinking means the agent is consulting the reasoning capability
	// for its current message.
	StateThinking
	// StateExecuting means the agent has decided how to act and is carrying
	// out side effects for the current message.
	StateExecuting
	// StateCompleted means every task node owned by the agent has a routed
	// completion response.
	StateCompleted
	// StateFailed means the agent hit an unrecoverable error.
	StateFailed
)

// String returns the lowercase name of the state.
func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateThinking:
		return "thinking"
	case StateExecuting:
		return "executing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the state can never be left again.
func (s AgentState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// stateTransitions encodes the legal state machine edges. Idle->Completed
// retires agents that own no uncompleted task nodes without routing a
// command through them.
var stateTransitions = map[AgentState][]AgentState{
	StateIdle:      {StateWaiting, StateCompleted},
	StateWaiting:   {StateThinking, StateCompleted},
	StateThinking:  {StateExecuting, StateFailed},
	StateExecuting: {StateWaiting, StateFailed},
}

// StateTransitionError reports an attempted illegal state machine edge.
type StateTransitionError struct {
	AgentID  string
	From, To AgentState
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("agent %s: illegal transition %s -> %s", e.AgentID, e.From, e.To)
}

// Agent is a stateful unit owning zero or more task nodes. Its inbox and
// outbox are exclusively owned: only the agent itself dequeues, and only
// the bus delivers and flushes. Agent is not safe for concurrent use; the
// round-based scheduler serializes all access.
type Agent struct {
	ID           string
	Name         string
	Role         string
	Description  string
	Capabilities []string

	// Memory is the agent's scratch key/value store, surviving across
	// rounds within one run.
	Memory map[string]any

	state  AgentState
	inbox  inbox
	outbox []Message
	seq    int64 // arrival counter for FIFO tie-breaks
}

// NewAgent constructs an Idle agent with an empty inbox, outbox and memory.
func NewAgent(id, name, role, description string, capabilities ...string) *Agent {
	return &Agent{
		ID:           id,
		Name:         name,
		Role:         role,
		Description:  description,
		Capabilities: capabilities,
		Memory:       map[string]any{},
	}
}

// State returns the agent's current lifecycle state.
func (a *Agent) State() AgentState { return a.state }

// SetState moves the agent to next, validating the edge against the state
// machine. Terminal states are never left.
func (a *Agent) SetState(next AgentState) error {
	if a.state == next {
		return nil
	}
	for _, allowed := range stateTransitions[a.state] {
		if allowed == next {
			a.state = next
			return nil
		}
	}
	return &StateTransitionError{AgentID: a.ID, From: a.state, To: next}
}

// Enqueue appends a message to the inbox, preserving priority order with
// FIFO among equal priorities.
func (a *Agent) Enqueue(msg Message) {
	a.seq++
	heap.Push(&a.inbox, inboxItem{msg: msg, seq: a.seq})
}

// Dequeue removes and returns the highest-priority pending message. The
// second return value is false when the inbox is empty.
func (a *Agent) Dequeue() (Message, bool) {
	if a.inbox.Len() == 0 {
		return Message{}, false
	}
	item := heap.Pop(&a.inbox).(inboxItem)
	return item.msg, true
}

// PendingMessages returns the number of undelivered inbox messages.
func (a *Agent) PendingMessages() int { return a.inbox.Len() }

// Send stages a message in the outbox for the next bus flush.
func (a *Agent) Send(msg Message) { a.outbox = append(a.outbox, msg) }

// DrainOutbox removes and returns all staged outbox messages in the order
// they were produced.
func (a *Agent) DrainOutbox() []Message {
	out := a.outbox
	a.outbox = nil
	return out
}

// Remember stores a value in agent memory.
func (a *Agent) Remember(key string, value any) { a.Memory[key] = value }

// Recall returns a previously remembered value.
func (a *Agent) Recall(key string) (any, bool) {
	v, ok := a.Memory[key]
	return v, ok
}

// HasCapability reports whether the agent declares the named capability.
// Matching is case-insensitive.
func (a *Agent) HasCapability(name string) bool {
	for _, c := range a.Capabilities {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// inboxItem pairs a message with its arrival sequence so equal priorities
// dequeue first-in first-out.
type inboxItem struct {
	msg Message
	seq int64
}

// inbox is a max-heap over priority with FIFO tie-breaking. container/heap
// is used directly; no external queue library covers a two-key ordering
// this small.
type inbox []inboxItem

func (q inbox) Len() int { return len(q) }

func (q inbox) Less(i, j int) bool {
	if q[i].msg.Priority != q[j].msg.Priority {
		return q[i].msg.Priority > q[j].msg.Priority
	}
	return q[i].seq < q[j].seq
}

func (q inbox) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *inbox) Push(x any) { *q = append(*q, x.(inboxItem)) }

func (q *inbox) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
