package scheduler

import (
	"github.com/hupe1980/agentgrid/core"
)

// StepStatus describes the lifecycle of one task node as reported through
// hooks.
type StepStatus string

const (
	// StepStarted is emitted when the node's command is dispatched.
	StepStarted StepStatus = "started"
	// StepCompleted is emitted when the node's completion response is
	// routed.
	StepCompleted StepStatus = "completed"
	// StepFailed is emitted when processing the node's command failed.
	StepFailed StepStatus = "failed"
)

// StepEvent reports progress on a single task node.
type StepEvent struct {
	Name        string // task node id
	Description string // task text
	Status      StepStatus
	Output      string // result text, set on completion
	Error       string // failure detail, set on failure
}

// ToolUseEvent reports one tool invocation requested by an agent.
type ToolUseEvent struct {
	ToolName string
	Input    map[string]any
	Output   any
	Error    string
}

// Hooks are optional observation points into a run. They are plain
// callback values passed into Run and held only for the run's duration;
// they are never stored on agents. All fields may be nil.
type Hooks struct {
	OnStep    func(StepEvent)
	OnToolUse func(ToolUseEvent)
}

func (h *Hooks) emitStep(ev StepEvent) {
	if h != nil && h.OnStep != nil {
		h.OnStep(ev)
	}
}

func (h *Hooks) emitToolUse(record *core.ToolCallRecord) {
	if h == nil || h.OnToolUse == nil || record == nil {
		return
	}
	h.OnToolUse(ToolUseEvent{
		ToolName: record.Tool,
		Input:    record.Input,
		Output:   record.Output,
		Error:    record.Error,
	})
}
