// Package reasoning defines the opaque reasoning capability agents consult
// to decide how to act, plus the interpreter strategies that turn its free
// text replies into structured agent output. The scheduler core never
// depends on a concrete backend or on parsing details.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Reasoner is the external text-completion capability. Implementations
// wrap an LLM SDK, a local model, or a scripted double for tests.
type Reasoner interface {
	// Predict returns the raw text completion for a prompt. The returned
	// text need not be valid JSON; interpreters handle free text.
	Predict(ctx context.Context, prompt string) (string, error)
}

// PredictFunc adapts a plain function to the Reasoner interface.
type PredictFunc func(ctx context.Context, prompt string) (string, error)

// Predict implements Reasoner.
func (f PredictFunc) Predict(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// FatalError marks a reasoning failure as unrecoverable for the agent that
// hit it: the agent transitions to Failed instead of returning to Waiting.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal reasoning error: %s", e.Message)
}

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// scriptStep is one canned reply (or failure) in a ScriptedReasoner.
type scriptStep struct {
	response string
	err      error
}

// ScriptedReasoner replays canned completions in order, falling back to a
// benign completion once the script is exhausted. It is safe for
// concurrent use and is the standard test double for the scheduler.
type ScriptedReasoner struct {
	mu       sync.Mutex
	script   []scriptStep
	fallback func(prompt string) (string, error)
	prompts  []string
}

// NewScriptedReasoner creates a reasoner that replays the given responses
// in order.
func NewScriptedReasoner(responses ...string) *ScriptedReasoner {
	r := &ScriptedReasoner{}
	for _, resp := range responses {
		r.script = append(r.script, scriptStep{response: resp})
	}
	return r
}

// QueueResponse appends another canned completion to the script.
func (r *ScriptedReasoner) QueueResponse(response string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, scriptStep{response: response})
}

// QueueError appends a failing step to the script.
func (r *ScriptedReasoner) QueueError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, scriptStep{err: err})
}

// SetFallback overrides the answer used once the script is exhausted.
func (r *ScriptedReasoner) SetFallback(fn func(prompt string) (string, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// Prompts returns every prompt seen so far, in call order.
func (r *ScriptedReasoner) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.prompts))
	copy(out, r.prompts)
	return out
}

// Predict implements Reasoner.
func (r *ScriptedReasoner) Predict(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prompts = append(r.prompts, prompt)

	if len(r.script) > 0 {
		step := r.script[0]
		r.script = r.script[1:]
		return step.response, step.err
	}

	if r.fallback != nil {
		return r.fallback(prompt)
	}
	return `{"result": "acknowledged", "status": "completed"}`, nil
}
