package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AgentOutput is the structured decision an agent derives from one
// reasoning reply: a result for its current node, an optional tool
// directive, and the ids of agents to notify.
type AgentOutput struct {
	Result string         `json:"result"`
	Status string         `json:"status,omitempty"`
	Tool   *ToolDirective `json:"tool,omitempty"`
	Notify []string       `json:"notify,omitempty"`
}

// ToolDirective names a tool to invoke with structured arguments.
type ToolDirective struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Interpreter turns a raw reasoning reply into an AgentOutput. Strategies
// differ in strictness; compose them with NewDefaultInterpreter so the
// round loop always makes progress.
type Interpreter interface {
	Interpret(raw string) (*AgentOutput, error)
}

// StrictJSONInterpreter locates the outermost '{' ... '}' block in the
// reply and parses it as an AgentOutput. It fails when no parsable block
// exists, leaving recovery to a fallback strategy.
type StrictJSONInterpreter struct{}

// Interpret implements Interpreter.
func (StrictJSONInterpreter) Interpret(raw string) (*AgentOutput, error) {
	block, ok := extractJSONBlock(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object found in reply")
	}

	var out AgentOutput
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return nil, fmt.Errorf("parse reply JSON: %w", err)
	}
	if out.Status == "" {
		out.Status = "completed"
	}
	return &out, nil
}

// HeuristicInterpreter never fails: it synthesizes a minimal valid output
// with the raw text placed in the result field so the loop always
// progresses instead of throwing.
type HeuristicInterpreter struct{}

// Interpret implements Interpreter.
func (HeuristicInterpreter) Interpret(raw string) (*AgentOutput, error) {
	return &AgentOutput{
		Result: strings.TrimSpace(raw),
		Status: "completed",
	}, nil
}

// chainInterpreter tries each strategy in order, returning the first
// success.
type chainInterpreter []Interpreter

func (c chainInterpreter) Interpret(raw string) (*AgentOutput, error) {
	var lastErr error
	for _, in := range c {
		out, err := in.Interpret(raw)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// NewDefaultInterpreter returns the standard strict-then-heuristic chain.
// It never returns an error for non-empty input.
func NewDefaultInterpreter() Interpreter {
	return chainInterpreter{StrictJSONInterpreter{}, HeuristicInterpreter{}}
}

// extractJSONBlock returns the substring spanning the first '{' through
// the matching closing brace, tracking string literals and escapes.
func extractJSONBlock(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
