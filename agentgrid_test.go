package agentgrid

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgrid/reasoning"
	"github.com/hupe1980/agentgrid/scheduler"
)

const twoStagePlan = `{
	"agents": [
		{"id": "analyst", "name": "Analyst", "role": "analyst", "description": "Analyzes", "capabilities": ["analysis"]},
		{"id": "writer", "name": "Writer", "role": "writer", "description": "Writes", "capabilities": ["writing"]}
	],
	"nodes": [
		{"id": "gather", "agent": "analyst", "task": "Gather the facts"},
		{"id": "draft", "agent": "writer", "task": "Draft the summary", "dependencies": ["gather"]}
	]
}`

func TestExecuteEndToEnd(t *testing.T) {
	reasoner := reasoning.NewScriptedReasoner(
		twoStagePlan,
		`{"result": "facts gathered", "status": "completed"}`,
		`{"result": "summary drafted", "status": "completed"}`,
	)

	exec, err := New(reasoner)
	require.NoError(t, err)

	started := false
	var completed *Response
	resp, err := exec.Execute(context.Background(), "summarize the facts", &Callbacks{
		OnStart:    func() { started = true },
		OnComplete: func(r *Response) { completed = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, started)
	assert.Same(t, resp, completed)

	assert.Contains(t, resp.Content, "facts gathered")
	assert.Contains(t, resp.Content, "summary drafted")
	assert.Equal(t, "completed", resp.Metadata["status"])
	assert.Equal(t, false, resp.Metadata["fallbackPlan"])
	assert.Equal(t, 2, resp.Metadata["nodes"])
	assert.Equal(t, 2, resp.Metadata["agents"])
}

func TestExecuteFallsBackOnFreeTextPlan(t *testing.T) {
	// The first reply is unusable as a plan, so the linear fallback chain
	// runs; the remaining replies use the benign default completion.
	reasoner := reasoning.NewScriptedReasoner("I cannot produce structured output today.")

	exec, err := New(reasoner)
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), "do the thing", nil)
	require.NoError(t, err)

	assert.Equal(t, "completed", resp.Metadata["status"])
	assert.Equal(t, true, resp.Metadata["fallbackPlan"])
	assert.Equal(t, 3, resp.Metadata["nodes"])
}

func TestExecuteTimeoutStillReturnsResponse(t *testing.T) {
	cyclicPlan := `{
		"agents": [{"id": "a", "name": "A", "role": "worker", "description": ""}],
		"nodes": [
			{"id": "x", "agent": "a", "task": "first", "dependencies": ["y"]},
			{"id": "y", "agent": "a", "task": "second", "dependencies": ["x"]}
		]
	}`
	reasoner := reasoning.NewScriptedReasoner(cyclicPlan)

	exec, err := New(reasoner, func(o *Options) { o.MaxSteps = 2 })
	require.NoError(t, err)

	var reported error
	resp, err := exec.Execute(context.Background(), "impossible ordering", &Callbacks{
		OnError: func(e error) { reported = e },
	})
	require.NoError(t, err, "timeouts are reported via metadata, not returned")
	require.NotNil(t, resp)

	var terr *scheduler.TimeoutError
	require.ErrorAs(t, reported, &terr)
	assert.Equal(t, "failed", resp.Metadata["status"])
	assert.Contains(t, resp.Metadata["failureReason"], "did not settle")
	assert.Contains(t, resp.Content, "_incomplete_")
}

func TestExecuteCancellation(t *testing.T) {
	exec, err := New(reasoning.NewScriptedReasoner())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var reported error
	resp, err := exec.Execute(ctx, "anything", &Callbacks{
		OnError: func(e error) { reported = e },
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)
	require.Error(t, reported)
	assert.ErrorIs(t, reported, context.Canceled)
}

func TestExecuteVariablesToolBoundPerRun(t *testing.T) {
	reasoner := reasoning.NewScriptedReasoner(
		`{
			"agents": [{"id": "a", "name": "A", "role": "worker", "description": ""}],
			"nodes": [{"id": "n1", "agent": "a", "task": "stash something"}]
		}`,
		`{"result": "stashed", "status": "completed", "tool": {"name": "variables", "args": {"action": "set", "key": "k", "value": "v"}}}`,
	)

	exec, err := New(reasoner)
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), "stash a value", nil)
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "variables", resp.ToolCalls[0].Tool)
	assert.Empty(t, resp.ToolCalls[0].Error)
}

func TestNewRejectsMissingReasoner(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	var cfgErr *scheduler.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}
