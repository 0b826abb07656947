package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumTool() *FunctionTool {
	return NewFunctionTool(
		"calculate_sum",
		"Calculate the sum of two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []any{"a", "b"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)
}

func TestFunctionTool_Call(t *testing.T) {
	ctx := context.Background()

	out, err := sumTool().Call(ctx, map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, out)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := sumTool().Call(context.Background(), map[string]any{"a": 2.0})
	require.Error(t, err)

	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "calculate_sum", toolErr.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	failing := NewFunctionTool("boom", "always fails", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("kaput")
		})

	_, err := failing.Call(context.Background(), map[string]any{})
	require.Error(t, err)

	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Error(), "kaput")
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry(sumTool())

	_, ok := reg.Lookup("calculate_sum")
	assert.True(t, ok)

	// Case-insensitive fallback.
	_, ok = reg.Lookup("Calculate_Sum")
	assert.True(t, ok)

	_, ok = reg.Lookup("unknown")
	assert.False(t, ok)

	assert.Equal(t, []string{"calculate_sum"}, reg.Names())
	assert.Equal(t, 1, reg.Len())
}

func TestAdapter_InvokeNeverThrows(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(NewRegistry(sumTool()))

	t.Run("success captured as output", func(t *testing.T) {
		rec := adapter.Invoke(ctx, "calculate_sum", map[string]any{"a": 1.0, "b": 2.0})
		assert.Equal(t, "calculate_sum", rec.Tool)
		assert.Equal(t, 3.0, rec.Output)
		assert.Empty(t, rec.Error)
	})

	t.Run("tool failure captured as error field", func(t *testing.T) {
		rec := adapter.Invoke(ctx, "calculate_sum", map[string]any{"a": 1.0})
		assert.Empty(t, rec.Output)
		assert.Contains(t, rec.Error, "VALIDATION_ERROR")
	})

	t.Run("unknown tool captured as error field", func(t *testing.T) {
		rec := adapter.Invoke(ctx, "no_such_tool", nil)
		assert.Contains(t, rec.Error, "not registered")
	})
}

func TestVariablesTool(t *testing.T) {
	ctx := context.Background()
	vars := map[string]any{}
	vt := NewVariablesTool(vars)

	_, err := vt.Call(ctx, map[string]any{"action": "set", "key": "topic", "value": "go"})
	require.NoError(t, err)
	assert.Equal(t, "go", vars["topic"])

	out, err := vt.Call(ctx, map[string]any{"action": "get", "key": "topic"})
	require.NoError(t, err)
	assert.Equal(t, "go", out.(map[string]any)["value"])

	out, err = vt.Call(ctx, map[string]any{"action": "list"})
	require.NoError(t, err)
	assert.Equal(t, []string{"topic"}, out.(map[string]any)["keys"])

	_, err = vt.Call(ctx, map[string]any{"action": "get", "key": "missing"})
	require.Error(t, err)

	_, err = vt.Call(ctx, map[string]any{"action": "explode"})
	require.Error(t, err)
}
