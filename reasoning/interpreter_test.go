package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrictJSONInterpreter(t *testing.T) {
	t.Run("plain object", func(t *testing.T) {
		out, err := StrictJSONInterpreter{}.Interpret(`{"result": "done", "status": "completed"}`)
		require.NoError(t, err)
		assert.Equal(t, "done", out.Result)
		assert.Equal(t, "completed", out.Status)
	})

	t.Run("object embedded in prose", func(t *testing.T) {
		raw := "Sure! Here is my answer:\n{\"result\": \"42\", \"tool\": {\"name\": \"calculator\", \"args\": {\"expr\": \"6*7\"}}, \"notify\": [\"reviewer\"]}\nLet me know if you need more."
		out, err := StrictJSONInterpreter{}.Interpret(raw)
		require.NoError(t, err)
		assert.Equal(t, "42", out.Result)
		require.NotNil(t, out.Tool)
		assert.Equal(t, "calculator", out.Tool.Name)
		assert.Equal(t, "6*7", out.Tool.Args["expr"])
		assert.Equal(t, []string{"reviewer"}, out.Notify)
	})

	t.Run("braces inside strings do not confuse extraction", func(t *testing.T) {
		out, err := StrictJSONInterpreter{}.Interpret(`{"result": "a } inside", "status": "completed"} trailing`)
		require.NoError(t, err)
		assert.Equal(t, "a } inside", out.Result)
	})

	t.Run("missing status defaults to completed", func(t *testing.T) {
		out, err := StrictJSONInterpreter{}.Interpret(`{"result": "x"}`)
		require.NoError(t, err)
		assert.Equal(t, "completed", out.Status)
	})

	t.Run("free text fails", func(t *testing.T) {
		_, err := StrictJSONInterpreter{}.Interpret("I could not decide what to do.")
		assert.Error(t, err)
	})

	t.Run("unbalanced object fails", func(t *testing.T) {
		_, err := StrictJSONInterpreter{}.Interpret(`{"result": "oops"`)
		assert.Error(t, err)
	})
}

func TestDefaultInterpreter_FreeTextFallback(t *testing.T) {
	in := NewDefaultInterpreter()

	out, err := in.Interpret("  The capital of France is Paris.  ")
	require.NoError(t, err)
	assert.Equal(t, "The capital of France is Paris.", out.Result)
	assert.Equal(t, "completed", out.Status)
	assert.Nil(t, out.Tool)
}

func TestScriptedReasoner(t *testing.T) {
	r := NewScriptedReasoner(`{"result": "one"}`)
	r.QueueError(errors.New("transient"))
	r.QueueResponse(`{"result": "two"}`)

	ctx := context.Background()

	got, err := r.Predict(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, `{"result": "one"}`, got)

	_, err = r.Predict(ctx, "p2")
	assert.EqualError(t, err, "transient")

	got, err = r.Predict(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, `{"result": "two"}`, got)

	// Exhausted script answers benignly.
	got, err = r.Predict(ctx, "p4")
	require.NoError(t, err)
	assert.Contains(t, got, "acknowledged")

	assert.Equal(t, []string{"p1", "p2", "p3", "p4"}, r.Prompts())
}

func TestFatalError(t *testing.T) {
	err := &FatalError{Message: "backend gone"}
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(errors.New("plain")))
}
