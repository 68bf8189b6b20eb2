package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharoreview/internal/mcp"
	"pharoreview/internal/pipeline"
	"pharoreview/internal/types"
)

// fakeTransport implements mcp.Transport with overridable function fields.
type fakeTransport struct {
	connectFunc  func(ctx context.Context) error
	callToolFunc func(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallResult, error)

	connected bool
	calls     []string
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if f.connectFunc != nil {
		if err := f.connectFunc(ctx); err != nil {
			return err
		}
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallResult, error) {
	f.calls = append(f.calls, name)
	if f.callToolFunc != nil {
		return f.callToolFunc(ctx, name, args)
	}
	return textResult("ok"), nil
}

func (f *fakeTransport) Close() error { f.connected = false; return nil }

func (f *fakeTransport) IsConnected() bool { return f.connected }

func textResult(text string) *mcp.CallResult {
	return &mcp.CallResult{Content: []mcp.ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) *mcp.CallResult {
	r := textResult(text)
	r.IsError = true
	return r
}

func TestFetchSourceReturnsText(t *testing.T) {
	ft := &fakeTransport{
		callToolFunc: func(_ context.Context, name string, args map[string]interface{}) (*mcp.CallResult, error) {
			assert.Equal(t, ToolGetMethodSource, name)
			assert.Equal(t, "Calculator", args["class_name"])
			assert.Equal(t, "sum:with:", args["method_name"])
			return textResult("sum: a with: b\n\t^ a + b"), nil
		},
	}
	g := New(ft, nil)

	source, err := g.FetchSource(context.Background(), "Calculator", "sum:with:")
	require.NoError(t, err)
	assert.Equal(t, "sum: a with: b\n\t^ a + b", source)
	assert.True(t, ft.connected, "gateway should connect lazily")
	assert.Equal(t, []string{ToolGetMethodSource}, ft.calls)
}

func TestFetchSourceNotFound(t *testing.T) {
	ft := &fakeTransport{
		callToolFunc: func(_ context.Context, _ string, _ map[string]interface{}) (*mcp.CallResult, error) {
			return errorResult("no such method"), nil
		},
	}
	g := New(ft, nil)

	_, err := g.FetchSource(context.Background(), "Calculator", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "no such method")
}

func TestFetchSourceConnectFailure(t *testing.T) {
	ft := &fakeTransport{
		connectFunc: func(context.Context) error {
			return fmt.Errorf("spawn failed")
		},
	}
	g := New(ft, nil)

	_, err := g.FetchSource(context.Background(), "Calculator", "sum:with:")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestEvaluateNeverClassifiesOutcome(t *testing.T) {
	// Error-flagged eval results still come back as plain text; the
	// release stage interprets them.
	ft := &fakeTransport{
		callToolFunc: func(_ context.Context, name string, args map[string]interface{}) (*mcp.CallResult, error) {
			assert.Equal(t, ToolEval, name)
			assert.Equal(t, "1 zork", args["expression"])
			return errorResult("doesNotUnderstand: #zork"), nil
		},
	}
	g := New(ft, nil)

	out, err := g.Evaluate(context.Background(), "1 zork")
	require.NoError(t, err)
	assert.Equal(t, "doesNotUnderstand: #zork", out)
}

func TestEvaluateTransportFailure(t *testing.T) {
	ft := &fakeTransport{
		callToolFunc: func(_ context.Context, _ string, _ map[string]interface{}) (*mcp.CallResult, error) {
			return nil, fmt.Errorf("broken pipe")
		},
	}
	g := New(ft, nil)

	_, err := g.Evaluate(context.Background(), "1 + 1")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestExecuteSaveContext(t *testing.T) {
	g := New(&fakeTransport{}, nil)
	run := pipeline.NewRunContext()

	out, err := g.Execute(context.Background(), run, types.ToolCall{
		ID:   "t1",
		Name: ToolSaveContext,
		Input: map[string]interface{}{
			"class_name":  "Calculator",
			"method_name": "sum:with:",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Calculator")

	class, ok := run.Board.Get(KeyClassName)
	require.True(t, ok)
	assert.Equal(t, "Calculator", class)
	method, ok := run.Board.Get(KeyMethodName)
	require.True(t, ok)
	assert.Equal(t, "sum:with:", method)
}

func TestExecuteExitValidationLoopOutsideLoop(t *testing.T) {
	g := New(&fakeTransport{}, nil)
	run := pipeline.NewRunContext()

	out, err := g.Execute(context.Background(), run, types.ToolCall{
		ID:    "t1",
		Name:  ToolExitValidationLoop,
		Input: map[string]interface{}{},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "No active validation loop")
	assert.False(t, run.Escalated())
}

func TestExecuteCompilationScript(t *testing.T) {
	g := New(&fakeTransport{}, nil)
	run := pipeline.NewRunContext()

	out, err := g.Execute(context.Background(), run, types.ToolCall{
		ID:   "t1",
		Name: ToolCompilationScript,
		Input: map[string]interface{}{
			"class_name": "Calculator",
			"code":       "sum: a with: b\n\t^ a + b",
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"Calculator compile: ('sum: a with: b', Character cr asString, '\t^ a + b')",
		out)
}

func TestExecuteFetchFailureIsFatal(t *testing.T) {
	ft := &fakeTransport{
		callToolFunc: func(_ context.Context, _ string, _ map[string]interface{}) (*mcp.CallResult, error) {
			return errorResult("not found"), nil
		},
	}
	g := New(ft, nil)
	run := pipeline.NewRunContext()

	_, err := g.Execute(context.Background(), run, types.ToolCall{
		ID:   "t1",
		Name: ToolGetMethodSource,
		Input: map[string]interface{}{
			"class_name":  "Missing",
			"method_name": "gone",
		},
	})
	require.Error(t, err)
	assert.True(t, pipeline.IsFatal(err))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteMissingArgumentIsNotFatal(t *testing.T) {
	g := New(&fakeTransport{}, nil)
	run := pipeline.NewRunContext()

	_, err := g.Execute(context.Background(), run, types.ToolCall{
		ID:    "t1",
		Name:  ToolSaveContext,
		Input: map[string]interface{}{"class_name": "Calculator"},
	})
	require.Error(t, err)
	assert.False(t, pipeline.IsFatal(err), "bad arguments go back to the model")
}

func TestExecuteUnknownTool(t *testing.T) {
	g := New(&fakeTransport{}, nil)
	run := pipeline.NewRunContext()

	_, err := g.Execute(context.Background(), run, types.ToolCall{
		ID:    "t1",
		Name:  "frobnicate",
		Input: map[string]interface{}{},
	})
	assert.Error(t, err)
}

func TestDefinitionsPreservesOrderAndSkipsUnknown(t *testing.T) {
	g := New(&fakeTransport{}, nil)

	defs := g.Definitions([]string{ToolSaveContext, "bogus", ToolGetMethodSource})
	require.Len(t, defs, 2)
	assert.Equal(t, ToolSaveContext, defs[0].Name)
	assert.Equal(t, ToolGetMethodSource, defs[1].Name)

	schema := defs[1].InputSchema
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "class_name")
	assert.Contains(t, props, "method_name")
}
