// Package gateway exposes the tools the pipeline stages can call: remote
// Pharo image access over MCP plus the local bookkeeping tools.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pharoreview/internal/mcp"
	"pharoreview/internal/pharo"
	"pharoreview/internal/pipeline"
	"pharoreview/internal/types"
)

// Tool names as the model sees them. The remote names must match the
// tools registered by the Pharo interop MCP server.
const (
	ToolGetMethodSource    = "get_method_source"
	ToolEval               = "eval"
	ToolSaveContext        = "save_context"
	ToolExitValidationLoop = "exit_validation_loop"
	ToolCompilationScript  = "generate_compilation_script"
)

// Blackboard keys written by the local tools.
const (
	KeyClassName  = "class_name"
	KeyMethodName = "method_name"
)

// Gateway routes tool calls from the pipeline either to the remote MCP
// server or to local handlers. The transport is connected lazily on
// first remote use so the daemon starts even when the Pharo server is
// down.
type Gateway struct {
	transport mcp.Transport
	logger    *zap.Logger

	connectMu sync.Mutex

	definitions map[string]types.ToolDefinition
}

// New creates a gateway over the given transport.
func New(transport mcp.Transport, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		transport:   transport,
		logger:      logger,
		definitions: buildDefinitions(),
	}
}

// ensureConnected connects the transport on first remote use.
func (g *Gateway) ensureConnected(ctx context.Context) error {
	g.connectMu.Lock()
	defer g.connectMu.Unlock()
	if g.transport.IsConnected() {
		return nil
	}
	if err := g.transport.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

// FetchSource retrieves the source code of className>>methodName from
// the remote image.
func (g *Gateway) FetchSource(ctx context.Context, className, methodName string) (string, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return "", err
	}

	result, err := g.transport.CallTool(ctx, ToolGetMethodSource, map[string]interface{}{
		"class_name":  className,
		"method_name": methodName,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if result.IsError {
		return "", fmt.Errorf("%w: %s>>%s: %s", ErrNotFound, className, methodName, result.Text())
	}
	return result.Text(), nil
}

// Evaluate runs a Smalltalk expression in the remote image and returns
// the raw response text. Evaluation outcomes are never classified here;
// the release stage reads the text and decides for itself.
func (g *Gateway) Evaluate(ctx context.Context, expression string) (string, error) {
	if err := g.ensureConnected(ctx); err != nil {
		return "", err
	}

	result, err := g.transport.CallTool(ctx, ToolEval, map[string]interface{}{
		"expression": expression,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return result.Text(), nil
}

// Close shuts down the underlying transport.
func (g *Gateway) Close() error {
	return g.transport.Close()
}

// Definitions returns the tool definitions for the given names, in order.
// Unknown names are skipped.
func (g *Gateway) Definitions(names []string) []types.ToolDefinition {
	defs := make([]types.ToolDefinition, 0, len(names))
	for _, name := range names {
		if def, ok := g.definitions[name]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// Execute dispatches a tool call requested by the model. A returned
// error wrapped with pipeline.Fatal aborts the stage; any other error is
// reported back to the model as a failed tool result.
func (g *Gateway) Execute(ctx context.Context, run *pipeline.RunContext, call types.ToolCall) (string, error) {
	g.logger.Debug("executing tool call",
		zap.String("tool", call.Name),
		zap.String("id", call.ID))

	switch call.Name {
	case ToolGetMethodSource:
		className, err := stringArg(call.Input, "class_name")
		if err != nil {
			return "", err
		}
		methodName, err := stringArg(call.Input, "method_name")
		if err != nil {
			return "", err
		}
		source, err := g.FetchSource(ctx, className, methodName)
		if err != nil {
			return "", pipeline.Fatal(err)
		}
		return source, nil

	case ToolEval:
		expression, err := stringArg(call.Input, "expression")
		if err != nil {
			return "", err
		}
		out, err := g.Evaluate(ctx, expression)
		if err != nil {
			return "", pipeline.Fatal(err)
		}
		return out, nil

	case ToolSaveContext:
		className, err := stringArg(call.Input, "class_name")
		if err != nil {
			return "", err
		}
		methodName, err := stringArg(call.Input, "method_name")
		if err != nil {
			return "", err
		}
		run.Board.Set(KeyClassName, className)
		run.Board.Set(KeyMethodName, methodName)
		return fmt.Sprintf("Saved context: class %s, method %s.", className, methodName), nil

	case ToolExitValidationLoop:
		if run.SignalLoopExit() {
			return "Exiting the validation loop.", nil
		}
		return "No active validation loop; nothing to exit.", nil

	case ToolCompilationScript:
		className, err := stringArg(call.Input, "class_name")
		if err != nil {
			return "", err
		}
		code, err := stringArg(call.Input, "code")
		if err != nil {
			return "", err
		}
		return pharo.CompileScript(className, code), nil

	default:
		return "", fmt.Errorf("unknown tool: %s", call.Name)
	}
}

// stringArg extracts a required string argument from tool input.
func stringArg(input map[string]interface{}, key string) (string, error) {
	v, ok := input[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func buildDefinitions() map[string]types.ToolDefinition {
	defs := []types.ToolDefinition{
		{
			Name:        ToolGetMethodSource,
			Description: "Fetches the source code of a method from the Pharo image.",
			InputSchema: objectSchema(map[string]string{
				"class_name":  "Name of the Pharo class",
				"method_name": "Selector of the method",
			}, "class_name", "method_name"),
		},
		{
			Name:        ToolEval,
			Description: "Evaluates a Smalltalk expression in the Pharo image and returns the result.",
			InputSchema: objectSchema(map[string]string{
				"expression": "Smalltalk expression to evaluate",
			}, "expression"),
		},
		{
			Name:        ToolSaveContext,
			Description: "Saves the class name and method name for later stages. Call this first, before fetching any source code.",
			InputSchema: objectSchema(map[string]string{
				"class_name":  "Name of the Pharo class",
				"method_name": "Selector of the method",
			}, "class_name", "method_name"),
		},
		{
			Name:        ToolExitValidationLoop,
			Description: "Call this ONLY when the validation result is APPROVED, signaling that the refinement process is complete.",
			InputSchema: objectSchema(nil),
		},
		{
			Name:        ToolCompilationScript,
			Description: "Generates a single-line Pharo compilation script for the given class and source code.",
			InputSchema: objectSchema(map[string]string{
				"class_name": "Name of the Pharo class to compile into",
				"code":       "Full method source code",
			}, "class_name", "code"),
		},
	}

	out := make(map[string]types.ToolDefinition, len(defs))
	for _, d := range defs {
		out[d.Name] = d
	}
	return out
}

// objectSchema builds a JSON Schema object with string properties.
func objectSchema(props map[string]string, required ...string) map[string]interface{} {
	properties := make(map[string]interface{}, len(props))
	for name, desc := range props {
		properties[name] = map[string]interface{}{
			"type":        "string",
			"description": desc,
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
