package pipeline

import (
	"context"
	"fmt"

	"pharoreview/internal/types"
)

// mockLLM implements types.LLMClient with overridable function fields.
type mockLLM struct {
	completeWithSystemFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	converseFunc           func(ctx context.Context, systemPrompt string, history []types.ConversationTurn, tools []types.ToolDefinition) (*types.LLMToolResponse, error)
}

func (m *mockLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if m.completeWithSystemFunc != nil {
		return m.completeWithSystemFunc(ctx, systemPrompt, userPrompt)
	}
	return "mock response", nil
}

func (m *mockLLM) Converse(ctx context.Context, systemPrompt string, history []types.ConversationTurn, tools []types.ToolDefinition) (*types.LLMToolResponse, error) {
	if m.converseFunc != nil {
		return m.converseFunc(ctx, systemPrompt, history, tools)
	}
	return &types.LLMToolResponse{Text: "mock response", StopReason: "end_turn"}, nil
}

// mockTools implements ToolRunner, emulating the gateway's local tools
// plus a canned remote image.
type mockTools struct {
	executeFunc func(ctx context.Context, run *RunContext, call types.ToolCall) (string, error)

	executed []string
}

func (m *mockTools) Definitions(names []string) []types.ToolDefinition {
	defs := make([]types.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, types.ToolDefinition{
			Name:        name,
			InputSchema: map[string]interface{}{"type": "object"},
		})
	}
	return defs
}

func (m *mockTools) Execute(ctx context.Context, run *RunContext, call types.ToolCall) (string, error) {
	m.executed = append(m.executed, call.Name)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, run, call)
	}
	return "ok", nil
}

// stubTools behaves like the real gateway for the local tools and serves
// a fixed method source for the remote ones.
func stubTools(source string) *mockTools {
	m := &mockTools{}
	m.executeFunc = func(_ context.Context, run *RunContext, call types.ToolCall) (string, error) {
		switch call.Name {
		case "save_context":
			run.Board.Set("class_name", call.Input["class_name"].(string))
			run.Board.Set("method_name", call.Input["method_name"].(string))
			return "saved", nil
		case "get_method_source":
			return source, nil
		case "exit_validation_loop":
			if run.SignalLoopExit() {
				return "Exiting the validation loop.", nil
			}
			return "No active validation loop; nothing to exit.", nil
		case "generate_compilation_script":
			return "Calculator compile: ('stub')", nil
		case "eval":
			return "sum:with:", nil
		default:
			return "", fmt.Errorf("unknown tool: %s", call.Name)
		}
	}
	return m
}

func toolCall(id, name string, input map[string]interface{}) types.ToolCall {
	if input == nil {
		input = map[string]interface{}{}
	}
	return types.ToolCall{ID: id, Name: name, Input: input}
}

func toolUseResponse(calls ...types.ToolCall) *types.LLMToolResponse {
	return &types.LLMToolResponse{ToolCalls: calls, StopReason: "tool_use"}
}

func textResponse(text string) *types.LLMToolResponse {
	return &types.LLMToolResponse{Text: text, StopReason: "end_turn"}
}

// hasToolTurn reports whether the history already contains tool results.
func hasToolTurn(history []types.ConversationTurn) bool {
	for _, turn := range history {
		if turn.Role == types.RoleTool {
			return true
		}
	}
	return false
}
