// Package types holds the contracts shared between the pipeline, the tool
// gateway and the LLM oracle so the packages can depend on each other
// without import cycles.
package types

import (
	"context"
)

// LLMClient defines the interface for LLM interactions.
type LLMClient interface {
	// CompleteWithSystem sends a prompt with a system message and returns
	// plain text. Used by tool-free stages.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Converse sends a conversation with tool definitions and returns the
	// response together with any tool calls the model requested. Callers
	// append the model turn and a tool turn with results, then call again
	// to continue the exchange. This is what makes tool-enabled pipeline
	// stages agentic.
	Converse(ctx context.Context, systemPrompt string, history []ConversationTurn, tools []ToolDefinition) (*LLMToolResponse, error)
}

// Conversation roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// ConversationTurn is one turn of a tool-calling exchange.
type ConversationTurn struct {
	Role        string       `json:"role"`
	Text        string       `json:"text,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`   // Model turns
	ToolResults []ToolResult `json:"tool_results,omitempty"` // Tool turns
}

// ToolDefinition describes a tool that the LLM can invoke.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"` // JSON Schema for parameters
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID    string                 `json:"id"`    // Unique ID for this tool use
	Name  string                 `json:"name"`  // Tool name to invoke
	Input map[string]interface{} `json:"input"` // Tool arguments
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"` // Matches ToolCall.ID
	Name      string `json:"name"`        // Tool name that produced this result
	Content   string `json:"content"`     // Result content
	IsError   bool   `json:"is_error"`    // Whether this is an error result
}

// UsageMetadata captures token usage metrics from the LLM.
type UsageMetadata struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// LLMToolResponse contains both text response and tool calls from the LLM.
type LLMToolResponse struct {
	Text       string        `json:"text"`        // Text response (may be empty if only tool calls)
	ToolCalls  []ToolCall    `json:"tool_calls"`  // Tool invocations requested by the LLM
	StopReason string        `json:"stop_reason"` // "end_turn", "tool_use", etc.
	Usage      UsageMetadata `json:"usage"`       // Token usage metrics
}
