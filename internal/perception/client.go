// Package perception implements the LLM oracle on the Gemini API.
package perception

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"pharoreview/internal/types"
)

// GeminiClient implements types.LLMClient against the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiClient creates a client for the given model.
func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// CompleteWithSystem sends a single user prompt under a system
// instruction and returns the text response.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return resp.Text(), nil
}

// Converse sends a tool-calling conversation and returns the response
// with any requested tool calls.
func (c *GeminiClient) Converse(ctx context.Context, systemPrompt string, history []types.ConversationTurn, tools []types.ToolDefinition) (*types.LLMToolResponse, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	contents, err := historyToContents(history)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: toDeclarations(tools),
		}}
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	out := toToolResponse(resp)
	c.logger.Debug("gemini turn complete",
		zap.Int("tool_calls", len(out.ToolCalls)),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (c *GeminiClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// historyToContents maps conversation turns to Gemini contents. Tool
// results travel back as function responses on a user-role content.
func historyToContents(history []types.ConversationTurn) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case types.RoleUser:
			contents = append(contents, genai.NewContentFromText(turn.Text, genai.RoleUser))

		case types.RoleModel:
			parts := make([]*genai.Part, 0, len(turn.ToolCalls)+1)
			if turn.Text != "" {
				parts = append(parts, genai.NewPartFromText(turn.Text))
			}
			for _, call := range turn.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(call.Name, call.Input))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))

		case types.RoleTool:
			parts := make([]*genai.Part, 0, len(turn.ToolResults))
			for _, result := range turn.ToolResults {
				response := map[string]any{"result": result.Content}
				if result.IsError {
					response = map[string]any{"error": result.Content}
				}
				parts = append(parts, genai.NewPartFromFunctionResponse(result.Name, response))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

		default:
			return nil, fmt.Errorf("unknown conversation role %q", turn.Role)
		}
	}
	return contents, nil
}

// toDeclarations converts tool definitions to Gemini function
// declarations.
func toDeclarations(tools []types.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toSchema(tool.InputSchema),
		})
	}
	return decls
}

// toSchema converts a JSON Schema map to the Gemini schema type. Only
// the object/string subset the tool definitions use is handled.
func toSchema(raw map[string]interface{}) *genai.Schema {
	if raw == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}

	schema := &genai.Schema{}
	switch raw["type"] {
	case "object":
		schema.Type = genai.TypeObject
	case "string":
		schema.Type = genai.TypeString
	default:
		schema.Type = genai.TypeObject
	}

	if desc, ok := raw["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := raw["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				schema.Properties[name] = toSchema(pm)
			}
		}
	}
	switch req := raw["required"].(type) {
	case []string:
		schema.Required = req
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

// toToolResponse extracts text, function calls and usage from a Gemini
// response.
func toToolResponse(resp *genai.GenerateContentResponse) *types.LLMToolResponse {
	out := &types.LLMToolResponse{
		Text:       resp.Text(),
		StopReason: "end_turn",
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.FunctionCall == nil {
				continue
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:    id,
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
		}
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = "tool_use"
	}

	if resp.UsageMetadata != nil {
		out.Usage = types.UsageMetadata{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out
}

// Ensure GeminiClient implements the oracle contract.
var _ types.LLMClient = (*GeminiClient)(nil)
