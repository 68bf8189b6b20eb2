package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"pharoreview/internal/types"
)

func TestHistoryToContents(t *testing.T) {
	history := []types.ConversationTurn{
		{Role: types.RoleUser, Text: "refactor this"},
		{
			Role: types.RoleModel,
			Text: "fetching",
			ToolCalls: []types.ToolCall{
				{ID: "c1", Name: "get_method_source", Input: map[string]interface{}{"class_name": "Calculator"}},
			},
		},
		{
			Role: types.RoleTool,
			ToolResults: []types.ToolResult{
				{ToolUseID: "c1", Name: "get_method_source", Content: "source"},
				{ToolUseID: "c2", Name: "eval", Content: "boom", IsError: true},
			},
		},
	}

	contents, err := historyToContents(history)
	require.NoError(t, err)
	require.Len(t, contents, 3)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "fetching", contents[1].Parts[0].Text)
	require.NotNil(t, contents[1].Parts[1].FunctionCall)
	assert.Equal(t, "get_method_source", contents[1].Parts[1].FunctionCall.Name)

	require.Len(t, contents[2].Parts, 2)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "source", contents[2].Parts[0].FunctionResponse.Response["result"])
	assert.Equal(t, "boom", contents[2].Parts[1].FunctionResponse.Response["error"])
}

func TestHistoryToContentsUnknownRole(t *testing.T) {
	_, err := historyToContents([]types.ConversationTurn{{Role: "system"}})
	assert.Error(t, err)
}

func TestToSchema(t *testing.T) {
	schema := toSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"class_name": map[string]interface{}{
				"type":        "string",
				"description": "Name of the Pharo class",
			},
		},
		"required": []string{"class_name"},
	})

	assert.Equal(t, genai.TypeObject, schema.Type)
	require.Contains(t, schema.Properties, "class_name")
	assert.Equal(t, genai.TypeString, schema.Properties["class_name"].Type)
	assert.Equal(t, []string{"class_name"}, schema.Required)
}

func TestToSchemaNil(t *testing.T) {
	schema := toSchema(nil)
	assert.Equal(t, genai.TypeObject, schema.Type)
}

func TestToToolResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: string(genai.RoleModel),
				Parts: []*genai.Part{
					{Text: "let me check"},
					{FunctionCall: &genai.FunctionCall{Name: "eval", Args: map[string]any{"expression": "1 + 1"}}},
				},
			},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     100,
			CandidatesTokenCount: 20,
			TotalTokenCount:      120,
		},
	}

	out := toToolResponse(resp)
	assert.Equal(t, "let me check", out.Text)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "eval", out.ToolCalls[0].Name)
	assert.NotEmpty(t, out.ToolCalls[0].ID, "missing call IDs get synthesized")
	assert.Equal(t, "tool_use", out.StopReason)
	assert.Equal(t, 120, out.Usage.TotalTokens)
}

func TestNewGeminiClientRequiresKeyAndModel(t *testing.T) {
	_, err := NewGeminiClient(t.Context(), "", "gemini-3-pro-preview", 0, nil)
	assert.Error(t, err)

	_, err = NewGeminiClient(t.Context(), "key", "", 0, nil)
	assert.Error(t, err)
}
