package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallResultText(t *testing.T) {
	r := &CallResult{Content: []ContentBlock{
		{Type: "text", Text: "hello "},
		{Type: "image", Text: "ignored"},
		{Type: "text", Text: "world"},
	}}
	assert.Equal(t, "hello world", r.Text())

	empty := &CallResult{}
	assert.Equal(t, "", empty.Text())
}

func TestCallResultUnmarshal(t *testing.T) {
	raw := `{"content":[{"type":"text","text":"sum:with:"}],"isError":true}`

	var result CallResult
	require.NoError(t, json.Unmarshal([]byte(raw), &result))
	assert.True(t, result.IsError)
	assert.Equal(t, "sum:with:", result.Text())
}

func TestRequestMarshalShape(t *testing.T) {
	req := mcpRequest{
		JSONRPC: "2.0",
		ID:      7,
		Method:  "tools/call",
		Params:  map[string]interface{}{"name": "eval"},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"eval"}}`, string(data))
}
