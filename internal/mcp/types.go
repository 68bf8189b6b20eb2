// Package mcp implements a minimal MCP (Model Context Protocol) client over
// a stdio JSON-RPC transport, enough to drive the Pharo interop server.
package mcp

import (
	"context"
	"encoding/json"
)

// protocolVersion is the MCP revision sent in the initialize handshake.
const protocolVersion = "2024-11-05"

// mcpRequest represents a JSON-RPC style MCP request.
type mcpRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// mcpResponse represents a JSON-RPC style MCP response.
type mcpResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *mcpError       `json:"error,omitempty"`
}

// mcpError represents an error in an MCP response.
type mcpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// CallResult represents the result of calling an MCP tool.
type CallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one element of a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text concatenates the text blocks of the result.
func (r *CallResult) Text() string {
	var out string
	for _, block := range r.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

// Transport is the subset of MCP operations the gateway needs.
type Transport interface {
	// Connect starts the server subprocess and performs the initialize
	// handshake.
	Connect(ctx context.Context) error

	// CallTool invokes a named tool with the given arguments.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error)

	// Close terminates the subprocess and releases resources.
	Close() error

	// IsConnected reports whether the transport is usable.
	IsConnected() bool
}
