package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StdioTransport runs the MCP server as a subprocess and speaks JSON-RPC
// over its stdin/stdout, one message per line.
type StdioTransport struct {
	mu sync.Mutex

	command string
	args    []string
	dir     string
	env     map[string]string
	timeout time.Duration
	logger  *zap.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	connected   bool
	pendingReqs map[int]chan *mcpResponse
	nextID      int

	done chan struct{}
	wg   sync.WaitGroup
}

// StdioOptions configures the subprocess launch.
type StdioOptions struct {
	Command string
	Args    []string
	Dir     string
	Env     map[string]string // Added to the inherited environment
	Timeout time.Duration     // Bounds the initialize handshake and each call
	Logger  *zap.Logger
}

// NewStdioTransport creates a transport; the subprocess is not started
// until Connect.
func NewStdioTransport(opts StdioOptions) *StdioTransport {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &StdioTransport{
		command:     opts.Command,
		args:        opts.Args,
		dir:         opts.Dir,
		env:         opts.Env,
		timeout:     timeout,
		logger:      logger,
		pendingReqs: make(map[int]chan *mcpResponse),
		nextID:      1,
		done:        make(chan struct{}),
	}
}

// Connect starts the subprocess, the reader goroutines, and performs the
// MCP initialize handshake.
func (t *StdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}

	if t.command == "" {
		t.mu.Unlock()
		return fmt.Errorf("empty command for stdio transport")
	}

	cmd := exec.Command(t.command, t.args...)
	cmd.Dir = t.dir
	cmd.Env = os.Environ()
	for k, v := range t.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var err error
	if t.stdin, err = cmd.StdinPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	if t.stdout, err = cmd.StdoutPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if t.stderr, err = cmd.StderrPipe(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to start command %s: %w", t.command, err)
	}

	t.cmd = cmd
	t.connected = true

	t.wg.Add(2)
	go t.readStderr()
	go t.readStdout()
	t.mu.Unlock()

	initCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.initialize(initCtx); err != nil {
		_ = t.Close()
		return fmt.Errorf("MCP initialize failed: %w", err)
	}

	t.logger.Info("MCP stdio transport connected",
		zap.String("command", t.command))
	return nil
}

// initialize performs the handshake and sends the initialized notification.
func (t *StdioTransport) initialize(ctx context.Context) error {
	_, err := t.call(ctx, "initialize", map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]string{
			"name":    "pharoreviewd",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return err
	}

	notification := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	}
	data, _ := json.Marshal(notification)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin != nil {
		_, _ = t.stdin.Write(append(data, '\n'))
	}
	return nil
}

// Close kills the subprocess and cleans up pending requests.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false

	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	if t.stdin != nil {
		_ = t.stdin.Close()
	}

	close(t.done)

	for id, ch := range t.pendingReqs {
		close(ch)
		delete(t.pendingReqs, id)
	}
	t.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(1 * time.Second):
		t.logger.Warn("timeout waiting for stdio transport goroutines to exit")
	}

	t.logger.Info("MCP stdio transport disconnected")
	return nil
}

// readStderr drains the subprocess stderr into the log.
func (t *StdioTransport) readStderr() {
	defer t.wg.Done()
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		t.logger.Debug("mcp server stderr", zap.String("line", scanner.Text()))
	}
}

// readStdout reads JSON-RPC messages and dispatches responses to waiters.
func (t *StdioTransport) readStdout() {
	defer t.wg.Done()
	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw map[string]interface{}
		if err := json.Unmarshal(line, &raw); err != nil {
			t.logger.Warn("failed to parse JSON from stdout", zap.Error(err))
			continue
		}

		idVal, ok := raw["id"]
		if !ok {
			// Notification or request from the server; nothing to dispatch.
			t.logger.Debug("mcp notification", zap.ByteString("line", line))
			continue
		}

		var id int
		switch v := idVal.(type) {
		case float64:
			id = int(v)
		case int:
			id = v
		default:
			continue
		}

		var resp mcpResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			t.logger.Warn("failed to unmarshal response", zap.Error(err))
			continue
		}

		t.mu.Lock()
		if ch, exists := t.pendingReqs[id]; exists {
			delete(t.pendingReqs, id)
			ch <- &resp
		} else {
			t.logger.Warn("response for unknown request id", zap.Int("id", id))
		}
		t.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		t.mu.Lock()
		connected := t.connected
		t.mu.Unlock()
		if connected {
			t.logger.Error("error reading mcp stdout", zap.Error(err))
		}
	}
}

// call sends a request and waits for its response.
func (t *StdioTransport) call(ctx context.Context, method string, params interface{}) (*mcpResponse, error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil, fmt.Errorf("not connected to MCP server")
	}

	id := t.nextID
	t.nextID++

	req := mcpRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	ch := make(chan *mcpResponse, 1)
	t.pendingReqs[id] = ch

	data, err := json.Marshal(req)
	if err != nil {
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to write to stdin: %w", err)
	}
	t.mu.Unlock()

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, fmt.Errorf("connection closed")
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, ctx.Err()
	case <-t.done:
		return nil, fmt.Errorf("transport closed")
	}
}

// CallTool invokes a tool on the MCP server via tools/call.
func (t *StdioTransport) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	resp, err := t.call(callCtx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}

	var result CallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tool result: %w", err)
	}

	t.logger.Debug("mcp tool call complete",
		zap.String("tool", name),
		zap.Bool("is_error", result.IsError),
		zap.Duration("elapsed", time.Since(start)))
	return &result, nil
}

// IsConnected reports whether the transport is usable.
func (t *StdioTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Ensure StdioTransport implements Transport.
var _ Transport = (*StdioTransport)(nil)
