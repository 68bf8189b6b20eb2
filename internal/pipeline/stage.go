package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pharoreview/internal/types"
)

// ToolRunner executes tool calls on behalf of a stage and supplies their
// definitions to the oracle.
type ToolRunner interface {
	Definitions(names []string) []types.ToolDefinition
	Execute(ctx context.Context, run *RunContext, call types.ToolCall) (string, error)
}

// Stage is one step of the pipeline: an instruction template, the tools
// it may call, and the blackboard key its final text is stored under.
type Stage struct {
	Role        string
	Instruction string   // Template with {key} placeholders
	Tools       []string // Tool names; empty means tool-free
	OutputKey   string
}

// runStage renders the stage instruction, drives the oracle (with tool
// calls when the stage is tool-enabled) and stores the final text on the
// blackboard.
func (p *Pipeline) runStage(ctx context.Context, run *RunContext, task string, stage *Stage) error {
	logger := p.logger.With(zap.String("role", stage.Role))
	logger.Info("running stage")

	system, err := renderTemplate(stage.Instruction, run.Board)
	if err != nil {
		return &StageError{Role: stage.Role, Err: err}
	}

	escalatedBefore := run.Escalated()

	var text string
	if len(stage.Tools) == 0 {
		text, err = p.oracle.CompleteWithSystem(ctx, system, task)
		if err != nil {
			return &StageError{Role: stage.Role, Err: err}
		}
	} else {
		text, err = p.runToolLoop(ctx, run, system, task, stage, logger)
		if err != nil {
			return &StageError{Role: stage.Role, Err: err}
		}
	}

	text = strings.TrimSpace(text)
	exitedHere := !escalatedBefore && run.Escalated()

	// A stage that just signalled loop exit produces a sign-off message,
	// not an output; the previous value under its key stands.
	if exitedHere {
		logger.Info("stage signalled loop exit", zap.String("output_key", stage.OutputKey))
		return nil
	}

	if text == "" {
		return &StageError{Role: stage.Role, Err: fmt.Errorf("empty response from model")}
	}
	if stage.OutputKey != "" {
		run.Board.Set(stage.OutputKey, text)
	}
	logger.Info("stage complete", zap.Int("output_len", len(text)))
	return nil
}

// runToolLoop drives the converse/execute cycle until the model stops
// requesting tools or the call budget is spent.
func (p *Pipeline) runToolLoop(ctx context.Context, run *RunContext, system, task string, stage *Stage, logger *zap.Logger) (string, error) {
	defs := p.tools.Definitions(stage.Tools)
	history := []types.ConversationTurn{
		{Role: types.RoleUser, Text: task},
	}

	callCount := 0
	for {
		resp, err := p.oracle.Converse(ctx, system, history, defs)
		if err != nil {
			return "", fmt.Errorf("llm request failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Text, nil
		}

		callCount += len(resp.ToolCalls)
		if callCount > p.maxToolCalls {
			return "", fmt.Errorf("tool call budget exceeded (%d)", p.maxToolCalls)
		}

		results := make([]types.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			content, err := p.executeTool(ctx, run, call)
			if err != nil {
				if IsFatal(err) {
					return "", err
				}
				logger.Warn("tool call failed",
					zap.String("tool", call.Name),
					zap.Error(err))
				results = append(results, types.ToolResult{
					ToolUseID: call.ID,
					Name:      call.Name,
					Content:   err.Error(),
					IsError:   true,
				})
				continue
			}
			results = append(results, types.ToolResult{
				ToolUseID: call.ID,
				Name:      call.Name,
				Content:   content,
			})
		}

		history = append(history,
			types.ConversationTurn{Role: types.RoleModel, Text: resp.Text, ToolCalls: resp.ToolCalls},
			types.ConversationTurn{Role: types.RoleTool, ToolResults: results},
		)
	}
}

// executeTool runs one tool call under the per-tool timeout.
func (p *Pipeline) executeTool(ctx context.Context, run *RunContext, call types.ToolCall) (string, error) {
	toolCtx := ctx
	if p.toolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, p.toolTimeout)
		defer cancel()
	}
	return p.tools.Execute(toolCtx, run, call)
}
