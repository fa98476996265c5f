package middleware

import (
	"context"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/ops"
)

// BreakOnTool short-circuits a message program when a turn's reply carries a
// call to the target tool: the reply becomes the program's final value and
// the rest of the continuation never runs. Useful for handing a specific
// tool call back to the caller instead of letting downstream handlers (or an
// auto-execute loop) consume it.
type BreakOnTool struct {
	next   Handler[core.Message]
	target string
}

// NewBreakOnTool creates a break-on-tool handler for the named tool.
func NewBreakOnTool(next Handler[core.Message], target string) *BreakOnTool {
	return &BreakOnTool{next: next, target: target}
}

// Handle implements Handler.
func (h *BreakOnTool) Handle(ctx context.Context, p ops.Program[core.Message]) (core.Message, error) {
	if p.Done() {
		return p.Result()
	}
	op, ok := p.Op().(*ops.RunTurn[core.Message])
	if !ok {
		return h.next.Handle(ctx, p)
	}
	next := op.Next
	rewrapped := &ops.RunTurn[core.Message]{
		Chat:       op.Chat,
		ExtraTools: op.ExtraTools,
		Next: func(msg core.Message, err error) ops.Program[core.Message] {
			if err == nil && callsTool(msg, h.target) {
				return ops.Pure(msg)
			}
			return next(msg, err)
		},
	}
	return h.next.Handle(ctx, ops.Suspend[core.Message](rewrapped))
}

func callsTool(msg core.Message, name string) bool {
	for _, call := range msg.ToolCalls {
		if call.Function.Name == name {
			return true
		}
	}
	return false
}
