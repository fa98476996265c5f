package middleware

import (
	"context"
	"io"
	"log/slog"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/ops"
	"github.com/parleyhq/parley/tools"
)

// DefaultMaxRounds bounds how many tool round-trips the auto-execute loop
// will drive before handing the raw reply back to the caller.
const DefaultMaxRounds = 8

// ToolExecutor executes InvokeTool operations for one bound tool.
// Operations naming other tools pass through untouched.
//
// With auto-execute enabled the handler also intercepts RunTurn and
// GenerateNext operations: when a turn whose chat ends in a user message
// produces an assistant reply carrying calls to the bound tool, it executes
// each call directly, appends one tool message per call, and issues a
// follow-up turn on the augmented chat. The original caller's continuation
// sees only the final response. Turns whose chat does not end in a user
// message never arm the loop, which guards against executing tools on an
// unsolicited reply-to-reply.
type ToolExecutor[A any] struct {
	next        Handler[A]
	tool        tools.Runner
	autoExecute bool
	maxRounds   int
	logger      *slog.Logger
}

// NewToolExecutor creates a tool-execution handler for tool, dispatching to
// next.
func NewToolExecutor[A any](next Handler[A], tool tools.Runner) *ToolExecutor[A] {
	return &ToolExecutor[A]{
		next:      next,
		tool:      tool,
		maxRounds: DefaultMaxRounds,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithAutoExecute enables or disables the auto-execute loop.
func (h *ToolExecutor[A]) WithAutoExecute(on bool) *ToolExecutor[A] {
	h.autoExecute = on
	return h
}

// WithMaxRounds caps the number of auto-executed tool round-trips. When the
// cap is reached the assistant reply is delivered to the caller with its
// tool calls unexecuted.
func (h *ToolExecutor[A]) WithMaxRounds(n int) *ToolExecutor[A] {
	if n > 0 {
		h.maxRounds = n
	}
	return h
}

// WithLogger sets the handler's logger.
func (h *ToolExecutor[A]) WithLogger(logger *slog.Logger) *ToolExecutor[A] {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Handle implements Handler.
func (h *ToolExecutor[A]) Handle(ctx context.Context, p ops.Program[A]) (A, error) {
	if p.Done() {
		return p.Result()
	}
	switch op := p.Op().(type) {
	case *ops.InvokeTool[A]:
		if op.Call.Function.Name != h.tool.Name() {
			return h.next.Handle(ctx, p)
		}
		h.logger.Debug("executing tool call", "tool", h.tool.Name(), "tool_call_id", op.Call.ID)
		content, err := h.tool.Invoke(ctx, op.Call.Function.Arguments)
		if err != nil {
			h.logger.Error("tool call failed", "tool", h.tool.Name(), "error", err)
			return h.Handle(ctx, op.Next(ops.ToolOutcome{}, err))
		}
		outcome := ops.ToolOutcome{ToolCallID: op.Call.ID, Content: content}
		// Re-enter so a continuation suspending another tool call is
		// executed here rather than forwarded past this handler.
		return h.Handle(ctx, op.Next(outcome, nil))

	case *ops.RunTurn[A]:
		if !h.autoExecute || !endsWithUser(op.Chat) {
			return h.next.Handle(ctx, p)
		}
		rewrapped := &ops.RunTurn[A]{
			Chat:       op.Chat,
			ExtraTools: op.ExtraTools,
			Next:       h.turnLoop(ctx, op.Chat, op.ExtraTools, op.Next, 0),
		}
		return h.next.Handle(ctx, ops.Suspend[A](rewrapped))

	case *ops.GenerateNext[A]:
		if !h.autoExecute || !endsWithUser(op.Chat) {
			return h.next.Handle(ctx, p)
		}
		rewrapped := &ops.GenerateNext[A]{
			Chat: op.Chat,
			Next: h.generateLoop(ctx, op.Next, 0),
		}
		return h.next.Handle(ctx, ops.Suspend[A](rewrapped))

	default:
		return h.next.Handle(ctx, p)
	}
}

// turnLoop builds the continuation driving the auto-execute loop for
// RunTurn: execute matching calls, append their tool messages, and run a
// follow-up turn whose continuation re-enters the loop until the reply has
// no matching calls or the round cap is reached. The original continuation
// resolves exactly once, with the final reply.
func (h *ToolExecutor[A]) turnLoop(
	ctx context.Context,
	chat core.Chat,
	extraTools []core.ToolInfo,
	original func(core.Message, error) ops.Program[A],
	round int,
) func(core.Message, error) ops.Program[A] {
	return func(msg core.Message, err error) ops.Program[A] {
		if err != nil {
			return original(msg, err)
		}
		calls := h.matchingCalls(msg)
		if len(calls) == 0 {
			return original(msg, nil)
		}
		if round >= h.maxRounds {
			h.logger.Warn("tool round cap reached", "tool", h.tool.Name(), "rounds", round)
			return original(msg, nil)
		}
		augmented, execErr := h.executeCalls(ctx, chat.Append(msg), calls)
		if execErr != nil {
			return original(core.Message{}, execErr)
		}
		return ops.Suspend[A](&ops.RunTurn[A]{
			Chat:       augmented,
			ExtraTools: extraTools,
			Next:       h.turnLoop(ctx, augmented, extraTools, original, round+1),
		})
	}
}

// generateLoop is turnLoop for GenerateNext, whose continuation carries the
// full chat instead of the bare reply.
func (h *ToolExecutor[A]) generateLoop(
	ctx context.Context,
	original func(core.Chat, error) ops.Program[A],
	round int,
) func(core.Chat, error) ops.Program[A] {
	return func(chat core.Chat, err error) ops.Program[A] {
		if err != nil {
			return original(chat, err)
		}
		last, ok := chat.LastMessage()
		if !ok || last.Role != core.RoleAssistant {
			return original(chat, nil)
		}
		calls := h.matchingCalls(last)
		if len(calls) == 0 {
			return original(chat, nil)
		}
		if round >= h.maxRounds {
			h.logger.Warn("tool round cap reached", "tool", h.tool.Name(), "rounds", round)
			return original(chat, nil)
		}
		augmented, execErr := h.executeCalls(ctx, chat, calls)
		if execErr != nil {
			return original(core.Chat{}, execErr)
		}
		return ops.Suspend[A](&ops.GenerateNext[A]{
			Chat: augmented,
			Next: h.generateLoop(ctx, original, round+1),
		})
	}
}

func (h *ToolExecutor[A]) matchingCalls(msg core.Message) []core.ToolCall {
	if msg.Role != core.RoleAssistant {
		return nil
	}
	var calls []core.ToolCall
	for _, call := range msg.ToolCalls {
		if call.Function.Name == h.tool.Name() {
			calls = append(calls, call)
		}
	}
	return calls
}

// executeCalls runs each call against the bound tool and appends one tool
// message per call to chat.
func (h *ToolExecutor[A]) executeCalls(ctx context.Context, chat core.Chat, calls []core.ToolCall) (core.Chat, error) {
	for _, call := range calls {
		h.logger.Debug("auto-executing tool call", "tool", h.tool.Name(), "tool_call_id", call.ID)
		content, err := h.tool.Invoke(ctx, call.Function.Arguments)
		if err != nil {
			h.logger.Error("auto-executed tool call failed", "tool", h.tool.Name(), "error", err)
			return core.Chat{}, err
		}
		chat = chat.Append(core.ToolMessage(call.ID, content))
	}
	return chat, nil
}

func endsWithUser(chat core.Chat) bool {
	last, ok := chat.LastMessage()
	return ok && last.Role == core.RoleUser
}
