package middleware

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/ops"
)

// NotFound converts InvokeTool operations that no earlier handler consumed
// into an explicit ErrToolNotFound delivered through the operation's
// continuation, keeping the conversation logic able to branch on the
// failure. Without it, an unmatched InvokeTool reaches the terminal handler
// and the whole program fails with ErrProgramInvalid. Place it immediately
// before the terminal handler.
type NotFound[A any] struct {
	next Handler[A]
}

// NewNotFound creates the fallback handler dispatching to next.
func NewNotFound[A any](next Handler[A]) *NotFound[A] {
	return &NotFound[A]{next: next}
}

// Handle implements Handler.
func (h *NotFound[A]) Handle(ctx context.Context, p ops.Program[A]) (A, error) {
	if p.Done() {
		return p.Result()
	}
	op, ok := p.Op().(*ops.InvokeTool[A])
	if !ok {
		return h.next.Handle(ctx, p)
	}
	err := fmt.Errorf("%w: %s", core.ErrToolNotFound, op.Call.Function.Name)
	return h.next.Handle(ctx, op.Next(ops.ToolOutcome{}, err))
}
