// Package middleware implements the handler chain that interprets programs
// built from the ops package.
//
// A Handler inspects a Program: if it recognizes the pending operation it
// performs the effect, feeds the result to the operation's continuation, and
// keeps interpreting the resulting Program; anything it does not recognize
// is forwarded untouched. Handlers are composed by nesting, with the
// Terminal handler innermost, in a fixed caller-chosen order. Each operation
// variant should be recognized by exactly one handler in a chain.
//
// Execution is strictly sequential within one Program. Handlers hold only
// read-only configuration, so independent Programs may run concurrently
// through the same chain.
package middleware

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/ops"
)

// Handler interprets programs for a terminal result type A threaded through
// the chain.
type Handler[A any] interface {
	Handle(ctx context.Context, p ops.Program[A]) (A, error)
}

// Terminal ends a handler chain. A pending program reaching it means the
// chain ran out of handlers with unconsumed work, which is always a
// composition defect, never a legitimate outcome.
type Terminal[A any] struct{}

// NewTerminal creates the chain-ending handler.
func NewTerminal[A any]() Terminal[A] {
	return Terminal[A]{}
}

// Handle returns the final result of a done program, or ErrProgramInvalid
// for a pending one.
func (Terminal[A]) Handle(_ context.Context, p ops.Program[A]) (A, error) {
	if !p.Done() {
		var zero A
		return zero, fmt.Errorf("%w: operation %T reached the end of the chain", core.ErrProgramInvalid, p.Op())
	}
	return p.Result()
}

var _ Handler[core.Message] = Terminal[core.Message]{}
