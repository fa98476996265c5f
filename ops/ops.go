// Package ops defines the operation algebra: a conversation workflow
// represented as a value that can be built once and executed later by a
// middleware chain.
//
// A Program is either pending one Op or done with a final result. Each Op is
// a pending unit of work carrying a continuation: a function from the
// effect's result to the next Program. Constructing an Op performs no
// effect; whichever handler recognizes the Op performs it, invokes the
// continuation exactly once, and dispatches the resulting Program onward.
// The encoding is a plain tagged union carrying closures, so handlers
// compose without mutual awareness and without reflection.
package ops

import "github.com/parleyhq/parley/core"

// ToolOutcome is the result of executing one tool call.
type ToolOutcome struct {
	ToolCallID string
	Content    string
}

// Op is one variant of the closed set of pending operations. The set is
// sealed: handlers match variants with a type switch and forward anything
// they do not recognize.
type Op[A any] interface {
	op()
}

// RunTurn requests one conversation turn: send the chat (merged with the
// executing handler's baseline settings) to the remote service and resume
// with the reply message.
type RunTurn[A any] struct {
	Chat       core.Chat
	ExtraTools []core.ToolInfo
	Next       func(core.Message, error) Program[A]
}

// AppendMessage requests that a message be appended to the chat, with token
// accounting and compaction reapplied. No outbound call is made.
type AppendMessage[A any] struct {
	Chat    core.Chat
	Message core.Message
	Next    func(core.Chat, error) Program[A]
}

// GenerateNext requests one turn against the op's own chat and resumes with
// the chat extended by the reply.
type GenerateNext[A any] struct {
	Chat core.Chat
	Next func(core.Chat, error) Program[A]
}

// InvokeTool requests execution of a single tool call and resumes with the
// serialized outcome.
type InvokeTool[A any] struct {
	Call core.ToolCall
	Next func(ToolOutcome, error) Program[A]
}

func (*RunTurn[A]) op()       {}
func (*AppendMessage[A]) op() {}
func (*GenerateNext[A]) op()  {}
func (*InvokeTool[A]) op()    {}

// Program is a value that is either pending one Op or done with a final
// result. Programs are write-once, consumed-once values; ownership transfers
// to whichever handler executes them. A Program never references the chain
// that will run it.
type Program[A any] struct {
	pending Op[A]
	value   A
	err     error
}

// Pure creates a done Program carrying value.
func Pure[A any](value A) Program[A] {
	return Program[A]{value: value}
}

// Fail creates a done Program carrying err.
func Fail[A any](err error) Program[A] {
	return Program[A]{err: err}
}

// Suspend creates a pending Program around op.
func Suspend[A any](op Op[A]) Program[A] {
	return Program[A]{pending: op}
}

// Done reports whether the program has resolved to a final result.
func (p Program[A]) Done() bool {
	return p.pending == nil
}

// Op returns the pending operation, or nil when the program is done.
func (p Program[A]) Op() Op[A] {
	return p.pending
}

// Result returns the final value or error of a done program.
func (p Program[A]) Result() (A, error) {
	return p.value, p.err
}

// resume is the identity continuation: it completes the program with the
// effect's own result.
func resume[A any](value A, err error) Program[A] {
	if err != nil {
		return Fail[A](err)
	}
	return Pure(value)
}

// Turn builds a Program that runs one conversation turn and resolves to the
// reply message. extraTools are advertised for this turn in addition to the
// chat's and the executing handler's tools.
func Turn(chat core.Chat, extraTools ...core.ToolInfo) Program[core.Message] {
	return Suspend[core.Message](&RunTurn[core.Message]{
		Chat:       chat,
		ExtraTools: extraTools,
		Next:       resume[core.Message],
	})
}

// Append builds a Program that resolves to chat with msg appended.
func Append(chat core.Chat, msg core.Message) Program[core.Chat] {
	return Suspend[core.Chat](&AppendMessage[core.Chat]{
		Chat:    chat,
		Message: msg,
		Next:    resume[core.Chat],
	})
}

// Generate builds a Program that runs one turn and resolves to chat extended
// by the reply.
func Generate(chat core.Chat) Program[core.Chat] {
	return Suspend[core.Chat](&GenerateNext[core.Chat]{
		Chat: chat,
		Next: resume[core.Chat],
	})
}

// Invoke builds a Program that executes one tool call and resolves to its
// outcome.
func Invoke(call core.ToolCall) Program[ToolOutcome] {
	return Suspend[ToolOutcome](&InvokeTool[ToolOutcome]{
		Call: call,
		Next: resume[ToolOutcome],
	})
}

// Then sequences f after p: once p resolves to a value, f decides the next
// Program. Errors short-circuit past f. Pending operations are rewrapped so
// the composition travels with the continuation; no effect runs here.
func Then[A, B any](p Program[A], f func(A) Program[B]) Program[B] {
	if p.pending == nil {
		if p.err != nil {
			return Fail[B](p.err)
		}
		return f(p.value)
	}
	switch op := p.pending.(type) {
	case *RunTurn[A]:
		next := op.Next
		return Suspend[B](&RunTurn[B]{
			Chat:       op.Chat,
			ExtraTools: op.ExtraTools,
			Next: func(msg core.Message, err error) Program[B] {
				return Then(next(msg, err), f)
			},
		})
	case *AppendMessage[A]:
		next := op.Next
		return Suspend[B](&AppendMessage[B]{
			Chat:    op.Chat,
			Message: op.Message,
			Next: func(chat core.Chat, err error) Program[B] {
				return Then(next(chat, err), f)
			},
		})
	case *GenerateNext[A]:
		next := op.Next
		return Suspend[B](&GenerateNext[B]{
			Chat: op.Chat,
			Next: func(chat core.Chat, err error) Program[B] {
				return Then(next(chat, err), f)
			},
		})
	case *InvokeTool[A]:
		next := op.Next
		return Suspend[B](&InvokeTool[B]{
			Call: op.Call,
			Next: func(out ToolOutcome, err error) Program[B] {
				return Then(next(out, err), f)
			},
		})
	}
	return Fail[B](core.ErrProgramInvalid)
}

// Map transforms the final value of p with f.
func Map[A, B any](p Program[A], f func(A) B) Program[B] {
	return Then(p, func(a A) Program[B] {
		return Pure(f(a))
	})
}
