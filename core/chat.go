package core

import "fmt"

// Defaults applied by NewChat.
const (
	DefaultMaxOutputTokens = 2048
	DefaultContextBudget   = 32768
)

// Chat is an ordered conversation history plus the settings sent with it:
// system prompt, output-token limit, context budget, advertised tools, and
// tool-choice policy.
//
// Chat has value semantics. Every mutating method is a value receiver that
// returns a new Chat with its own history slice, so concurrent holders of a
// snapshot never observe another caller's edits. The running token counter
// always equals the sum of per-message token costs plus the system prompt;
// the counter is re-established and the compactor applied on every mutation.
type Chat struct {
	SystemPrompt    string
	MaxOutputTokens int
	ContextBudget   int
	History         []Message
	Tools           []ToolInfo
	ToolChoice      ToolChoice

	counter   TokenCounter
	compactor Compactor
}

// NewChat creates an empty Chat with default budgets and the DropOldest
// compaction strategy.
func NewChat() Chat {
	return Chat{
		MaxOutputTokens: DefaultMaxOutputTokens,
		ContextBudget:   DefaultContextBudget,
		compactor:       DropOldest{},
	}
}

// WithSystemPrompt returns a copy of the chat with the system prompt set and
// the token counter recomputed.
func (c Chat) WithSystemPrompt(prompt string) Chat {
	c.SystemPrompt = prompt
	return c.recount()
}

// WithMaxOutputTokens returns a copy of the chat with the output-token limit
// set.
func (c Chat) WithMaxOutputTokens(n int) Chat {
	c.MaxOutputTokens = n
	return c
}

// WithContextBudget returns a copy of the chat with the history token budget
// set and compaction reapplied.
func (c Chat) WithContextBudget(n int) Chat {
	c.ContextBudget = n
	return c.recount()
}

// WithHistory returns a copy of the chat with the history replaced and the
// token counter recomputed from scratch.
func (c Chat) WithHistory(history []Message) Chat {
	c.History = append([]Message(nil), history...)
	return c.recount()
}

// WithCompactor returns a copy of the chat using the given compaction
// strategy, applied immediately.
func (c Chat) WithCompactor(comp Compactor) Chat {
	c.compactor = comp
	return c.recount()
}

// WithTool returns a copy of the chat advertising the given tool in addition
// to any already present.
func (c Chat) WithTool(info ToolInfo) Chat {
	tools := make([]ToolInfo, 0, len(c.Tools)+1)
	tools = append(tools, c.Tools...)
	tools = append(tools, info)
	c.Tools = tools
	return c
}

// WithTools returns a copy of the chat advertising the given tools in
// addition to any already present. Tools already advertised under the same
// name are left in place and not duplicated.
func (c Chat) WithTools(infos ...ToolInfo) Chat {
	out := c
	for _, info := range infos {
		if out.HasTool(info.Name) {
			continue
		}
		out = out.WithTool(info)
	}
	return out
}

// HasTool reports whether a tool with the given name is advertised.
func (c Chat) HasTool(name string) bool {
	for _, t := range c.Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// WithToolChoice returns a copy of the chat with the tool-choice policy set.
func (c Chat) WithToolChoice(choice ToolChoice) Chat {
	c.ToolChoice = choice
	return c
}

// Append returns a new Chat with msg added to the history, the token counter
// updated with the message's cost, and compaction applied if the budget is
// exceeded. The receiver is never modified.
func (c Chat) Append(msg Message) Chat {
	history := make([]Message, 0, len(c.History)+1)
	history = append(history, c.History...)
	history = append(history, msg)
	c.History = history
	c.counter.Observe(msg.text())
	return c.compact()
}

// CanAppend checks that msg is valid and, for tool messages, that its
// tool_call_id references a tool call emitted by an earlier assistant
// message in this chat.
func (c Chat) CanAppend(msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.Role != RoleTool {
		return nil
	}
	for _, prior := range c.History {
		if prior.Role != RoleAssistant {
			continue
		}
		for _, call := range prior.ToolCalls {
			if call.ID == msg.ToolCallID {
				return nil
			}
		}
	}
	return fmt.Errorf("tool message references unknown tool call %q", msg.ToolCallID)
}

// TokensUsed returns the current token total: the sum of per-message costs
// plus the system prompt.
func (c Chat) TokensUsed() int {
	return c.counter.Total()
}

// LastMessage returns the most recent message and true, or a zero Message
// and false when the history is empty.
func (c Chat) LastMessage() (Message, bool) {
	if len(c.History) == 0 {
		return Message{}, false
	}
	return c.History[len(c.History)-1], true
}

// Merge returns a copy of the chat with other's history appended after the
// receiver's and other's tools unioned into the advertised set. The
// receiver's system prompt, budgets, and tool choice win unless unset.
func (c Chat) Merge(other Chat) Chat {
	out := c
	if out.SystemPrompt == "" {
		out.SystemPrompt = other.SystemPrompt
	}
	if out.MaxOutputTokens == 0 {
		out.MaxOutputTokens = other.MaxOutputTokens
	}
	if out.ContextBudget == 0 {
		out.ContextBudget = other.ContextBudget
	}
	if out.ToolChoice.Mode == "" {
		out.ToolChoice = other.ToolChoice
	}
	out = out.WithTools(other.Tools...)
	history := make([]Message, 0, len(out.History)+len(other.History))
	history = append(history, out.History...)
	history = append(history, other.History...)
	return out.WithHistory(history)
}

// recount rebuilds the token counter from the system prompt and history,
// then applies compaction.
func (c Chat) recount() Chat {
	c.counter = TokenCounter{}
	c.counter.Observe(c.SystemPrompt)
	for _, msg := range c.History {
		c.counter.Observe(msg.text())
	}
	return c.compact()
}

func (c Chat) compact() Chat {
	comp := c.compactor
	if comp == nil {
		comp = DropOldest{}
	}
	if c.ContextBudget <= 0 {
		return c
	}
	c.History = comp.Compact(c.History, &c.counter, c.ContextBudget)
	return c
}
