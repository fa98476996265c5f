package core

// Compactor trims conversation history to stay within a token budget.
//
// Implementations receive the history slice (owned by the caller, safe to
// reslice), subtract each removed message's contribution from counter, and
// return the trimmed history. A Compactor must never return an empty history
// when given a non-empty one: an empty-context turn is worse than an
// over-budget one.
type Compactor interface {
	Compact(history []Message, counter *TokenCounter, budget int) []Message
}

// DropOldest removes messages from the oldest end, one at a time, until the
// counter is at or under budget or only one message remains.
type DropOldest struct{}

// Compact implements Compactor.
func (DropOldest) Compact(history []Message, counter *TokenCounter, budget int) []Message {
	if len(history) == 0 || counter.UnderBudget(budget) {
		return history
	}
	for !counter.UnderBudget(budget) && len(history) > 1 {
		counter.Subtract(history[0].text())
		history = history[1:]
	}
	return history
}

var _ Compactor = DropOldest{}
