package core

import "strings"

// TokenCounter keeps a running token total for a conversation.
//
// The metric is a whitespace word count, a stand-in for a real tokenizer.
// Its contract is what compaction relies on: the total is never negative,
// Observe is monotonic, and Subtract exactly reverses Observe for the same
// text (saturating at zero).
type TokenCounter struct {
	total int
}

// CountTokens counts the tokens in text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// Observe adds the token count of text to the total.
func (c *TokenCounter) Observe(text string) {
	c.total += CountTokens(text)
}

// Subtract removes the token count of text from the total, stopping at zero.
func (c *TokenCounter) Subtract(text string) {
	c.total -= CountTokens(text)
	if c.total < 0 {
		c.total = 0
	}
}

// Total returns the current token total.
func (c *TokenCounter) Total() int {
	return c.total
}

// UnderBudget reports whether the total is at or under max.
func (c *TokenCounter) UnderBudget(max int) bool {
	return c.total <= max
}
