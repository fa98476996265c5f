// Package core provides the conversation data model shared by the whole
// library: messages, tool calls, the Chat value type, token accounting,
// history compaction, and the transport capability consumed by the
// middleware chain.
package core

import (
	"encoding/json"
	"errors"
)

// Role represents a message participant role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies the kind of a content part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image_url"
)

// ImageURL references an image by URL with an optional detail hint.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ContentPart is one element of structured multimodal content.
type ContentPart struct {
	Type     PartType  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ImagePart creates an image content part referencing url.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImage, ImageURL: &ImageURL{URL: url}}
}

// FunctionCall names the function a tool call targets and carries its
// JSON-encoded argument string exactly as the remote service produced it.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a structured request embedded in an assistant message asking
// that a named function run with given JSON arguments. The ID is opaque and
// issued by the remote service. A ToolCall is immutable once created.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// NewToolCall creates a function-typed tool call.
func NewToolCall(id, name, arguments string) ToolCall {
	return ToolCall{
		ID:   id,
		Type: "function",
		Function: FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}

// Message represents a single message in a conversation. The Role tags which
// fields are meaningful: Content or Parts hold the body (Parts for
// multimodal user content), ToolCalls is assistant-only, ToolCallID is the
// back-reference carried by tool messages. Metadata is an open map used for
// usage accounting and provider-specific extras.
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content,omitempty"`
	Parts      []ContentPart  `json:"parts,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a plain-text user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// UserMessageParts creates a multimodal user message.
func UserMessageParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Parts: parts}
}

// AssistantMessage creates a plain-text assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantToolCalls creates an assistant message carrying tool calls and no
// text content.
func AssistantToolCalls(calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: calls}
}

// ToolMessage creates a tool message responding to the tool call with the
// given id.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: content}
}

// WithMetadata returns a copy of the message with the key set. The original
// message is not modified.
func (m Message) WithMetadata(key string, value any) Message {
	meta := make(map[string]any, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	meta[key] = value
	m.Metadata = meta
	return m
}

// Empty reports whether the message carries no content at all.
func (m Message) Empty() bool {
	if m.Content != "" {
		return false
	}
	for _, p := range m.Parts {
		if p.Type == PartImage || p.Text != "" {
			return false
		}
	}
	return true
}

// text returns the plain-text body used for token accounting.
func (m Message) text() string {
	if m.Content != "" {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			if out != "" {
				out += " "
			}
			out += p.Text
		}
	}
	return out
}

// Validate checks message-local invariants: a tool message must carry its
// tool_call_id, and content may be empty only when the message carries at
// least one tool call.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	default:
		return errors.New("message has unknown role " + string(m.Role))
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return errors.New("tool message is missing tool_call_id")
	}
	if m.Role != RoleAssistant && len(m.ToolCalls) > 0 {
		return errors.New(string(m.Role) + " message must not carry tool calls")
	}
	if m.Empty() && len(m.ToolCalls) == 0 {
		return errors.New("message content is empty and no tool calls are present")
	}
	return nil
}

// ToolInfo is the service-facing description of a tool advertised on a Chat.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolChoiceMode selects the tool-choice policy advertised to the service.
type ToolChoiceMode string

const (
	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto ToolChoiceMode = "auto"
	// ToolChoiceAny requires the model to call one of the advertised tools.
	ToolChoiceAny ToolChoiceMode = "any"
	// ToolChoiceNone forbids tool calls.
	ToolChoiceNone ToolChoiceMode = "none"
	// ToolChoiceNamed requires the model to call the named tool.
	ToolChoiceNamed ToolChoiceMode = "named"
)

// ToolChoice is the tool-choice policy for a Chat. The zero value means no
// explicit policy was set.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode,omitempty"`
	Name string         `json:"name,omitempty"`
}

// ChooseNamed requires the model to call the given tool.
func ChooseNamed(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceNamed, Name: name}
}
