// Package anthropic maps the internal conversation to the Anthropic
// messages wire format and back.
package anthropic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/parleyhq/parley/core"
)

// Default endpoint settings.
const (
	DefaultBaseURL    = "https://api.anthropic.com/v1"
	DefaultAPIVersion = "2023-06-01"
)

// Config holds provider credentials and endpoint settings.
type Config struct {
	APIKey     string
	BaseURL    string
	APIVersion string
}

// Transport implements core.Transport for the Anthropic API.
type Transport struct {
	config Config
}

// New creates a transport configured from the ANTHROPIC_API_KEY environment
// variable.
func New() *Transport {
	return WithConfig(Config{APIKey: os.Getenv("ANTHROPIC_API_KEY")})
}

// WithConfig creates a transport with explicit configuration.
func WithConfig(config Config) *Transport {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	return &Transport{config: config}
}

// contentBlock is one element of a wire message's content array.
type contentBlock struct {
	Type string `json:"type"`

	// text blocks
	Text string `json:"text,omitempty"`

	// tool_use blocks
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`

	// image blocks
	Source map[string]any `json:"source,omitempty"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type wireRequest struct {
	Model      string         `json:"model"`
	MaxTokens  int            `json:"max_tokens"`
	System     string         `json:"system,omitempty"`
	Messages   []wireMessage  `json:"messages"`
	Tools      []wireTool     `json:"tools,omitempty"`
	ToolChoice map[string]any `json:"tool_choice,omitempty"`
}

type wireResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
	Usage   *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	StopReason string `json:"stop_reason"`
}

type wireError struct {
	Type  string `json:"type"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Accept implements core.Transport.
func (t *Transport) Accept(model core.ModelID, chat core.Chat) (*http.Request, error) {
	if t.config.APIKey == "" {
		return nil, fmt.Errorf("%w: missing Anthropic API key", core.ErrAuthentication)
	}

	payload, err := t.buildRequest(model, chat)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, t.config.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", t.config.APIKey)
	req.Header.Set("anthropic-version", t.config.APIVersion)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (t *Transport) buildRequest(model core.ModelID, chat core.Chat) (wireRequest, error) {
	req := wireRequest{
		Model:     string(model),
		MaxTokens: chat.MaxOutputTokens,
		System:    chat.SystemPrompt,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = core.DefaultMaxOutputTokens
	}

	for _, msg := range chat.History {
		wire, err := toWire(msg)
		if err != nil {
			return wireRequest{}, err
		}
		if wire != nil {
			req.Messages = append(req.Messages, *wire)
		}
	}

	for _, info := range chat.Tools {
		req.Tools = append(req.Tools, wireTool{
			Name:        info.Name,
			Description: info.Description,
			InputSchema: info.Parameters,
		})
	}

	switch chat.ToolChoice.Mode {
	case core.ToolChoiceAuto:
		req.ToolChoice = map[string]any{"type": "auto"}
	case core.ToolChoiceAny:
		req.ToolChoice = map[string]any{"type": "any"}
	case core.ToolChoiceNone:
		req.ToolChoice = map[string]any{"type": "none"}
	case core.ToolChoiceNamed:
		req.ToolChoice = map[string]any{"type": "tool", "name": chat.ToolChoice.Name}
	}
	return req, nil
}

func toWire(msg core.Message) (*wireMessage, error) {
	switch msg.Role {
	case core.RoleSystem:
		// System prompts travel in the request's top-level system field.
		return nil, nil
	case core.RoleUser:
		return &wireMessage{Role: "user", Content: userBlocks(msg)}, nil
	case core.RoleAssistant:
		blocks := make([]contentBlock, 0, 1+len(msg.ToolCalls))
		if msg.Content != "" {
			blocks = append(blocks, contentBlock{Type: "text", Text: msg.Content})
		}
		for _, call := range msg.ToolCalls {
			if !json.Valid([]byte(call.Function.Arguments)) {
				return nil, fmt.Errorf("tool call %s carries invalid argument JSON", call.ID)
			}
			blocks = append(blocks, contentBlock{
				Type:  "tool_use",
				ID:    call.ID,
				Name:  call.Function.Name,
				Input: json.RawMessage(call.Function.Arguments),
			})
		}
		return &wireMessage{Role: "assistant", Content: blocks}, nil
	case core.RoleTool:
		// Tool results travel as user messages carrying a tool_result block.
		return &wireMessage{Role: "user", Content: []contentBlock{{
			Type:      "tool_result",
			ToolUseID: msg.ToolCallID,
			Content:   msg.Content,
		}}}, nil
	}
	return nil, fmt.Errorf("message has unknown role %q", msg.Role)
}

func userBlocks(msg core.Message) []contentBlock {
	if len(msg.Parts) == 0 {
		return []contentBlock{{Type: "text", Text: msg.Content}}
	}
	blocks := make([]contentBlock, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Type {
		case core.PartImage:
			blocks = append(blocks, contentBlock{Type: "image", Source: map[string]any{
				"type": "url",
				"url":  p.ImageURL.URL,
			}})
		default:
			blocks = append(blocks, contentBlock{Type: "text", Text: p.Text})
		}
	}
	return blocks
}

// Parse implements core.Transport.
func (t *Transport) Parse(body string) (core.Message, error) {
	var apiErr wireError
	if err := json.Unmarshal([]byte(body), &apiErr); err == nil && apiErr.Type == "error" && apiErr.Error != nil {
		if apiErr.Error.Type == "authentication_error" {
			return core.Message{}, fmt.Errorf("%w: %s", core.ErrAuthentication, apiErr.Error.Message)
		}
		return core.Message{}, fmt.Errorf("%w: %s", core.ErrProviderUnavailable, apiErr.Error.Message)
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return core.Message{}, fmt.Errorf("%w: %v", core.ErrParse, err)
	}
	if resp.Role != "assistant" {
		return core.Message{}, fmt.Errorf("%w: unexpected role %q", core.ErrParse, resp.Role)
	}

	msg := core.Message{Role: core.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if msg.Content != "" {
				msg.Content += "\n"
			}
			msg.Content += block.Text
		case "tool_use":
			msg.ToolCalls = append(msg.ToolCalls, core.NewToolCall(block.ID, block.Name, string(block.Input)))
		}
	}
	if resp.Usage != nil {
		msg = msg.
			WithMetadata("prompt_tokens", resp.Usage.InputTokens).
			WithMetadata("completion_tokens", resp.Usage.OutputTokens).
			WithMetadata("total_tokens", resp.Usage.InputTokens+resp.Usage.OutputTokens)
	}
	return msg, nil
}

var _ core.Transport = (*Transport)(nil)
