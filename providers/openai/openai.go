// Package openai maps the internal conversation to the OpenAI
// chat-completions wire format and back.
package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/parleyhq/parley/core"
)

// DefaultBaseURL is the production OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Config holds provider credentials and endpoint settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
}

// Transport implements core.Transport for the OpenAI API.
type Transport struct {
	config Config
}

// New creates a transport configured from the OPENAI_API_KEY and
// OPENAI_ORGANIZATION environment variables.
func New() *Transport {
	return WithConfig(Config{
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		Organization: os.Getenv("OPENAI_ORGANIZATION"),
	})
}

// WithConfig creates a transport with explicit configuration.
func WithConfig(config Config) *Transport {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	return &Transport{config: config}
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []core.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string        `json:"type"`
	Function core.ToolInfo `json:"function"`
}

type wireRequest struct {
	Model               string        `json:"model"`
	Messages            []wireMessage `json:"messages"`
	MaxTokens           *int          `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int          `json:"max_completion_tokens,omitempty"`
	Tools               []wireTool    `json:"tools,omitempty"`
	ToolChoice          any           `json:"tool_choice,omitempty"`
}

type wireResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string          `json:"role"`
			Content   string          `json:"content"`
			ToolCalls []core.ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type wireError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Accept implements core.Transport.
func (t *Transport) Accept(model core.ModelID, chat core.Chat) (*http.Request, error) {
	if t.config.APIKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", core.ErrAuthentication)
	}

	payload := t.buildRequest(model, chat)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, t.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if t.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", t.config.Organization)
	}
	return req, nil
}

func (t *Transport) buildRequest(model core.ModelID, chat core.Chat) wireRequest {
	messages := make([]wireMessage, 0, len(chat.History)+1)
	if chat.SystemPrompt != "" {
		messages = append(messages, wireMessage{Role: "system", Content: chat.SystemPrompt})
	}
	for _, msg := range chat.History {
		messages = append(messages, toWire(msg))
	}

	var tools []wireTool
	for _, info := range chat.Tools {
		tools = append(tools, wireTool{Type: "function", Function: info})
	}

	req := wireRequest{
		Model:      string(model),
		Messages:   messages,
		Tools:      tools,
		ToolChoice: toolChoice(chat.ToolChoice, len(tools) > 0),
	}

	// O-series models take max_completion_tokens instead of max_tokens.
	if chat.MaxOutputTokens > 0 {
		limit := chat.MaxOutputTokens
		if strings.HasPrefix(string(model), "o") {
			req.MaxCompletionTokens = &limit
		} else {
			req.MaxTokens = &limit
		}
	}
	return req
}

func toWire(msg core.Message) wireMessage {
	out := wireMessage{
		Role:       string(msg.Role),
		Name:       msg.Name,
		ToolCalls:  msg.ToolCalls,
		ToolCallID: msg.ToolCallID,
	}
	switch {
	case len(msg.Parts) > 0:
		parts := make([]map[string]any, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch p.Type {
			case core.PartImage:
				parts = append(parts, map[string]any{"type": "image_url", "image_url": p.ImageURL})
			default:
				parts = append(parts, map[string]any{"type": "text", "text": p.Text})
			}
		}
		out.Content = parts
	case msg.Content != "":
		out.Content = msg.Content
	}
	return out
}

func toolChoice(choice core.ToolChoice, haveTools bool) any {
	switch choice.Mode {
	case core.ToolChoiceAuto:
		return "auto"
	case core.ToolChoiceAny:
		// OpenAI spells "any" as "required".
		return "required"
	case core.ToolChoiceNone:
		return "none"
	case core.ToolChoiceNamed:
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": choice.Name},
		}
	}
	if haveTools {
		return "auto"
	}
	return nil
}

// Parse implements core.Transport.
func (t *Transport) Parse(body string) (core.Message, error) {
	var apiErr wireError
	if err := json.Unmarshal([]byte(body), &apiErr); err == nil && apiErr.Error != nil {
		return core.Message{}, fmt.Errorf("%w: %s", core.ErrProviderUnavailable, apiErr.Error.Message)
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return core.Message{}, fmt.Errorf("%w: %v", core.ErrParse, err)
	}
	if len(resp.Choices) == 0 {
		return core.Message{}, fmt.Errorf("%w: response contains no choices", core.ErrParse)
	}

	choice := resp.Choices[0]
	msg := core.Message{
		Role:      core.RoleAssistant,
		Content:   choice.Message.Content,
		ToolCalls: choice.Message.ToolCalls,
	}
	if resp.Usage != nil {
		msg = msg.
			WithMetadata("prompt_tokens", resp.Usage.PromptTokens).
			WithMetadata("completion_tokens", resp.Usage.CompletionTokens).
			WithMetadata("total_tokens", resp.Usage.TotalTokens)
	}
	return msg, nil
}

var _ core.Transport = (*Transport)(nil)
