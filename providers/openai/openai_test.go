package openai

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/parleyhq/parley/core"
)

func testTransport() *Transport {
	return WithConfig(Config{APIKey: "sk-test"})
}

func requestBody(t *testing.T, tr *Transport, model core.ModelID, chat core.Chat) map[string]any {
	t.Helper()
	req, err := tr.Accept(model, chat)
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("reading request body: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	return body
}

func TestAcceptRequiresAPIKey(t *testing.T) {
	tr := WithConfig(Config{})
	_, err := tr.Accept("gpt-4o", core.NewChat().Append(core.UserMessage("hi")))
	if !errors.Is(err, core.ErrAuthentication) {
		t.Errorf("Accept() error = %v, want ErrAuthentication", err)
	}
}

func TestAcceptRequestShape(t *testing.T) {
	tr := testTransport()
	chat := core.NewChat().
		WithSystemPrompt("be brief").
		Append(core.UserMessage("hello"))

	req, err := tr.Accept("gpt-4o", chat)
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if req.Method != "POST" {
		t.Errorf("Method = %q", req.Method)
	}
	if req.URL.String() != DefaultBaseURL+"/chat/completions" {
		t.Errorf("URL = %q", req.URL)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestAcceptLeadsWithSystemMessage(t *testing.T) {
	body := requestBody(t, testTransport(), "gpt-4o", core.NewChat().
		WithSystemPrompt("be brief").
		Append(core.UserMessage("hello")))

	messages := body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(messages))
	}
	first := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be brief" {
		t.Errorf("first message = %v", first)
	}
}

func TestAcceptAdvertisesTools(t *testing.T) {
	chat := core.NewChat().
		WithTool(core.ToolInfo{
			Name:        "get_weather",
			Description: "Returns the forecast.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}}}`),
		}).
		Append(core.UserMessage("weather in Paris?"))

	body := requestBody(t, testTransport(), "gpt-4o", chat)
	raw, _ := json.Marshal(body)
	for _, want := range []string{"tools", "get_weather", "location"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("request body does not mention %q", want)
		}
	}
	// Tools present with no explicit policy defaults to auto.
	if body["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v, want auto", body["tool_choice"])
	}
}

func TestAcceptToolChoiceMapping(t *testing.T) {
	tests := []struct {
		name   string
		choice core.ToolChoice
		want   any
	}{
		{"auto", core.ToolChoice{Mode: core.ToolChoiceAuto}, "auto"},
		{"any becomes required", core.ToolChoice{Mode: core.ToolChoiceAny}, "required"},
		{"none", core.ToolChoice{Mode: core.ToolChoiceNone}, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := core.NewChat().
				WithTool(core.ToolInfo{Name: "get_weather"}).
				WithToolChoice(tt.choice).
				Append(core.UserMessage("hi"))
			body := requestBody(t, testTransport(), "gpt-4o", chat)
			if body["tool_choice"] != tt.want {
				t.Errorf("tool_choice = %v, want %v", body["tool_choice"], tt.want)
			}
		})
	}
}

func TestAcceptNamedToolChoice(t *testing.T) {
	chat := core.NewChat().
		WithTool(core.ToolInfo{Name: "get_weather"}).
		WithToolChoice(core.ChooseNamed("get_weather")).
		Append(core.UserMessage("hi"))

	body := requestBody(t, testTransport(), "gpt-4o", chat)
	choice, ok := body["tool_choice"].(map[string]any)
	if !ok {
		t.Fatalf("tool_choice = %v", body["tool_choice"])
	}
	fn := choice["function"].(map[string]any)
	if choice["type"] != "function" || fn["name"] != "get_weather" {
		t.Errorf("tool_choice = %v", choice)
	}
}

func TestAcceptTokenLimitField(t *testing.T) {
	chat := core.NewChat().WithMaxOutputTokens(512).Append(core.UserMessage("hi"))

	body := requestBody(t, testTransport(), "gpt-4o", chat)
	if body["max_tokens"] != float64(512) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
	if _, present := body["max_completion_tokens"]; present {
		t.Error("max_completion_tokens set for a non o-series model")
	}

	body = requestBody(t, testTransport(), "o3-mini", chat)
	if body["max_completion_tokens"] != float64(512) {
		t.Errorf("max_completion_tokens = %v", body["max_completion_tokens"])
	}
	if _, present := body["max_tokens"]; present {
		t.Error("max_tokens set for an o-series model")
	}
}

func TestParseReply(t *testing.T) {
	body := `{
		"id": "chatcmpl-1",
		"model": "gpt-4o",
		"choices": [{"message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`
	msg, err := testTransport().Parse(body)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if msg.Role != core.RoleAssistant || msg.Content != "hello there" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Metadata["total_tokens"] != 15 {
		t.Errorf("total_tokens = %v", msg.Metadata["total_tokens"])
	}
}

func TestParseToolCalls(t *testing.T) {
	body := `{
		"choices": [{"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{"id": "call-1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"location\":\"Paris\"}"}}]
		}}]
	}`
	msg, err := testTransport().Parse(body)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d", len(msg.ToolCalls))
	}
	call := msg.ToolCalls[0]
	if call.ID != "call-1" || call.Function.Name != "get_weather" {
		t.Errorf("tool call = %+v", call)
	}
	if call.Function.Arguments != `{"location":"Paris"}` {
		t.Errorf("arguments = %q", call.Function.Arguments)
	}
}

func TestParseErrorEnvelope(t *testing.T) {
	body := `{"error": {"message": "The server is overloaded.", "type": "server_error"}}`
	_, err := testTransport().Parse(body)
	if !errors.Is(err, core.ErrProviderUnavailable) {
		t.Errorf("Parse() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestParseGarbage(t *testing.T) {
	if _, err := testTransport().Parse("<html>nope</html>"); !errors.Is(err, core.ErrParse) {
		t.Errorf("Parse() error = %v, want ErrParse", err)
	}
}

func TestParseNoChoices(t *testing.T) {
	if _, err := testTransport().Parse(`{"id": "chatcmpl-1", "choices": []}`); !errors.Is(err, core.ErrParse) {
		t.Errorf("Parse() error = %v, want ErrParse", err)
	}
}
