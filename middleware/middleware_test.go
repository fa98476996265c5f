package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/ops"
)

// mockTransport is a scripted core.Transport. Each round trip pops the next
// reply; the chat handed to Accept is recorded per call.
type mockTransport struct {
	mu        sync.Mutex
	replies   []core.Message
	acceptErr error
	parseErr  error

	acceptCount int
	chats       []core.Chat
}

func (m *mockTransport) Accept(model core.ModelID, chat core.Chat) (*http.Request, error) {
	m.mu.Lock()
	m.acceptCount++
	m.chats = append(m.chats, chat)
	m.mu.Unlock()

	if m.acceptErr != nil {
		return nil, m.acceptErr
	}
	return http.NewRequest(http.MethodPost, "http://api.test/v1/chat", strings.NewReader("{}"))
}

func (m *mockTransport) Parse(body string) (core.Message, error) {
	if m.parseErr != nil {
		return core.Message{}, m.parseErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return core.Message{}, errors.New("mock transport ran out of scripted replies")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func (m *mockTransport) lastChat() core.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chats[len(m.chats)-1]
}

// stubRoundTripper answers every request with 200 and an empty JSON body so
// tests never touch the network.
type stubRoundTripper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func stubClient(rt *stubRoundTripper) *http.Client {
	return &http.Client{Transport: rt}
}

// mockRunner is a scripted tools.Runner.
type mockRunner struct {
	name       string
	invokeFunc func(ctx context.Context, arguments string) (string, error)

	mu       sync.Mutex
	calls    int
	lastArgs string
}

func (m *mockRunner) Name() string        { return m.name }
func (m *mockRunner) Description() string { return "mock tool" }

func (m *mockRunner) Info() core.ToolInfo {
	return core.ToolInfo{Name: m.name, Description: "mock tool"}
}

func (m *mockRunner) Invoke(ctx context.Context, arguments string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastArgs = arguments
	m.mu.Unlock()

	if m.invokeFunc != nil {
		return m.invokeFunc(ctx, arguments)
	}
	return `{"ok":true}`, nil
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestTerminalDoneProgram(t *testing.T) {
	term := NewTerminal[core.Message]()
	msg, err := term.Handle(context.Background(), ops.Pure(core.AssistantMessage("done")))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if msg.Content != "done" {
		t.Errorf("Handle() = %q", msg.Content)
	}
}

func TestTerminalFailedProgram(t *testing.T) {
	boom := errors.New("boom")
	term := NewTerminal[core.Message]()
	if _, err := term.Handle(context.Background(), ops.Fail[core.Message](boom)); !errors.Is(err, boom) {
		t.Errorf("Handle() error = %v, want boom", err)
	}
}

func TestTerminalPendingProgram(t *testing.T) {
	term := NewTerminal[core.Message]()
	_, err := term.Handle(context.Background(), ops.Turn(core.NewChat()))
	if !errors.Is(err, core.ErrProgramInvalid) {
		t.Errorf("Handle() error = %v, want ErrProgramInvalid", err)
	}
}
