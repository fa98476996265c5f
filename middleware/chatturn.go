package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/ops"
)

// ChatTurn executes RunTurn and AppendMessage operations. It owns the
// transport, the model identifier, and a baseline chat (system prompt,
// budgets, tools, tool choice) fixed at construction; each RunTurn merges
// the baseline with the operation's chat before making exactly one outbound
// call. AppendMessage is a pure transform with no side effects.
type ChatTurn[A any] struct {
	next      Handler[A]
	transport core.Transport
	model     core.ModelID
	baseline  core.Chat
	client    *http.Client
	logger    *slog.Logger
}

// NewChatTurn creates a chat-turn handler dispatching to next.
func NewChatTurn[A any](next Handler[A], model core.ModelID, transport core.Transport) *ChatTurn[A] {
	return &ChatTurn[A]{
		next:      next,
		transport: transport,
		model:     model,
		baseline:  core.NewChat(),
		client:    &http.Client{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithBaseline sets the baseline chat merged into every RunTurn.
func (h *ChatTurn[A]) WithBaseline(chat core.Chat) *ChatTurn[A] {
	h.baseline = chat
	return h
}

// WithHTTPClient sets the client used for outbound calls.
func (h *ChatTurn[A]) WithHTTPClient(client *http.Client) *ChatTurn[A] {
	if client != nil {
		h.client = client
	}
	return h
}

// WithLogger sets the handler's logger.
func (h *ChatTurn[A]) WithLogger(logger *slog.Logger) *ChatTurn[A] {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Handle implements Handler. Recognized operations are interpreted in a
// loop, so a continuation may suspend further turns and appends without the
// program ever leaving this handler.
func (h *ChatTurn[A]) Handle(ctx context.Context, p ops.Program[A]) (A, error) {
	for {
		if p.Done() {
			return p.Result()
		}
		switch op := p.Op().(type) {
		case *ops.RunTurn[A]:
			merged := h.baseline.Merge(op.Chat).WithTools(op.ExtraTools...)
			msg, err := sendChat(ctx, h.client, h.logger, h.transport, h.model, merged)
			p = op.Next(msg, err)
		case *ops.AppendMessage[A]:
			if err := op.Chat.CanAppend(op.Message); err != nil {
				p = op.Next(core.Chat{}, err)
			} else {
				p = op.Next(op.Chat.Append(op.Message), nil)
			}
		default:
			return h.next.Handle(ctx, p)
		}
	}
}

// sendChat performs one request/response round trip: chat through the
// transport's Accept, over the wire, raw body through Parse. It is stateless
// so the chat-turn and generate-next handlers can share it.
func sendChat(
	ctx context.Context,
	client *http.Client,
	logger *slog.Logger,
	transport core.Transport,
	model core.ModelID,
	chat core.Chat,
) (core.Message, error) {
	log := logger.With("request_id", uuid.NewString(), "model", string(model))
	log.Debug("building provider request", "messages", len(chat.History), "tokens", chat.TokensUsed())

	req, err := transport.Accept(model, chat)
	if err != nil {
		log.Error("failed to build provider request", "error", err)
		return core.Message{}, err
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		log.Error("request failed", "error", err)
		return core.Message{}, fmt.Errorf("%w: %v", core.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read response body", "error", err)
		return core.Message{}, fmt.Errorf("%w: reading response body: %v", core.ErrTransport, err)
	}
	log.Debug("received provider response", "status", resp.StatusCode, "bytes", len(body))

	msg, err := transport.Parse(string(body))
	if err != nil {
		log.Error("failed to parse response", "error", err)
		return core.Message{}, err
	}
	log.Debug("parsed reply", "role", string(msg.Role), "tool_calls", len(msg.ToolCalls))
	return msg, nil
}
