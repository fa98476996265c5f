package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/ops"
)

// GenerateNext executes GenerateNext operations: it sends the operation's
// own chat (no baseline merging) and resumes the continuation with the chat
// extended by the reply. Everything else passes through.
type GenerateNext[A any] struct {
	next      Handler[A]
	transport core.Transport
	model     core.ModelID
	client    *http.Client
	logger    *slog.Logger
}

// NewGenerateNext creates a generate-next handler dispatching to next.
func NewGenerateNext[A any](next Handler[A], model core.ModelID, transport core.Transport) *GenerateNext[A] {
	return &GenerateNext[A]{
		next:      next,
		transport: transport,
		model:     model,
		client:    &http.Client{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithHTTPClient sets the client used for outbound calls.
func (h *GenerateNext[A]) WithHTTPClient(client *http.Client) *GenerateNext[A] {
	if client != nil {
		h.client = client
	}
	return h
}

// WithLogger sets the handler's logger.
func (h *GenerateNext[A]) WithLogger(logger *slog.Logger) *GenerateNext[A] {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Handle implements Handler. Recognized operations are interpreted in a
// loop, so a continuation may suspend further generations without the
// program ever leaving this handler.
func (h *GenerateNext[A]) Handle(ctx context.Context, p ops.Program[A]) (A, error) {
	for {
		if p.Done() {
			return p.Result()
		}
		op, ok := p.Op().(*ops.GenerateNext[A])
		if !ok {
			return h.next.Handle(ctx, p)
		}
		msg, err := sendChat(ctx, h.client, h.logger, h.transport, h.model, op.Chat)
		if err != nil {
			p = op.Next(core.Chat{}, err)
			continue
		}
		p = op.Next(op.Chat.Append(msg), nil)
	}
}
