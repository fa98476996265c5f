package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parleyhq/parley/core"
	"github.com/parleyhq/parley/middleware"
	"github.com/parleyhq/parley/ops"
	"github.com/parleyhq/parley/providers/anthropic"
	"github.com/parleyhq/parley/providers/openai"
	"github.com/parleyhq/parley/tools"
)

var chatSystemPrompt string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session",
	Long: `Start an interactive chat session against the configured provider.

Examples:
  parley chat
  parley chat --system "You are a terse assistant."
  parley --config prod.yaml chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatSystemPrompt, "system", "", "System prompt override")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	clock, err := clockRunner()
	if err != nil {
		return err
	}

	generate := middleware.NewGenerateNext[core.Chat](
		middleware.NewTerminal[core.Chat](), core.ModelID(cfg.Model), transport,
	).WithLogger(logger)
	chain := middleware.NewToolExecutor[core.Chat](generate, clock).
		WithAutoExecute(true).
		WithLogger(logger)

	chat := core.NewChat().WithTool(clock.Info())
	if cfg.SystemPrompt != "" {
		chat = chat.WithSystemPrompt(cfg.SystemPrompt)
	}
	if chatSystemPrompt != "" {
		chat = chat.WithSystemPrompt(chatSystemPrompt)
	}
	if cfg.MaxOutputTokens > 0 {
		chat = chat.WithMaxOutputTokens(cfg.MaxOutputTokens)
	}
	if cfg.ContextBudget > 0 {
		chat = chat.WithContextBudget(cfg.ContextBudget)
	}

	sessionID := uuid.NewString()
	logger.Info("chat session started", "session_id", sessionID, "provider", cfg.Provider, "model", cfg.Model)
	fmt.Printf("Parley chat (%s / %s). Type 'exit' to quit.\n", cfg.Provider, cfg.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		next, err := chain.Handle(cmd.Context(), ops.Generate(chat.Append(core.UserMessage(line))))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		chat = next
		if reply, ok := chat.LastMessage(); ok {
			fmt.Println(reply.Content)
		}
	}
	return scanner.Err()
}

// buildTransport wires the provider named in the config, prompting for an
// API key when the environment does not supply one.
func buildTransport(cfg Config) (core.Transport, error) {
	switch cfg.Provider {
	case "openai":
		key, err := resolveKey("OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		return openai.WithConfig(openai.Config{APIKey: key, BaseURL: cfg.BaseURL}), nil
	case "anthropic":
		key, err := resolveKey("ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		return anthropic.WithConfig(anthropic.Config{APIKey: key, BaseURL: cfg.BaseURL}), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s (use 'openai' or 'anthropic')", cfg.Provider)
	}
}

func resolveKey(envVar string) (string, error) {
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("%w: %s is not set", core.ErrAuthentication, envVar)
	}
	fmt.Printf("Enter API key (%s): ", envVar)
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("%w: no API key provided", core.ErrAuthentication)
	}
	return string(key), nil
}

// clockRunner exposes the local time as a tool so sessions can exercise the
// auto-execute loop without external services.
func clockRunner() (tools.Runner, error) {
	type input struct {
		Format string `json:"format"`
	}
	type output struct {
		Time string `json:"time"`
	}
	schema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"format": {"type": "string", "description": "Go time layout, defaults to RFC 3339"}
		}
	}`)
	return tools.NewRunner[input, output](tools.NewFunc(
		"current_time",
		"Returns the current local time.",
		schema,
		func(ctx context.Context, in input) (output, error) {
			layout := in.Format
			if layout == "" {
				layout = time.RFC3339
			}
			return output{Time: time.Now().Format(layout)}, nil
		},
	))
}
