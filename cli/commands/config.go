package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration for the chat harness.
type Config struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	BaseURL         string `yaml:"base_url"`
	SystemPrompt    string `yaml:"system_prompt"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	ContextBudget   int    `yaml:"context_budget"`
	Verbose         bool   `yaml:"verbose"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}
}

// LoadConfig reads the configuration from path. An empty path falls back to
// parley.yaml in the working directory, and a missing fallback file yields
// the defaults.
func LoadConfig(path string) (Config, error) {
	fallback := path == ""
	if fallback {
		path = "parley.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if fallback && os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Provider == "" {
		return Config{}, fmt.Errorf("config is missing a provider")
	}
	if cfg.Model == "" {
		return Config{}, fmt.Errorf("config is missing a model")
	}
	return cfg, nil
}
