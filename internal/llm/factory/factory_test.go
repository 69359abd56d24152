package factory

import (
	"errors"
	"testing"

	"github.com/newthinker/argus/internal/config"
	"github.com/newthinker/argus/internal/core"
)

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LLMConfig
		want string
	}{
		{"claude", config.LLMConfig{Provider: "claude", Claude: config.ClaudeConfig{APIKey: "k", Model: "claude-3-sonnet"}}, "claude"},
		{"openai", config.LLMConfig{Provider: "openai", OpenAI: config.OpenAIConfig{APIKey: "k", Model: "gpt-4"}}, "openai"},
		{"ollama", config.LLMConfig{Provider: "ollama", Ollama: config.OllamaConfig{Endpoint: "http://localhost:11434", Model: "llama3"}}, "ollama"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("expected %s provider, got %s", tt.want, p.Name())
			}
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	p, err := New(config.LLMConfig{})
	if err != nil || p != nil {
		t.Errorf("expected nil provider and nil error, got %v, %v", p, err)
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "unknown"})
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestNew_ClaudeMissingKey(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "claude"})
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected CONFIG_MISSING, got %v", err)
	}
}
