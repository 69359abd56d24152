package factory

import (
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/newthinker/argus/internal/config"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/llm"
	"github.com/newthinker/argus/internal/llm/claude"
	"github.com/newthinker/argus/internal/llm/ollama"
	"github.com/newthinker/argus/internal/llm/openai"
)

// New creates an LLM provider based on configuration. An empty provider
// returns (nil, nil): the planner then uses its fallback plan.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "claude":
		var opts []option.RequestOption
		if cfg.Claude.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.Claude.BaseURL))
		}
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model, opts...)
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	case "ollama":
		return ollama.New(cfg.Ollama.Endpoint, cfg.Ollama.Model, cfg.Ollama.Timeout)
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown LLM provider: %s", cfg.Provider)
	}
}
