// Package planner turns an objective into a plan of tool calls. Plans are
// untrusted input: every step is still checked by the guardrail.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/llm"
	"github.com/newthinker/argus/internal/memory"
	"go.uber.org/zap"
)

// Plan sources
const (
	SourceLLM      = "llm"
	SourceFile     = "file"
	SourceFallback = "fallback"
)

// Request carries the objective and run context.
type Request struct {
	Objective           string
	Universe            []string
	Days                int
	MaxSteps            int
	ConfidenceThreshold float64
	Tools               []core.ToolName
	Recent              []memory.Entry
}

// Source produces a plan for a request
type Source interface {
	Plan(ctx context.Context, req Request) (core.Plan, error)
}

// Fallback screens the whole universe.
type Fallback struct{}

// Plan returns the single screen step plan.
func (Fallback) Plan(_ context.Context, req Request) (core.Plan, error) {
	return FallbackPlan(req), nil
}

// FallbackPlan is used when no usable plan is available.
func FallbackPlan(req Request) core.Plan {
	args := map[string]any{"symbols": append([]string(nil), req.Universe...)}
	if req.Days > 0 {
		args["days"] = req.Days
	}
	return core.Plan{
		Objective: req.Objective,
		Steps:     []core.ToolCallIntent{{Tool: core.ToolScreen, Args: args}},
		Source:    SourceFallback,
	}
}

// wirePlan is the JSON shape exchanged with models and plan files.
type wirePlan struct {
	Objective string `json:"objective"`
	Steps     []struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	} `json:"steps"`
}

// toPlan keeps every step, including any past the step cap. The guardrail
// denies the first over-cap step and halts the run.
func (w wirePlan) toPlan(source, fallbackObjective string) core.Plan {
	p := core.Plan{Objective: w.Objective, Source: source}
	if p.Objective == "" {
		p.Objective = fallbackObjective
	}
	for _, s := range w.Steps {
		p.Steps = append(p.Steps, core.ToolCallIntent{
			Tool:   core.ToolName(strings.TrimSpace(s.Tool)),
			Args:   s.Args,
			Origin: core.OriginPlan,
		})
	}
	return p
}

// LLM asks a chat model for a JSON plan and falls back to screening the
// universe when the answer is unusable.
type LLM struct {
	provider    llm.Provider
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// Option configures the LLM planner
type Option func(*LLM)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *LLM) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSampling sets max tokens and temperature
func WithSampling(maxTokens int, temperature float64) Option {
	return func(p *LLM) {
		p.maxTokens = maxTokens
		p.temperature = temperature
	}
}

// NewLLM creates an LLM planner
func NewLLM(provider llm.Provider, opts ...Option) *LLM {
	p := &LLM{provider: provider, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan requests a plan from the model. Model and decoding failures are
// logged and replaced by the fallback plan; only a cancelled context is
// returned as an error.
func (p *LLM) Plan(ctx context.Context, req Request) (core.Plan, error) {
	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		SystemPrompt: SystemPrompt(req),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: UserPrompt(req)}},
		MaxTokens:    p.maxTokens,
		Temperature:  p.temperature,
		JSONMode:     true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return core.Plan{}, ctx.Err()
		}
		p.logger.Warn("planner model failed, using fallback plan",
			zap.String("provider", p.provider.Name()), zap.Error(err))
		return FallbackPlan(req), nil
	}

	var w wirePlan
	if err := llm.DecodeJSON(resp.Content, &w); err != nil {
		p.logger.Warn("planner output unusable, using fallback plan", zap.Error(err))
		return FallbackPlan(req), nil
	}
	if len(w.Steps) == 0 {
		p.logger.Warn("planner returned no steps, using fallback plan")
		return FallbackPlan(req), nil
	}

	plan := w.toPlan(SourceLLM, req.Objective)
	p.logger.Info("plan received",
		zap.String("provider", p.provider.Name()),
		zap.Int("steps", len(plan.Steps)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens))
	return plan, nil
}

// FilePlan reads a static JSON plan.
type FilePlan struct {
	Path string
}

// Plan loads the file. A malformed file is a PLAN_INVALID error.
func (f FilePlan) Plan(_ context.Context, req Request) (core.Plan, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return core.Plan{}, fmt.Errorf("reading plan file: %w", err)
	}
	var w wirePlan
	if err := json.Unmarshal(data, &w); err != nil {
		return core.Plan{}, core.WrapError(core.ErrPlanInvalid, fmt.Errorf("%s: %w", f.Path, err))
	}
	return w.toPlan(SourceFile, req.Objective), nil
}
