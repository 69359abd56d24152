package planner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/llm"
	"github.com/newthinker/argus/internal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	content string
	err     error
	got     llm.ChatRequest
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return &llm.ChatResponse{Content: m.content}, nil
}

func request() Request {
	return Request{
		Objective:           "find buys",
		Universe:            []string{"AAPL", "MSFT"},
		Days:                365,
		MaxSteps:            3,
		ConfidenceThreshold: 0.6,
		Recent: []memory.Entry{{
			Symbol:    "AAPL",
			Params:    core.StrategyParams{Fast: 20, Slow: 100},
			Objective: 0.12,
			UpdatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		}},
	}
}

func TestLLM_ParsesPlan(t *testing.T) {
	m := &mockProvider{content: "```json\n" + `{
		"objective": "screen then analyze",
		"steps": [
			{"tool": "screen", "args": {"symbols": ["AAPL", "MSFT"], "days": 365}},
			{"tool": "analyze", "args": {"symbol": "AAPL", "days": 365}},
			{"tool": "analyze", "args": {"symbol": "MSFT", "days": 365}},
			{"tool": "backtest", "args": {"symbol": "AAPL", "fast": 20, "slow": 100}}
		]
	}` + "\n```"}

	plan, err := NewLLM(m).Plan(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, SourceLLM, plan.Source)
	assert.Equal(t, "screen then analyze", plan.Objective)
	require.Len(t, plan.Steps, 4, "steps past the limit are kept for the guardrail")
	assert.Equal(t, core.ToolScreen, plan.Steps[0].Tool)
	assert.Equal(t, "AAPL", plan.Steps[1].Symbol())
	assert.Equal(t, 365.0, plan.Steps[1].Args["days"])
	assert.Equal(t, core.ToolBacktest, plan.Steps[3].Tool)

	assert.True(t, m.got.JSONMode)
	assert.Contains(t, m.got.SystemPrompt, "optimize_backtest(")
	assert.Contains(t, m.got.SystemPrompt, "At most 3 steps")
	require.Len(t, m.got.Messages, 1)
	assert.Contains(t, m.got.Messages[0].Content, "universe: AAPL, MSFT")
	assert.Contains(t, m.got.Messages[0].Content, "AAPL fast=20 slow=100")
	assert.Contains(t, m.got.Messages[0].Content, "confidence_threshold: 0.60")
}

func TestLLM_FallbackOnBadOutput(t *testing.T) {
	tests := []struct {
		name string
		m    *mockProvider
	}{
		{"model error", &mockProvider{err: errors.New("connection refused")}},
		{"not json", &mockProvider{content: "Sure! First, screen the stocks."}},
		{"no steps", &mockProvider{content: `{"objective": "x", "steps": []}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewLLM(tt.m).Plan(context.Background(), request())
			require.NoError(t, err)
			assert.Equal(t, SourceFallback, plan.Source)
			require.Len(t, plan.Steps, 1)
			assert.Equal(t, core.ToolScreen, plan.Steps[0].Tool)
			assert.Equal(t, []string{"AAPL", "MSFT"}, plan.Steps[0].Args["symbols"])
			assert.Equal(t, 365, plan.Steps[0].Args["days"])
		})
	}
}

func TestLLM_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLLM(&mockProvider{err: context.Canceled}).Plan(ctx, request())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilePlan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"steps": [{"tool": "analyze", "args": {"symbol": "NVDA"}}]}`), 0644))

	plan, err := FilePlan{Path: path}.Plan(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, SourceFile, plan.Source)
	assert.Equal(t, "find buys", plan.Objective)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "NVDA", plan.Steps[0].Symbol())
}

func TestFilePlan_KeepsStepsPastLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"steps": [
		{"tool": "analyze", "args": {"symbol": "AAPL"}},
		{"tool": "analyze", "args": {"symbol": "MSFT"}},
		{"tool": "analyze", "args": {"symbol": "NVDA"}},
		{"tool": "place_order", "args": {"symbol": "NVDA"}}
	]}`), 0644))

	plan, err := FilePlan{Path: path}.Plan(context.Background(), request())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 4)
	assert.Equal(t, core.ToolName("place_order"), plan.Steps[3].Tool)
}

func TestFilePlan_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"steps": [`), 0644))

	_, err := FilePlan{Path: path}.Plan(context.Background(), request())
	assert.ErrorIs(t, err, core.ErrPlanInvalid)
}

func TestFallback(t *testing.T) {
	plan, err := Fallback{}.Plan(context.Background(), Request{Universe: []string{"SPY"}})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	_, hasDays := plan.Steps[0].Args["days"]
	assert.False(t, hasDays)
}
