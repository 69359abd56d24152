package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/guardrail"
	"github.com/newthinker/argus/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	calls []core.ToolName
}

func (c *callLog) handler(tool core.ToolName, err error) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		c.calls = append(c.calls, tool)
		if err != nil {
			return nil, err
		}
		return map[string]any{"tool": string(tool), "symbol": args["symbol"]}, nil
	}
}

func allHandlers(c *callLog) map[core.ToolName]Handler {
	return map[core.ToolName]Handler{
		core.ToolScreen:   c.handler(core.ToolScreen, nil),
		core.ToolAnalyze:  c.handler(core.ToolAnalyze, nil),
		core.ToolBacktest: c.handler(core.ToolBacktest, nil),
		core.ToolOptimize: c.handler(core.ToolOptimize, nil),
	}
}

func newExecutor(t *testing.T, cfg guardrail.Config, handlers map[core.ToolName]Handler) *Executor {
	t.Helper()
	v, err := guardrail.New(cfg)
	require.NoError(t, err)
	d, err := NewDispatcher(handlers, cfg.AllowedTools...)
	require.NoError(t, err)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return New(v, d, WithMetrics(metrics.NewRegistry()), WithClock(func() time.Time { return fixed }))
}

func step(tool core.ToolName, args map[string]any) core.ToolCallIntent {
	return core.ToolCallIntent{Tool: tool, Args: args}
}

func TestNewDispatcher_Validation(t *testing.T) {
	c := &callLog{}

	_, err := NewDispatcher(map[core.ToolName]Handler{"shell": c.handler("shell", nil)})
	assert.ErrorIs(t, err, core.ErrUnknownTool)

	_, err = NewDispatcher(map[core.ToolName]Handler{core.ToolScreen: nil})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = NewDispatcher(map[core.ToolName]Handler{core.ToolScreen: c.handler(core.ToolScreen, nil)}, core.ToolScreen, core.ToolBacktest)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	d, err := NewDispatcher(allHandlers(c), core.KnownTools...)
	require.NoError(t, err)
	assert.True(t, d.Has(core.ToolOptimize))
}

func TestDispatcher_RecoversPanic(t *testing.T) {
	d, err := NewDispatcher(map[core.ToolName]Handler{
		core.ToolAnalyze: func(context.Context, map[string]any) (any, error) { panic("boom") },
	})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), core.ToolAnalyze, nil)
	assert.ErrorIs(t, err, core.ErrToolFailed)
	assert.Contains(t, err.Error(), "boom")

	_, err = d.Dispatch(context.Background(), core.ToolScreen, nil)
	assert.ErrorIs(t, err, core.ErrUnknownTool)
}

func TestExecutePlan_HaltsOnFirstDenial(t *testing.T) {
	c := &callLog{}
	e := newExecutor(t, guardrail.DefaultConfig(), allHandlers(c))

	args := map[string]any{"symbol": "AAPL", "days": 365}
	plan := core.Plan{Steps: []core.ToolCallIntent{
		step(core.ToolScreen, map[string]any{"symbols": []string{"AAPL", "MSFT"}, "days": 365}),
		step(core.ToolAnalyze, args),
		step(core.ToolAnalyze, args), // duplicate
		step(core.ToolAnalyze, map[string]any{"symbol": "MSFT", "days": 365}),
		step(core.ToolBacktest, map[string]any{"symbol": "AAPL", "fast": 20, "slow": 100, "days": 1000}),
	}}

	s := e.NewSession()
	records := s.ExecutePlan(context.Background(), plan)

	require.Len(t, records, 3)
	assert.Equal(t, core.StatusOK, records[0].Status)
	assert.Equal(t, core.StatusOK, records[1].Status)
	assert.Equal(t, core.StatusDenied, records[2].Status)
	assert.Equal(t, core.ErrDuplicateCall.Code, records[2].Code)
	assert.Equal(t, []core.ToolName{core.ToolScreen, core.ToolAnalyze}, c.calls, "steps after the denial never run")

	for i, r := range records {
		assert.Equal(t, i+1, r.Seq)
		assert.Equal(t, core.OriginPlan, r.Origin)
	}

	halted, reason := s.Halted()
	assert.True(t, halted)
	assert.Contains(t, reason, "DUPLICATE_CALL")

	// No further plan runs, but corrective steps are still validated
	assert.Len(t, s.ExecutePlan(context.Background(), plan), 3)

	rec := s.Step(context.Background(), core.ToolCallIntent{
		Tool: core.ToolAnalyze, Args: map[string]any{"symbol": "TSLA"}, Origin: core.OriginReflection,
	})
	assert.Equal(t, core.StatusOK, rec.Status)
	assert.Equal(t, 4, rec.Seq)

	rec = s.Step(context.Background(), core.ToolCallIntent{Tool: core.ToolAnalyze, Args: args, Origin: core.OriginReflection})
	assert.Equal(t, core.ErrDuplicateCall.Code, rec.Code)
	_, reason = s.Halted()
	assert.Contains(t, reason, "DUPLICATE_CALL")
	assert.Len(t, s.Records(), 5)
}

func TestExecutePlan_StepCap(t *testing.T) {
	c := &callLog{}
	cfg := guardrail.DefaultConfig()
	cfg.MaxSteps = 2
	e := newExecutor(t, cfg, allHandlers(c))

	plan := core.Plan{Steps: []core.ToolCallIntent{
		step(core.ToolAnalyze, map[string]any{"symbol": "A"}),
		step(core.ToolAnalyze, map[string]any{"symbol": "B"}),
		step(core.ToolAnalyze, map[string]any{"symbol": "C"}),
	}}

	records := e.NewSession().ExecutePlan(context.Background(), plan)

	require.Len(t, records, 3)
	assert.Equal(t, core.StatusDenied, records[2].Status)
	assert.Equal(t, core.ErrStepCapExceeded.Code, records[2].Code)
	assert.Len(t, c.calls, 2)
}

func TestExecutePlan_ToolFailureContinues(t *testing.T) {
	c := &callLog{}
	handlers := allHandlers(c)
	handlers[core.ToolAnalyze] = c.handler(core.ToolAnalyze, core.Errorf(core.ErrDataUnavailable, "no data for ZZZ"))
	e := newExecutor(t, guardrail.DefaultConfig(), handlers)

	plan := core.Plan{Steps: []core.ToolCallIntent{
		step(core.ToolAnalyze, map[string]any{"symbol": "ZZZ"}),
		step(core.ToolBacktest, map[string]any{"symbol": "AAPL", "fast": 20, "slow": 100}),
	}}

	s := e.NewSession()
	records := s.ExecutePlan(context.Background(), plan)

	require.Len(t, records, 2)
	assert.Equal(t, core.StatusFailed, records[0].Status)
	assert.Equal(t, core.ErrDataUnavailable.Code, records[0].Code)
	assert.Nil(t, records[0].Result)
	assert.Equal(t, core.StatusOK, records[1].Status)
	assert.NotNil(t, records[1].Result)

	halted, _ := s.Halted()
	assert.False(t, halted)
	assert.Equal(t, 4, s.Remaining())
}

func TestExecutePlan_PlainErrorsAreToolFailed(t *testing.T) {
	c := &callLog{}
	handlers := allHandlers(c)
	handlers[core.ToolScreen] = c.handler(core.ToolScreen, errors.New("socket closed"))
	e := newExecutor(t, guardrail.DefaultConfig(), handlers)

	records := e.NewSession().ExecutePlan(context.Background(), core.Plan{Steps: []core.ToolCallIntent{
		step(core.ToolScreen, map[string]any{"symbols": []string{"AAPL"}}),
	}})

	require.Len(t, records, 1)
	assert.Equal(t, core.ErrToolFailed.Code, records[0].Code)
}

func TestExecutePlan_DisallowedTool(t *testing.T) {
	c := &callLog{}
	cfg := guardrail.DefaultConfig()
	cfg.AllowedTools = []core.ToolName{core.ToolScreen, core.ToolAnalyze}
	e := newExecutor(t, cfg, allHandlers(c))

	records := e.NewSession().ExecutePlan(context.Background(), core.Plan{Steps: []core.ToolCallIntent{
		step(core.ToolOptimize, map[string]any{"symbol": "AAPL"}),
		step(core.ToolScreen, map[string]any{"symbols": []string{"AAPL"}}),
	}})

	require.Len(t, records, 1)
	assert.Equal(t, core.ErrToolNotAllowed.Code, records[0].Code)
	assert.Empty(t, c.calls)
}

func TestSession_RecordArgsAreCopied(t *testing.T) {
	c := &callLog{}
	e := newExecutor(t, guardrail.DefaultConfig(), allHandlers(c))
	args := map[string]any{"symbol": "AAPL"}

	s := e.NewSession()
	s.Step(context.Background(), core.ToolCallIntent{Tool: core.ToolAnalyze, Args: args, Origin: core.OriginReflection})
	args["symbol"] = "MSFT"

	records := s.Records()
	assert.Equal(t, "AAPL", records[0].Symbol())
	assert.Equal(t, core.OriginReflection, records[0].Origin)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), records[0].Timestamp)
}

func TestExecutePlan_CancelledContext(t *testing.T) {
	c := &callLog{}
	e := newExecutor(t, guardrail.DefaultConfig(), allHandlers(c))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := e.NewSession()
	records := s.ExecutePlan(ctx, core.Plan{Steps: []core.ToolCallIntent{step(core.ToolAnalyze, map[string]any{"symbol": "A"})}})

	assert.Empty(t, records)
	halted, _ := s.Halted()
	assert.True(t, halted)
}

func TestSession_BeginReflection(t *testing.T) {
	e := newExecutor(t, guardrail.DefaultConfig(), allHandlers(&callLog{}))
	s := e.NewSession()

	assert.True(t, s.BeginReflection())
	assert.False(t, s.BeginReflection())
	assert.True(t, e.NewSession().BeginReflection(), "a new session starts unreflected")
}
