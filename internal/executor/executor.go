// Package executor runs plans of tool calls through the guardrail and the
// dispatch table, producing an append-only list of execution records.
package executor

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/guardrail"
	"github.com/newthinker/argus/internal/metrics"
	"go.uber.org/zap"
)

// Executor binds a validator to a dispatcher. It is stateless; per-run
// state lives in a Session.
type Executor struct {
	validator  *guardrail.Validator
	dispatcher *Dispatcher
	metrics    *metrics.Registry
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Executor
type Option func(*Executor)

// WithMetrics records tool calls and denials
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now for record timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an executor
func New(v *guardrail.Validator, d *Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		validator:  v,
		dispatcher: d,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewSession starts an empty run
func (e *Executor) NewSession() *Session {
	return &Session{exec: e, logger: e.logger}
}

// Session holds the records of one run. Calls are strictly sequential:
// each completes before the next is validated.
type Session struct {
	exec   *Executor
	logger *zap.Logger

	mu         sync.Mutex
	records    []core.ExecutionRecord
	halted     bool
	haltReason string
	reflected  bool
}

// WithLogger returns the session with a run-scoped logger
func (s *Session) WithLogger(l *zap.Logger) *Session {
	if l != nil {
		s.logger = l
	}
	return s
}

// ExecutePlan runs intents in order and stops at the first denial.
// Tool failures are recorded and execution continues. A halted session
// runs no further plans.
func (s *Session) ExecutePlan(ctx context.Context, plan core.Plan) []core.ExecutionRecord {
	if halted, _ := s.Halted(); halted {
		return s.Records()
	}
	for _, intent := range plan.Steps {
		if ctx.Err() != nil {
			s.halt("context: " + ctx.Err().Error())
			break
		}
		if intent.Origin == "" {
			intent.Origin = core.OriginPlan
		}
		rec := s.Step(ctx, intent)
		if rec.Status == core.StatusDenied {
			break
		}
	}
	return s.Records()
}

// Step validates and, if allowed, dispatches one intent. The first denial
// halts the session's plan; corrective steps issued afterwards are still
// validated one by one.
func (s *Session) Step(ctx context.Context, intent core.ToolCallIntent) core.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.exec
	rec := core.ExecutionRecord{
		Seq:       len(s.records) + 1,
		Tool:      intent.Tool,
		Args:      maps.Clone(intent.Args),
		Origin:    intent.Origin,
		Timestamp: e.now(),
	}
	log := s.logger.With(
		zap.Int("seq", rec.Seq),
		zap.String("tool", string(rec.Tool)),
		zap.String("origin", string(rec.Origin)),
	)

	decision := e.validator.Check(intent, s.records)
	if !decision.Allowed {
		rec.Status = core.StatusDenied
		rec.Code = decision.Code
		rec.Reason = decision.Reason
		s.records = append(s.records, rec)
		if !s.halted {
			s.halted = true
			s.haltReason = decision.Code + ": " + decision.Reason
		}
		e.metrics.RecordDenial(decision.Code)
		log.Warn("guardrail denied step",
			zap.String("code", decision.Code),
			zap.String("reason", decision.Reason))
		return rec
	}

	start := time.Now()
	result, err := e.dispatcher.Dispatch(ctx, intent.Tool, rec.Args)
	rec.Duration = time.Since(start)
	if err != nil {
		rec.Status = core.StatusFailed
		rec.Code = core.CodeOf(err, core.ErrToolFailed.Code)
		rec.Reason = err.Error()
		log.Warn("tool failed", zap.String("code", rec.Code), zap.Error(err))
	} else {
		rec.Status = core.StatusOK
		rec.Result = result
		log.Info("step ok", zap.Duration("duration", rec.Duration))
	}
	e.metrics.RecordToolCall(string(rec.Tool), string(rec.Status), rec.Duration.Seconds())

	s.records = append(s.records, rec)
	return rec
}

func (s *Session) halt(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.halted {
		s.halted = true
		s.haltReason = reason
	}
}

// BeginReflection marks the session as reflected. It returns false if it
// already was.
func (s *Session) BeginReflection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reflected {
		return false
	}
	s.reflected = true
	return true
}

// Records returns a copy of the records so far
func (s *Session) Records() []core.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExecutionRecord(nil), s.records...)
}

// Halted reports whether a denial stopped the plan, and why
func (s *Session) Halted() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted, s.haltReason
}

// Remaining returns how many more calls the step cap admits
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := 0
	for _, r := range s.records {
		if r.Dispatched() {
			used++
		}
	}
	return max(0, s.exec.validator.MaxSteps()-used)
}
