package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/executor"
	"github.com/newthinker/argus/internal/logger"
	"github.com/newthinker/argus/internal/memory"
	"github.com/newthinker/argus/internal/metrics"
	"github.com/newthinker/argus/internal/notifier"
	"github.com/newthinker/argus/internal/planner"
	"github.com/newthinker/argus/internal/reflection"
	"github.com/newthinker/argus/internal/report"
	"github.com/newthinker/argus/internal/scheduler"
	"go.uber.org/zap"
)

// Outcome is the complete record of one run
type Outcome = report.Run

// Run statuses reported to metrics
const (
	StatusOK     = "ok"
	StatusHalted = "halted"
	StatusFailed = "failed"
)

// Settings are the per-run inputs
type Settings struct {
	Objective     string
	Universe      []string
	Days          int
	MaxSteps      int
	MinConfidence float64
	RecentRuns    int
	// PickFallbackTop is how many screen rows become picks when nothing was analyzed.
	PickFallbackTop int
}

// Deps are the collaborators a run drives
type Deps struct {
	Planner  planner.Source
	Executor *executor.Executor
	Policy   *reflection.Policy
	Memory   memory.Store
	Exporter report.Exporter // optional
	// Prices, when set, is reset at the start of every run so a cached
	// series never outlives the run that fetched it.
	Prices Resetter
}

// Resetter drops cached state
type Resetter interface {
	Reset()
}

// App is the main application orchestrator
type App struct {
	settings  Settings
	deps      Deps
	logger    *zap.Logger
	metrics   *metrics.Registry
	now       func() time.Time
	runLogDir string
	notifiers *notifier.Registry

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	runs    int
	last    *Outcome
}

// Option configures an App
type Option func(*App)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records run outcomes and memory upserts
func WithMetrics(m *metrics.Registry) Option {
	return func(a *App) { a.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithRunLogDir writes a run.log per run under dir/YYYY-MM-DD
func WithRunLogDir(dir string) Option {
	return func(a *App) { a.runLogDir = dir }
}

// New creates a new App instance
func New(settings Settings, deps Deps, opts ...Option) (*App, error) {
	if deps.Planner == nil || deps.Executor == nil || deps.Policy == nil || deps.Memory == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "planner, executor, reflection policy and memory store are required")
	}
	if len(settings.Universe) == 0 {
		return nil, core.Errorf(core.ErrConfigMissing, "universe must list at least one symbol")
	}
	if settings.PickFallbackTop <= 0 {
		settings.PickFallbackTop = 3
	}
	a := &App{
		settings:  settings,
		deps:      deps,
		logger:    zap.NewNop(),
		now:       time.Now,
		notifiers: notifier.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// RegisterNotifier adds a channel that receives the digest of every run
func (a *App) RegisterNotifier(n notifier.Notifier) error {
	return a.notifiers.Register(n)
}

// Settings returns the run settings
func (a *App) Settings() Settings {
	return a.settings
}

// RunOnce executes one full run: plan, execute, follow up, reflect, pick,
// remember and export. Denials and tool failures end up in the outcome;
// an error is returned only when no plan could be obtained.
func (a *App) RunOnce(ctx context.Context) (*Outcome, error) {
	out := &Outcome{
		ID:         uuid.NewString(),
		StartedAt:  a.now(),
		Objective:  a.settings.Objective,
		Universe:   append([]string(nil), a.settings.Universe...),
		Days:       a.settings.Days,
		Disclaimer: report.Disclaimer,
	}
	log, closeLog := a.runLogger(out)
	defer closeLog()
	log.Info("run started", zap.Strings("universe", out.Universe), zap.Int("days", out.Days))
	if a.deps.Prices != nil {
		a.deps.Prices.Reset()
	}

	plan, err := a.deps.Planner.Plan(ctx, a.request(ctx, log))
	if err != nil {
		a.metrics.RecordRun(StatusFailed, a.now().Sub(out.StartedAt).Seconds())
		log.Error("planning failed", zap.Error(err))
		return nil, fmt.Errorf("planning run %s: %w", out.ID, err)
	}
	out.Plan = plan
	log.Info("plan ready", zap.String("source", plan.Source), zap.Int("steps", len(plan.Steps)))

	session := a.deps.Executor.NewSession().WithLogger(log)
	session.ExecutePlan(ctx, plan)
	a.deps.Policy.FollowUp(ctx, session, a.settings.Days)
	out.Reflection = a.deps.Policy.Reflect(ctx, session, a.settings.Days)

	out.Records = session.Records()
	out.Halted, out.HaltReason = session.Halted()
	out.Picks = Picks(out.Records, a.settings.MinConfidence, a.settings.PickFallbackTop)
	out.FinalPick = FinalPick(out.Picks)
	out.Errors = SymbolErrors(out.Records)
	out.MemoryUpdates = a.remember(ctx, log, out)
	out.FinishedAt = a.now()

	if a.deps.Exporter != nil {
		if _, err := a.deps.Exporter.Export(ctx, out); err != nil {
			log.Error("export failed", zap.Error(err))
		}
	}
	a.notify(ctx, log, out)

	status := StatusOK
	if out.Halted {
		status = StatusHalted
	}
	a.metrics.RecordRun(status, out.Duration().Seconds())
	a.mu.Lock()
	a.runs++
	a.last = out
	a.mu.Unlock()

	fields := []zap.Field{
		zap.String("status", status),
		zap.Int("records", len(out.Records)),
		zap.Int("picks", len(out.Picks)),
		zap.Duration("took", out.Duration()),
	}
	if out.FinalPick != nil {
		fields = append(fields, zap.String("final_pick", out.FinalPick.Symbol))
	}
	log.Info("run finished", fields...)
	return out, nil
}

func (a *App) request(ctx context.Context, log *zap.Logger) planner.Request {
	req := planner.Request{
		Objective:           a.settings.Objective,
		Universe:            a.settings.Universe,
		Days:                a.settings.Days,
		MaxSteps:            a.settings.MaxSteps,
		ConfidenceThreshold: a.settings.MinConfidence,
		Tools:               core.KnownTools,
	}
	if a.settings.RecentRuns > 0 {
		recent, err := a.deps.Memory.Recent(ctx, a.settings.RecentRuns)
		if err != nil {
			log.Warn("recent memory unavailable", zap.Error(err))
		}
		req.Recent = recent
	}
	return req
}

// remember upserts the best parameters of every successful optimization.
// The store keeps an entry only when its out-of-sample return improves.
func (a *App) remember(ctx context.Context, log *zap.Logger, out *Outcome) []report.MemoryUpdate {
	labels := make(map[string]string, len(out.Picks))
	for _, p := range out.Picks {
		labels[p.Symbol] = string(p.Recommendation)
	}

	var updates []report.MemoryUpdate
	for _, opt := range Optimizations(out.Records) {
		u := report.MemoryUpdate{
			Symbol:    opt.Symbol,
			Params:    opt.Best.Params,
			Objective: opt.Best.OS.TotalReturn,
		}
		applied, err := a.deps.Memory.Upsert(ctx, memory.Update{
			Symbol:    u.Symbol,
			Params:    u.Params,
			Objective: u.Objective,
			PickLabel: labels[u.Symbol],
		})
		result := "rejected"
		switch {
		case err != nil:
			u.Error = err.Error()
			result = "error"
			log.Warn("memory upsert failed", zap.String("symbol", u.Symbol), zap.Error(err))
		case applied:
			u.Applied = true
			result = "applied"
			log.Info("memory updated", zap.String("symbol", u.Symbol), zap.Stringer("params", u.Params), zap.Float64("objective", u.Objective))
		}
		a.metrics.RecordMemoryUpsert(result)
		updates = append(updates, u)
	}
	return updates
}

// notify sends the run digest to every registered notifier. Delivery
// failures are logged and never fail the run.
func (a *App) notify(ctx context.Context, log *zap.Logger, out *Outcome) {
	if a.notifiers.Len() == 0 {
		return
	}
	errs := a.notifiers.NotifyAll(ctx, notifier.FromRun(out))
	for _, name := range a.notifiers.Names() {
		if err, failed := errs[name]; failed {
			a.metrics.RecordNotification(name, "error")
			log.Warn("notification failed", zap.String("notifier", name), zap.Error(err))
			continue
		}
		a.metrics.RecordNotification(name, "ok")
	}
}

func (a *App) runLogger(out *Outcome) (*zap.Logger, func()) {
	log := a.logger.With(zap.String("run_id", out.ID))
	if a.runLogDir == "" {
		return log, func() {}
	}
	dir := filepath.Join(a.runLogDir, out.Date())
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn("run log disabled", zap.Error(err))
		return log, func() {}
	}
	withFile, closeFile, err := logger.WithFile(log, filepath.Join(dir, "run.log"))
	if err != nil {
		log.Warn("run log disabled", zap.Error(err))
		return log, func() {}
	}
	return withFile, closeFile
}

// Start runs on the cron schedule until ctx is done or Stop is called.
func (a *App) Start(ctx context.Context, spec, timezone string) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	s, err := scheduler.New(timezone, a.logger)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	err = s.AddJob(spec, scheduler.JobFunc{JobName: "daily-run", Fn: func(ctx context.Context) error {
		_, err := a.RunOnce(ctx)
		return err
	}})
	if err != nil {
		a.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	a.running = true
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info("ARGUS scheduler starting", zap.String("schedule", spec), zap.String("timezone", s.Location().String()))
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()

	a.mu.Lock()
	a.running = false
	a.cancel = nil
	a.mu.Unlock()
	a.logger.Info("ARGUS shutting down")
	return nil
}

// Stop stops the scheduling loop
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Stats returns application statistics
func (a *App) Stats() map[string]any {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := map[string]any{
		"running":  a.running,
		"runs":     a.runs,
		"universe": len(a.settings.Universe),
	}
	if a.last != nil {
		stats["last_run_id"] = a.last.ID
		stats["last_run_at"] = a.last.StartedAt
		stats["last_halted"] = a.last.Halted
	}
	return stats
}
