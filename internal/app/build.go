package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/newthinker/argus/internal/analysis"
	"github.com/newthinker/argus/internal/backtest"
	"github.com/newthinker/argus/internal/collector"
	"github.com/newthinker/argus/internal/collector/csvfile"
	"github.com/newthinker/argus/internal/collector/yahoo"
	"github.com/newthinker/argus/internal/config"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/executor"
	"github.com/newthinker/argus/internal/guardrail"
	"github.com/newthinker/argus/internal/llm/factory"
	"github.com/newthinker/argus/internal/memory"
	"github.com/newthinker/argus/internal/metrics"
	"github.com/newthinker/argus/internal/notifier"
	"github.com/newthinker/argus/internal/notifier/email"
	"github.com/newthinker/argus/internal/notifier/telegram"
	"github.com/newthinker/argus/internal/notifier/webhook"
	"github.com/newthinker/argus/internal/planner"
	"github.com/newthinker/argus/internal/reflection"
	"github.com/newthinker/argus/internal/report"
	"github.com/newthinker/argus/internal/storage/archive"
	"github.com/newthinker/argus/internal/tools"
	"go.uber.org/zap"
)

// Components holds everything built from a config
type Components struct {
	App        *App
	Prices     collector.PriceProvider
	Backtester *backtest.Backtester
	Toolbox    *tools.Toolbox
	Memory     memory.Store
	Archive    *report.Archive
}

// Close releases the memory store
func (c *Components) Close() error {
	if c.Memory == nil {
		return nil
	}
	return c.Memory.Close()
}

// Build wires the full pipeline from cfg. reg may be nil.
func Build(cfg *config.Config, logger *zap.Logger, reg *metrics.Registry) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prices, err := NewPriceProvider(cfg.Data, logger, reg)
	if err != nil {
		return nil, err
	}
	bt := backtest.New(prices,
		backtest.WithLogger(logger.Named("backtest")),
		backtest.WithMetrics(reg),
		backtest.WithWorkers(cfg.Optimizer.Workers),
	)
	analyzer := analysis.NewAnalyzer(prices, nil, logger.Named("analysis"))
	toolbox := tools.New(analyzer, bt, ToolSettings(cfg), logger.Named("tools"))

	validator, err := guardrail.New(cfg.Agent.Guardrail)
	if err != nil {
		return nil, err
	}
	dispatcher, err := toolbox.Dispatcher()
	if err != nil {
		return nil, err
	}
	exec := executor.New(validator, dispatcher,
		executor.WithLogger(logger.Named("executor")),
		executor.WithMetrics(reg),
	)

	store, err := NewMemory(cfg.Storage.Memory)
	if err != nil {
		return nil, err
	}
	policy := reflection.New(ReflectionConfig(cfg), store,
		reflection.WithLogger(logger.Named("reflection")),
		reflection.WithMetrics(reg),
	)

	source, err := NewPlanner(cfg, logger.Named("planner"))
	if err != nil {
		store.Close()
		return nil, err
	}

	storage, err := NewArchiveStorage(cfg.Storage.Reports)
	if err != nil {
		store.Close()
		return nil, err
	}
	arch := report.NewArchive(storage, logger.Named("report"))

	opts := []Option{WithLogger(logger), WithMetrics(reg)}
	if cfg.Log.RunFile && cfg.Storage.Reports.Type == "localfs" {
		opts = append(opts, WithRunLogDir(cfg.Storage.Reports.Path))
	}
	deps := Deps{
		Planner:  source,
		Executor: exec,
		Policy:   policy,
		Memory:   store,
		Exporter: arch,
	}
	if cache, ok := prices.(*collector.Cache); ok {
		deps.Prices = cache
	}
	a, err := New(Settings{
		Objective:     cfg.Agent.Objective,
		Universe:      cfg.Agent.Universe,
		Days:          cfg.Agent.Days,
		MaxSteps:      cfg.Agent.Guardrail.MaxSteps,
		MinConfidence: cfg.Agent.MinConfidence,
		RecentRuns:    cfg.Agent.RecentRuns,
	}, deps, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	notifiers, err := NewNotifiers(cfg.Notifiers)
	if err != nil {
		store.Close()
		return nil, err
	}
	for _, n := range notifiers {
		if err := a.RegisterNotifier(n); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("notifier enabled", zap.String("notifier", n.Name()))
	}

	return &Components{
		App:        a,
		Prices:     prices,
		Backtester: bt,
		Toolbox:    toolbox,
		Memory:     store,
		Archive:    arch,
	}, nil
}

// NewPriceProvider builds the provider chain, cached when enabled.
func NewPriceProvider(cfg config.DataConfig, logger *zap.Logger, reg *metrics.Registry) (collector.PriceProvider, error) {
	registry := collector.NewRegistry()
	for _, name := range cfg.Providers {
		switch name {
		case "yahoo":
			registry.Register(yahoo.New(yahoo.WithTimeout(cfg.Timeout)))
		case "csv":
			registry.Register(csvfile.New(cfg.CSVDir))
		default:
			return nil, core.Errorf(core.ErrConfigInvalid, "unknown data provider: %s", name)
		}
	}
	chain, err := registry.Chain(cfg.Providers...)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	chain.WithLogger(logger.Named("collector")).WithMetrics(reg)
	if !cfg.Cache {
		return chain, nil
	}
	return collector.NewCache(chain, cfg.CacheTTL), nil
}

// NewNotifiers builds the enabled notifiers, ordered by name.
func NewNotifiers(cfgs map[string]config.NotifierConfig) ([]notifier.Notifier, error) {
	names := make([]string, 0, len(cfgs))
	for name, c := range cfgs {
		if c.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]notifier.Notifier, 0, len(names))
	for _, name := range names {
		c := cfgs[name]
		var n notifier.Notifier
		switch name {
		case "telegram":
			n = telegram.New(c.BotToken, c.ChatID)
		case "webhook":
			n = webhook.New(c.URL, c.Headers)
		case "email":
			n = email.New(c.Host, c.Port, c.Username, c.Password, c.From, c.To)
		default:
			return nil, core.Errorf(core.ErrConfigInvalid, "unknown notifier: %s", name)
		}
		if err := n.Init(notifier.Config{Type: name}); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// NewMemory opens the configured memory store.
func NewMemory(cfg config.MemoryStoreConfig) (memory.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.NewInMemory(), nil
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating memory dir: %w", err)
			}
		}
		return memory.OpenSQLite(cfg.Path)
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown memory store type: %s", cfg.Type)
	}
}

// NewArchiveStorage creates the report storage backend.
func NewArchiveStorage(cfg config.ReportsConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "localfs", "":
		return archive.NewLocalFS(cfg.Path)
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown reports storage type: %s", cfg.Type)
	}
}

// NewPlanner picks the plan source: a static plan file, the configured
// LLM, or the fallback screen plan.
func NewPlanner(cfg *config.Config, logger *zap.Logger) (planner.Source, error) {
	if cfg.Agent.PlanFile != "" {
		return planner.FilePlan{Path: cfg.Agent.PlanFile}, nil
	}
	provider, err := factory.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		logger.Info("no LLM provider configured, using fallback plan")
		return planner.Fallback{}, nil
	}
	return planner.NewLLM(provider,
		planner.WithLogger(logger),
		planner.WithSampling(cfg.LLM.MaxTokens, cfg.LLM.Temperature),
	), nil
}

// ToolSettings maps config onto tool defaults.
func ToolSettings(cfg *config.Config) tools.Settings {
	s := tools.DefaultSettings()
	s.Universe = cfg.Agent.Universe
	s.Days = cfg.Agent.Days
	s.BacktestDays = cfg.Optimizer.BacktestDays
	s.OptimizeDays = cfg.Optimizer.Days
	s.Params = core.StrategyParams{Fast: cfg.Optimizer.Fast, Slow: cfg.Optimizer.Slow}
	s.FastValues = cfg.Optimizer.FastValues
	s.SlowValues = cfg.Optimizer.SlowValues
	s.Split = cfg.Optimizer.Split
	s.TopK = cfg.Optimizer.TopK
	return s
}

// ReflectionConfig maps config onto the reflection policy.
func ReflectionConfig(cfg *config.Config) reflection.Config {
	r := reflection.DefaultConfig()
	r.MaxAge = cfg.Agent.MemoryMaxAge
	r.TopN = cfg.Agent.ReflectionTopN
	r.FollowUpTop = cfg.Agent.AutoAnalyzeTop
	r.Days = cfg.Optimizer.Days
	r.FastValues = cfg.Optimizer.FastValues
	r.SlowValues = cfg.Optimizer.SlowValues
	r.Split = cfg.Optimizer.Split
	r.TopK = cfg.Optimizer.TopK
	r.Fallback = core.StrategyParams{Fast: cfg.Optimizer.Fast, Slow: cfg.Optimizer.Slow}
	return r
}

// IsConfigError reports whether err comes from invalid or missing config.
func IsConfigError(err error) bool {
	return errors.Is(err, core.ErrConfigInvalid) || errors.Is(err, core.ErrConfigMissing)
}
