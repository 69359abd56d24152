package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/guardrail"
	"github.com/spf13/viper"
)

type Config struct {
	Agent     AgentConfig               `mapstructure:"agent"`
	Optimizer OptimizerConfig           `mapstructure:"optimizer"`
	Data      DataConfig                `mapstructure:"data"`
	LLM       LLMConfig                 `mapstructure:"llm"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Schedule  ScheduleConfig            `mapstructure:"schedule"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
	Log       LogConfig                 `mapstructure:"log"`
	Notifiers map[string]NotifierConfig `mapstructure:"notifiers"`
}

// AgentConfig controls planning, guardrails and picks.
type AgentConfig struct {
	Universe       []string         `mapstructure:"universe"`
	Days           int              `mapstructure:"days"`
	Objective      string           `mapstructure:"objective"`
	PlanFile       string           `mapstructure:"plan_file"` // static plan instead of the LLM planner
	MinConfidence  float64          `mapstructure:"min_confidence"`
	MemoryMaxAge   time.Duration    `mapstructure:"memory_max_age"` // 0 never expires
	ReflectionTopN int              `mapstructure:"reflection_top_n"`
	AutoAnalyzeTop int              `mapstructure:"auto_analyze_top"`
	RecentRuns     int              `mapstructure:"recent_runs"`
	Guardrail      guardrail.Config `mapstructure:"guardrail"`
}

// OptimizerConfig holds the default grid and tool lookbacks.
type OptimizerConfig struct {
	FastValues   []int   `mapstructure:"fast_values"`
	SlowValues   []int   `mapstructure:"slow_values"`
	Split        float64 `mapstructure:"split"`
	TopK         int     `mapstructure:"top_k"`
	Days         int     `mapstructure:"days"`
	BacktestDays int     `mapstructure:"backtest_days"`
	Fast         int     `mapstructure:"fast"`
	Slow         int     `mapstructure:"slow"`
	Workers      int     `mapstructure:"workers"`
}

// DataConfig selects price providers.
type DataConfig struct {
	Providers []string      `mapstructure:"providers"` // tried in order: yahoo, csv
	CSVDir    string        `mapstructure:"csv_dir"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Cache     bool          `mapstructure:"cache"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"` // 0 keeps entries for the whole run
}

type LLMConfig struct {
	Provider    string       `mapstructure:"provider"` // empty uses the fallback plan
	MaxTokens   int          `mapstructure:"max_tokens"`
	Temperature float64      `mapstructure:"temperature"`
	Claude      ClaudeConfig `mapstructure:"claude"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`
	Ollama      OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Memory  MemoryStoreConfig `mapstructure:"memory"`
	Reports ReportsConfig     `mapstructure:"reports"`
}

type MemoryStoreConfig struct {
	Type string `mapstructure:"type"` // "sqlite" or "memory"
	Path string `mapstructure:"path"`
}

type ReportsConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifierConfig configures one digest channel, keyed by type:
// telegram, webhook or email.
type NotifierConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	URL      string `mapstructure:"url"`
	// Email notifier fields
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	// Webhook notifier fields
	Headers map[string]string `mapstructure:"headers"`
}

// ScheduleConfig drives `argus schedule`.
type ScheduleConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Cron     string `mapstructure:"cron"`
	Timezone string `mapstructure:"timezone"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	RunFile     bool   `mapstructure:"run_file"` // also write run.log next to the reports
}

// LoadDotEnv loads KEY=VALUE files into the environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from file on top of Defaults. An empty path
// yields the defaults with environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Support environment variable overrides
	v.SetEnvPrefix("ARGUS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.applyEnvSecrets()

	return cfg, nil
}

// applyEnvSecrets fills API keys from the providers' conventional
// variables when the file leaves them empty.
func (c *Config) applyEnvSecrets() {
	if c.LLM.Claude.APIKey == "" {
		c.LLM.Claude.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.LLM.OpenAI.APIKey == "" {
		c.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Universe:       []string{"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA"},
			Days:           365,
			Objective:      "Identify promising BUY candidates from the universe and justify with signals and (optionally) a backtest.",
			MinConfidence:  0.6,
			ReflectionTopN: 1,
			AutoAnalyzeTop: 3,
			RecentRuns:     3,
			Guardrail:      guardrail.DefaultConfig(),
		},
		Optimizer: OptimizerConfig{
			FastValues:   []int{10, 20, 50},
			SlowValues:   []int{100, 150, 200, 250},
			Split:        0.7,
			TopK:         5,
			Days:         1200,
			BacktestDays: 1000,
			Fast:         50,
			Slow:         200,
			Workers:      1,
		},
		Data: DataConfig{
			Providers: []string{"yahoo"},
			Timeout:   10 * time.Second,
			Cache:     true,
		},
		LLM: LLMConfig{
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Storage: StorageConfig{
			Memory: MemoryStoreConfig{
				Type: "sqlite",
				Path: "data/memory.db",
			},
			Reports: ReportsConfig{
				Type: "localfs",
				Path: "reports",
			},
		},
		Schedule: ScheduleConfig{
			Cron:     "30 17 * * 1-5",
			Timezone: "America/Chicago",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:   "info",
			RunFile: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Agent validation
	if len(c.Agent.Universe) == 0 {
		return core.Errorf(core.ErrConfigMissing, "agent.universe must list at least one symbol")
	}
	if c.Agent.Days <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "agent.days must be positive, got %d", c.Agent.Days)
	}
	if c.Agent.MinConfidence < 0 || c.Agent.MinConfidence > 1 {
		return core.Errorf(core.ErrConfigInvalid, "agent.min_confidence must be between 0 and 1, got %f", c.Agent.MinConfidence)
	}
	if c.Agent.MemoryMaxAge < 0 {
		return core.Errorf(core.ErrConfigInvalid, "agent.memory_max_age cannot be negative, got %s", c.Agent.MemoryMaxAge)
	}
	if c.Agent.ReflectionTopN < 1 {
		return core.Errorf(core.ErrConfigInvalid, "agent.reflection_top_n must be >= 1, got %d", c.Agent.ReflectionTopN)
	}
	if c.Agent.AutoAnalyzeTop < 0 {
		return core.Errorf(core.ErrConfigInvalid, "agent.auto_analyze_top cannot be negative, got %d", c.Agent.AutoAnalyzeTop)
	}
	if _, err := guardrail.New(c.Agent.Guardrail); err != nil {
		return err
	}

	// Optimizer validation
	o := c.Optimizer
	if len(o.FastValues) == 0 || len(o.SlowValues) == 0 {
		return core.Errorf(core.ErrConfigMissing, "optimizer.fast_values and optimizer.slow_values are required")
	}
	if o.Split <= 0 || o.Split >= 1 {
		return core.Errorf(core.ErrConfigInvalid, "optimizer.split must be in (0, 1), got %f", o.Split)
	}
	if o.TopK < 1 {
		return core.Errorf(core.ErrConfigInvalid, "optimizer.top_k must be >= 1, got %d", o.TopK)
	}
	if err := (core.StrategyParams{Fast: o.Fast, Slow: o.Slow}).Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	// Data validation
	if len(c.Data.Providers) == 0 {
		return core.Errorf(core.ErrConfigMissing, "data.providers must name at least one provider")
	}
	for _, p := range c.Data.Providers {
		switch p {
		case "yahoo":
		case "csv":
			if c.Data.CSVDir == "" {
				return core.Errorf(core.ErrConfigMissing, "data.csv_dir required when the csv provider is enabled")
			}
		default:
			return core.Errorf(core.ErrConfigInvalid, "unknown data provider: %s", p)
		}
	}

	// LLM validation - if provider set, check config exists
	switch c.LLM.Provider {
	case "":
	case "claude":
		if c.LLM.Claude.APIKey == "" {
			return core.Errorf(core.ErrConfigMissing, "claude api_key required when provider is claude")
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return core.Errorf(core.ErrConfigMissing, "openai api_key required when provider is openai")
		}
	case "ollama":
		if c.LLM.Ollama.Endpoint == "" {
			return core.Errorf(core.ErrConfigMissing, "ollama endpoint required when provider is ollama")
		}
	default:
		return core.Errorf(core.ErrConfigInvalid, "unknown LLM provider: %s", c.LLM.Provider)
	}

	// Storage validation
	if !slices.Contains([]string{"sqlite", "memory"}, c.Storage.Memory.Type) {
		return core.Errorf(core.ErrConfigInvalid, "storage.memory.type must be sqlite or memory, got %q", c.Storage.Memory.Type)
	}
	if c.Storage.Memory.Type == "sqlite" && c.Storage.Memory.Path == "" {
		return core.Errorf(core.ErrConfigMissing, "storage.memory.path required for sqlite")
	}
	switch c.Storage.Reports.Type {
	case "localfs":
		if c.Storage.Reports.Path == "" {
			return core.Errorf(core.ErrConfigMissing, "storage.reports.path required for localfs")
		}
	case "s3":
		if c.Storage.Reports.S3.Bucket == "" {
			return core.Errorf(core.ErrConfigMissing, "storage.reports.s3.bucket required for s3")
		}
	default:
		return core.Errorf(core.ErrConfigInvalid, "storage.reports.type must be localfs or s3, got %q", c.Storage.Reports.Type)
	}

	// Notifier validation
	for name, n := range c.Notifiers {
		if !n.Enabled {
			continue
		}
		switch name {
		case "telegram":
			if n.BotToken == "" || n.ChatID == "" {
				return core.Errorf(core.ErrConfigMissing, "notifiers.telegram requires bot_token and chat_id")
			}
		case "webhook":
			if n.URL == "" {
				return core.Errorf(core.ErrConfigMissing, "notifiers.webhook requires url")
			}
		case "email":
			if n.Host == "" || n.From == "" || len(n.To) == 0 {
				return core.Errorf(core.ErrConfigMissing, "notifiers.email requires host, from and to")
			}
		default:
			return core.Errorf(core.ErrConfigInvalid, "unknown notifier: %s", name)
		}
	}

	// Schedule validation
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("schedule.timezone: %w", err))
		}
	}

	return nil
}
