package main

import (
	"fmt"
	"os"

	"github.com/newthinker/argus/internal/app"
	"github.com/newthinker/argus/internal/config"
	"github.com/newthinker/argus/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "ARGUS - autonomous daily equity research",
	Long: `ARGUS plans, executes and self-corrects a research run over an equity
universe: screen, analyze, optimize and backtest, with guardrails on every
tool call and a memory of the best parameters per symbol.

Educational demo only, not financial advice.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

// loadConfig loads .env, the config file and validates the result
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := logger.Options{Development: cfg.Log.Development, Level: cfg.Log.Level}
	if debug {
		opts.Development = true
		opts.Level = "debug"
	}
	return logger.New(opts)
}

// setup loads config and builds the logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if app.IsConfigError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
