package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/newthinker/argus/internal/analysis"
	"github.com/newthinker/argus/internal/app"
	"github.com/newthinker/argus/internal/backtest"
	"github.com/newthinker/argus/internal/config"
	"github.com/newthinker/argus/internal/tools"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	backtestStrategy string
	backtestFast     int
	backtestSlow     int
	backtestDays     int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest SYMBOL",
	Short: "Backtest the crossover strategy on one symbol",
	Long:  "Run a strategy against historical data and show performance statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "", "strategy name (default sma_cross)")
	backtestCmd.Flags().IntVar(&backtestFast, "fast", 0, "fast SMA window (default from config)")
	backtestCmd.Flags().IntVar(&backtestSlow, "slow", 0, "slow SMA window (default from config)")
	backtestCmd.Flags().IntVar(&backtestDays, "days", 0, "lookback in days (default from config)")

	rootCmd.AddCommand(backtestCmd)
}

// newToolbox wires the price chain, backtester and analyzer without the
// planner or stores.
func newToolbox(cfg *config.Config, log *zap.Logger) (*tools.Toolbox, error) {
	prices, err := app.NewPriceProvider(cfg.Data, log, nil)
	if err != nil {
		return nil, err
	}
	bt := backtest.New(prices, backtest.WithLogger(log), backtest.WithWorkers(cfg.Optimizer.Workers))
	return tools.New(analysis.NewAnalyzer(prices, nil, log), bt, app.ToolSettings(cfg), log), nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	tb, err := newToolbox(cfg, log)
	if err != nil {
		return err
	}

	res, err := tb.Backtest(context.Background(), tools.BacktestArgs{
		Symbol:   args[0],
		Strategy: backtestStrategy,
		Fast:     backtestFast,
		Slow:     backtestSlow,
		Days:     backtestDays,
	})
	if err != nil {
		return err
	}

	s := res.Summary
	fmt.Println("=== ARGUS Backtest ===")
	fmt.Printf("Strategy: %s %s\n", res.Strategy, res.Params)
	fmt.Printf("Symbol:   %s\n", res.Symbol)
	fmt.Printf("Period:   %s to %s (%d bars)\n", res.StartDate.Format("2006-01-02"), res.EndDate.Format("2006-01-02"), res.Bars)
	fmt.Println()
	fmt.Printf("Total return: %8.2f%%\n", s.TotalReturn*100)
	fmt.Printf("CAGR:         %8.2f%%\n", s.CAGR*100)
	fmt.Printf("Max drawdown: %8.2f%%\n", s.MaxDrawdown*100)
	fmt.Printf("Sharpe:       %8.2f\n", s.Sharpe)
	fmt.Printf("Win rate:     %8.2f%%\n", s.WinRate*100)
	fmt.Printf("Trades:       %8d\n", s.TradeCount)
	return nil
}

var (
	optimizeFast  []int
	optimizeSlow  []int
	optimizeSplit float64
	optimizeTopK  int
	optimizeDays  int
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize SYMBOL",
	Short: "Grid-search crossover windows with an in-sample/out-of-sample split",
	Args:  cobra.ExactArgs(1),
	RunE:  runOptimize,
}

func init() {
	optimizeCmd.Flags().IntSliceVar(&optimizeFast, "fast-values", nil, "fast windows (default from config)")
	optimizeCmd.Flags().IntSliceVar(&optimizeSlow, "slow-values", nil, "slow windows (default from config)")
	optimizeCmd.Flags().Float64Var(&optimizeSplit, "split", 0, "in-sample fraction (default from config)")
	optimizeCmd.Flags().IntVar(&optimizeTopK, "top-k", 0, "leaderboard size (default from config)")
	optimizeCmd.Flags().IntVar(&optimizeDays, "days", 0, "lookback in days (default from config)")

	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	tb, err := newToolbox(cfg, log)
	if err != nil {
		return err
	}

	opt, err := tb.Optimize(context.Background(), tools.OptimizeArgs{
		Symbol:     args[0],
		FastValues: optimizeFast,
		SlowValues: optimizeSlow,
		Split:      optimizeSplit,
		TopK:       optimizeTopK,
		Days:       optimizeDays,
	})
	if err != nil {
		return err
	}

	fmt.Println("=== ARGUS Optimize ===")
	fmt.Printf("Symbol: %s  bars %d (IS %d / OS %d, split %.2f)\n", opt.Symbol, opt.BarsTotal, opt.BarsIS, opt.BarsOS, opt.Split)
	fmt.Printf("Evaluated %d, skipped %d\n\n", opt.Evaluated, len(opt.Skipped))
	fmt.Printf("%-4s %-9s %10s %10s %10s %10s\n", "#", "params", "OS sharpe", "OS CAGR", "OS maxDD", "IS sharpe")
	fmt.Println(strings.Repeat("-", 58))
	for i, c := range opt.Leaderboard {
		fmt.Printf("%-4d %-9s %10.2f %9.2f%% %9.2f%% %10.2f\n",
			i+1, c.Params, c.OS.Sharpe, c.OS.CAGR*100, c.OS.MaxDrawdown*100, c.IS.Sharpe)
	}
	for _, s := range opt.Skipped {
		fmt.Printf("skipped %s: %s\n", s.Params, s.Reason)
	}
	fmt.Printf("\nBest: %s\n", opt.Best.Params)
	return nil
}
