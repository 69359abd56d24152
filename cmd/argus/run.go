package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/newthinker/argus/internal/app"
	"github.com/newthinker/argus/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runSymbols []string
	runDays    int
	runPlan    string
	runJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the research pipeline once",
	Long:  "Plan, execute, reflect, pick and remember, then write the run to the report archive",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().StringSliceVar(&runSymbols, "symbols", nil, "override the universe (comma separated)")
	runCmd.Flags().IntVar(&runDays, "days", 0, "override the analysis lookback in days")
	runCmd.Flags().StringVar(&runPlan, "plan", "", "static JSON plan file instead of the planner")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run as JSON")

	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if len(runSymbols) > 0 {
		cfg.Agent.Universe = runSymbols
	}
	if runDays > 0 {
		cfg.Agent.Days = runDays
	}
	if runPlan != "" {
		cfg.Agent.PlanFile = runPlan
	}

	c, err := app.Build(cfg, log, metrics.NewRegistry())
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := c.App.RunOnce(ctx)
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println("=== ARGUS Run ===")
	fmt.Printf("Run:      %s\n", out.ID)
	fmt.Printf("Plan:     %s (%d steps)\n", out.Plan.Source, len(out.Plan.Steps))
	fmt.Printf("Universe: %s\n", strings.Join(out.Universe, ", "))
	fmt.Printf("Records:  %d\n", len(out.Records))
	if out.Halted {
		fmt.Printf("Halted:   %s\n", out.HaltReason)
	}
	fmt.Println()
	for _, r := range out.Records {
		line := fmt.Sprintf("  #%d %-18s %-10s %s", r.Seq, r.Tool, r.Origin, r.Status)
		if r.Code != "" {
			line += " " + r.Code
		}
		fmt.Println(line)
	}
	fmt.Println()
	if len(out.Picks) == 0 {
		fmt.Println("No confident candidates today.")
	}
	for _, p := range out.Picks {
		fmt.Printf("  %-8s %-5s confidence %.2f\n", p.Symbol, p.Recommendation, p.Confidence)
	}
	if out.FinalPick != nil {
		fmt.Printf("\nFinal pick: %s %s\n", out.FinalPick.Symbol, out.FinalPick.Recommendation)
	}
	for _, u := range out.MemoryUpdates {
		if u.Applied {
			fmt.Printf("Memory:     %s -> %s (OS return %.2f%%)\n", u.Symbol, u.Params, u.Objective*100)
		}
	}
	fmt.Printf("\nReport:     %s/%s\n", cfg.Storage.Reports.Path, out.Date())
	fmt.Println(out.Disclaimer)

	log.Debug("run printed", zap.String("run_id", out.ID))
	return nil
}
