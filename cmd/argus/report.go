package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/newthinker/argus/internal/app"
	"github.com/newthinker/argus/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Read archived runs",
}

var reportDatesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List archived run dates, newest first",
	Args:  cobra.NoArgs,
	RunE: withArchive(func(ctx context.Context, a *report.Archive, args []string) error {
		dates, err := a.Dates(ctx)
		if err != nil {
			return err
		}
		for _, d := range dates {
			fmt.Println(d)
		}
		return nil
	}),
}

var reportLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent run",
	Args:  cobra.NoArgs,
	RunE: withArchive(func(ctx context.Context, a *report.Archive, args []string) error {
		run, err := a.Latest(ctx)
		if err != nil {
			return err
		}
		return printRun(ctx, a, run)
	}),
}

var reportShowCmd = &cobra.Command{
	Use:   "show DATE",
	Short: "Show the run archived on DATE (YYYY-MM-DD)",
	Args:  cobra.ExactArgs(1),
	RunE: withArchive(func(ctx context.Context, a *report.Archive, args []string) error {
		run, err := a.ByDate(ctx, args[0])
		if err != nil {
			return err
		}
		return printRun(ctx, a, run)
	}),
}

func init() {
	reportCmd.PersistentFlags().BoolVar(&reportJSON, "json", false, "print run.json instead of report.md")
	reportCmd.AddCommand(reportDatesCmd, reportLatestCmd, reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}

func withArchive(fn func(ctx context.Context, a *report.Archive, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		store, err := app.NewArchiveStorage(cfg.Storage.Reports)
		if err != nil {
			return err
		}
		err = fn(cmd.Context(), report.NewArchive(store, zap.NewNop()), args)
		if report.IsNotFound(err) {
			return fmt.Errorf("no archived run found: %w", err)
		}
		return err
	}
}

func printRun(ctx context.Context, a *report.Archive, run *report.Run) error {
	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	md, err := a.ReportMarkdown(ctx, run.Date())
	if err != nil {
		return err
	}
	fmt.Println(md)
	return nil
}
