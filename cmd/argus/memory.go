package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/newthinker/argus/internal/app"
	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/memory"
	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit remembered strategy parameters",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the best parameters per symbol",
	Args:  cobra.NoArgs,
	RunE: withMemory(func(ctx context.Context, store memory.Store, args []string) error {
		entries, err := store.List(ctx)
		if err != nil {
			return err
		}
		printEntries(entries)
		return nil
	}),
}

var memoryRecentCmd = &cobra.Command{
	Use:   "recent [N]",
	Short: "Show the most recent accepted updates",
	Args:  cobra.MaximumNArgs(1),
	RunE: withMemory(func(ctx context.Context, store memory.Store, args []string) error {
		n := 10
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			n = v
		}
		entries, err := store.Recent(ctx, n)
		if err != nil {
			return err
		}
		printEntries(entries)
		return nil
	}),
}

var memoryForce bool

var memorySetCmd = &cobra.Command{
	Use:   "set SYMBOL FAST SLOW OBJECTIVE",
	Short: "Store parameters for a symbol (only if the objective improves, unless --force)",
	Args:  cobra.ExactArgs(4),
	RunE: withMemory(func(ctx context.Context, store memory.Store, args []string) error {
		fast, err1 := strconv.Atoi(args[1])
		slow, err2 := strconv.Atoi(args[2])
		objective, err3 := strconv.ParseFloat(args[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return core.Errorf(core.ErrInvalidParams, "FAST and SLOW must be integers and OBJECTIVE a number")
		}
		applied, err := store.Upsert(ctx, memory.Update{
			Symbol:    args[0],
			Params:    core.StrategyParams{Fast: fast, Slow: slow},
			Objective: objective,
			PickLabel: "manual",
			Force:     memoryForce,
		})
		if err != nil {
			return err
		}
		if applied {
			fmt.Printf("%s updated to %d/%d\n", strings.ToUpper(args[0]), fast, slow)
		} else {
			fmt.Printf("%s unchanged: stored objective is at least %s\n", strings.ToUpper(args[0]), args[3])
		}
		return nil
	}),
}

func init() {
	memorySetCmd.Flags().BoolVar(&memoryForce, "force", false, "overwrite even if the objective does not improve")

	memoryCmd.AddCommand(memoryListCmd, memoryRecentCmd, memorySetCmd)
	rootCmd.AddCommand(memoryCmd)
}

func withMemory(fn func(ctx context.Context, store memory.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := app.NewMemory(cfg.Storage.Memory)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd.Context(), store, args)
	}
}

func printEntries(entries []memory.Entry) {
	if len(entries) == 0 {
		fmt.Println("No remembered parameters.")
		return
	}
	fmt.Printf("%-10s %-9s %10s %-8s %s\n", "symbol", "params", "objective", "pick", "updated")
	for _, e := range entries {
		fmt.Printf("%-10s %-9s %9.2f%% %-8s %s\n",
			e.Symbol, e.Params, e.Objective*100, e.PickLabel, e.UpdatedAt.Format("2006-01-02 15:04"))
	}
}
