package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/argus/internal/app"
	"github.com/newthinker/argus/internal/metrics"
	"github.com/newthinker/argus/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleNow bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on the configured cron schedule",
	Long:  "Run the pipeline on schedule.cron in schedule.timezone and expose Prometheus metrics until interrupted",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "also run once immediately")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	reg := metrics.NewRegistry()
	c, err := app.Build(cfg, log, reg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		server := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metrics.Handler(reg, cfg.Metrics.Path, log.Named("http")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	spec := cfg.Schedule.Cron
	if spec == "" {
		spec = scheduler.DefaultSpec
	}
	if next, err := scheduler.NextRun(spec, cfg.Schedule.Timezone, time.Now()); err == nil {
		log.Info("next scheduled run", zap.Time("at", next))
	}

	if scheduleNow {
		if _, err := c.App.RunOnce(ctx); err != nil {
			log.Error("immediate run failed", zap.Error(err))
		}
	}
	return c.App.Start(ctx, spec, cfg.Schedule.Timezone)
}
