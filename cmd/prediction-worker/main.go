// Package main provides the prediction worker, which runs scheduled
// predictions for upcoming races and serves health and metrics endpoints.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/race-predictor/internal/app"
	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/health"
	"github.com/yourusername/race-predictor/internal/logger"
	"github.com/yourusername/race-predictor/internal/metrics"
	"github.com/yourusername/race-predictor/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	runOnce    bool
)

var rootCmd = &cobra.Command{
	Use:          "prediction-worker",
	Short:        "Run scheduled predictions for upcoming races",
	Version:      fmt.Sprintf("%s (%s)", Version, GitCommit),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single prediction pass and exit")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := app.LoadConfig(ctx, configFile)
	if err != nil {
		return err
	}

	log := logger.NewLoggerForEnvironment(cfg.App.LogLevel, cfg.App.Environment)
	log.WithFields(logrus.Fields{
		"version":     Version,
		"environment": cfg.App.Environment,
		"gateway":     cfg.Prediction.Gateway,
	}).Info("Starting prediction worker")

	stack, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer stack.Close()

	sched := scheduler.NewScheduler(cfg.Scheduler, stack.Runner, stack.Repos.Race, stack.History, log)

	if runOnce {
		report, err := sched.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"completed": report.Completed,
			"failed":    report.Failed,
		}).Info("Prediction pass complete")
		return nil
	}

	metrics.InitRegistry()
	healthServer := health.NewServer(health.Config{
		ServiceName:    cfg.App.Name,
		Version:        Version,
		Port:           strconv.Itoa(cfg.Metrics.Port),
		Logger:         log,
		Checkers:       checkers(cfg, stack),
		MetricsPath:    metricsPath(cfg.Metrics),
		MetricsHandler: metrics.Handler(),
	})
	if err := healthServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := sched.ScheduleUpcomingPredictions(cfg.Scheduler.Schedule); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.WithError(err).Warn("Scheduler did not stop cleanly")
			}
		}()
	} else {
		log.Info("Scheduler disabled, serving health endpoints only")
	}

	healthServer.SetReady(true)
	<-ctx.Done()
	healthServer.SetReady(false)
	log.Info("Shutting down prediction worker")
	return nil
}

func checkers(cfg *config.Config, stack *app.App) []health.Checker {
	list := []health.Checker{
		health.CheckFunc{CheckName: "database", Fn: stack.DB.Ping},
	}
	if cfg.Prediction.Gateway == config.GatewayRemote {
		list = append(list, health.CheckFunc{CheckName: "inference", Fn: stack.Remote.HealthCheck})
	}
	return list
}

func metricsPath(cfg config.MetricsConfig) string {
	if !cfg.Enabled {
		return ""
	}
	return cfg.Path
}
