// Package main provides the predict CLI for running and inspecting predictions.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/race-predictor/internal/app"
	"github.com/yourusername/race-predictor/internal/logger"
	"github.com/yourusername/race-predictor/internal/models"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	stack      *app.App
	log        *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:     "predict",
	Short:   "Run and inspect race predictions",
	Version: fmt.Sprintf("%s (%s)", Version, GitCommit),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := app.LoadConfig(cmd.Context(), configFile)
		if err != nil {
			return err
		}
		log = logger.NewLoggerForEnvironment(cfg.App.LogLevel, cfg.App.Environment)
		log.SetOutput(os.Stderr)

		stack, err = app.New(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if stack != nil {
			stack.Close()
		}
	},
	SilenceUsage: true,
}

var runFlags struct {
	raceID       int64
	userID       int64
	modelID      string
	featureSetID string
	stake        string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one prediction and print the job result as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := models.PredictionRequest{
			RaceID:       runFlags.raceID,
			ModelID:      runFlags.modelID,
			FeatureSetID: runFlags.featureSetID,
		}
		if runFlags.stake != "" {
			stake, err := decimal.NewFromString(runFlags.stake)
			if err != nil {
				return fmt.Errorf("invalid --stake %q: %w", runFlags.stake, err)
			}
			req.StakeAmount = &stake
		}

		job, err := stack.Runner.Run(cmd.Context(), req, runFlags.userID)
		if err != nil {
			if perr, ok := models.AsPredictionError(err); ok {
				return fmt.Errorf("prediction failed (%s): %w", perr.Kind.Category(), err)
			}
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

var historyFlags struct {
	userID int64
	raceID int64
	result string
	limit  int
	offset int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List a user's predictions with hit-rate statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		params := models.PredictionListParams{
			UserID: historyFlags.userID,
			Limit:  historyFlags.limit,
			Offset: historyFlags.offset,
		}
		if historyFlags.raceID > 0 {
			params.RaceID = &historyFlags.raceID
		}
		if historyFlags.result != "" {
			r := models.PredictionResult(historyFlags.result)
			params.Result = &r
		}

		list, err := stack.History.List(cmd.Context(), params)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRACE\tMODEL\tSTAKE\tRESULT\tPAYOUT\tTOP PICK\tAT")
		for _, p := range list.Items {
			top := "-"
			if len(p.Picks) > 0 {
				top = fmt.Sprintf("%d (%s)", p.Picks[0].EntryID, p.Picks[0].Probability.StringFixed(4))
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				p.ID, p.RaceID, p.ModelVersion, p.StakeAmount.StringFixed(2), p.Result,
				p.Payout.StringFixed(2), top, p.PredictionAt.Format(time.RFC3339))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		s := list.Stats
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d predictions, hits %d, hit rate %s, stake %s, payout %s, return %s\n",
			len(list.Items), list.Total, s.HitCount, s.HitRate.StringFixed(4),
			s.TotalStake.StringFixed(2), s.TotalPayout.StringFixed(2), s.ReturnRate.StringFixed(4))
		return nil
	},
}

var statusUserID int64

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway, inference service and store status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		out := cmd.OutOrStdout()
		cfg := stack.Config

		fmt.Fprintf(out, "Gateway:           %s\n", cfg.Prediction.Gateway)
		fmt.Fprintf(out, "Timeout budget:    %s\n", cfg.Prediction.Timeout())
		fmt.Fprintf(out, "Max attempts:      %d\n", cfg.Prediction.MaxAttempts())
		fmt.Fprintf(out, "Inference URL:     %s\n", cfg.Inference.BaseURL)

		fmt.Fprint(out, "Inference service: ")
		if err := stack.Remote.HealthCheck(ctx); err != nil {
			fmt.Fprintf(out, "UNAVAILABLE (%v)\n", err)
		} else {
			fmt.Fprintln(out, "ONLINE")
		}

		fmt.Fprint(out, "Database:          ")
		if err := stack.DB.HealthCheck(ctx); err != nil {
			fmt.Fprintf(out, "UNAVAILABLE (%v)\n", err)
		} else {
			fmt.Fprintln(out, "ONLINE")
		}

		if statusUserID > 0 {
			count, err := stack.History.Count(ctx, statusUserID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Predictions (user %d): %d\n", statusUserID, count)
		}

		upcoming, err := stack.Repos.Race.GetUpcoming(ctx, 100)
		if err != nil {
			return fmt.Errorf("failed to list upcoming races: %w", err)
		}
		fmt.Fprintf(out, "Upcoming races:    %d\n", len(upcoming))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	runCmd.Flags().Int64Var(&runFlags.raceID, "race-id", 0, "Race to predict")
	runCmd.Flags().Int64Var(&runFlags.userID, "user-id", 0, "User the prediction is recorded for")
	runCmd.Flags().StringVar(&runFlags.modelID, "model-id", "", "Model identifier passed to the gateway")
	runCmd.Flags().StringVar(&runFlags.featureSetID, "feature-set-id", "", "Feature set identifier")
	runCmd.Flags().StringVar(&runFlags.stake, "stake", "", "Stake amount (default from configuration)")
	_ = runCmd.MarkFlagRequired("race-id")
	_ = runCmd.MarkFlagRequired("user-id")

	historyCmd.Flags().Int64Var(&historyFlags.userID, "user-id", 0, "User whose history to list")
	historyCmd.Flags().Int64Var(&historyFlags.raceID, "race-id", 0, "Only predictions for this race")
	historyCmd.Flags().StringVar(&historyFlags.result, "result", "", "Only pending, hit or miss predictions")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "Page size (max 100)")
	historyCmd.Flags().IntVar(&historyFlags.offset, "offset", 0, "Page offset")
	_ = historyCmd.MarkFlagRequired("user-id")

	statusCmd.Flags().Int64Var(&statusUserID, "user-id", 0, "Also count this user's predictions")

	rootCmd.AddCommand(runCmd, historyCmd, statusCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
