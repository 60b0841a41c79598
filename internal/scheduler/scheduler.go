// Package scheduler runs predictions for upcoming races on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/metrics"
	"github.com/yourusername/race-predictor/internal/models"
)

// PredictionRunner executes one prediction job
type PredictionRunner interface {
	Run(ctx context.Context, req models.PredictionRequest, userID int64) (*models.JobResult, error)
}

// RaceLister lists races that have not started yet
type RaceLister interface {
	GetUpcoming(ctx context.Context, limit int) ([]*models.Race, error)
}

// HistoryReader reads stored predictions
type HistoryReader interface {
	List(ctx context.Context, params models.PredictionListParams) (*models.PredictionListResult, error)
}

// TickReport summarizes one scheduled pass over upcoming races
type TickReport struct {
	Races     int
	Completed int
	Skipped   int
	Failed    int
	Duration  time.Duration
}

// Scheduler manages scheduled prediction jobs
type Scheduler struct {
	cron    *cron.Cron
	runner  PredictionRunner
	races   RaceLister
	history HistoryReader
	cfg     config.SchedulerConfig
	logger  *logrus.Entry

	mu              sync.RWMutex
	tickMu          sync.Mutex
	isRunning       bool
	jobIDs          []cron.EntryID
	tickTimeout     time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg config.SchedulerConfig, runner PredictionRunner, races RaceLister, history HistoryReader, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		runner:          runner,
		races:           races,
		history:         history,
		cfg:             cfg,
		logger:          logger.WithField("component", "scheduler"),
		jobIDs:          make([]cron.EntryID, 0),
		tickTimeout:     10 * time.Minute,
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleUpcomingPredictions schedules a prediction pass over upcoming races
func (s *Scheduler) ScheduleUpcomingPredictions(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	jobFunc := func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
		defer cancel()

		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled prediction pass failed")
		}
	}

	entryID, err := s.cron.AddFunc(cronExpression, jobFunc)
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("schedule", cronExpression).Info("Scheduled upcoming race predictions")

	return nil
}

// RunOnce predicts every upcoming race the system user has no prediction for.
// Overlapping passes are skipped rather than queued.
func (s *Scheduler) RunOnce(ctx context.Context) (*TickReport, error) {
	if !s.tickMu.TryLock() {
		metrics.RecordScheduledRun("skipped", 0)
		s.logger.Warn("Previous prediction pass still running, skipping")
		return &TickReport{}, nil
	}
	defer s.tickMu.Unlock()

	start := time.Now()
	report := &TickReport{}

	limit := s.cfg.RaceLimit
	if limit <= 0 {
		limit = 50
	}

	races, err := s.races.GetUpcoming(ctx, limit)
	if err != nil {
		metrics.RecordScheduledRun("failure", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to list upcoming races: %w", err)
	}
	report.Races = len(races)

	for _, race := range races {
		if ctx.Err() != nil {
			break
		}

		done, err := s.alreadyPredicted(ctx, race.ID)
		if err != nil {
			s.logger.WithError(err).WithField("race_id", race.ID).Warn("Failed to check prediction history")
		}
		if done {
			report.Skipped++
			metrics.RecordScheduledPrediction("skipped")
			continue
		}

		job, err := s.runner.Run(ctx, models.PredictionRequest{RaceID: race.ID, ModelID: s.cfg.ModelID}, s.cfg.SystemUserID)
		if err != nil {
			report.Failed++
			kind := string(models.KindOf(err))
			metrics.RecordScheduledPrediction(kind)
			s.logger.WithFields(logrus.Fields{
				"race_id":    race.ID,
				"error_kind": kind,
			}).WithError(err).Warn("Scheduled prediction failed")
			continue
		}

		report.Completed++
		metrics.RecordScheduledPrediction(string(job.Status))
	}

	report.Duration = time.Since(start)
	status := "success"
	if report.Failed > 0 {
		status = "failure"
	}
	metrics.RecordScheduledRun(status, report.Duration.Seconds())

	s.logger.WithFields(logrus.Fields{
		"races":     report.Races,
		"completed": report.Completed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
		"duration":  report.Duration.String(),
	}).Info("Prediction pass finished")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, ctxErr
	}
	return report, nil
}

func (s *Scheduler) alreadyPredicted(ctx context.Context, raceID int64) (bool, error) {
	if s.history == nil {
		return false, nil
	}
	result, err := s.history.List(ctx, models.PredictionListParams{
		UserID: s.cfg.SystemUserID,
		RaceID: &raceID,
		Limit:  1,
	})
	if err != nil {
		return false, err
	}
	return result.Total > 0, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// ErrStopTimeout is returned when running jobs outlast the graceful timeout
var ErrStopTimeout = errors.New("scheduler stop timed out waiting for running jobs")

// Stop gracefully stops the scheduler, waiting for running jobs
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	timer := time.NewTimer(s.gracefulTimeout)
	defer timer.Stop()

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}
