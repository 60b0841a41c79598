package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/events"
	"github.com/yourusername/race-predictor/internal/logger"
	"github.com/yourusername/race-predictor/internal/metrics"
	"github.com/yourusername/race-predictor/internal/ml"
	"github.com/yourusername/race-predictor/internal/models"
	"github.com/yourusername/race-predictor/internal/repository"
)

// PredictionRunner is the entry point for a prediction run. It loads the race
// once, then calls the gateway and persists the result under one transaction
// per attempt, retrying only errors marked retryable.
type PredictionRunner struct {
	loader    *RaceSnapshotLoader
	gateway   ml.ModelGateway
	store     repository.PredictionStore
	persister *Persister
	assembler *ResponseAssembler
	publisher events.Publisher

	timeout     time.Duration
	maxAttempts int

	log      *logger.PredictionLogger
	audit    *logger.AuditLogger
	newJobID func() string
}

// RunnerOption customizes a PredictionRunner
type RunnerOption func(*PredictionRunner)

// WithPublisher publishes a completion event after each commit
func WithPublisher(p events.Publisher) RunnerOption {
	return func(r *PredictionRunner) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithMaxAttempts overrides the configured attempt count
func WithMaxAttempts(n int) RunnerOption {
	return func(r *PredictionRunner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithJobIDGenerator replaces the job id source
func WithJobIDGenerator(fn func() string) RunnerOption {
	return func(r *PredictionRunner) {
		if fn != nil {
			r.newJobID = fn
		}
	}
}

// NewPredictionRunner wires a runner from configuration
func NewPredictionRunner(
	cfg config.PredictionConfig,
	loader *RaceSnapshotLoader,
	gateway ml.ModelGateway,
	store repository.PredictionStore,
	log *logrus.Logger,
	opts ...RunnerOption,
) *PredictionRunner {
	stake := models.DefaultStakeAmount
	if cfg.DefaultStakeAmount > 0 {
		stake = decimal.NewFromFloat(cfg.DefaultStakeAmount).Round(2)
	}

	r := &PredictionRunner{
		loader:      loader,
		gateway:     gateway,
		store:       store,
		persister:   NewPersister(stake),
		assembler:   NewResponseAssembler(),
		publisher:   events.NoopPublisher{},
		timeout:     cfg.Timeout(),
		maxAttempts: cfg.MaxAttempts(),
		log:         logger.NewPredictionLogger(log),
		audit:       logger.NewAuditLogger(log),
		newJobID:    newJobID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}
	return r
}

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Run executes one prediction job for userID. On success exactly one
// prediction is committed; on any error none is.
func (r *PredictionRunner) Run(ctx context.Context, req models.PredictionRequest, userID int64) (*models.JobResult, error) {
	start := time.Now()

	job, attempts, err := r.run(ctx, req, userID)

	outcome := string(models.JobCompleted)
	if err != nil {
		outcome = string(models.KindOf(err))
	}
	metrics.RecordRun(outcome, attempts, time.Since(start).Seconds())

	return job, err
}

func (r *PredictionRunner) run(ctx context.Context, req models.PredictionRequest, userID int64) (*models.JobResult, int, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, 0, err
	}

	snapshot, err := r.loader.Load(ctx, req.RaceID)
	if err != nil {
		return nil, 0, asTyped(err)
	}

	jobID := r.newJobID()
	r.log.LogRunStarted(jobID, req.RaceID, snapshot.Len(), r.maxAttempts)

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempt - 1, models.NewTimeoutError(false, ctxErr, "prediction job %s cancelled after %d attempts", jobID, attempt-1)
		}

		job, prediction, err := r.attempt(ctx, jobID, userID, snapshot, req)
		if err == nil {
			metrics.RecordAttempt(string(models.JobCompleted))
			r.completed(ctx, jobID, userID, attempt, prediction, job)
			return job, attempt, nil
		}

		lastErr = asTyped(err)
		kind := models.KindOf(lastErr)
		retryable := models.IsRetryable(lastErr)
		metrics.RecordAttempt(string(kind))
		r.log.LogAttemptFailed(jobID, req.RaceID, attempt, r.maxAttempts, string(kind), retryable, lastErr)

		if !retryable {
			return nil, attempt, lastErr
		}
	}

	return nil, r.maxAttempts, lastErr
}

// attempt runs one gateway call and, if it succeeds, one transaction
func (r *PredictionRunner) attempt(
	ctx context.Context,
	jobID string,
	userID int64,
	snapshot *models.RaceSnapshot,
	req models.PredictionRequest,
) (*models.JobResult, *models.Prediction, error) {
	result, err := r.gateway.Infer(ctx, snapshot, req.ModelID, req.FeatureSetID)
	if err != nil {
		if _, ok := models.AsPredictionError(err); ok {
			return nil, nil, err
		}
		return nil, nil, models.NewModelError(false, err, "model gateway failed for race %d", snapshot.RaceID())
	}
	if result == nil || len(result.Rankings) == 0 {
		version := ""
		if result != nil {
			version = result.ModelVersion
		}
		return nil, nil, models.NewEmptyResultError(version)
	}
	if budget := r.timeout.Milliseconds(); budget > 0 && result.ElapsedMs > budget {
		return nil, nil, models.NewTimeoutError(true, nil, "inference took %dms, budget is %dms", result.ElapsedMs, budget)
	}

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, nil, models.NewPersistenceError(err, "failed to begin prediction transaction")
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			r.log.WithError(rbErr).WithField("job_id", jobID).Warn("Failed to roll back prediction transaction")
		}
	}()

	prediction, err := r.persister.Persist(ctx, tx, jobID, userID, snapshot, req, result)
	if err != nil {
		return nil, nil, err
	}

	job, err := r.assembler.Assemble(jobID, snapshot, req, result, prediction)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, models.NewPersistenceError(err, "failed to commit prediction for race %d", snapshot.RaceID())
	}
	committed = true

	return job, prediction, nil
}

func (r *PredictionRunner) completed(ctx context.Context, jobID string, userID int64, attempts int, prediction *models.Prediction, job *models.JobResult) {
	metrics.RecordPersisted(job.Metadata.ElapsedMs)
	r.log.LogRunCompleted(jobID, prediction.RaceID, prediction.ID, attempts, prediction.ModelVersion, job.Metadata.ElapsedMs)
	r.audit.LogPredictionRecorded(jobID, prediction.ID, userID, prediction.RaceID,
		prediction.ModelVersion, prediction.StakeAmount.StringFixed(2), len(prediction.Picks), prediction.CreatedAt)

	err := r.publisher.PublishPredictionCompleted(context.WithoutCancel(ctx), events.PredictionCompleted{
		JobID:        jobID,
		PredictionID: prediction.ID,
		UserID:       userID,
		RaceID:       prediction.RaceID,
		ModelVersion: prediction.ModelVersion,
	})
	if err != nil {
		metrics.RecordEventPublishFailure()
		r.audit.LogEventPublishFailed(jobID, prediction.ID, err)
	}
}

// asTyped wraps errors of unknown kind so callers always see a PredictionError
func asTyped(err error) error {
	if _, ok := models.AsPredictionError(err); ok {
		return err
	}
	return models.NewOrchestrationError(err)
}
