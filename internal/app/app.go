// Package app wires configuration into a ready-to-use prediction stack.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-predictor/internal/config"
	"github.com/yourusername/race-predictor/internal/database"
	"github.com/yourusername/race-predictor/internal/events"
	"github.com/yourusername/race-predictor/internal/ml"
	"github.com/yourusername/race-predictor/internal/repository"
	"github.com/yourusername/race-predictor/internal/service"
)

// App holds the long-lived components shared by the commands
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *database.DB
	Repos     *repository.Repositories
	Gateway   ml.ModelGateway
	Remote    *ml.RemoteGateway
	Publisher events.Publisher
	Runner    *service.PredictionRunner
	History   *service.HistoryService
}

// LoadConfig loads, overlays secrets onto and validates the configuration
func LoadConfig(ctx context.Context, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Secrets.Enabled {
		if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := config.ValidateEnvironment(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New connects to the database and builds the prediction stack
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	db, err := database.Initialize(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	a, err := Assemble(cfg, repos, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.DB = db
	return a, nil
}

// Assemble builds the stack over existing repositories
func Assemble(cfg *config.Config, repos *repository.Repositories, log *logrus.Logger) (*App, error) {
	gateway, err := ml.NewGateway(cfg.Prediction, cfg.Inference, log)
	if err != nil {
		return nil, err
	}

	publisher := events.NewPublisher(cfg.Events)
	cache := service.NewSnapshotCache(time.Duration(cfg.Prediction.SnapshotCacheTTLSeconds) * time.Second)
	loader := service.NewRaceSnapshotLoader(repos.Race, cache)

	return &App{
		Config:    cfg,
		Logger:    log,
		Repos:     repos,
		Gateway:   gateway,
		Remote:    ml.NewRemoteGateway(cfg.Inference, log),
		Publisher: publisher,
		Runner:    service.NewPredictionRunner(cfg.Prediction, loader, gateway, repos.Prediction, log, service.WithPublisher(publisher)),
		History:   service.NewHistoryService(repos.Prediction),
	}, nil
}

// Close releases pooled connections
func (a *App) Close() {
	if err := a.Gateway.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close model gateway")
	}
	if err := a.Remote.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close inference client")
	}
	if err := a.Publisher.Close(); err != nil {
		a.Logger.WithError(err).Warn("Failed to close event publisher")
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
