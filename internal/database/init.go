package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-predictor/internal/config"
)

var requiredTables = []string{"races", "race_entries", "predictions", "prediction_picks"}

// Initialize creates a database connection pool and verifies the prediction schema is migrated
func Initialize(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	for _, table := range requiredTables {
		var exists bool
		err := db.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+table).Scan(&exists)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to inspect schema: %w", err)
		}
		if !exists {
			db.Close()
			return nil, fmt.Errorf("table %q not found, run migrations: migrate -path migrations -database \"$DSN\" up", table)
		}
	}

	var migrationVersion int64
	if err := db.pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&migrationVersion); err != nil {
		// schema_migrations only exists when golang-migrate applied the schema
		log.WithError(err).Debug("schema_migrations not readable")
		return db, nil
	}
	log.WithField("migration_version", migrationVersion).Info("Database schema verified")

	return db, nil
}
