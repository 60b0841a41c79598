package database

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/yourusername/race-predictor/internal/config"
)

// TestDSNEnv names the variable pointing integration tests at a migrated database
const TestDSNEnv = "RACE_PREDICTOR_TEST_DATABASE_HOST"

// SetupTestDB connects to the integration database or skips the test
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	host := os.Getenv(TestDSNEnv)
	if host == "" {
		t.Skipf("integration test - set %s to run", TestDSNEnv)
	}

	port := 5432
	if v := os.Getenv("RACE_PREDICTOR_TEST_DATABASE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}

	cfg := &config.DatabaseConfig{
		Host:               host,
		Port:               port,
		Name:               envOr("RACE_PREDICTOR_TEST_DATABASE_NAME", "race_predictor_test"),
		User:               envOr("RACE_PREDICTOR_TEST_DATABASE_USER", "predictor"),
		Password:           envOr("RACE_PREDICTOR_TEST_DATABASE_PASSWORD", "predictor"),
		SSLMode:            "disable",
		MaxConnections:     4,
		MaxIdleConnections: 1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDB(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	t.Cleanup(db.Close)

	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
