// Package config provides configuration management for the race predictor.
package config

import (
	"fmt"
	"time"
)

// Gateway kinds selectable through configuration
const (
	GatewayHeuristic = "heuristic"
	GatewayRemote    = "remote"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Prediction PredictionConfig `mapstructure:"prediction" validate:"required"`
	Inference  InferenceConfig  `mapstructure:"inference" validate:"required"`
	Events     EventsConfig     `mapstructure:"events"`
	Metrics    MetricsConfig    `mapstructure:"metrics" validate:"required"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// PredictionConfig controls the prediction run orchestration
type PredictionConfig struct {
	Gateway                 string  `mapstructure:"gateway" validate:"required,gatewaykind"`
	TimeoutMs               int     `mapstructure:"timeout_ms" validate:"gte=0"`
	MaxRetries              int     `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	DefaultStakeAmount      float64 `mapstructure:"default_stake_amount" validate:"gte=0"`
	SnapshotCacheTTLSeconds int     `mapstructure:"snapshot_cache_ttl_seconds" validate:"gte=0"`
}

// InferenceConfig represents the remote inference service configuration
type InferenceConfig struct {
	BaseURL           string  `mapstructure:"base_url" validate:"required,url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    float64 `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxAttempts       int     `mapstructure:"max_attempts" validate:"required,gt=0,lte=10"`
	RetryWaitMinMs    int     `mapstructure:"retry_wait_min_ms" validate:"gte=0"`
	RetryWaitMaxMs    int     `mapstructure:"retry_wait_max_ms" validate:"gte=0"`
	MaxIdleConns      int     `mapstructure:"max_idle_conns" validate:"gte=0"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`

	// Circuit breaker around the remote gateway; zero failures disables it
	CircuitMaxFailures          int `mapstructure:"circuit_max_failures" validate:"gte=0"`
	CircuitFailureWindowSeconds int `mapstructure:"circuit_failure_window_seconds" validate:"gte=0"`
	CircuitCooldownSeconds      int `mapstructure:"circuit_cooldown_seconds" validate:"gte=0"`
}

// EventsConfig represents the prediction event publisher configuration
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enabled true"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// SchedulerConfig controls scheduled prediction runs for upcoming races
type SchedulerConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Schedule     string `mapstructure:"schedule" validate:"required_if=Enabled true"`
	SystemUserID int64  `mapstructure:"system_user_id" validate:"required_if=Enabled true"`
	RaceLimit    int    `mapstructure:"race_limit" validate:"gte=0"`
	ModelID      string `mapstructure:"model_id"`
}

// SecretsConfig points at an optional AWS Secrets Manager overlay
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Timeout returns the orchestrator's inference time budget; zero disables the check
func (p PredictionConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// MaxAttempts returns the number of orchestrator attempts per run
func (p PredictionConfig) MaxAttempts() int {
	return p.MaxRetries + 1
}

// Timeout returns the per-attempt HTTP timeout
func (i InferenceConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds * float64(time.Second))
}

// RetryWaitMin returns the minimum backoff between remote attempts
func (i InferenceConfig) RetryWaitMin() time.Duration {
	return time.Duration(i.RetryWaitMinMs) * time.Millisecond
}

// CircuitFailureWindow returns the window in which failures are counted
func (i InferenceConfig) CircuitFailureWindow() time.Duration {
	return time.Duration(i.CircuitFailureWindowSeconds) * time.Second
}

// CircuitCooldown returns how long an open circuit rejects calls
func (i InferenceConfig) CircuitCooldown() time.Duration {
	return time.Duration(i.CircuitCooldownSeconds) * time.Second
}

// RetryWaitMax returns the maximum backoff between remote attempts
func (i InferenceConfig) RetryWaitMax() time.Duration {
	return time.Duration(i.RetryWaitMaxMs) * time.Millisecond
}
