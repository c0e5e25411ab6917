// Package config defines service configuration and its loading rules.
package config

import (
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDynamoDB = "dynamodb"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or text.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Language is the fallback language for user-facing text.
	Language string `koanf:"language"`

	Store      StoreConfig      `koanf:"store"`
	Evaluation EvaluationConfig `koanf:"evaluation"`
	HTTP       HTTPConfig       `koanf:"http"`
	Offline    OfflineConfig    `koanf:"offline"`
	Photos     PhotosConfig     `koanf:"photos"`
	Notify     NotifyConfig     `koanf:"notify"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// StoreConfig selects and configures the roster store.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres, dynamodb.
	Driver     string `koanf:"driver"`
	DSN        string `koanf:"dsn"`
	MaxRetries int    `koanf:"max_retries"`

	DynamoTablePrefix string `koanf:"dynamo_table_prefix"`
	DynamoEndpoint    string `koanf:"dynamo_endpoint"`
	DynamoRegion      string `koanf:"dynamo_region"`
}

// EvaluationConfig tunes the peer evaluation workflow.
type EvaluationConfig struct {
	Deadline            time.Duration `koanf:"deadline"`
	Threshold           float64       `koanf:"threshold"`
	TargetsPerEvaluator int           `koanf:"targets_per_evaluator"`
	ClaimTimeout        time.Duration `koanf:"claim_timeout"`
	// SweepInterval is how often expired rounds are closed and stalled
	// recalculations retried. Zero disables the sweep.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// HTTPConfig configures the API surface.
type HTTPConfig struct {
	// JWTSecret verifies HS256 identity tokens. Empty trusts the
	// X-Person-Id and X-Group-Id headers instead.
	JWTSecret       string        `koanf:"jwt_secret"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	MaxRankingLimit int           `koanf:"max_ranking_limit"`
	SubmitRate      float64       `koanf:"submit_rate"`
	SubmitBurst     int           `koanf:"submit_burst"`
	IdempotencyTTL  time.Duration `koanf:"idempotency_ttl"`
	IdempotencySize int           `koanf:"idempotency_size"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// OfflineConfig sizes the deferred player write queue.
type OfflineConfig struct {
	QueueSize   int           `koanf:"queue_size"`
	Workers     int           `koanf:"workers"`
	MaxAttempts int           `koanf:"max_attempts"`
	Backoff     time.Duration `koanf:"backoff"`
}

// PhotosConfig points at S3-compatible storage. An empty bucket disables
// photo uploads.
type PhotosConfig struct {
	Endpoint        string `koanf:"endpoint"`
	Region          string `koanf:"region"`
	Bucket          string `koanf:"bucket"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	PublicBaseURL   string `koanf:"public_base_url"`
}

// NotifyConfig enables optional notification outlets. Each is off while
// its address or token is empty.
type NotifyConfig struct {
	AMQPURL      string `koanf:"amqp_url"`
	AMQPExchange string `koanf:"amqp_exchange"`

	MQTTBroker   string `koanf:"mqtt_broker"`
	MQTTClientID string `koanf:"mqtt_client_id"`
	MQTTUsername string `koanf:"mqtt_username"`
	MQTTPassword string `koanf:"mqtt_password"`

	DiscordToken   string `koanf:"discord_token"`
	DiscordChannel string `koanf:"discord_channel"`
	// DiscordChannels maps group IDs to their own channel.
	DiscordChannels map[string]string `koanf:"discord_channels"`
}

// MetricsConfig shapes the Prometheus collectors served on /healthz.
type MetricsConfig struct {
	Enabled         bool              `koanf:"enabled"`
	Namespace       string            `koanf:"namespace"`
	Subsystem       string            `koanf:"subsystem"`
	Prefix          string            `koanf:"prefix"`
	Labels          map[string]string `koanf:"labels"`
	Buckets         []float64         `koanf:"buckets"`
	RefreshInterval time.Duration     `koanf:"refresh_interval"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Addr:      ":9080",
		Language:  "en",
		Store: StoreConfig{
			Driver:            DriverMemory,
			MaxRetries:        8,
			DynamoTablePrefix: "futbol_",
		},
		Evaluation: EvaluationConfig{
			Deadline:            72 * time.Hour,
			Threshold:           0.8,
			TargetsPerEvaluator: 2,
			ClaimTimeout:        5 * time.Minute,
			SweepInterval:       time.Minute,
		},
		HTTP: HTTPConfig{
			CORSOrigins:     []string{"*"},
			MaxRankingLimit: 100,
			SubmitRate:      5,
			SubmitBurst:     10,
			IdempotencyTTL:  24 * time.Hour,
			IdempotencySize: 50_000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Offline: OfflineConfig{
			QueueSize:   1000,
			Workers:     2,
			MaxAttempts: 5,
			Backoff:     2 * time.Second,
		},
		Notify: NotifyConfig{
			AMQPExchange: "futbol.events",
			MQTTClientID: "futbol-app",
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			Namespace:       "futbol",
			Subsystem:       "app",
			RefreshInterval: 10 * time.Second,
		},
	}
}
