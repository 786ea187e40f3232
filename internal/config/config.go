// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Loading order (see LoadWithKoanf):
//  1. Defaults
//  2. Optional YAML file (CONFIG_PATH or one of DefaultConfigPaths)
//  3. Environment variables
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Security  SecurityConfig  `koanf:"security"`
	Casbin    CasbinConfig    `koanf:"casbin"`
	Store     StoreConfig     `koanf:"store"`
	Queue     QueueConfig     `koanf:"queue"`
	Processor ProcessorConfig `koanf:"processor"`
	Broadcast BroadcastConfig `koanf:"broadcast"`
	Ingest    IngestConfig    `koanf:"ingest"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig configures caller verification and HTTP protections.
//
// AuthMode "jwt" verifies HS256 bearer tokens signed with JWTSecret. AuthMode
// "none" treats the bearer value itself as the caller id and is refused in
// production.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenIssuer       string        `koanf:"token_issuer"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	// AdminUsers are granted the admin role, OperatorUsers the read-only
	// operator role, in the authorization policy.
	AdminUsers    []string `koanf:"admin_users"`
	OperatorUsers []string `koanf:"operator_users"`
}

// CasbinConfig configures RBAC on the admin endpoints. Empty paths use the
// embedded model and policy.
type CasbinConfig struct {
	ModelPath  string `koanf:"model_path"`
	PolicyPath string `koanf:"policy_path"`
	// CacheTTL bounds how long an enforcement decision is reused; 0 disables
	// the decision cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// StoreConfig selects and configures the aggregate store backend.
type StoreConfig struct {
	// Backend is badger, duckdb or postgres.
	Backend string `koanf:"backend"`

	BadgerDir       string `koanf:"badger_dir"`
	BadgerInMemory  bool   `koanf:"badger_in_memory"`
	ConflictRetries int    `koanf:"conflict_retries"`

	// BadgerGCInterval is the value log GC period; 0 disables it.
	BadgerGCInterval time.Duration `koanf:"badger_gc_interval"`

	DuckDBPath string `koanf:"duckdb_path"`

	PostgresURL      string `koanf:"postgres_url"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`
}

// QueueConfig configures the delivery queue.
//
// Backend "nats" is the durable deployment: JetStream stream, durable
// consumer, visibility window AckWait and MaxDeliver bounded redelivery.
// Backend "memory" runs the same router over Go channels in one process and
// loses in-flight events on restart.
type QueueConfig struct {
	Backend string `koanf:"backend"`

	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	StreamName      string        `koanf:"stream_name"`
	EventsTopic     string        `koanf:"events_topic"`
	DLQTopic        string        `koanf:"dlq_topic"`
	SnapshotsTopic  string        `koanf:"snapshots_topic"`
	RetentionDays   int           `koanf:"retention_days"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`

	DurableName   string        `koanf:"durable_name"`
	QueueGroup    string        `koanf:"queue_group"`
	AckWait       time.Duration `koanf:"ack_wait"`
	MaxDeliver    int           `koanf:"max_deliver"`
	MaxAckPending int           `koanf:"max_ack_pending"`

	PublishTimeout time.Duration `koanf:"publish_timeout"`

	// Publisher circuit breaker.
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`

	// MemoryBuffer is the GoChannel output buffer for the memory backend.
	MemoryBuffer int64 `koanf:"memory_buffer"`
}

// ProcessorConfig configures the event processor router.
type ProcessorConfig struct {
	Workers              int           `koanf:"workers"`
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	// MaxAttempts is the number of deliveries after which a transiently
	// failing event is dead-lettered.
	MaxAttempts    int           `koanf:"max_attempts"`
	HandlerTimeout time.Duration `koanf:"handler_timeout"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
	DLQHistory     int           `koanf:"dlq_history"`
}

// RetryMultiplier is the backoff growth factor between in-place retries.
const RetryMultiplier = 2.0

// RetryBudget is the longest one delivery can take: every in-place attempt
// running to HandlerTimeout plus the backoff between them.
func (p ProcessorConfig) RetryBudget() time.Duration {
	budget := p.HandlerTimeout * time.Duration(p.RetryCount+1)
	interval := p.RetryInitialInterval
	for i := 0; i < p.RetryCount; i++ {
		budget += interval
		interval = time.Duration(float64(interval) * RetryMultiplier)
		if interval > p.RetryMaxInterval {
			interval = p.RetryMaxInterval
		}
	}
	return budget
}

// BroadcastConfig configures the WebSocket fan-out.
type BroadcastConfig struct {
	SendBuffer       int           `koanf:"send_buffer"`
	HubBuffer        int           `koanf:"hub_buffer"`
	WriteWait        time.Duration `koanf:"write_wait"`
	PongWait         time.Duration `koanf:"pong_wait"`
	PingPeriod       time.Duration `koanf:"ping_period"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	MaxSubscriptions int           `koanf:"max_subscriptions"`
	ControlRate      float64       `koanf:"control_rate"`
	ControlBurst     int           `koanf:"control_burst"`
	AllowedOrigins   []string      `koanf:"allowed_origins"`
}

// IngestConfig configures the ingestion service.
type IngestConfig struct {
	MaxCommentLength int  `koanf:"max_comment_length"`
	IncludeSnapshot  bool `koanf:"include_snapshot"`
}

// Load reads configuration from defaults, the optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
