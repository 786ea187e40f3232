// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package config

import (
	"fmt"
	"strings"
	"time"
)

// minJWTSecretLength is the minimum HS256 secret length in bytes.
const minJWTSecretLength = 32

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateSecurity,
		c.validateCasbin,
		c.validateStore,
		c.validateQueue,
		c.validateProcessor,
		c.validateBroadcast,
		c.validateIngest,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// Rate limit bounds.
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "jwt":
		if len(c.Security.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
		}
	case "none":
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: jwt, none")
	}

	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled")
	}

	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateCasbin() error {
	if c.Casbin.CacheTTL < 0 {
		return fmt.Errorf("CASBIN_CACHE_TTL must not be negative")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports a wildcard CORS policy with authentication on.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "badger":
		if !c.Store.BadgerInMemory && c.Store.BadgerDir == "" {
			return fmt.Errorf("BADGER_DIR is required when STORE_BACKEND=badger")
		}
		if c.Store.ConflictRetries < 1 {
			return fmt.Errorf("STORE_CONFLICT_RETRIES must be at least 1")
		}
		if c.Store.BadgerGCInterval < 0 {
			return fmt.Errorf("BADGER_GC_INTERVAL must not be negative")
		}
	case "duckdb":
		if c.Store.DuckDBPath == "" {
			return fmt.Errorf("DUCKDB_PATH is required when STORE_BACKEND=duckdb")
		}
	case "postgres":
		if err := validatePostgresURL(c.Store.PostgresURL); err != nil {
			return fmt.Errorf("POSTGRES_URL: %w", err)
		}
		if c.Store.PostgresMaxConns < 1 {
			return fmt.Errorf("POSTGRES_MAX_CONNS must be at least 1")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: badger, duckdb, postgres")
	}
	return nil
}

func (c *Config) validateQueue() error {
	q := c.Queue
	for name, topic := range map[string]string{
		"NATS_EVENTS_TOPIC":    q.EventsTopic,
		"NATS_DLQ_TOPIC":       q.DLQTopic,
		"NATS_SNAPSHOTS_TOPIC": q.SnapshotsTopic,
	} {
		if topic == "" || strings.ContainsAny(topic, " *>") {
			return fmt.Errorf("%s must be a non-empty subject without wildcards", name)
		}
	}
	if q.EventsTopic == q.DLQTopic {
		return fmt.Errorf("NATS_DLQ_TOPIC must differ from NATS_EVENTS_TOPIC")
	}
	if q.PublishTimeout <= 0 {
		return fmt.Errorf("QUEUE_PUBLISH_TIMEOUT must be positive")
	}

	switch q.Backend {
	case "memory":
		if q.MemoryBuffer < 1 {
			return fmt.Errorf("QUEUE_MEMORY_BUFFER must be at least 1")
		}
		return nil
	case "nats":
	default:
		return fmt.Errorf("QUEUE_BACKEND must be one of: nats, memory")
	}

	if err := validateNATSURL(q.URL); err != nil {
		return fmt.Errorf("NATS_URL: %w", err)
	}
	if q.EmbeddedServer && q.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required with the embedded server")
	}
	if q.StreamName == "" || strings.ContainsAny(q.StreamName, " .*>") {
		return fmt.Errorf("NATS_STREAM must be a valid stream name")
	}
	if q.AckWait < time.Second {
		return fmt.Errorf("NATS_ACK_WAIT must be at least 1s")
	}
	if q.MaxDeliver < 2 {
		return fmt.Errorf("NATS_MAX_DELIVER must be at least 2")
	}
	if q.MaxAckPending < 1 {
		return fmt.Errorf("NATS_MAX_ACK_PENDING must be at least 1")
	}
	if q.DuplicateWindow <= 0 {
		return fmt.Errorf("NATS_DUPLICATE_WINDOW must be positive")
	}
	if q.RetentionDays < 1 {
		return fmt.Errorf("NATS_RETENTION_DAYS must be at least 1")
	}

	// Dead-lettering is driven by the processor's attempt count. JetStream
	// must still be redelivering when that count is reached, otherwise an
	// event would silently stop being delivered.
	if c.Processor.MaxAttempts >= q.MaxDeliver {
		return fmt.Errorf("PROCESSOR_MAX_ATTEMPTS (%d) must be less than NATS_MAX_DELIVER (%d)",
			c.Processor.MaxAttempts, q.MaxDeliver)
	}

	// A delivery still retrying in place when AckWait expires is redelivered
	// to another worker while the first is still applying it.
	if budget := c.Processor.RetryBudget(); budget >= q.AckWait {
		return fmt.Errorf("PROCESSOR_HANDLER_TIMEOUT x (PROCESSOR_RETRY_COUNT+1) plus backoff (%s) must be less than NATS_ACK_WAIT (%s)",
			budget, q.AckWait)
	}
	return nil
}

func (c *Config) validateProcessor() error {
	p := c.Processor
	if p.Workers < 1 || p.Workers > 256 {
		return fmt.Errorf("PROCESSOR_WORKERS must be between 1 and 256")
	}
	if p.RetryCount < 0 {
		return fmt.Errorf("PROCESSOR_RETRY_COUNT must not be negative")
	}
	if p.RetryInitialInterval <= 0 || p.RetryMaxInterval < p.RetryInitialInterval {
		return fmt.Errorf("PROCESSOR_RETRY_MAX_INTERVAL must be >= PROCESSOR_RETRY_INITIAL_INTERVAL > 0")
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("PROCESSOR_MAX_ATTEMPTS must be at least 1")
	}
	if p.HandlerTimeout <= 0 {
		return fmt.Errorf("PROCESSOR_HANDLER_TIMEOUT must be positive")
	}
	if p.DLQHistory < 0 {
		return fmt.Errorf("PROCESSOR_DLQ_HISTORY must not be negative")
	}
	return nil
}

func (c *Config) validateBroadcast() error {
	b := c.Broadcast
	if b.SendBuffer < 1 || b.HubBuffer < 1 {
		return fmt.Errorf("BROADCAST_SEND_BUFFER and BROADCAST_HUB_BUFFER must be at least 1")
	}
	if b.PingPeriod <= 0 || b.PingPeriod >= b.PongWait {
		return fmt.Errorf("BROADCAST_PING_PERIOD must be positive and less than BROADCAST_PONG_WAIT")
	}
	if b.MaxSubscriptions < 1 {
		return fmt.Errorf("BROADCAST_MAX_SUBSCRIPTIONS must be at least 1")
	}
	if b.ControlRate <= 0 || b.ControlBurst < 1 {
		return fmt.Errorf("BROADCAST_CONTROL_RATE and BROADCAST_CONTROL_BURST must be positive")
	}
	return nil
}

// maxCommentLength is the hard upper bound; configuration may only lower it.
const maxCommentLength = 1000

func (c *Config) validateIngest() error {
	if c.Ingest.MaxCommentLength < 1 || c.Ingest.MaxCommentLength > maxCommentLength {
		return fmt.Errorf("INGEST_MAX_COMMENT_LENGTH must be between 1 and %d", maxCommentLength)
	}
	return nil
}

// IsProduction reports ENVIRONMENT=production (or prod).
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment reports an empty, development or dev ENVIRONMENT.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}
