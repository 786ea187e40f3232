// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/engagecast/config.yaml",
	"/etc/engagecast/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			JWTSecret:       "",
			TokenIssuer:     "engagecast",
			TokenTTL:        24 * time.Hour,
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Casbin: CasbinConfig{
			CacheTTL: 5 * time.Minute,
		},
		Store: StoreConfig{
			Backend:          "badger",
			BadgerDir:        "/data/engagecast/badger",
			ConflictRetries:  10,
			BadgerGCInterval: 10 * time.Minute,
			DuckDBPath:       "/data/engagecast/engagement.duckdb",
			PostgresMaxConns: 16,
		},
		Queue: QueueConfig{
			Backend:         "nats",
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  true,
			StoreDir:        "/data/engagecast/jetstream",
			MaxMemory:       256 << 20, // 256MB
			MaxStore:        4 << 30,   // 4GB
			StreamName:      "ENGAGEMENT",
			EventsTopic:     "engagement.events",
			DLQTopic:        "engagement.dlq",
			SnapshotsTopic:  "engagement.snapshots",
			RetentionDays:   7,
			DuplicateWindow: 2 * time.Minute,
			DurableName:     "engagement-processor",
			QueueGroup:      "engagement-processors",
			AckWait:         30 * time.Second,
			MaxDeliver:      10,
			MaxAckPending:   1000,
			PublishTimeout:  5 * time.Second,

			BreakerMaxRequests:      3,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 5,

			MemoryBuffer: 1024,
		},
		Processor: ProcessorConfig{
			Workers:              4,
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			RetryMaxInterval:     2 * time.Second,
			MaxAttempts:          5,
			HandlerTimeout:       5 * time.Second,
			CloseTimeout:         30 * time.Second,
			DLQHistory:           500,
		},
		Broadcast: BroadcastConfig{
			SendBuffer:       64,
			HubBuffer:        1024,
			WriteWait:        10 * time.Second,
			PongWait:         60 * time.Second,
			PingPeriod:       54 * time.Second,
			MaxMessageSize:   1024,
			MaxSubscriptions: 32,
			ControlRate:      5,
			ControlBurst:     10,
			AllowedOrigins:   []string{"*"},
		},
		Ingest: IngestConfig{
			MaxCommentLength: 1000,
			IncludeSnapshot:  true,
		},
	}
}

// LoadWithKoanf loads configuration with koanf v2:
//  1. struct defaults
//  2. optional YAML file
//  3. environment variables (explicit mapping, see envTransformFunc)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.admin_users",
	"security.operator_users",
	"broadcast.allowed_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// YAML already produced a slice.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Security
	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"jwt_issuer":          "security.token_issuer",
	"jwt_ttl":             "security.token_ttl",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"admin_users":         "security.admin_users",
	"operator_users":      "security.operator_users",

	// Authorization
	"casbin_model_path":  "casbin.model_path",
	"casbin_policy_path": "casbin.policy_path",
	"casbin_cache_ttl":   "casbin.cache_ttl",

	// Store
	"store_backend":          "store.backend",
	"badger_dir":             "store.badger_dir",
	"badger_in_memory":       "store.badger_in_memory",
	"badger_gc_interval":     "store.badger_gc_interval",
	"store_conflict_retries": "store.conflict_retries",
	"duckdb_path":            "store.duckdb_path",
	"database_url":           "store.postgres_url",
	"postgres_url":           "store.postgres_url",
	"postgres_max_conns":     "store.postgres_max_conns",

	// Queue
	"queue_backend":                   "queue.backend",
	"nats_url":                        "queue.url",
	"nats_embedded":                   "queue.embedded_server",
	"nats_store_dir":                  "queue.store_dir",
	"nats_max_memory":                 "queue.max_memory",
	"nats_max_store":                  "queue.max_store",
	"nats_stream":                     "queue.stream_name",
	"nats_events_topic":               "queue.events_topic",
	"nats_dlq_topic":                  "queue.dlq_topic",
	"nats_snapshots_topic":            "queue.snapshots_topic",
	"nats_retention_days":             "queue.retention_days",
	"nats_duplicate_window":           "queue.duplicate_window",
	"nats_durable_name":               "queue.durable_name",
	"nats_queue_group":                "queue.queue_group",
	"nats_ack_wait":                   "queue.ack_wait",
	"nats_max_deliver":                "queue.max_deliver",
	"nats_max_ack_pending":            "queue.max_ack_pending",
	"queue_publish_timeout":           "queue.publish_timeout",
	"queue_breaker_max_requests":      "queue.breaker_max_requests",
	"queue_breaker_interval":          "queue.breaker_interval",
	"queue_breaker_timeout":           "queue.breaker_timeout",
	"queue_breaker_failure_threshold": "queue.breaker_failure_threshold",
	"queue_memory_buffer":             "queue.memory_buffer",

	// Processor
	"processor_workers":                "processor.workers",
	"processor_retry_count":            "processor.retry_count",
	"processor_retry_initial_interval": "processor.retry_initial_interval",
	"processor_retry_max_interval":     "processor.retry_max_interval",
	"processor_max_attempts":           "processor.max_attempts",
	"processor_handler_timeout":        "processor.handler_timeout",
	"processor_close_timeout":          "processor.close_timeout",
	"processor_dlq_history":            "processor.dlq_history",

	// Broadcast
	"broadcast_send_buffer":       "broadcast.send_buffer",
	"broadcast_hub_buffer":        "broadcast.hub_buffer",
	"broadcast_write_wait":        "broadcast.write_wait",
	"broadcast_pong_wait":         "broadcast.pong_wait",
	"broadcast_ping_period":       "broadcast.ping_period",
	"broadcast_max_message_size":  "broadcast.max_message_size",
	"broadcast_max_subscriptions": "broadcast.max_subscriptions",
	"broadcast_control_rate":      "broadcast.control_rate",
	"broadcast_control_burst":     "broadcast.control_burst",
	"ws_allowed_origins":          "broadcast.allowed_origins",

	// Ingest
	"ingest_max_comment_length": "ingest.max_comment_length",
	"ingest_include_snapshot":   "ingest.include_snapshot",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are ignored.
//
//	HTTP_PORT        -> server.port
//	NATS_ACK_WAIT    -> queue.ack_wait
//	STORE_BACKEND    -> store.backend
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
