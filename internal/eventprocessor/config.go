// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"time"

	"github.com/tomtom215/engagecast/internal/config"
)

// Queue backends.
const (
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns production defaults for embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/engagecast/jetstream",
		JetStreamMaxMem:   256 << 20, // 256MB
		JetStreamMaxStore: 4 << 30,   // 4GB
	}
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions
	// Core disables JetStream; used for the non-durable snapshot fan-out.
	Core bool
}

// DefaultPublisherConfig returns production defaults for publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds subscriber configuration.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
	// StreamName binds the consumer to an existing stream. Stream creation
	// belongs to StreamInitializer, never to the subscriber.
	StreamName string
}

// DefaultSubscriberConfig returns production defaults for subscriber.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "engagement-processor",
		QueueGroup:       "engagement-processors",
		SubscribersCount: 4,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       10,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       "ENGAGEMENT",
	}
}

// StreamConfig defines the engagement stream settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns production stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            "ENGAGEMENT",
		Subjects:        []string{"engagement.events", "engagement.dlq"},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        4 << 30,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Topics names the three subjects the pipeline uses.
type Topics struct {
	Events    string
	DLQ       string
	Snapshots string
}

// Settings is the full eventprocessor configuration derived from the
// application config.
type Settings struct {
	Backend        string
	Topics         Topics
	Server         ServerConfig
	EmbeddedServer bool
	Publisher      PublisherConfig
	Subscriber     SubscriberConfig
	Stream         StreamConfig
	Breaker        CircuitBreakerConfig
	Router         RouterConfig
	PublishTimeout time.Duration
	MemoryBuffer   int64
	DLQHistory     int
}

// SettingsFromConfig maps the queue and processor sections onto component
// configs.
func SettingsFromConfig(q config.QueueConfig, p config.ProcessorConfig) Settings {
	topics := Topics{Events: q.EventsTopic, DLQ: q.DLQTopic, Snapshots: q.SnapshotsTopic}

	server := DefaultServerConfig()
	server.StoreDir = q.StoreDir
	server.JetStreamMaxMem = q.MaxMemory
	server.JetStreamMaxStore = q.MaxStore

	pub := DefaultPublisherConfig(q.URL)

	sub := DefaultSubscriberConfig(q.URL)
	sub.DurableName = q.DurableName
	sub.QueueGroup = q.QueueGroup
	sub.SubscribersCount = p.Workers
	sub.AckWaitTimeout = q.AckWait
	sub.MaxDeliver = q.MaxDeliver
	sub.MaxAckPending = q.MaxAckPending
	sub.CloseTimeout = p.CloseTimeout
	sub.StreamName = q.StreamName

	stream := DefaultStreamConfig()
	stream.Name = q.StreamName
	stream.Subjects = []string{topics.Events, topics.DLQ}
	stream.MaxAge = time.Duration(q.RetentionDays) * 24 * time.Hour
	stream.MaxBytes = q.MaxStore
	stream.DuplicateWindow = q.DuplicateWindow

	return Settings{
		Backend:        q.Backend,
		Topics:         topics,
		Server:         server,
		EmbeddedServer: q.EmbeddedServer,
		Publisher:      pub,
		Subscriber:     sub,
		Stream:         stream,
		Breaker: CircuitBreakerConfig{
			Name:             "queue-publisher",
			MaxRequests:      q.BreakerMaxRequests,
			Interval:         q.BreakerInterval,
			Timeout:          q.BreakerTimeout,
			FailureThreshold: q.BreakerFailureThreshold,
		},
		Router: RouterConfig{
			CloseTimeout:         p.CloseTimeout,
			RetryMaxRetries:      p.RetryCount,
			RetryInitialInterval: p.RetryInitialInterval,
			RetryMaxInterval:     p.RetryMaxInterval,
			RetryMultiplier:      config.RetryMultiplier,
			MaxAttempts:          p.MaxAttempts,
			HandlerTimeout:       p.HandlerTimeout,
			PoisonQueueTopic:     topics.DLQ,
		},
		PublishTimeout: q.PublishTimeout,
		MemoryBuffer:   q.MemoryBuffer,
		DLQHistory:     p.DLQHistory,
	}
}
