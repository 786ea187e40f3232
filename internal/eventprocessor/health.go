// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"sync"
	"time"
)

// HealthStatusType is the readiness verdict of a node.
type HealthStatusType string

const (
	// HealthStatusHealthy means every component passed.
	HealthStatusHealthy HealthStatusType = "healthy"
	// HealthStatusDegraded means events are still accepted and applied but
	// something needs attention (half-open breaker, dead letters, hub backlog).
	HealthStatusDegraded HealthStatusType = "degraded"
	// HealthStatusUnhealthy means a required component failed and the node
	// should be taken out of rotation.
	HealthStatusUnhealthy HealthStatusType = "unhealthy"
)

// hubBacklogDegraded is the fill ratio of the hub's broadcast buffer at which
// the hub reports degraded. Past it, Publish starts failing with ErrHubBusy.
const hubBacklogDegraded = 0.8

// HealthConfig holds configuration for health checking.
type HealthConfig struct {
	// Timeout bounds each component check.
	Timeout time.Duration
}

// DefaultHealthConfig returns the default check timeout.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{Timeout: 5 * time.Second}
}

// ComponentHealth is the result of one component check.
type ComponentHealth struct {
	Healthy   bool                   `json:"healthy"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Optional  bool                   `json:"optional,omitempty"`
	Name      string                 `json:"name"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthCheckable is implemented by components that report health.
type HealthCheckable interface {
	HealthCheck(ctx context.Context) ComponentHealth
}

// OverallHealth aggregates every registered component.
type OverallHealth struct {
	Healthy    bool                       `json:"healthy"`
	Status     HealthStatusType           `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

type registeredComponent struct {
	check    HealthCheckable
	optional bool
}

// HealthChecker runs component checks concurrently for /health/ready.
//
// Required components (store, queue publisher, router, enqueuer) make the
// node unhealthy when they fail. Optional components (the broadcast hub)
// can only degrade it: live updates are best effort, the queue and the
// store are not.
type HealthChecker struct {
	config     HealthConfig
	mu         sync.RWMutex
	components map[string]registeredComponent
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(cfg HealthConfig) *HealthChecker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHealthConfig().Timeout
	}
	return &HealthChecker{
		config:     cfg,
		components: make(map[string]registeredComponent),
	}
}

// RegisterComponent registers a required component. Re-registering a name
// replaces it.
func (h *HealthChecker) RegisterComponent(name string, component HealthCheckable) {
	h.register(name, component, false)
}

// RegisterOptional registers a component whose failure only degrades the
// node.
func (h *HealthChecker) RegisterOptional(name string, component HealthCheckable) {
	h.register(name, component, true)
}

func (h *HealthChecker) register(name string, component HealthCheckable, optional bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = registeredComponent{check: component, optional: optional}
}

// CheckAll runs every registered check, each bounded by the configured
// timeout, and folds the results into one verdict.
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	h.mu.RLock()
	components := make(map[string]registeredComponent, len(h.components))
	for name, c := range h.components {
		components[name] = c
	}
	h.mu.RUnlock()

	overall := OverallHealth{
		Healthy:    true,
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth, len(components)),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, c := range components {
		wg.Add(1)
		go func(name string, c registeredComponent) {
			defer wg.Done()
			result := h.checkOne(ctx, name, c)

			mu.Lock()
			defer mu.Unlock()
			overall.Components[name] = result
			switch {
			case !result.Healthy && !c.optional:
				overall.Healthy = false
				overall.Status = HealthStatusUnhealthy
			case (!result.Healthy || result.Degraded) && overall.Status == HealthStatusHealthy:
				overall.Status = HealthStatusDegraded
			}
		}(name, c)
	}
	wg.Wait()

	return overall
}

// checkOne runs a single check. A check that overruns the timeout is
// reported as failed; its goroutine finishes into a buffered channel.
func (h *HealthChecker) checkOne(ctx context.Context, name string, c registeredComponent) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resultCh := make(chan ComponentHealth, 1)
	go func() {
		resultCh <- c.check.HealthCheck(checkCtx)
	}()

	var result ComponentHealth
	select {
	case result = <-resultCh:
	case <-checkCtx.Done():
		result = ComponentHealth{Error: "health check timeout"}
	}
	result.Name = name
	result.Optional = c.optional
	result.LastCheck = time.Now()
	return result
}

// StoreHealth reports the aggregate store through Ping.
type StoreHealth struct {
	Store interface {
		Ping(ctx context.Context) error
	}
}

// HealthCheck implements HealthCheckable.
func (s StoreHealth) HealthCheck(ctx context.Context) ComponentHealth {
	start := time.Now()
	if err := s.Store.Ping(ctx); err != nil {
		return ComponentHealth{Error: err.Error()}
	}
	return ComponentHealth{
		Healthy: true,
		Details: map[string]interface{}{"ping_ms": time.Since(start).Milliseconds()},
	}
}

// HubStats is the view of the broadcast hub needed for health reporting.
// *websocket.Hub implements it.
type HubStats interface {
	ClientCount() int
	ChannelCount() int
	Backlog() (queued, capacity int)
}

// HubHealth reports the broadcast hub. A nearly full broadcast buffer means
// snapshots are about to be refused and the processor will redeliver them.
type HubHealth struct {
	Hub HubStats
}

// HealthCheck implements HealthCheckable.
func (h HubHealth) HealthCheck(_ context.Context) ComponentHealth {
	queued, capacity := h.Hub.Backlog()
	health := ComponentHealth{
		Healthy: true,
		Details: map[string]interface{}{
			"clients":  h.Hub.ClientCount(),
			"channels": h.Hub.ChannelCount(),
			"backlog":  queued,
			"capacity": capacity,
		},
	}
	if capacity > 0 && float64(queued) >= hubBacklogDegraded*float64(capacity) {
		health.Degraded = true
		health.Message = "broadcast buffer nearly full"
	}
	return health
}

// HealthCheck implements HealthCheckable for the queue publisher.
func (p *Publisher) HealthCheck(_ context.Context) ComponentHealth {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return ComponentHealth{Error: "queue publisher is closed"}
	}
	return ComponentHealth{Healthy: true}
}
