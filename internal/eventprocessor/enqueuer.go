// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/metrics"
)

const defaultPublishTimeout = 5 * time.Second

// Enqueuer is the producing side of the delivery queue. Enqueue returns nil
// only after the publisher accepted the event; every failure is a
// *models.ServiceUnavailableError.
type Enqueuer struct {
	publisher  message.Publisher
	breaker    *gobreaker.CircuitBreaker[interface{}]
	topic      string
	timeout    time.Duration
	retryAfter time.Duration
	serializer *Serializer
}

// NewEnqueuer creates an Enqueuer publishing to topic. breaker may be nil.
func NewEnqueuer(publisher message.Publisher, topic string, breaker *gobreaker.CircuitBreaker[interface{}], timeout time.Duration) *Enqueuer {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Enqueuer{
		publisher:  publisher,
		breaker:    breaker,
		topic:      topic,
		timeout:    timeout,
		retryAfter: time.Second,
		serializer: NewSerializer(),
	}
}

// WithRetryAfter sets the hint returned to callers while the breaker is open.
func (e *Enqueuer) WithRetryAfter(d time.Duration) *Enqueuer {
	e.retryAfter = d
	return e
}

// Enqueue publishes one event. The message UUID is the event id, which the
// JetStream publisher sends as Nats-Msg-Id.
func (e *Enqueuer) Enqueue(ctx context.Context, event *models.EngagementEvent) error {
	data, err := e.serializer.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.Metadata.Set(MetadataKind, event.Kind.String())
	msg.Metadata.Set(MetadataContentID, event.ContentID)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- e.publish(msg)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	metrics.RecordPublish(time.Since(start))

	if err != nil {
		return e.unavailable(err)
	}
	return nil
}

func (e *Enqueuer) publish(msg *message.Message) error {
	if e.breaker == nil {
		return e.publisher.Publish(e.topic, msg)
	}
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, e.publisher.Publish(e.topic, msg)
	})
	return err
}

func (e *Enqueuer) unavailable(err error) error {
	if IsBreakerRejection(err) {
		return &models.ServiceUnavailableError{
			Reason:     "delivery queue circuit open",
			RetryAfter: e.retryAfter,
			Err:        err,
		}
	}
	return &models.ServiceUnavailableError{
		Reason:     "delivery queue did not accept event",
		RetryAfter: e.retryAfter,
		Err:        fmt.Errorf("publish to %s: %w", e.topic, err),
	}
}

// HealthCheck implements HealthCheckable from the breaker state.
func (e *Enqueuer) HealthCheck(_ context.Context) ComponentHealth {
	health := ComponentHealth{
		Name:      "enqueuer",
		Healthy:   true,
		LastCheck: time.Now(),
		Details:   map[string]interface{}{"topic": e.topic},
	}
	if e.breaker == nil {
		return health
	}

	state := e.breaker.State()
	health.Details["circuit_breaker"] = state.String()
	switch state {
	case gobreaker.StateOpen:
		health.Healthy = false
		health.Error = "publisher circuit breaker is open"
	case gobreaker.StateHalfOpen:
		health.Degraded = true
		health.Message = "publisher circuit breaker is half-open"
	}
	return health
}
