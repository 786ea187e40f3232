// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/engagecast/internal/cache"
	"github.com/tomtom215/engagecast/internal/logging"
)

// Dead-letter codes carried in MetadataDeadLetterCode. They are the label
// values of engagecast_dlq_events_total.
const (
	DeadLetterMalformed  = "malformed"
	DeadLetterExhausted  = "exhausted"
	DeadLetterMaxDeliver = "max_deliver"
	DeadLetterOther      = "other"
)

// Metadata set on a message before it is dead-lettered.
const (
	MetadataDeadLetterCode = "dead_letter_code"
	MetadataAttempts       = "attempts"
)

// RouterConfig holds configuration for the Watermill Router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for handlers to finish when closing.
	CloseTimeout time.Duration

	// In-place retry of transient failures before the message is nacked.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// MaxAttempts is the number of failed deliveries after which an event
	// is dead-lettered. 0 leaves the bound to the queue's MaxDeliver.
	MaxAttempts int

	// HandlerTimeout bounds one handler invocation. 0 disables it.
	HandlerTimeout time.Duration

	// Throttle configuration (messages per second, 0 = disabled)
	ThrottlePerSecond int64

	// PoisonQueueTopic receives dead-lettered events.
	PoisonQueueTopic string
}

// DefaultRouterConfig returns production defaults for the Router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     2 * time.Second,
		RetryMultiplier:      2.0,
		MaxAttempts:          5,
		HandlerTimeout:       10 * time.Second,
		PoisonQueueTopic:     "engagement.dlq",
	}
}

// Router wraps the Watermill Router and builds the processing middleware
// chain. From outside in:
//
//	PoisonQueue   permanent or exhausted errors go to the DLQ topic and are acked
//	attempts      counts failed deliveries per event id, marks exhaustion
//	retry         in-place exponential backoff for transient errors
//	Recoverer     panics become errors
//	deadline      bounds one invocation
//
// Any other error nacks the message and the queue redelivers it.
type Router struct {
	router    *message.Router
	config    RouterConfig
	logger    watermill.LoggerAdapter
	poisonPub message.Publisher
	attempts  *cache.AttemptTracker
	events    *logging.EventLogger
	running   atomic.Bool
	handlers  map[string]*message.Handler
}

// NewRouter creates a new Watermill Router. poisonPublisher is required:
// a failed event must always have somewhere to go.
func NewRouter(
	cfg *RouterConfig,
	poisonPublisher message.Publisher,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	if logger == nil {
		logger = NewWatermillLogger()
	}
	if cfg == nil {
		defaultCfg := DefaultRouterConfig()
		cfg = &defaultCfg
	}
	if poisonPublisher == nil || cfg.PoisonQueueTopic == "" {
		return nil, fmt.Errorf("%w: router requires a dead-letter publisher and topic", ErrInvalidConfig)
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	return &Router{
		router:    wmRouter,
		config:    *cfg,
		logger:    logger,
		poisonPub: deadLetterPublisher{poisonPublisher},
		attempts:  cache.NewAttemptTracker(100000, time.Hour),
		events:    logging.NewEventLogger(),
		handlers:  make(map[string]*message.Handler),
	}, nil
}

// AddEventHandler registers an event-consuming handler wrapped in the full
// failure-handling chain.
func (r *Router) AddEventHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) (*message.Handler, error) {
	poisonQueue, err := middleware.PoisonQueueWithFilter(r.poisonPub, r.config.PoisonQueueTopic, shouldDeadLetter)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}

	h := r.router.AddConsumerHandler(name, subscribeTopic, subscriber, handler)

	chain := []message.HandlerMiddleware{poisonQueue, r.countAttempts, r.retryTransient}
	if r.config.ThrottlePerSecond > 0 {
		chain = append(chain, middleware.NewThrottle(r.config.ThrottlePerSecond, time.Second).Middleware)
	}
	chain = append(chain, middleware.Recoverer)
	if r.config.HandlerTimeout > 0 {
		chain = append(chain, r.boundInvocation)
	}
	h.AddMiddleware(chain...)

	r.handlers[name] = h
	return h, nil
}

// AddConsumerHandler registers a plain handler with only panic recovery.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	h := r.router.AddConsumerHandler(name, subscribeTopic, subscriber, handler)
	r.handlers[name] = h
	return h
}

func shouldDeadLetter(err error) bool {
	return IsPermanentError(err) || IsExhausted(err)
}

// countAttempts tracks failed deliveries by message UUID, which is the event
// id on every backend. Crossing MaxAttempts turns the failure into an
// ExhaustedError so the poison queue takes it.
func (r *Router) countAttempts(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err == nil {
			r.attempts.Done(msg.UUID)
			return out, nil
		}

		if IsPermanentError(err) {
			r.attempts.Done(msg.UUID)
			msg.Metadata.Set(MetadataDeadLetterCode, DeadLetterMalformed)
			msg.Metadata.Set(MetadataAttempts, "1")
			return nil, err
		}

		n := r.attempts.Fail(msg.UUID)
		if r.config.MaxAttempts > 0 && n >= r.config.MaxAttempts {
			r.attempts.Done(msg.UUID)
			msg.Metadata.Set(MetadataDeadLetterCode, DeadLetterExhausted)
			msg.Metadata.Set(MetadataAttempts, strconv.Itoa(n))
			return nil, &ExhaustedError{Attempts: n, Err: err}
		}

		logging.Ctx(msg.Context()).Warn().
			Str("event_id", msg.UUID).
			Int("delivery", n).
			Err(err).
			Msg("Event nacked for redelivery")
		return nil, err
	}
}

// retryTransient retries transient failures in place with backoff.
// Permanent errors stop the retry loop at once.
func (r *Router) retryTransient(h message.HandlerFunc) message.HandlerFunc {
	if r.config.RetryMaxRetries <= 0 {
		return h
	}
	retry := middleware.Retry{
		MaxRetries:      r.config.RetryMaxRetries,
		InitialInterval: r.config.RetryInitialInterval,
		MaxInterval:     r.config.RetryMaxInterval,
		Multiplier:      r.config.RetryMultiplier,
		Logger:          r.logger,
	}

	return func(msg *message.Message) ([]*message.Message, error) {
		var (
			permanent error
			attempt   int
		)
		wrapped := retry.Middleware(func(msg *message.Message) ([]*message.Message, error) {
			attempt++
			out, err := h(msg)
			if err == nil {
				return out, nil
			}
			if IsPermanentError(err) {
				permanent = err
				return nil, nil
			}
			r.events.LogRetry(msg.Context(), msg.UUID,
				msg.Metadata.Get(MetadataKind), msg.Metadata.Get(MetadataContentID), attempt, err)
			return nil, err
		})

		out, err := wrapped(msg)
		if permanent != nil {
			return nil, permanent
		}
		return out, err
	}
}

// boundInvocation gives each handler call its own deadline and restores the
// message context afterwards, so a retry does not inherit an expired one.
func (r *Router) boundInvocation(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		parent := msg.Context()
		ctx, cancel := context.WithTimeout(parent, r.config.HandlerTimeout)
		msg.SetContext(ctx)
		defer func() {
			cancel()
			msg.SetContext(parent)
		}()
		return h(msg)
	}
}

// Run starts the router and blocks until context cancellation or Close().
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// Serve implements suture.Service. A Watermill router cannot be run twice,
// so a stop that was not requested through ctx terminates the tree instead
// of asking for a restart.
func (r *Router) Serve(ctx context.Context) error {
	err := r.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logging.Error().Err(err).Msg("Event router stopped unexpectedly")
	return suture.ErrTerminateSupervisorTree
}

// String implements fmt.Stringer for supervisor logs.
func (r *Router) String() string {
	return "engagement-router"
}

// Running returns a channel that closes when the router is running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close gracefully stops the router.
// Waits for in-flight messages to complete up to CloseTimeout.
func (r *Router) Close() error {
	return r.router.Close()
}

// IsRunning returns whether the router is currently processing messages.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// PendingAttempts returns how many events currently have failed deliveries
// on record.
func (r *Router) PendingAttempts() int {
	return r.attempts.Len()
}

// HealthCheck implements HealthCheckable.
func (r *Router) HealthCheck(_ context.Context) ComponentHealth {
	health := ComponentHealth{
		Name:      "router",
		LastCheck: time.Now(),
		Details:   make(map[string]interface{}),
	}

	if r.IsRunning() {
		health.Healthy = true
		health.Message = "Router is running"
		health.Details["handlers"] = len(r.handlers)
		health.Details["events_with_failures"] = r.attempts.Len()
	} else {
		health.Error = "Router is not running"
	}

	return health
}
