// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/store"
)

// Pipeline is the assembled delivery queue and event processor for one
// backend. Ingestion uses Enqueuer; the supervisor runs Router (and
// Watcher when present).
type Pipeline struct {
	Enqueuer *Enqueuer
	Router   *Router
	DLQ      *DLQConsumer
	Health   *HealthChecker

	// Watcher is nil on the memory backend.
	Watcher *MaxDeliveriesWatcher

	settings    Settings
	server      *EmbeddedServer
	conn        *natsgo.Conn
	snapshotSub message.Subscriber
	closers     []io.Closer
}

// NewPipeline builds the pipeline selected by settings.Backend. On the nats
// backend applied mutations are announced on the snapshots topic and every
// node relays them to its hub; on the memory backend they go straight to
// local.
func NewPipeline(ctx context.Context, settings Settings, st store.AggregateStore, local Broadcaster) (*Pipeline, error) {
	p := &Pipeline{
		settings: settings,
		DLQ:      NewDLQConsumer(settings.DLQHistory),
		Health:   NewHealthChecker(DefaultHealthConfig()),
	}

	var err error
	switch settings.Backend {
	case BackendNATS:
		err = p.buildNATS(ctx, st)
	case BackendMemory:
		err = p.buildMemory(st, local)
	default:
		err = fmt.Errorf("%w: unknown queue backend %q", ErrInvalidConfig, settings.Backend)
	}
	if err != nil {
		if cerr := p.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to release partially built pipeline")
		}
		return nil, err
	}

	p.Health.RegisterComponent("router", p.Router)
	p.Health.RegisterComponent("enqueuer", p.Enqueuer)
	p.Health.RegisterComponent("dlq", p.DLQ)
	p.Health.RegisterComponent("store", StoreHealth{Store: st})
	if p.server != nil {
		p.Health.RegisterComponent("nats_server", p.server)
	}

	logging.Info().
		Str("backend", settings.Backend).
		Str("events_topic", settings.Topics.Events).
		Str("dlq_topic", settings.Topics.DLQ).
		Int("workers", settings.Subscriber.SubscribersCount).
		Msg("Event pipeline ready")
	return p, nil
}

func (p *Pipeline) buildNATS(ctx context.Context, st store.AggregateStore) error {
	s := p.settings
	logger := NewWatermillLogger()

	if s.EmbeddedServer {
		srv, err := NewEmbeddedServer(&s.Server)
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		p.server = srv
		s.Publisher.URL = srv.ClientURL()
		s.Subscriber.URL = srv.ClientURL()
	}

	nc, err := natsgo.Connect(s.Publisher.URL,
		natsgo.Name("engagecast-control"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	p.conn = nc

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create jetstream context: %w", err)
	}
	initializer, err := NewStreamInitializer(js, &s.Stream, s.Topics)
	if err != nil {
		return err
	}
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := initializer.EnsureStream(initCtx); err != nil {
		return err
	}
	p.Health.RegisterComponent("stream", initializer)

	pub, err := NewPublisher(s.Publisher, logger)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, pub)
	p.Health.RegisterComponent("queue_publisher", pub)

	corePub := s.Publisher
	corePub.Core = true
	snapPub, err := NewPublisher(corePub, logger)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, snapPub)

	eventsSub, err := NewSubscriber(&s.Subscriber, logger)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, eventsSub)

	dlqCfg := s.Subscriber
	dlqCfg.DurableName += "-dlq"
	dlqCfg.QueueGroup += "-dlq"
	dlqCfg.SubscribersCount = 1
	dlqSub, err := NewSubscriber(&dlqCfg, logger)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, dlqSub)

	snapSub, err := NewBroadcastSubscriber(&s.Subscriber, logger)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, snapSub)
	p.snapshotSub = snapSub

	breaker := NewCircuitBreaker(s.Breaker)
	p.Enqueuer = NewEnqueuer(pub, s.Topics.Events, breaker, s.PublishTimeout).WithRetryAfter(s.Breaker.Timeout)

	handler := NewEngagementHandler(st, NewTopicBroadcaster(snapPub, s.Topics.Snapshots))
	if err := p.buildRouter(pub, eventsSub, dlqSub, handler, logger); err != nil {
		return err
	}

	p.Watcher, err = NewMaxDeliveriesWatcher(nc, s.Stream.Name, pub, s.Topics.DLQ)
	return err
}

func (p *Pipeline) buildMemory(st store.AggregateStore, local Broadcaster) error {
	s := p.settings
	logger := NewWatermillLogger()

	// Not persistent: the router subscribes before ingestion is served, and
	// a restart loses whatever was queued.
	queue := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: s.MemoryBuffer,
	}, logger)
	p.closers = append(p.closers, queue)

	p.Enqueuer = NewEnqueuer(queue, s.Topics.Events, NewCircuitBreaker(s.Breaker), s.PublishTimeout)

	handler := NewEngagementHandler(st, local)
	return p.buildRouter(queue, queue, queue, handler, logger)
}

func (p *Pipeline) buildRouter(
	poison message.Publisher,
	eventsSub, dlqSub message.Subscriber,
	handler *EngagementHandler,
	logger watermill.LoggerAdapter,
) error {
	router, err := NewRouter(&p.settings.Router, poison, logger)
	if err != nil {
		return err
	}
	if _, err := router.AddEventHandler("engagement-processor", p.settings.Topics.Events, eventsSub, handler.Handle); err != nil {
		return err
	}
	router.AddConsumerHandler("dlq-consumer", p.settings.Topics.DLQ, dlqSub, p.DLQ.Handle)
	p.Router = router
	return nil
}

// SnapshotSource returns the subscriber and topic carrying snapshots from
// every node's processor. Both are zero on the memory backend.
func (p *Pipeline) SnapshotSource() (message.Subscriber, string) {
	if p.snapshotSub == nil {
		return nil, ""
	}
	return p.snapshotSub, p.settings.Topics.Snapshots
}

// Running closes once the router consumes.
func (p *Pipeline) Running() <-chan struct{} {
	return p.Router.Running()
}

// Close stops the router and releases connections in dependency order.
func (p *Pipeline) Close() error {
	var errs []error

	if p.Router != nil {
		if err := p.Router.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close router: %w", err))
		}
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown NATS server: %w", err))
		}
		p.server = nil
	}

	return errors.Join(errs...)
}
