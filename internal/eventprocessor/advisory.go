// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package eventprocessor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/engagecast/internal/logging"
)

// maxDeliveriesAdvisory is the body of
// $JS.EVENT.ADVISORY.CONSUMER.MAX_DELIVERIES.<stream>.<consumer>.
type maxDeliveriesAdvisory struct {
	Type       string `json:"type"`
	Stream     string `json:"stream"`
	Consumer   string `json:"consumer"`
	StreamSeq  uint64 `json:"stream_seq"`
	Deliveries uint64 `json:"deliveries"`
}

// MaxDeliveriesWatcher dead-letters events the broker stopped redelivering.
// The router normally dead-letters first; this catches what it cannot see,
// such as deliveries spread over restarts or over several nodes.
type MaxDeliveriesWatcher struct {
	nc        *natsgo.Conn
	js        jetstream.JetStream
	stream    string
	skipTopic string
	publisher message.Publisher
	dlqTopic  string
	decoder   *Serializer
}

// NewMaxDeliveriesWatcher creates a watcher for every consumer of stream.
// Messages originally on dlqTopic are ignored.
func NewMaxDeliveriesWatcher(nc *natsgo.Conn, stream string, publisher message.Publisher, dlqTopic string) (*MaxDeliveriesWatcher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &MaxDeliveriesWatcher{
		nc:        nc,
		js:        js,
		stream:    stream,
		skipTopic: dlqTopic,
		publisher: deadLetterPublisher{publisher},
		dlqTopic:  dlqTopic,
		decoder:   NewSerializer(),
	}, nil
}

// Subject returns the advisory subject the watcher listens on.
func (w *MaxDeliveriesWatcher) Subject() string {
	return "$JS.EVENT.ADVISORY.CONSUMER.MAX_DELIVERIES." + w.stream + ".*"
}

// Serve implements suture.Service.
func (w *MaxDeliveriesWatcher) Serve(ctx context.Context) error {
	sub, err := w.nc.Subscribe(w.Subject(), func(m *natsgo.Msg) {
		if err := w.handle(ctx, m.Data); err != nil {
			logging.Error().Err(err).Msg("Failed to dead-letter exhausted event")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", w.Subject(), err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			logging.Warn().Err(err).Msg("Failed to unsubscribe from advisories")
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (w *MaxDeliveriesWatcher) String() string {
	return "max-deliveries-watcher"
}

func (w *MaxDeliveriesWatcher) handle(ctx context.Context, data []byte) error {
	var adv maxDeliveriesAdvisory
	if err := json.Unmarshal(data, &adv); err != nil {
		return fmt.Errorf("decode advisory: %w", err)
	}

	getCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stream, err := w.js.Stream(getCtx, adv.Stream)
	if err != nil {
		return fmt.Errorf("lookup stream %s: %w", adv.Stream, err)
	}
	raw, err := stream.GetMsg(getCtx, adv.StreamSeq)
	if err != nil {
		return fmt.Errorf("get message %d: %w", adv.StreamSeq, err)
	}
	if raw.Subject == w.skipTopic {
		return nil
	}

	id := watermill.NewUUID()
	if event, err := w.decoder.Unmarshal(raw.Data); err == nil && event.EventID != "" {
		id = event.EventID
	}

	msg := message.NewMessage(id, raw.Data)
	for key, values := range raw.Header {
		if len(values) == 0 || key == natsgo.MsgIdHdr || strings.HasPrefix(key, "_watermill") {
			continue
		}
		msg.Metadata.Set(key, values[0])
	}
	msg.Metadata.Set(MetadataDeadLetterCode, DeadLetterMaxDeliver)
	msg.Metadata.Set(MetadataAttempts, strconv.FormatUint(adv.Deliveries, 10))
	msg.Metadata.Set(middleware.ReasonForPoisonedKey,
		fmt.Sprintf("consumer %s reached max deliveries (%d)", adv.Consumer, adv.Deliveries))

	return w.publisher.Publish(w.dlqTopic, msg)
}
