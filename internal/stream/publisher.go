// Package stream publishes committed ledger events to Kafka.
package stream

import (
	"context"
	"encoding/json"
	"time"

	"go-inventory-ledger/internal/service"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a service.Observer that writes each committed event as one
// JSON message keyed by the SKU (or product) it concerns, so the events of
// one SKU stay ordered within a partition.
type Publisher struct {
	w   messageWriter
	log *zap.Logger
}

// NewPublisher returns an asynchronous publisher for topic.
func NewPublisher(brokers []string, topic string, log *zap.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: writeTimeout,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("kafka publish failed", zap.Error(err), zap.Int("messages", len(msgs)))
			}
		},
	}
	return &Publisher{w: w, log: log}
}

func (p *Publisher) Observe(ctx context.Context, e service.Event) {
	if e.Outcome != service.OutcomeCommitted {
		return
	}

	value, err := json.Marshal(e)
	if err != nil {
		p.log.Error("kafka marshal event", zap.Error(err))
		return
	}

	key := e.SubVariantID
	if key == uuid.Nil {
		key = e.ProductID
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := []kafka.Header{{Key: "stage", Value: []byte(e.Stage)}}
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{Key: []byte(key.String()), Value: value, Headers: headers, Time: e.At}

	// the request context may end before an async batch is flushed
	if err := p.w.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Error("kafka publish", zap.Error(err), zap.String("stage", e.Stage))
	}
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.w.Close()
}
