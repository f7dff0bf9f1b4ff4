// Package kafka publishes domain events to a Kafka topic for the
// notification dispatch layer. Delivery problems are logged and never fail
// the domain operation that produced the event; the dispatcher owns
// retry semantics.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vendora/marketplace-core/internal/domain/event"
)

// Envelope wraps every published event with delivery metadata.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Producer   string          `json:"producer"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher writes enveloped domain events to one topic. The partition key
// is the event type so consumers see each kind in order.
type Publisher struct {
	w        *kafkago.Writer
	producer string
	lg       *zap.Logger
}

// NewPublisher creates a Publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic, producer string, lg *zap.Logger) *Publisher {
	return &Publisher{
		w: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
			BatchTimeout: 20 * time.Millisecond,
		},
		producer: producer,
		lg:       lg,
	}
}

// Publish envelopes and writes one event. Write failures are logged, not
// returned: the owning transaction already committed and the domain
// operation must not fail on notification transport problems.
func (p *Publisher) Publish(ctx context.Context, ev event.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return errors.Wrap(err, "marshal event payload")
	}

	env := Envelope{
		EventID:    uuid.New().String(),
		EventType:  string(ev.Type),
		OccurredAt: time.Now().UTC(),
		Producer:   p.producer,
		Payload:    payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}

	if err := p.w.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(ev.Type),
		Value: value,
		Time:  env.OccurredAt,
	}); err != nil {
		p.lg.Error("publish event",
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

var _ event.Publisher = (*Publisher)(nil)

// LogPublisher is the fallback Publisher used when no brokers are
// configured: events are written to the log so local runs still show the
// full event stream.
type LogPublisher struct {
	lg *zap.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(lg *zap.Logger) *LogPublisher {
	return &LogPublisher{lg: lg}
}

func (p *LogPublisher) Publish(_ context.Context, ev event.Event) error {
	p.lg.Info("domain event",
		zap.String("event_type", string(ev.Type)),
		zap.Any("payload", ev.Payload),
	)
	return nil
}

var _ event.Publisher = (*LogPublisher)(nil)
