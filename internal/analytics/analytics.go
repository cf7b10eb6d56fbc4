// Package analytics publishes admission lifecycle events to Kafka for the
// clinic's reporting pipeline. Publishing is fire-and-forget: the check-in
// flow never waits on, or fails because of, the analytics path.
package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	id "medkiosk/pkg/domain"
)

type EventType string

const (
	EventCheckInCompleted EventType = "checkin.completed"
	EventCheckInOffline   EventType = "checkin.offline"
	EventCheckInCancelled EventType = "checkin.cancelled"
	EventSyncCompleted    EventType = "sync.completed"
	EventSyncItemDropped  EventType = "sync.item_dropped"
)

// Event is the wire shape written to the analytics topic.
type Event struct {
	Type       EventType      `json:"type"`
	DeviceID   id.DeviceID    `json:"device_id,omitempty"`
	PatientID  id.PatientID   `json:"patient_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Publisher is the outbound analytics contract. Implementations must be
// safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close()
}

// KafkaPublisher produces events with franz-go. Delivery failures are
// logged, never surfaced to callers.
type KafkaPublisher struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewKafkaPublisher connects a producer for the given brokers and topic.
// Returns a NopPublisher when no brokers are configured, so callers never
// need a nil check.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (Publisher, error) {
	if len(brokers) == 0 || topic == "" {
		return NopPublisher{}, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to encode analytics event", "type", event.Type, "error", err)
		return
	}
	record := &kgo.Record{
		Key:   []byte(event.Type),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("failed to publish analytics event", "type", event.Type, "error", err)
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// NopPublisher drops every event. Used when analytics is unconfigured and
// in unit tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close()                         {}
