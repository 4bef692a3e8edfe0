package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Producer identifies this service in published envelopes
const Producer = "kopisort-api"

// Envelope is the wire format of every published event
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Key           string          `json:"-"`
	Payload       json.RawMessage `json:"payload"`
}

// NotificationPayload mirrors a persisted notification
type NotificationPayload struct {
	NotificationID string `json:"notification_id"`
	UserID         uint64 `json:"user_id"`
	OrderID        string `json:"order_id,omitempty"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	Type           string `json:"type"`
	Link           string `json:"link,omitempty"`
}

// NewEnvelope wraps payload into envelope keyed by key
func NewEnvelope(eventType, key, correlationID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      Producer,
		CorrelationID: correlationID,
		Key:           key,
		Payload:       body,
	}, nil
}

// Publisher hands events to a broker
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Noop discards events
type Noop struct{}

// Publish does nothing
func (Noop) Publish(context.Context, Envelope) error { return nil }

// Close does nothing
func (Noop) Close() error { return nil }

// drivers
const (
	DriverNone     = "none"
	DriverRabbitMQ = "rabbitmq"
	DriverKafka    = "kafka"
)

// Config selects and configures publisher
type Config struct {
	Driver       string
	RabbitURL    string
	Exchange     string
	KafkaBrokers []string
	KafkaTopic   string
}

// Open creates publisher for configured driver
func Open(cfg Config) (Publisher, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return Noop{}, nil
	case DriverRabbitMQ:
		return NewRabbitPublisher(cfg.RabbitURL, cfg.Exchange)
	case DriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, fmt.Errorf("kafka brokers required for %s driver", DriverKafka)
		}
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	}
	return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
}
