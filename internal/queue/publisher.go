package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/config"
)

// Publisher delivers order events to a broker. Callers publish after their
// transaction commits and only log failures.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// NewPublisher returns the publisher selected by cfg.Broker.
func NewPublisher(cfg config.EventsConfig, log *zap.Logger) (Publisher, error) {
	switch cfg.Broker {
	case "", config.BrokerNone:
		return NopPublisher{}, nil
	case config.BrokerRabbitMQ:
		return NewAMQPPublisher(cfg.AMQPURL, cfg.Topic, log), nil
	case config.BrokerKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic, log), nil
	}
	return nil, fmt.Errorf("unsupported EVENTS_BROKER %q", cfg.Broker)
}
