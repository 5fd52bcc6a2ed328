package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// KafkaPublisher writes events to a topic keyed by order number, so every
// event of one order lands on the same partition in order. The trace
// context of the publishing request travels in the message headers.
type KafkaPublisher struct {
	w   *kafka.Writer
	log *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		log: log,
	}
}

// Message renders ev as a kafka message with trace headers injected from ctx.
func Message(ctx context.Context, ev Event) (kafka.Message, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]kafka.Header, 0, len(carrier)+1)
	headers = append(headers, kafka.Header{Key: "type", Value: []byte(ev.EventType())})
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{Key: []byte(ev.Key()), Value: body, Headers: headers}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	msg, err := Message(ctx, ev)
	if err != nil {
		p.log.Warn("kafka: marshal event failed", zap.Error(err))
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("kafka: publish failed", zap.Error(err), zap.String("type", ev.EventType()))
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
