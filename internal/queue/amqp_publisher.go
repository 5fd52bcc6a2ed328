package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPPublisher publishes events to a durable RabbitMQ queue through the
// default exchange. A connection is dialled per publish; order traffic at a
// sales counter is low enough that holding one open buys nothing.
type AMQPPublisher struct {
	url   string
	queue string
	log   *zap.Logger
}

func NewAMQPPublisher(url, queue string, log *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, log: log}
}

// Publish marshals ev and sends it as a persistent message. Errors are
// logged and returned so the caller can choose to ignore them.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, p.queue); err != nil {
		p.log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("rabbitmq: marshal event failed", zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.EventType(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.log.Warn("rabbitmq: publish failed", zap.Error(err), zap.String("type", ev.EventType()))
		return err
	}
	return nil
}

func (p *AMQPPublisher) Close() error { return nil }

// declareQueue ensures the queue exists (idempotent). Durable so messages
// survive broker restarts.
func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	return err
}
