package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/utils"
)

// AuditConsumer appends one line per order event to a log file.
type AuditConsumer struct {
	URL     string
	Queue   string
	LogPath string
	Log     *zap.Logger
}

// Start connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled, reconnecting with exponential backoff. A message
// that cannot be handled is rejected without requeue so the loop never
// spins on it.
func (c AuditConsumer) Start(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("audit-consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.Log.Warn("audit-consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("audit-consumer: set QoS failed", zap.Error(err))
	}
	if err := declareQueue(ch, c.Queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.Log.Warn("audit-consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one event body and appends its audit line.
func (c AuditConsumer) Handle(body []byte) error {
	line, err := AuditLine(body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// AuditLine renders an event body as a single human readable line.
func AuditLine(body []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	switch head.Type {
	case TypeOrderPlaced:
		var ev OrderPlacedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Order placed | order=%d | customer=%q | bike=%q | serial=%d | brand=%q | total=%s | parts=[%s]",
			ev.PlacedAt, ev.OrderNumber, ev.CustomerName, ev.BikeName, ev.BikeSerial, ev.BikeBrand,
			utils.FormatMoney(ev.TotalPence), strings.Join(ev.Components, ", ")), nil
	case TypeOrderProgressed:
		var ev OrderProgressedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Order progressed | order=%d | %s -> %s | staff=%q | stock_moved=%t",
			ev.ProgressedAt, ev.OrderNumber, ev.From, ev.To, ev.Staff, ev.StockMoved), nil
	}
	return "", fmt.Errorf("unknown event type %q", head.Type)
}
