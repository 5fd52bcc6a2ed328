package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/config"
	"github.com/iliyamo/bike-sales-counter/internal/model"
)

func sampleOrder() model.OrderInfo {
	return model.OrderInfo{
		Order: model.Order{
			OrderNumber: 123456,
			CreatedAt:   time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC),
			Status:      model.StatusPending,
			BikeName:    "Commuter",
			BikeSerial:  1709371800123456,
			BikeBrand:   "RALEIGH ROAD",
		},
		Customer:  model.Customer{ID: 7, Forename: "ADA", Surname: "LOVELACE"},
		FrameSet:  model.Component{Category: model.CategoryFrameSet, BrandName: "RALEIGH", Name: "CARBON", Price: 20000},
		Handlebar: model.Component{Category: model.CategoryHandlebar, BrandName: "RALEIGH", Name: "AERO", Price: 3000},
		Wheel:     model.Component{Category: model.CategoryWheel, BrandName: "RALEIGH", Name: "SPEED", Price: 2500},
	}
}

func TestNewOrderPlaced(t *testing.T) {
	ev := NewOrderPlaced(sampleOrder())
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, TypeOrderPlaced, ev.Type)
	assert.Equal(t, "123456", ev.Key())
	assert.Equal(t, "Ada Lovelace", ev.CustomerName)
	assert.Equal(t, int64(20000+3000+2*2500+1000), ev.TotalPence)
	assert.Equal(t, "2024-03-02T09:30:00Z", ev.PlacedAt)
	assert.Equal(t, []string{"RALEIGH Carbon Frame Set", "RALEIGH Aero Handlebars", "RALEIGH Speed Wheels"}, ev.Components)
}

func TestNewOrderProgressedMarksStockEdge(t *testing.T) {
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.False(t, NewOrderProgressed(1, model.StatusPending, model.StatusConfirmed, "alice", at).StockMoved)
	assert.True(t, NewOrderProgressed(1, model.StatusConfirmed, model.StatusFulfilled, "alice", at).StockMoved)
}

func TestAuditLine(t *testing.T) {
	body, err := json.Marshal(NewOrderPlaced(sampleOrder()))
	require.NoError(t, err)
	line, err := AuditLine(body)
	require.NoError(t, err)
	assert.Contains(t, line, "Order placed | order=123456")
	assert.Contains(t, line, "total=£290.00")

	body, err = json.Marshal(NewOrderProgressed(9, model.StatusConfirmed, model.StatusFulfilled, "bob",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	line, err = AuditLine(body)
	require.NoError(t, err)
	assert.Equal(t, `[2024-01-01T00:00:00Z] Order progressed | order=9 | CONFIRMED -> FULFILLED | staff="bob" | stock_moved=true`, line)

	_, err = AuditLine([]byte(`{"type":"other"}`))
	assert.Error(t, err)
	_, err = AuditLine([]byte(`not json`))
	assert.Error(t, err)
}

func TestAuditConsumerHandleAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "orders.log")
	c := AuditConsumer{LogPath: path, Log: zap.NewNop()}
	body, err := json.Marshal(NewOrderProgressed(1, model.StatusPending, model.StatusConfirmed, "a", time.Now()))
	require.NoError(t, err)

	require.NoError(t, c.Handle(body))
	require.NoError(t, c.Handle(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestKafkaMessageKeyedByOrder(t *testing.T) {
	msg, err := Message(context.Background(), NewOrderPlaced(sampleOrder()))
	require.NoError(t, err)
	assert.Equal(t, "123456", string(msg.Key))
	require.NotEmpty(t, msg.Headers)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TypeOrderPlaced, string(msg.Headers[0].Value))
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(config.EventsConfig{Broker: config.BrokerNone}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), NewOrderPlaced(sampleOrder())))

	p, err = NewPublisher(config.EventsConfig{Broker: config.BrokerKafka, KafkaBrokers: []string{"localhost:9092"}, Topic: "t"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, p)
	assert.NoError(t, p.Close())

	_, err = NewPublisher(config.EventsConfig{Broker: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)
}
