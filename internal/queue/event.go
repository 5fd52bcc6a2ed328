// Package queue defines the order event payloads and the brokers they are
// published to.
package queue

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/bike-sales-counter/internal/model"
)

// Event types carried in the "type" field of every payload.
const (
	TypeOrderPlaced     = "order.placed"
	TypeOrderProgressed = "order.progressed"
)

// Event is a publishable payload. Key groups events of one order on the
// same partition.
type Event interface {
	EventType() string
	Key() string
}

// OrderPlacedEvent is published after an order and its three component rows
// are committed. It carries enough for downstream consumers to log or notify
// without reading the store.
type OrderPlacedEvent struct {
	EventID      string   `json:"event_id"`
	Type         string   `json:"type"`
	OrderNumber  int64    `json:"order_number"`
	CustomerID   int64    `json:"customer_id"`
	CustomerName string   `json:"customer_name"`
	BikeName     string   `json:"bike_name"`
	BikeSerial   int64    `json:"bike_serial"`
	BikeBrand    string   `json:"bike_brand"`
	Components   []string `json:"components"`
	TotalPence   int64    `json:"total_pence"`
	PlacedAt     string   `json:"placed_at"`
}

func (e OrderPlacedEvent) EventType() string { return TypeOrderPlaced }
func (e OrderPlacedEvent) Key() string       { return strconv.FormatInt(e.OrderNumber, 10) }

// NewOrderPlaced builds the event from the stored projection.
func NewOrderPlaced(oi model.OrderInfo) OrderPlacedEvent {
	names := make([]string, 0, 3)
	for _, c := range oi.Components() {
		names = append(names, c.DisplayName())
	}
	return OrderPlacedEvent{
		EventID:      uuid.NewString(),
		Type:         TypeOrderPlaced,
		OrderNumber:  oi.Order.OrderNumber,
		CustomerID:   oi.Customer.ID,
		CustomerName: oi.Customer.Name(),
		BikeName:     oi.Order.BikeName,
		BikeSerial:   oi.Order.BikeSerial,
		BikeBrand:    oi.Order.BikeBrand,
		Components:   names,
		TotalPence:   oi.Total(),
		PlacedAt:     oi.Order.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// OrderProgressedEvent is published after a status transition commits.
// StockMoved is set on the CONFIRMED to FULFILLED edge.
type OrderProgressedEvent struct {
	EventID      string `json:"event_id"`
	Type         string `json:"type"`
	OrderNumber  int64  `json:"order_number"`
	From         string `json:"from"`
	To           string `json:"to"`
	Staff        string `json:"staff"`
	StockMoved   bool   `json:"stock_moved"`
	ProgressedAt string `json:"progressed_at"`
}

func (e OrderProgressedEvent) EventType() string { return TypeOrderProgressed }
func (e OrderProgressedEvent) Key() string       { return strconv.FormatInt(e.OrderNumber, 10) }

// NewOrderProgressed builds a transition event stamped with at.
func NewOrderProgressed(orderNumber int64, from, to model.Status, staff string, at time.Time) OrderProgressedEvent {
	return OrderProgressedEvent{
		EventID:      uuid.NewString(),
		Type:         TypeOrderProgressed,
		OrderNumber:  orderNumber,
		From:         string(from),
		To:           string(to),
		Staff:        staff,
		StockMoved:   from == model.StatusConfirmed && to == model.StatusFulfilled,
		ProgressedAt: at.UTC().Format(time.RFC3339),
	}
}
