package model

import "time"

// Status is the lifecycle state of an order. Transitions only move forward:
// PENDING -> CONFIRMED -> FULFILLED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFulfilled Status = "FULFILLED"
)

// Next returns the status an order moves to when progressed. ok is false for
// FULFILLED and unknown values.
func (s Status) Next() (next Status, ok bool) {
	switch s {
	case StatusPending:
		return StatusConfirmed, true
	case StatusConfirmed:
		return StatusFulfilled, true
	}
	return "", false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusFulfilled
}

// Order mirrors a row of the orders table.
//
// Fields:
//  OrderNumber – random identifier, unique in the ledger.
//  CustomerID  – customers.customer_id.
//  CreatedAt   – creation time (UTC).
//  Status      – lifecycle state.
//  Staff       – username of the staff member who last advanced it, if any.
//  BikeName    – shopper chosen name, editable.
//  BikeSerial  – creation second followed by the order number.
//  BikeBrand   – frame set brand plus wheel style.
type Order struct {
	OrderNumber int64     `json:"order_number" db:"order_number"`
	CustomerID  int64     `json:"customer_id" db:"customer_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Status      Status    `json:"status" db:"status"`
	Staff       *string   `json:"staff,omitempty" db:"staff"`
	BikeName    string    `json:"bike_name" db:"bike_name"`
	BikeSerial  int64     `json:"bike_serial" db:"bike_serial"`
	BikeBrand   string    `json:"bike_brand" db:"bike_brand"`
}

// OrderInfo is the read-only projection of an order together with its
// customer, address and the three attached components.
type OrderInfo struct {
	Order     Order     `json:"order"`
	Customer  Customer  `json:"customer"`
	Address   Address   `json:"address"`
	FrameSet  Component `json:"frame_set"`
	Handlebar Component `json:"handlebar"`
	Wheel     Component `json:"wheel"`
}

// Components returns the attached components in frame, handlebar, wheel order.
func (o OrderInfo) Components() []Component {
	return []Component{o.FrameSet, o.Handlebar, o.Wheel}
}

// AssemblyFee is charged once per bike, in pence.
const AssemblyFee int64 = 1000

// Total is the bike price including the assembly fee.
func (o OrderInfo) Total() int64 {
	return o.FrameSet.LinePrice() + o.Handlebar.LinePrice() + o.Wheel.LinePrice() + AssemblyFee
}

// QuoteLine is one line of a bike quote.
type QuoteLine struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	Amount      int64  `json:"amount"`
}

// Quote prices a prospective bike.
type Quote struct {
	Lines       []QuoteLine `json:"lines"`
	AssemblyFee int64       `json:"assembly_fee"`
	Total       int64       `json:"total"`
	Formatted   string      `json:"formatted_total"`
}
