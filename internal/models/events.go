package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderUpdated       = "ORDER_UPDATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypePreOrderConverted  = "PREORDER_CONVERTED"
	EventTypeStockAdjusted      = "STOCK_ADJUSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEventItem is the item payload carried by order events
type OrderEventItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Price     int64 `json:"price"`
}

// OrderCreatedEvent published when an order is created and its stock reserved
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64            `json:"order_id"`
	CustomerID  int64            `json:"customer_id"`
	TotalAmount int64            `json:"total_amount"`
	Items       []OrderEventItem `json:"items"`
}

// OrderUpdatedEvent published when an order's fields or items change
type OrderUpdatedEvent struct {
	BaseEvent
	OrderID     int64            `json:"order_id"`
	TotalAmount int64            `json:"total_amount"`
	Items       []OrderEventItem `json:"items,omitempty"`
}

// OrderStatusChangedEvent published on any status transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    int64       `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
}

// OrderCancelledEvent published when an order is cancelled or deleted
// and its stock released
type OrderCancelledEvent struct {
	BaseEvent
	OrderID       int64            `json:"order_id"`
	Reason        string           `json:"reason"`
	ReleasedItems []OrderEventItem `json:"released_items"`
}

// PreOrderConvertedEvent published when a pre-order becomes an order
type PreOrderConvertedEvent struct {
	BaseEvent
	PreOrderID  int64 `json:"pre_order_id"`
	OrderID     int64 `json:"order_id"`
	CustomerID  int64 `json:"customer_id"`
	TotalAmount int64 `json:"total_amount"`
}

// StockAdjustedEvent published whenever a product's quantity changes so
// downstream consumers (low-stock alerts) can react
type StockAdjustedEvent struct {
	BaseEvent
	ProductID int64  `json:"product_id"`
	Delta     int    `json:"delta"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason"`
}
