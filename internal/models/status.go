package models

// OrderStatus is the order lifecycle state
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// orderTransitions is the single source of truth for legal order status
// changes: Created -> Paid -> Delivered, with Cancelled reachable from
// Created or Paid. Delivered and Cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the transition s -> next is legal
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(orderTransitions[s]) == 0
}

// PreOrderStatus is the pre-order lifecycle state
type PreOrderStatus string

const (
	PreOrderStatusWaiting   PreOrderStatus = "WAITING"
	PreOrderStatusAvailable PreOrderStatus = "AVAILABLE"
	PreOrderStatusDelivered PreOrderStatus = "DELIVERED"
	PreOrderStatusCancelled PreOrderStatus = "CANCELLED"
)

// Waiting -> Available -> Delivered, with Cancelled reachable from
// Waiting or Available. Delivered is only ever entered by conversion.
var preOrderTransitions = map[PreOrderStatus][]PreOrderStatus{
	PreOrderStatusWaiting:   {PreOrderStatusAvailable, PreOrderStatusCancelled},
	PreOrderStatusAvailable: {PreOrderStatusDelivered, PreOrderStatusCancelled},
	PreOrderStatusDelivered: {},
	PreOrderStatusCancelled: {},
}

// Valid reports whether s is a known pre-order status
func (s PreOrderStatus) Valid() bool {
	_, ok := preOrderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the transition s -> next is legal
func (s PreOrderStatus) CanTransitionTo(next PreOrderStatus) bool {
	for _, allowed := range preOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus tracks how much of an order has been paid
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusPartiallyPaid:
		return true
	}
	return false
}

// PaymentMethod is how an order or invoice is settled
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// InvoiceStatus is the invoice lifecycle state
type InvoiceStatus string

const (
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Valid reports whether s is a known invoice status
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusIssued, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}
