package models

import (
	"time"

	"github.com/lib/pq"
)

// Customer represents a shop customer
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Product represents a jersey in the catalog. Quantity is the inventory
// ledger balance and is only ever mutated through the atomic stock
// operations in the store; regular product updates never touch it.
type Product struct {
	ID          int64          `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	TeamName    string         `db:"team_name" json:"team_name"`
	Category    string         `db:"category" json:"category"`
	Type        string         `db:"type" json:"type"`
	Size        string         `db:"size" json:"size"`
	Color       string         `db:"color" json:"color,omitempty"`
	Season      string         `db:"season" json:"season,omitempty"`
	Supplier    string         `db:"supplier" json:"supplier,omitempty"`
	Description string         `db:"description" json:"description,omitempty"`
	Quantity    int            `db:"quantity" json:"quantity"`
	Price       int64          `db:"price" json:"price"`
	Images      pq.StringArray `db:"images" json:"images"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order
type Order struct {
	ID            int64         `db:"id" json:"id"`
	CustomerID    int64         `db:"customer_id" json:"customer_id"`
	Items         []OrderItem   `db:"-" json:"items"`
	TotalAmount   int64         `db:"total_amount" json:"total_amount"`
	Status        OrderStatus   `db:"status" json:"status"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	Notes         string        `db:"notes" json:"notes,omitempty"`
	OrderDate     time.Time     `db:"order_date" json:"order_date"`
	IsDeleted     bool          `db:"is_deleted" json:"is_deleted"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// OrderItem is an item embedded in an order. Team, size, price and the
// other descriptor fields are snapshots taken from the product at order
// time, so later product edits never alter historical orders.
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	Image       string `db:"image" json:"image,omitempty"`
	TeamName    string `db:"team_name" json:"team_name"`
	Category    string `db:"category" json:"category"`
	Size        string `db:"size" json:"size"`
	Season      string `db:"season" json:"season,omitempty"`
	HomeOrAway  string `db:"home_or_away" json:"home_or_away,omitempty"`
	AdultOrKid  string `db:"adult_or_kid" json:"adult_or_kid,omitempty"`
	Supplier    string `db:"supplier" json:"supplier,omitempty"`
	PrintName   string `db:"print_name" json:"print_name,omitempty"`
	PrintNumber string `db:"print_number" json:"print_number,omitempty"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Price       int64  `db:"price" json:"price"`
	Subtotal    int64  `db:"subtotal" json:"subtotal"`
}

// PreOrder represents a customer pre-order for items that may not exist
// in inventory yet. Once ConvertedToOrderID is set the pre-order is
// terminal and read-only.
type PreOrder struct {
	ID                   int64          `db:"id" json:"id"`
	Code                 string         `db:"code" json:"code"`
	CustomerID           int64          `db:"customer_id" json:"customer_id"`
	Items                []PreOrderItem `db:"-" json:"items"`
	TotalEstimatedAmount int64          `db:"total_estimated_amount" json:"total_estimated_amount"`
	Status               PreOrderStatus `db:"status" json:"status"`
	Deposit              int64          `db:"deposit" json:"deposit"`
	ExpectedDate         *time.Time     `db:"expected_date" json:"expected_date,omitempty"`
	Notes                string         `db:"notes" json:"notes,omitempty"`
	OrderDate            time.Time      `db:"order_date" json:"order_date"`
	ConvertedToOrderID   *int64         `db:"converted_to_order_id" json:"converted_to_order_id,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// PreOrderItem is a free-form item on a pre-order. Unlike OrderItem it
// does not reference a product, since the product may not be in stock yet.
type PreOrderItem struct {
	ID             int64  `db:"id" json:"id"`
	PreOrderID     int64  `db:"pre_order_id" json:"pre_order_id"`
	Name           string `db:"name" json:"name"`
	TeamName       string `db:"team_name" json:"team_name"`
	Category       string `db:"category" json:"category"`
	Size           string `db:"size" json:"size"`
	Quantity       int    `db:"quantity" json:"quantity"`
	EstimatedPrice int64  `db:"estimated_price" json:"estimated_price"`
	Notes          string `db:"notes" json:"notes,omitempty"`
}

// Invoice represents a billing record derived from an order
type Invoice struct {
	ID            int64         `db:"id" json:"id"`
	Code          string        `db:"code" json:"code"`
	OrderID       int64         `db:"order_id" json:"order_id"`
	CustomerID    int64         `db:"customer_id" json:"customer_id"`
	TotalAmount   int64         `db:"total_amount" json:"total_amount"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"payment_method"`
	PaymentNotes  string        `db:"payment_notes" json:"payment_notes,omitempty"`
	IssueDate     time.Time     `db:"issue_date" json:"issue_date"`
	DueDate       *time.Time    `db:"due_date" json:"due_date,omitempty"`
	Status        InvoiceStatus `db:"status" json:"status"`
	Notes         string        `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// OrderStatistics aggregates orders over a date range
type OrderStatistics struct {
	TotalOrders   int                        `json:"total_orders"`
	TotalRevenue  int64                      `json:"total_revenue"`
	AvgOrderValue float64                    `json:"avg_order_value"`
	ByStatus      map[OrderStatus]StatusStat `json:"orders_by_status"`
}

// StatusStat is a per-status bucket in order/invoice statistics
type StatusStat struct {
	Count   int   `db:"count" json:"count"`
	Revenue int64 `db:"revenue" json:"revenue"`
}

// PreOrderStatistics aggregates pre-orders over a date range
type PreOrderStatistics struct {
	TotalPreOrders        int                                   `json:"total_pre_orders"`
	TotalEstimatedRevenue int64                                 `json:"total_estimated_revenue"`
	TotalDeposits         int64                                 `json:"total_deposits"`
	ByStatus              map[PreOrderStatus]PreOrderStatusStat `json:"pre_orders_by_status"`
}

// PreOrderStatusStat is a per-status bucket in pre-order statistics
type PreOrderStatusStat struct {
	Count            int   `db:"count" json:"count"`
	EstimatedRevenue int64 `db:"estimated_revenue" json:"estimated_revenue"`
	Deposits         int64 `db:"deposits" json:"deposits"`
}

// InvoiceStatistics aggregates invoices over a date range
type InvoiceStatistics struct {
	TotalInvoices int                          `json:"total_invoices"`
	TotalAmount   int64                        `json:"total_amount"`
	ByStatus      map[InvoiceStatus]StatusStat `json:"invoices_by_status"`
}
