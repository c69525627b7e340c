package service

import (
	"context"
	"time"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"
	"apparel-service/internal/store"
	"apparel-service/internal/util"

	"go.uber.org/zap"
)

// InvoiceStore is the slice of the store the invoice service needs
type InvoiceStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)

	CreateInvoiceTx(ctx context.Context, inv *models.Invoice) error
	GetInvoiceByID(ctx context.Context, id int64) (*models.Invoice, error)
	GetInvoiceByCode(ctx context.Context, code string) (*models.Invoice, error)
	InvoiceExistsForOrder(ctx context.Context, orderID int64) (bool, error)
	ListInvoices(ctx context.Context, f store.InvoiceFilter) ([]models.Invoice, error)
	RecentInvoices(ctx context.Context, limit int) ([]models.Invoice, error)
	MarkInvoicePaidTx(ctx context.Context, invoiceID, orderID int64, method *models.PaymentMethod, paymentNotes string) error
	UpdateInvoiceStatus(ctx context.Context, id int64, status models.InvoiceStatus) error
	InvoiceStatistics(ctx context.Context, from, to *time.Time) (*models.InvoiceStatistics, error)
}

// InvoiceService handles billing records derived from orders
type InvoiceService struct {
	store  InvoiceStore
	logger *zap.Logger
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(st InvoiceStore) *InvoiceService {
	return &InvoiceService{store: st, logger: util.GetLogger()}
}

// CreateInvoiceRequest issues an invoice for an existing order
type CreateInvoiceRequest struct {
	OrderID int64      `json:"order_id" binding:"required"`
	DueDate *time.Time `json:"due_date,omitempty"`
	Notes   string     `json:"notes,omitempty"`
}

// MarkPaidRequest records payment of an invoice
type MarkPaidRequest struct {
	PaymentMethod *models.PaymentMethod `json:"payment_method,omitempty"`
	PaymentNotes  string                `json:"payment_notes,omitempty"`
}

// CreateInvoice issues an invoice for an order. An order carries at most
// one live invoice; cancelled invoices do not count.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*models.Invoice, error) {
	ctx, span := util.StartSpan(ctx, "InvoiceService.CreateInvoice")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetCustomerByID(ctx, order.CustomerID); err != nil {
		return nil, err
	}

	exists, err := s.store.InvoiceExistsForOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.InvalidState("order %d already has an invoice", req.OrderID)
	}

	invoice := &models.Invoice{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		DueDate:       req.DueDate,
		Status:        models.InvoiceStatusIssued,
		Notes:         req.Notes,
	}
	if err := s.store.CreateInvoiceTx(ctx, invoice); err != nil {
		return nil, err
	}

	util.InvoicesIssuedTotal.Inc()
	s.logger.Info("invoice issued",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("code", invoice.Code),
		zap.Int64("order_id", invoice.OrderID))
	return invoice, nil
}

// GetInvoice retrieves an invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	return s.store.GetInvoiceByID(ctx, id)
}

// GetInvoiceByCode retrieves an invoice by its INV code
func (s *InvoiceService) GetInvoiceByCode(ctx context.Context, code string) (*models.Invoice, error) {
	if code == "" {
		return nil, apperr.Validation("invoice code must not be empty")
	}
	return s.store.GetInvoiceByCode(ctx, code)
}

// ListInvoices lists invoices with optional filters
func (s *InvoiceService) ListInvoices(ctx context.Context, f store.InvoiceFilter) ([]models.Invoice, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid invoice status: %s", f.Status)
	}
	if f.PaymentMethod != "" && !f.PaymentMethod.Valid() {
		return nil, apperr.Validation("invalid payment method: %s", f.PaymentMethod)
	}
	return s.store.ListInvoices(ctx, f)
}

// RecentInvoices returns the latest invoices, capped at 50
func (s *InvoiceService) RecentInvoices(ctx context.Context, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	return s.store.RecentInvoices(ctx, limit)
}

// MarkPaid marks an invoice paid and syncs the order's payment status in
// the same transaction. Marking a paid invoice again is a no-op.
func (s *InvoiceService) MarkPaid(ctx context.Context, id int64, req *MarkPaidRequest) (*models.Invoice, error) {
	invoice, err := s.store.GetInvoiceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return invoice, nil
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil, apperr.InvalidState("invoice %d is cancelled and cannot be paid", id)
	}
	if req.PaymentMethod != nil && !req.PaymentMethod.Valid() {
		return nil, apperr.Validation("invalid payment method: %s", *req.PaymentMethod)
	}

	if err := s.store.MarkInvoicePaidTx(ctx, id, invoice.OrderID, req.PaymentMethod, req.PaymentNotes); err != nil {
		return nil, err
	}

	s.logger.Info("invoice paid",
		zap.Int64("invoice_id", id),
		zap.Int64("order_id", invoice.OrderID))
	return s.store.GetInvoiceByID(ctx, id)
}

// MarkOverdue flags an issued invoice whose due date has passed
func (s *InvoiceService) MarkOverdue(ctx context.Context, id int64) (*models.Invoice, error) {
	invoice, err := s.store.GetInvoiceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoiceStatusIssued {
		return nil, apperr.InvalidState("invoice %d is %s, only issued invoices can become overdue", id, invoice.Status)
	}
	if invoice.DueDate == nil || invoice.DueDate.After(time.Now()) {
		return nil, apperr.InvalidState("invoice %d is not past its due date", id)
	}

	if err := s.store.UpdateInvoiceStatus(ctx, id, models.InvoiceStatusOverdue); err != nil {
		return nil, err
	}
	return s.store.GetInvoiceByID(ctx, id)
}

// DeleteInvoice cancels an invoice. Paid invoices cannot be deleted.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id int64) error {
	invoice, err := s.store.GetInvoiceByID(ctx, id)
	if err != nil {
		return err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return apperr.CannotDelete("invoice %d is paid and cannot be deleted", id)
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil
	}
	return s.store.UpdateInvoiceStatus(ctx, id, models.InvoiceStatusCancelled)
}

// Statistics aggregates invoices over an optional date range
func (s *InvoiceService) Statistics(ctx context.Context, from, to *time.Time) (*models.InvoiceStatistics, error) {
	return s.store.InvoiceStatistics(ctx, from, to)
}
