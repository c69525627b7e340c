package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	Status        models.InvoiceStatus
	PaymentMethod models.PaymentMethod
	CustomerName  string
	Code          string
	StartDate     *time.Time
	EndDate       *time.Time
}

// CreateInvoiceTx inserts an invoice with a generated INV%06d code
func (s *Store) CreateInvoiceTx(ctx context.Context, inv *models.Invoice) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.GetContext(ctx, &seq, "SELECT nextval('invoice_code_seq')"); err != nil {
		return fmt.Errorf("failed to allocate invoice code: %w", err)
	}
	inv.Code = fmt.Sprintf("INV%06d", seq)

	query := `
		INSERT INTO invoices (code, order_id, customer_id, total_amount, payment_method, payment_notes, issue_date, due_date, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7, $8, $9)
		RETURNING id, issue_date, created_at, updated_at`

	err = tx.GetContext(ctx, inv, query,
		inv.Code, inv.OrderID, inv.CustomerID, inv.TotalAmount,
		inv.PaymentMethod, inv.PaymentNotes, inv.DueDate, inv.Status, inv.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	return tx.Commit()
}

// GetInvoiceByID retrieves an invoice by ID
func (s *Store) GetInvoiceByID(ctx context.Context, id int64) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.GetContext(ctx, &inv, "SELECT * FROM invoices WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("invoice", id)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInvoiceByCode retrieves an invoice by its INV code
func (s *Store) GetInvoiceByCode(ctx context.Context, code string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.GetContext(ctx, &inv, "SELECT * FROM invoices WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundMsg("invoice not found: %s", code)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// InvoiceExistsForOrder checks the one-invoice-per-order guard, ignoring
// cancelled invoices
func (s *Store) InvoiceExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM invoices WHERE order_id = $1 AND status <> $2)",
		orderID, models.InvoiceStatusCancelled)
	return exists, err
}

// ListInvoices retrieves invoices matching the filter, newest first
func (s *Store) ListInvoices(ctx context.Context, f InvoiceFilter) ([]models.Invoice, error) {
	query := "SELECT i.* FROM invoices i JOIN customers c ON c.id = i.customer_id WHERE TRUE"
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND i.status = $%d", len(args))
	}
	if f.PaymentMethod != "" {
		args = append(args, f.PaymentMethod)
		query += fmt.Sprintf(" AND i.payment_method = $%d", len(args))
	}
	if f.CustomerName != "" {
		args = append(args, "%"+f.CustomerName+"%")
		query += fmt.Sprintf(" AND c.name ILIKE $%d", len(args))
	}
	if f.Code != "" {
		args = append(args, "%"+f.Code+"%")
		query += fmt.Sprintf(" AND i.code ILIKE $%d", len(args))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		query += fmt.Sprintf(" AND i.issue_date >= $%d", len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		query += fmt.Sprintf(" AND i.issue_date <= $%d", len(args))
	}
	query += " ORDER BY i.issue_date DESC"

	invoices := []models.Invoice{}
	err := s.db.SelectContext(ctx, &invoices, query, args...)
	return invoices, err
}

// RecentInvoices retrieves the latest invoices
func (s *Store) RecentInvoices(ctx context.Context, limit int) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	err := s.db.SelectContext(ctx, &invoices,
		"SELECT * FROM invoices ORDER BY issue_date DESC LIMIT $1", limit)
	return invoices, err
}

// MarkInvoicePaidTx marks an invoice paid and syncs the related order's
// payment status in one transaction
func (s *Store) MarkInvoicePaidTx(ctx context.Context, invoiceID, orderID int64, method *models.PaymentMethod, paymentNotes string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE invoices
		SET status = $2,
		    payment_method = COALESCE($3, payment_method),
		    payment_notes = COALESCE(NULLIF($4, ''), payment_notes),
		    updated_at = NOW()
		WHERE id = $1`,
		invoiceID, models.InvoiceStatusPaid, method, paymentNotes)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("invoice", invoiceID)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1",
		orderID, models.PaymentStatusPaid)
	if err != nil {
		return fmt.Errorf("failed to sync order payment status: %w", err)
	}

	return tx.Commit()
}

// UpdateInvoiceStatus updates an invoice's status; callers own the state check
func (s *Store) UpdateInvoiceStatus(ctx context.Context, id int64, status models.InvoiceStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1",
		id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("invoice", id)
	}
	return nil
}

// InvoiceStatistics aggregates invoices over an optional date range
func (s *Store) InvoiceStatistics(ctx context.Context, from, to *time.Time) (*models.InvoiceStatistics, error) {
	query := "SELECT status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue FROM invoices WHERE TRUE"
	args := []interface{}{}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND issue_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND issue_date <= $%d", len(args))
	}
	query += " GROUP BY status"

	rows := []struct {
		Status  models.InvoiceStatus `db:"status"`
		Count   int                  `db:"count"`
		Revenue int64                `db:"revenue"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	stats := &models.InvoiceStatistics{ByStatus: map[models.InvoiceStatus]models.StatusStat{}}
	for _, r := range rows {
		stats.TotalInvoices += r.Count
		stats.TotalAmount += r.Revenue
		stats.ByStatus[r.Status] = models.StatusStat{Count: r.Count, Revenue: r.Revenue}
	}
	return stats, nil
}
