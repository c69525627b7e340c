package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// PreOrderFilter narrows pre-order listings
type PreOrderFilter struct {
	Status       models.PreOrderStatus
	CustomerName string
	StartDate    *time.Time
	EndDate      *time.Time
}

// CreatePreOrderTx inserts a pre-order with its items and a generated
// PRE%06d code in one transaction
func (s *Store) CreatePreOrderTx(ctx context.Context, po *models.PreOrder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.GetContext(ctx, &seq, "SELECT nextval('pre_order_code_seq')"); err != nil {
		return fmt.Errorf("failed to allocate pre-order code: %w", err)
	}
	po.Code = fmt.Sprintf("PRE%06d", seq)

	query := `
		INSERT INTO pre_orders (code, customer_id, total_estimated_amount, status, deposit, expected_date, notes, order_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, order_date, created_at, updated_at`

	err = tx.GetContext(ctx, po, query,
		po.Code, po.CustomerID, po.TotalEstimatedAmount, po.Status,
		po.Deposit, po.ExpectedDate, po.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert pre-order: %w", err)
	}

	for i := range po.Items {
		po.Items[i].PreOrderID = po.ID
		if err := insertPreOrderItem(ctx, tx, &po.Items[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPreOrderByID retrieves a pre-order with its items
func (s *Store) GetPreOrderByID(ctx context.Context, id int64) (*models.PreOrder, error) {
	var po models.PreOrder
	err := s.db.GetContext(ctx, &po, "SELECT * FROM pre_orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("pre-order", id)
	}
	if err != nil {
		return nil, err
	}

	po.Items, err = s.getPreOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *Store) getPreOrderItems(ctx context.Context, preOrderID int64) ([]models.PreOrderItem, error) {
	items := []models.PreOrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM pre_order_items WHERE pre_order_id = $1 ORDER BY id", preOrderID)
	return items, err
}

// ListPreOrders retrieves pre-orders matching the filter, newest first
func (s *Store) ListPreOrders(ctx context.Context, f PreOrderFilter) ([]models.PreOrder, error) {
	query := `SELECT p.* FROM pre_orders p JOIN customers c ON c.id = p.customer_id WHERE TRUE`
	args := []interface{}{}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND p.status = $%d", len(args))
	}
	if f.CustomerName != "" {
		args = append(args, "%"+f.CustomerName+"%")
		query += fmt.Sprintf(" AND c.name ILIKE $%d", len(args))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		query += fmt.Sprintf(" AND p.order_date >= $%d", len(args))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		query += fmt.Sprintf(" AND p.order_date <= $%d", len(args))
	}
	query += " ORDER BY p.order_date DESC"

	preOrders := []models.PreOrder{}
	if err := s.db.SelectContext(ctx, &preOrders, query, args...); err != nil {
		return nil, err
	}
	return s.attachPreOrderItems(ctx, preOrders)
}

// PreOrdersByCustomer retrieves a customer's pre-orders, newest first
func (s *Store) PreOrdersByCustomer(ctx context.Context, customerID int64) ([]models.PreOrder, error) {
	preOrders := []models.PreOrder{}
	err := s.db.SelectContext(ctx, &preOrders,
		"SELECT * FROM pre_orders WHERE customer_id = $1 ORDER BY order_date DESC", customerID)
	if err != nil {
		return nil, err
	}
	return s.attachPreOrderItems(ctx, preOrders)
}

// OverduePreOrders retrieves waiting pre-orders whose expected date has passed
func (s *Store) OverduePreOrders(ctx context.Context, now time.Time) ([]models.PreOrder, error) {
	preOrders := []models.PreOrder{}
	err := s.db.SelectContext(ctx, &preOrders, `
		SELECT * FROM pre_orders
		WHERE expected_date < $1 AND status = $2
		ORDER BY expected_date ASC`,
		now, models.PreOrderStatusWaiting)
	if err != nil {
		return nil, err
	}
	return s.attachPreOrderItems(ctx, preOrders)
}

func (s *Store) attachPreOrderItems(ctx context.Context, preOrders []models.PreOrder) ([]models.PreOrder, error) {
	for i := range preOrders {
		items, err := s.getPreOrderItems(ctx, preOrders[i].ID)
		if err != nil {
			return nil, err
		}
		preOrders[i].Items = items
	}
	return preOrders, nil
}

// UpdatePreOrderTx replaces header fields and, when items is non-nil, the
// item list of a pre-order in one transaction
func (s *Store) UpdatePreOrderTx(ctx context.Context, po *models.PreOrder, replaceItems bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE pre_orders
		SET total_estimated_amount = $2, deposit = $3, expected_date = $4, notes = $5, updated_at = NOW()
		WHERE id = $1`,
		po.ID, po.TotalEstimatedAmount, po.Deposit, po.ExpectedDate, po.Notes)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("pre-order", po.ID)
	}

	if replaceItems {
		if _, err := tx.ExecContext(ctx, "DELETE FROM pre_order_items WHERE pre_order_id = $1", po.ID); err != nil {
			return fmt.Errorf("failed to delete pre-order items: %w", err)
		}
		for i := range po.Items {
			po.Items[i].PreOrderID = po.ID
			if err := insertPreOrderItem(ctx, tx, &po.Items[i]); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// UpdatePreOrderStatus updates the status of a pre-order; callers own the
// transition check
func (s *Store) UpdatePreOrderStatus(ctx context.Context, id int64, status models.PreOrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE pre_orders SET status = $2, updated_at = NOW() WHERE id = $1",
		id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("pre-order", id)
	}
	return nil
}

// ConvertPreOrderTx performs the conversion commit: inserts the derived
// order with its items, reserves stock for every item, and flips the
// pre-order to Delivered with the order link set, all in one transaction.
// The pre-order update is conditional on it still being convertible, so a
// racing second conversion loses and the whole transaction rolls back.
func (s *Store) ConvertPreOrderTx(ctx context.Context, preOrderID int64, order *models.Order) ([]StockAdjustment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	adjustments := make([]StockAdjustment, 0, len(order.Items))
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if err := insertOrderItem(ctx, tx, &order.Items[i]); err != nil {
			return nil, err
		}
		remaining, err := reserveStock(ctx, tx, order.Items[i].ProductID, order.Items[i].Quantity)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, StockAdjustment{
			ProductID: order.Items[i].ProductID,
			Delta:     -order.Items[i].Quantity,
			Remaining: remaining,
		})
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE pre_orders
		SET status = $2, converted_to_order_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4 AND converted_to_order_id IS NULL`,
		preOrderID, models.PreOrderStatusDelivered, order.ID, models.PreOrderStatusAvailable)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.diagnoseConversionConflict(ctx, tx, preOrderID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// diagnoseConversionConflict reads the pre-order inside the failed
// transaction to report why the conditional conversion update matched
// nothing
func (s *Store) diagnoseConversionConflict(ctx context.Context, tx *sqlx.Tx, preOrderID int64) error {
	var row struct {
		Status      models.PreOrderStatus `db:"status"`
		ConvertedTo *int64                `db:"converted_to_order_id"`
	}
	err := tx.GetContext(ctx, &row,
		"SELECT status, converted_to_order_id FROM pre_orders WHERE id = $1", preOrderID)
	if err == sql.ErrNoRows {
		return apperr.NotFound("pre-order", preOrderID)
	}
	if err != nil {
		return err
	}
	if row.ConvertedTo != nil {
		return apperr.AlreadyConverted(preOrderID)
	}
	return apperr.InvalidState("pre-order %d must be %s to convert, current status is %s",
		preOrderID, models.PreOrderStatusAvailable, row.Status)
}

// PreOrderStatistics aggregates pre-orders over an optional date range
func (s *Store) PreOrderStatistics(ctx context.Context, from, to *time.Time) (*models.PreOrderStatistics, error) {
	query := `
		SELECT status, COUNT(*) AS count,
		       COALESCE(SUM(total_estimated_amount), 0) AS estimated_revenue,
		       COALESCE(SUM(deposit), 0) AS deposits
		FROM pre_orders WHERE TRUE`
	args := []interface{}{}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND order_date >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND order_date <= $%d", len(args))
	}
	query += " GROUP BY status"

	rows := []struct {
		Status           models.PreOrderStatus `db:"status"`
		Count            int                   `db:"count"`
		EstimatedRevenue int64                 `db:"estimated_revenue"`
		Deposits         int64                 `db:"deposits"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	stats := &models.PreOrderStatistics{ByStatus: map[models.PreOrderStatus]models.PreOrderStatusStat{}}
	for _, r := range rows {
		stats.TotalPreOrders += r.Count
		stats.TotalEstimatedRevenue += r.EstimatedRevenue
		stats.TotalDeposits += r.Deposits
		stats.ByStatus[r.Status] = models.PreOrderStatusStat{
			Count:            r.Count,
			EstimatedRevenue: r.EstimatedRevenue,
			Deposits:         r.Deposits,
		}
	}
	return stats, nil
}

func insertPreOrderItem(ctx context.Context, tx *sqlx.Tx, item *models.PreOrderItem) error {
	query := `
		INSERT INTO pre_order_items (pre_order_id, name, team_name, category, size, quantity, estimated_price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := tx.GetContext(ctx, &item.ID, query,
		item.PreOrderID, item.Name, item.TeamName, item.Category,
		item.Size, item.Quantity, item.EstimatedPrice, item.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert pre-order item: %w", err)
	}
	return nil
}
