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

// OrderFieldUpdate carries optional header fields for a partial order
// update; nil pointers leave the column untouched
type OrderFieldUpdate struct {
	Notes         *string
	PaymentMethod *models.PaymentMethod
	PaymentStatus *models.PaymentStatus
}

// CreateOrderTx inserts an order with its items and reserves stock for
// every item, all in one transaction. Either the order and all of its
// reservations commit together, or a failed reservation rolls the whole
// order back and no stock mutation stays visible.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order) ([]StockAdjustment, error) {
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

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// GetOrderByID retrieves a non-deleted order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND NOT is_deleted", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}

	order.Items, err = getOrderItems(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func getOrderItems(ctx context.Context, q sqlx.QueryerContext, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := sqlx.SelectContext(ctx, q, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// lockOrder takes the order's row lock and verifies the status the
// caller observed still holds. Racing terminal updates serialize here:
// the loser blocks on the lock, then sees the winner's status and fails
// instead of releasing or re-reserving stock a second time.
func lockOrder(ctx context.Context, tx *sqlx.Tx, orderID int64, expected models.OrderStatus) error {
	var row struct {
		Status    models.OrderStatus `db:"status"`
		IsDeleted bool               `db:"is_deleted"`
	}
	err := tx.GetContext(ctx, &row,
		"SELECT status, is_deleted FROM orders WHERE id = $1 FOR UPDATE", orderID)
	if err == sql.ErrNoRows {
		return apperr.NotFound("order", orderID)
	}
	if err != nil {
		return err
	}
	if row.IsDeleted {
		return apperr.NotFound("order", orderID)
	}
	if row.Status != expected {
		return apperr.InvalidState("order %d is %s, expected %s", orderID, row.Status, expected)
	}
	return nil
}

// ListOrders retrieves non-deleted orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE NOT is_deleted ORDER BY order_date DESC")
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

// ListOrdersByCustomer retrieves a customer's orders with offset pagination
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE customer_id = $1 AND NOT is_deleted
		ORDER BY order_date DESC
		LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

// CountOrdersByCustomer counts a customer's non-deleted orders
func (s *Store) CountOrdersByCustomer(ctx context.Context, customerID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM orders WHERE customer_id = $1 AND NOT is_deleted", customerID)
	return count, err
}

// SearchOrders matches non-deleted orders by customer name or order notes
func (s *Store) SearchOrders(ctx context.Context, query string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT o.* FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE NOT o.is_deleted AND (c.name ILIKE $1 OR o.notes ILIKE $1)
		ORDER BY o.order_date DESC`,
		"%"+query+"%")
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

// RecentOrders retrieves the latest non-deleted orders
func (s *Store) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE NOT is_deleted ORDER BY order_date DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, orders)
}

func (s *Store) attachItems(ctx context.Context, orders []models.Order) ([]models.Order, error) {
	for i := range orders {
		items, err := getOrderItems(ctx, s.db, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// UpdateOrderFields applies a partial header update to a non-deleted order
func (s *Store) UpdateOrderFields(ctx context.Context, id int64, f OrderFieldUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET notes = COALESCE($2, notes),
		    payment_method = COALESCE($3, payment_method),
		    payment_status = COALESCE($4, payment_status),
		    updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`,
		id, f.Notes, f.PaymentMethod, f.PaymentStatus)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

// ReplaceOrderItemsTx swaps an order's items for a new set: releases the
// stock held by the current items, deletes them, inserts the new items
// reserving their stock, and updates the total, all in one transaction.
// The row lock serializes racing replacements and cancels, and the old
// items are read under it, so a stale caller snapshot can never release
// the wrong set. Releases run before reservations so a swap on the same
// product does not spuriously fail; a failed reservation rolls back the
// releases too, so stock is never left half-moved.
func (s *Store) ReplaceOrderItemsTx(ctx context.Context, orderID int64, expected models.OrderStatus, newItems []models.OrderItem, totalAmount int64) ([]StockAdjustment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockOrder(ctx, tx, orderID, expected); err != nil {
		return nil, err
	}
	oldItems, err := getOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	adjustments := make([]StockAdjustment, 0, len(oldItems)+len(newItems))
	for _, item := range oldItems {
		remaining, err := releaseStock(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, StockAdjustment{
			ProductID: item.ProductID,
			Delta:     item.Quantity,
			Remaining: remaining,
		})
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to delete order items: %w", err)
	}

	for i := range newItems {
		newItems[i].OrderID = orderID
		if err := insertOrderItem(ctx, tx, &newItems[i]); err != nil {
			return nil, err
		}
		remaining, err := reserveStock(ctx, tx, newItems[i].ProductID, newItems[i].Quantity)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, StockAdjustment{
			ProductID: newItems[i].ProductID,
			Delta:     -newItems[i].Quantity,
			Remaining: remaining,
		})
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET total_amount = $2, updated_at = NOW() WHERE id = $1",
		orderID, totalAmount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// UpdateOrderStatus updates the status of a non-deleted order without
// touching stock; callers own the transition check
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND NOT is_deleted",
		id, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

// CancelOrderTx marks the order cancelled and releases the stock held by
// its items in one transaction. The lock-and-verify on the caller's
// observed status means the release happens at most once: a concurrent
// cancel or delete loses the race with InvalidState instead of releasing
// the same stock again.
func (s *Store) CancelOrderTx(ctx context.Context, orderID int64, expected models.OrderStatus) ([]StockAdjustment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockOrder(ctx, tx, orderID, expected); err != nil {
		return nil, err
	}
	items, err := getOrderItems(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	adjustments, err := releaseAll(ctx, tx, items)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1",
		orderID, models.OrderStatusCancelled); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// DeleteOrderTx soft-deletes an order: releases its stock unless the
// order was already cancelled (and so already released), then sets
// is_deleted with status Cancelled as one atomic terminal action. The
// same lock-and-verify as CancelOrderTx guards against a racing cancel
// double-releasing.
func (s *Store) DeleteOrderTx(ctx context.Context, orderID int64, expected models.OrderStatus) ([]StockAdjustment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockOrder(ctx, tx, orderID, expected); err != nil {
		return nil, err
	}

	var adjustments []StockAdjustment
	if expected != models.OrderStatusCancelled {
		items, err := getOrderItems(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if adjustments, err = releaseAll(ctx, tx, items); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET is_deleted = TRUE, status = $2, updated_at = NOW()
		WHERE id = $1`,
		orderID, models.OrderStatusCancelled); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

// releaseAll releases stock for every item inside the open transaction
// and reports the resulting adjustments
func releaseAll(ctx context.Context, tx *sqlx.Tx, items []models.OrderItem) ([]StockAdjustment, error) {
	adjustments := make([]StockAdjustment, 0, len(items))
	for _, item := range items {
		remaining, err := releaseStock(ctx, tx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, StockAdjustment{
			ProductID: item.ProductID,
			Delta:     item.Quantity,
			Remaining: remaining,
		})
	}
	return adjustments, nil
}

// OrderStatistics aggregates non-deleted orders over an optional date range
func (s *Store) OrderStatistics(ctx context.Context, from, to *time.Time) (*models.OrderStatistics, error) {
	query := "SELECT status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue FROM orders WHERE NOT is_deleted"
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
		Status  models.OrderStatus `db:"status"`
		Count   int                `db:"count"`
		Revenue int64              `db:"revenue"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	stats := &models.OrderStatistics{ByStatus: map[models.OrderStatus]models.StatusStat{}}
	for _, r := range rows {
		stats.TotalOrders += r.Count
		stats.TotalRevenue += r.Revenue
		stats.ByStatus[r.Status] = models.StatusStat{Count: r.Count, Revenue: r.Revenue}
	}
	if stats.TotalOrders > 0 {
		stats.AvgOrderValue = float64(stats.TotalRevenue) / float64(stats.TotalOrders)
	}
	return stats, nil
}

func insertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, total_amount, status, payment_method, payment_status, notes, order_date)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, order_date, created_at, updated_at`

	err := tx.GetContext(ctx, order, query,
		order.CustomerID, order.TotalAmount, order.Status,
		order.PaymentMethod, order.PaymentStatus, order.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func insertOrderItem(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, image, team_name, category, size, season,
			home_or_away, adult_or_kid, supplier, print_name, print_number, quantity, price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	err := tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Image, item.TeamName, item.Category,
		item.Size, item.Season, item.HomeOrAway, item.AdultOrKid, item.Supplier,
		item.PrintName, item.PrintNumber, item.Quantity, item.Price, item.Subtotal)
	if err != nil {
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}
