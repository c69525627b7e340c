package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"
	"apparel-service/internal/store"
	"apparel-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// idempotencyPending marks a key that is claimed but whose order has not
// committed yet
const idempotencyPending = "pending"

// OrderStore is the slice of the store the order service needs
type OrderStore interface {
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CheckAvailability(ctx context.Context, productID int64, required int) error

	CreateOrderTx(ctx context.Context, order *models.Order) ([]store.StockAdjustment, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	SearchOrders(ctx context.Context, query string) ([]models.Order, error)
	RecentOrders(ctx context.Context, limit int) ([]models.Order, error)
	UpdateOrderFields(ctx context.Context, id int64, f store.OrderFieldUpdate) error
	ReplaceOrderItemsTx(ctx context.Context, orderID int64, expected models.OrderStatus, newItems []models.OrderItem, totalAmount int64) ([]store.StockAdjustment, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error
	CancelOrderTx(ctx context.Context, orderID int64, expected models.OrderStatus) ([]store.StockAdjustment, error)
	DeleteOrderTx(ctx context.Context, orderID int64, expected models.OrderStatus) ([]store.StockAdjustment, error)
	OrderStatistics(ctx context.Context, from, to *time.Time) (*models.OrderStatistics, error)
}

// OrderService handles order business logic
type OrderService struct {
	store       OrderStore
	ledger      *InventoryLedger
	idempotency IdempotencyStore
	events      EventPublisher
	logger      *zap.Logger
}

// NewOrderService creates a new order service. idempotency and events
// may be nil; the corresponding behavior is skipped.
func NewOrderService(st OrderStore, ledger *InventoryLedger, idempotency IdempotencyStore, events EventPublisher) *OrderService {
	return &OrderService{
		store:       st,
		ledger:      ledger,
		idempotency: idempotency,
		events:      events,
		logger:      util.GetLogger(),
	}
}

// OrderItemInput selects a product and its per-item customization
type OrderItemInput struct {
	ProductID   int64  `json:"product_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	AdultOrKid  string `json:"adult_or_kid,omitempty"`
	PrintName   string `json:"print_name,omitempty"`
	PrintNumber string `json:"print_number,omitempty"`
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerID     int64                `json:"customer_id" binding:"required"`
	Items          []OrderItemInput     `json:"items" binding:"required,min=1"`
	PaymentMethod  models.PaymentMethod `json:"payment_method,omitempty"`
	PaymentStatus  models.PaymentStatus `json:"payment_status,omitempty"`
	Notes          string               `json:"notes,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// UpdateOrderRequest carries a partial order update. Nil Items keeps the
// existing items; a non-nil slice replaces them wholesale.
type UpdateOrderRequest struct {
	Notes         *string               `json:"notes,omitempty"`
	PaymentMethod *models.PaymentMethod `json:"payment_method,omitempty"`
	PaymentStatus *models.PaymentStatus `json:"payment_status,omitempty"`
	Items         []OrderItemInput      `json:"items,omitempty"`
}

// CreateOrder creates an order, reserving stock for every item in the
// same transaction as the insert. A request with an idempotency key that
// already produced an order returns that order instead of creating a
// second one.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if len(req.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodCash
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = models.PaymentStatusUnpaid
	}
	if !req.PaymentMethod.Valid() {
		return nil, apperr.Validation("invalid payment method: %s", req.PaymentMethod)
	}
	if !req.PaymentStatus.Valid() {
		return nil, apperr.Validation("invalid payment status: %s", req.PaymentStatus)
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		claimed, existing, err := s.idempotency.ClaimIdempotencyKey(ctx, req.IdempotencyKey, idempotencyPending)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if !claimed {
			if existing == idempotencyPending {
				return nil, apperr.InvalidState("order request with idempotency key %s is still in flight", req.IdempotencyKey)
			}
			orderID, err := strconv.ParseInt(existing, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("corrupt idempotency value %q: %w", existing, err)
			}
			s.logger.Info("duplicate order request",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("order_id", orderID))
			return s.store.GetOrderByID(ctx, orderID)
		}
	}

	order, err := s.createOrder(ctx, req)
	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err != nil {
			if relErr := s.idempotency.ReleaseIdempotencyKey(ctx, req.IdempotencyKey); relErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.Error(relErr))
			}
		} else {
			if setErr := s.idempotency.StoreIdempotencyResult(ctx, req.IdempotencyKey, strconv.FormatInt(order.ID, 10)); setErr != nil {
				s.logger.Warn("failed to store idempotency result", zap.Error(setErr))
			}
		}
	}
	return order, err
}

func (s *OrderService) createOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	if _, err := s.store.GetCustomerByID(ctx, req.CustomerID); err != nil {
		util.OrdersFailedTotal.WithLabelValues("customer_not_found").Inc()
		return nil, err
	}

	items, totalAmount, err := s.buildOrderItems(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	order := &models.Order{
		CustomerID:    req.CustomerID,
		Items:         items,
		TotalAmount:   totalAmount,
		Status:        models.OrderStatusCreated,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: req.PaymentStatus,
		Notes:         req.Notes,
	}

	adjustments, err := s.store.CreateOrderTx(ctx, order)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", order.CustomerID),
		zap.Int64("total_amount", order.TotalAmount))

	s.ledger.RecordAdjustments(ctx, adjustments, "order_created")
	s.publishOrderCreated(ctx, order)
	return order, nil
}

// buildOrderItems validates every input item and snapshots the product's
// descriptor fields and price into order items. The availability check
// here only fails fast; the conditional update inside the transaction is
// the authority.
func (s *OrderService) buildOrderItems(ctx context.Context, inputs []OrderItemInput) ([]models.OrderItem, int64, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	var total int64

	for _, in := range inputs {
		if in.Quantity < 1 {
			return nil, 0, apperr.Validation("item quantity must be at least 1, got %d for product %d", in.Quantity, in.ProductID)
		}

		product, err := s.store.GetProductByID(ctx, in.ProductID)
		if err != nil {
			return nil, 0, err
		}
		if !product.IsActive {
			return nil, 0, apperr.Inactive(product.ID)
		}
		if err := s.store.CheckAvailability(ctx, in.ProductID, in.Quantity); err != nil {
			return nil, 0, err
		}

		var image string
		if len(product.Images) > 0 {
			image = product.Images[0]
		}

		subtotal := product.Price * int64(in.Quantity)
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			Image:       image,
			TeamName:    product.TeamName,
			Category:    product.Category,
			Size:        product.Size,
			Season:      product.Season,
			HomeOrAway:  product.Type,
			AdultOrKid:  in.AdultOrKid,
			Supplier:    product.Supplier,
			PrintName:   in.PrintName,
			PrintNumber: in.PrintNumber,
			Quantity:    in.Quantity,
			Price:       product.Price,
			Subtotal:    subtotal,
		})
		total += subtotal
	}

	return items, total, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.store.GetOrderByID(ctx, id)
}

// ListOrders lists all non-deleted orders, newest first
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.ListOrders(ctx)
}

// SearchOrders matches orders by customer name or notes
func (s *OrderService) SearchOrders(ctx context.Context, query string) ([]models.Order, error) {
	if query == "" {
		return nil, apperr.Validation("search query must not be empty")
	}
	return s.store.SearchOrders(ctx, query)
}

// RecentOrders returns the latest orders, capped at 50
func (s *OrderService) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}
	return s.store.RecentOrders(ctx, limit)
}

// Statistics aggregates orders over an optional date range
func (s *OrderService) Statistics(ctx context.Context, from, to *time.Time) (*models.OrderStatistics, error) {
	return s.store.OrderStatistics(ctx, from, to)
}

// UpdateOrder applies a partial update. Replacing items releases every
// old reservation and takes the new ones in a single transaction, so a
// failed swap leaves the order and its stock exactly as they were.
func (s *OrderService) UpdateOrder(ctx context.Context, id int64, req *UpdateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, apperr.InvalidState("order %d is %s and can no longer be updated", id, order.Status)
	}

	if req.PaymentMethod != nil && !req.PaymentMethod.Valid() {
		return nil, apperr.Validation("invalid payment method: %s", *req.PaymentMethod)
	}
	if req.PaymentStatus != nil && !req.PaymentStatus.Valid() {
		return nil, apperr.Validation("invalid payment status: %s", *req.PaymentStatus)
	}

	if req.Notes != nil || req.PaymentMethod != nil || req.PaymentStatus != nil {
		update := store.OrderFieldUpdate{
			Notes:         req.Notes,
			PaymentMethod: req.PaymentMethod,
			PaymentStatus: req.PaymentStatus,
		}
		if err := s.store.UpdateOrderFields(ctx, id, update); err != nil {
			return nil, err
		}
	}

	if req.Items != nil {
		if len(req.Items) == 0 {
			return nil, apperr.Validation("order must contain at least one item")
		}
		newItems, totalAmount, err := s.buildOrderItems(ctx, req.Items)
		if err != nil {
			return nil, err
		}
		adjustments, err := s.store.ReplaceOrderItemsTx(ctx, id, order.Status, newItems, totalAmount)
		if err != nil {
			return nil, err
		}
		s.ledger.RecordAdjustments(ctx, adjustments, "order_items_replaced")
	}

	updated, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publishOrderUpdated(ctx, updated)
	return updated, nil
}

// UpdateStatus transitions an order through the lifecycle. Transitioning
// to Cancelled releases all item stock in the same transaction as the
// status flip. Cancelling an already cancelled order is a no-op.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !status.Valid() {
		return nil, apperr.Validation("invalid order status: %s", status)
	}

	order, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status == status {
		return order, nil
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, apperr.InvalidState("order %d cannot go from %s to %s", id, order.Status, status)
	}

	if status == models.OrderStatusCancelled {
		adjustments, err := s.store.CancelOrderTx(ctx, id, order.Status)
		if err != nil {
			if apperr.IsKind(err, apperr.KindInvalidState) {
				// lost a race: if another request cancelled first, its
				// release already happened and ours is a no-op
				fresh, readErr := s.store.GetOrderByID(ctx, id)
				if readErr == nil && fresh.Status == models.OrderStatusCancelled {
					return fresh, nil
				}
			}
			return nil, err
		}
		util.OrdersCancelledTotal.Inc()
		s.ledger.RecordAdjustments(ctx, adjustments, "order_cancelled")
		s.publishOrderCancelled(ctx, order, "status change")
	} else {
		if err := s.store.UpdateOrderStatus(ctx, id, status); err != nil {
			return nil, err
		}
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", id),
		zap.String("from", string(order.Status)),
		zap.String("to", string(status)))
	s.publishStatusChanged(ctx, id, order.Status, status)

	return s.store.GetOrderByID(ctx, id)
}

// UpdatePaymentStatus updates payment fields without touching the
// lifecycle status or stock
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id int64, paymentStatus models.PaymentStatus, method *models.PaymentMethod) (*models.Order, error) {
	if !paymentStatus.Valid() {
		return nil, apperr.Validation("invalid payment status: %s", paymentStatus)
	}
	if method != nil && !method.Valid() {
		return nil, apperr.Validation("invalid payment method: %s", *method)
	}

	update := store.OrderFieldUpdate{
		PaymentStatus: &paymentStatus,
		PaymentMethod: method,
	}
	if err := s.store.UpdateOrderFields(ctx, id, update); err != nil {
		return nil, err
	}
	return s.store.GetOrderByID(ctx, id)
}

// DeleteOrder soft-deletes an order. Delivered orders cannot be deleted;
// stock is released unless the order was already cancelled (and so
// already released).
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusDelivered {
		return apperr.CannotDelete("order %d is delivered and cannot be deleted", id)
	}

	adjustments, err := s.store.DeleteOrderTx(ctx, id, order.Status)
	if apperr.IsKind(err, apperr.KindInvalidState) {
		// the status moved under us (e.g. a concurrent cancel already
		// released the stock); re-read and try once against the fresh one
		if order, err = s.store.GetOrderByID(ctx, id); err != nil {
			return err
		}
		if order.Status == models.OrderStatusDelivered {
			return apperr.CannotDelete("order %d is delivered and cannot be deleted", id)
		}
		adjustments, err = s.store.DeleteOrderTx(ctx, id, order.Status)
	}
	if err != nil {
		return err
	}

	s.logger.Info("order deleted", zap.Int64("order_id", id))
	s.ledger.RecordAdjustments(ctx, adjustments, "order_deleted")
	s.publishOrderCancelled(ctx, order, "deleted")
	return nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		Items:       toEventItems(order.Items),
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Warn("failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *OrderService) publishOrderUpdated(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderUpdatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderUpdated),
		OrderID:     order.ID,
		TotalAmount: order.TotalAmount,
		Items:       toEventItems(order.Items),
	}
	if err := s.events.PublishOrderUpdated(ctx, event); err != nil {
		s.logger.Warn("failed to publish OrderUpdated event", zap.Error(err))
	}
}

func (s *OrderService) publishStatusChanged(ctx context.Context, orderID int64, from, to models.OrderStatus) {
	if s.events == nil {
		return
	}
	event := &models.OrderStatusChangedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
	}
	if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish OrderStatusChanged event", zap.Error(err))
	}
}

func (s *OrderService) publishOrderCancelled(ctx context.Context, order *models.Order, reason string) {
	if s.events == nil {
		return
	}
	event := &models.OrderCancelledEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:       order.ID,
		Reason:        reason,
		ReleasedItems: toEventItems(order.Items),
	}
	if err := s.events.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Warn("failed to publish OrderCancelled event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func toEventItems(items []models.OrderItem) []models.OrderEventItem {
	out := make([]models.OrderEventItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return out
}
