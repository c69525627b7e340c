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

// PreOrderStore is the slice of the store the pre-order service needs
type PreOrderStore interface {
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CheckAvailability(ctx context.Context, productID int64, required int) error

	CreatePreOrderTx(ctx context.Context, po *models.PreOrder) error
	GetPreOrderByID(ctx context.Context, id int64) (*models.PreOrder, error)
	ListPreOrders(ctx context.Context, f store.PreOrderFilter) ([]models.PreOrder, error)
	PreOrdersByCustomer(ctx context.Context, customerID int64) ([]models.PreOrder, error)
	OverduePreOrders(ctx context.Context, now time.Time) ([]models.PreOrder, error)
	UpdatePreOrderTx(ctx context.Context, po *models.PreOrder, replaceItems bool) error
	UpdatePreOrderStatus(ctx context.Context, id int64, status models.PreOrderStatus) error
	ConvertPreOrderTx(ctx context.Context, preOrderID int64, order *models.Order) ([]store.StockAdjustment, error)
	PreOrderStatistics(ctx context.Context, from, to *time.Time) (*models.PreOrderStatistics, error)
}

// PreOrderService handles pre-order business logic, including the
// conversion workflow that turns an Available pre-order into an order.
type PreOrderService struct {
	store  PreOrderStore
	orders *OrderService
	ledger *InventoryLedger
	events EventPublisher
	logger *zap.Logger
}

// NewPreOrderService creates a new pre-order service
func NewPreOrderService(st PreOrderStore, orders *OrderService, ledger *InventoryLedger, events EventPublisher) *PreOrderService {
	return &PreOrderService{
		store:  st,
		orders: orders,
		ledger: ledger,
		events: events,
		logger: util.GetLogger(),
	}
}

// PreOrderItemInput is a free-form requested item; the product may not
// exist in the catalog yet
type PreOrderItemInput struct {
	Name           string `json:"name" binding:"required"`
	TeamName       string `json:"team_name" binding:"required"`
	Category       string `json:"category,omitempty"`
	Size           string `json:"size" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required,min=1"`
	EstimatedPrice int64  `json:"estimated_price" binding:"min=0"`
	Notes          string `json:"notes,omitempty"`
}

// CreatePreOrderRequest represents a request to create a pre-order
type CreatePreOrderRequest struct {
	CustomerID   int64               `json:"customer_id" binding:"required"`
	Items        []PreOrderItemInput `json:"items" binding:"required,min=1"`
	Deposit      int64               `json:"deposit,omitempty"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty"`
	Notes        string              `json:"notes,omitempty"`
}

// UpdatePreOrderRequest carries a partial pre-order update; nil Items
// keeps the existing items
type UpdatePreOrderRequest struct {
	Deposit      *int64              `json:"deposit,omitempty"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty"`
	Notes        *string             `json:"notes,omitempty"`
	Items        []PreOrderItemInput `json:"items,omitempty"`
}

// ConvertRequest maps a pre-order's requested items onto catalog
// products for the conversion commit
type ConvertRequest struct {
	Items         []OrderItemInput     `json:"items" binding:"required,min=1"`
	PaymentMethod models.PaymentMethod `json:"payment_method,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
	Notes         string               `json:"notes,omitempty"`
}

// CreatePreOrder creates a pre-order in Waiting status
func (s *PreOrderService) CreatePreOrder(ctx context.Context, req *CreatePreOrderRequest) (*models.PreOrder, error) {
	ctx, span := util.StartSpan(ctx, "PreOrderService.CreatePreOrder")
	defer span.End()

	if _, err := s.store.GetCustomerByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("pre-order must contain at least one item")
	}
	if req.Deposit < 0 {
		return nil, apperr.Validation("deposit must not be negative")
	}

	items := make([]models.PreOrderItem, 0, len(req.Items))
	var total int64
	for _, in := range req.Items {
		if in.Quantity < 1 {
			return nil, apperr.Validation("item quantity must be at least 1")
		}
		if in.EstimatedPrice < 0 {
			return nil, apperr.Validation("estimated price must not be negative")
		}
		items = append(items, models.PreOrderItem{
			Name:           in.Name,
			TeamName:       in.TeamName,
			Category:       in.Category,
			Size:           in.Size,
			Quantity:       in.Quantity,
			EstimatedPrice: in.EstimatedPrice,
			Notes:          in.Notes,
		})
		total += in.EstimatedPrice * int64(in.Quantity)
	}

	po := &models.PreOrder{
		CustomerID:           req.CustomerID,
		Items:                items,
		TotalEstimatedAmount: total,
		Status:               models.PreOrderStatusWaiting,
		Deposit:              req.Deposit,
		ExpectedDate:         req.ExpectedDate,
		Notes:                req.Notes,
	}

	if err := s.store.CreatePreOrderTx(ctx, po); err != nil {
		return nil, err
	}

	util.PreOrdersCreatedTotal.Inc()
	s.logger.Info("pre-order created",
		zap.Int64("pre_order_id", po.ID),
		zap.String("code", po.Code),
		zap.Int64("customer_id", po.CustomerID))
	return po, nil
}

// GetPreOrder retrieves a pre-order by ID
func (s *PreOrderService) GetPreOrder(ctx context.Context, id int64) (*models.PreOrder, error) {
	return s.store.GetPreOrderByID(ctx, id)
}

// ListPreOrders lists pre-orders with optional status and date filters
func (s *PreOrderService) ListPreOrders(ctx context.Context, f store.PreOrderFilter) ([]models.PreOrder, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid pre-order status: %s", f.Status)
	}
	return s.store.ListPreOrders(ctx, f)
}

// PreOrdersByCustomer lists a customer's pre-orders
func (s *PreOrderService) PreOrdersByCustomer(ctx context.Context, customerID int64) ([]models.PreOrder, error) {
	if _, err := s.store.GetCustomerByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.PreOrdersByCustomer(ctx, customerID)
}

// OverduePreOrders lists Waiting pre-orders whose expected date has passed
func (s *PreOrderService) OverduePreOrders(ctx context.Context) ([]models.PreOrder, error) {
	return s.store.OverduePreOrders(ctx, time.Now())
}

// Statistics aggregates pre-orders over an optional date range
func (s *PreOrderService) Statistics(ctx context.Context, from, to *time.Time) (*models.PreOrderStatistics, error) {
	return s.store.PreOrderStatistics(ctx, from, to)
}

// UpdatePreOrder applies a partial update. Delivered, cancelled, or
// converted pre-orders are read-only.
func (s *PreOrderService) UpdatePreOrder(ctx context.Context, id int64, req *UpdatePreOrderRequest) (*models.PreOrder, error) {
	po, err := s.store.GetPreOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMutable(po); err != nil {
		return nil, err
	}

	if req.Deposit != nil {
		if *req.Deposit < 0 {
			return nil, apperr.Validation("deposit must not be negative")
		}
		po.Deposit = *req.Deposit
	}
	if req.ExpectedDate != nil {
		po.ExpectedDate = req.ExpectedDate
	}
	if req.Notes != nil {
		po.Notes = *req.Notes
	}

	replaceItems := req.Items != nil
	if replaceItems {
		if len(req.Items) == 0 {
			return nil, apperr.Validation("pre-order must contain at least one item")
		}
		items := make([]models.PreOrderItem, 0, len(req.Items))
		var total int64
		for _, in := range req.Items {
			if in.Quantity < 1 {
				return nil, apperr.Validation("item quantity must be at least 1")
			}
			items = append(items, models.PreOrderItem{
				PreOrderID:     id,
				Name:           in.Name,
				TeamName:       in.TeamName,
				Category:       in.Category,
				Size:           in.Size,
				Quantity:       in.Quantity,
				EstimatedPrice: in.EstimatedPrice,
				Notes:          in.Notes,
			})
			total += in.EstimatedPrice * int64(in.Quantity)
		}
		po.Items = items
		po.TotalEstimatedAmount = total
	}

	if err := s.store.UpdatePreOrderTx(ctx, po, replaceItems); err != nil {
		return nil, err
	}
	return s.store.GetPreOrderByID(ctx, id)
}

// UpdateStatus transitions a pre-order through the waiting workflow
func (s *PreOrderService) UpdateStatus(ctx context.Context, id int64, status models.PreOrderStatus) (*models.PreOrder, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid pre-order status: %s", status)
	}

	po, err := s.store.GetPreOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.ConvertedToOrderID != nil {
		return nil, apperr.AlreadyConverted(id)
	}
	if po.Status == status {
		return po, nil
	}
	if !po.Status.CanTransitionTo(status) {
		return nil, apperr.InvalidState("pre-order %d cannot go from %s to %s", id, po.Status, status)
	}

	if err := s.store.UpdatePreOrderStatus(ctx, id, status); err != nil {
		return nil, err
	}

	s.logger.Info("pre-order status changed",
		zap.Int64("pre_order_id", id),
		zap.String("from", string(po.Status)),
		zap.String("to", string(status)))
	return s.store.GetPreOrderByID(ctx, id)
}

// DeletePreOrder cancels a pre-order. Delivered or converted pre-orders
// cannot be deleted.
func (s *PreOrderService) DeletePreOrder(ctx context.Context, id int64) error {
	po, err := s.store.GetPreOrderByID(ctx, id)
	if err != nil {
		return err
	}
	if po.ConvertedToOrderID != nil {
		return apperr.CannotDelete("pre-order %d was converted to order %d and cannot be deleted", id, *po.ConvertedToOrderID)
	}
	if po.Status == models.PreOrderStatusDelivered {
		return apperr.CannotDelete("pre-order %d is delivered and cannot be deleted", id)
	}
	if po.Status == models.PreOrderStatusCancelled {
		return nil
	}
	return s.store.UpdatePreOrderStatus(ctx, id, models.PreOrderStatusCancelled)
}

// ConvertToOrder turns an Available pre-order into a real order: the
// order insert, every stock reservation, and the pre-order's terminal
// update commit in one transaction. Exactly one conversion can ever
// succeed for a pre-order; a concurrent second attempt loses on the
// conditional update and the whole transaction rolls back.
func (s *PreOrderService) ConvertToOrder(ctx context.Context, preOrderID int64, req *ConvertRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "PreOrderService.ConvertToOrder")
	defer span.End()

	po, err := s.store.GetPreOrderByID(ctx, preOrderID)
	if err != nil {
		util.PreOrderConversionsFailed.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if po.ConvertedToOrderID != nil {
		util.PreOrderConversionsFailed.WithLabelValues("already_converted").Inc()
		return nil, apperr.AlreadyConverted(preOrderID)
	}
	if po.Status != models.PreOrderStatusAvailable {
		util.PreOrderConversionsFailed.WithLabelValues("invalid_state").Inc()
		return nil, apperr.InvalidState("pre-order %d must be %s to convert, current status is %s",
			preOrderID, models.PreOrderStatusAvailable, po.Status)
	}

	if len(req.Items) == 0 {
		return nil, apperr.Validation("conversion must map at least one item")
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

	items, totalAmount, err := s.orders.buildOrderItems(ctx, req.Items)
	if err != nil {
		util.PreOrderConversionsFailed.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	order := &models.Order{
		CustomerID:    po.CustomerID,
		Items:         items,
		TotalAmount:   totalAmount,
		Status:        models.OrderStatusCreated,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: req.PaymentStatus,
		Notes:         req.Notes,
	}

	adjustments, err := s.store.ConvertPreOrderTx(ctx, preOrderID, order)
	if err != nil {
		util.PreOrderConversionsFailed.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.PreOrdersConvertedTotal.Inc()
	s.logger.Info("pre-order converted",
		zap.Int64("pre_order_id", preOrderID),
		zap.Int64("order_id", order.ID),
		zap.Int64("total_amount", order.TotalAmount))

	s.ledger.RecordAdjustments(ctx, adjustments, "pre_order_converted")
	s.publishConverted(ctx, po, order)
	s.orders.publishOrderCreated(ctx, order)
	return order, nil
}

func (s *PreOrderService) ensureMutable(po *models.PreOrder) error {
	if po.ConvertedToOrderID != nil {
		return apperr.AlreadyConverted(po.ID)
	}
	if po.Status == models.PreOrderStatusDelivered || po.Status == models.PreOrderStatusCancelled {
		return apperr.InvalidState("pre-order %d is %s and can no longer be updated", po.ID, po.Status)
	}
	return nil
}

func (s *PreOrderService) publishConverted(ctx context.Context, po *models.PreOrder, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.PreOrderConvertedEvent{
		BaseEvent:   newBaseEvent(models.EventTypePreOrderConverted),
		PreOrderID:  po.ID,
		OrderID:     order.ID,
		CustomerID:  po.CustomerID,
		TotalAmount: order.TotalAmount,
	}
	if err := s.events.PublishPreOrderConverted(ctx, event); err != nil {
		s.logger.Warn("failed to publish PreOrderConverted event", zap.Error(err))
	}
}
