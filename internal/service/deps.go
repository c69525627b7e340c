package service

import (
	"context"

	"apparel-service/internal/models"
)

// EventPublisher is the slice of the broker publisher the services use.
// Publishing is best-effort: failures are logged, never propagated.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderUpdated(ctx context.Context, event *models.OrderUpdatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishPreOrderConverted(ctx context.Context, event *models.PreOrderConvertedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
}

// IdempotencyStore claims and resolves idempotency keys for order
// creation. Satisfied by redisclient.Client.
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key, value string) (claimed bool, existing string, err error)
	StoreIdempotencyResult(ctx context.Context, key, value string) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// StockMirror keeps the best-effort Redis copy of product quantities.
// Satisfied by redisclient.Client.
type StockMirror interface {
	MirrorStock(ctx context.Context, productID int64, remaining, threshold int) (low bool, err error)
}
