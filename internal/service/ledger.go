package service

import (
	"context"
	"time"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"
	"apparel-service/internal/store"
	"apparel-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerStore is the slice of the store the inventory ledger needs
type LedgerStore interface {
	CheckAvailability(ctx context.Context, productID int64, required int) error
	ReserveStock(ctx context.Context, productID int64, qty int) (int, error)
	ReleaseStock(ctx context.Context, productID int64, qty int) (int, error)
}

// InventoryLedger is the single funnel for quantity changes. Standalone
// reserve/release go through it directly; transactional workflows run
// the store primitives inside their own transaction and hand the
// committed adjustments to RecordAdjustments afterwards, so every
// quantity change ends up mirrored and published the same way.
type InventoryLedger struct {
	store     LedgerStore
	mirror    StockMirror
	events    EventPublisher
	threshold int
	logger    *zap.Logger
}

// NewInventoryLedger creates the ledger. mirror and events may be nil
// in tests.
func NewInventoryLedger(st LedgerStore, mirror StockMirror, events EventPublisher, lowStockThreshold int) *InventoryLedger {
	return &InventoryLedger{
		store:     st,
		mirror:    mirror,
		events:    events,
		threshold: lowStockThreshold,
		logger:    util.GetLogger(),
	}
}

// Check verifies availability without holding anything
func (l *InventoryLedger) Check(ctx context.Context, productID int64, qty int) error {
	return l.store.CheckAvailability(ctx, productID, qty)
}

// Reserve decrements a product's quantity through the conditional
// update and records the adjustment
func (l *InventoryLedger) Reserve(ctx context.Context, productID int64, qty int, reason string) (int, error) {
	start := time.Now()
	remaining, err := l.store.ReserveStock(ctx, productID, qty)
	util.StockReserveLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.StockReservationsFailed.WithLabelValues(failureReason(err)).Inc()
		return 0, err
	}

	util.StockReservationsTotal.Inc()
	l.RecordAdjustments(ctx, []store.StockAdjustment{
		{ProductID: productID, Delta: -qty, Remaining: remaining},
	}, reason)
	return remaining, nil
}

// Release increments a product's quantity and records the adjustment
func (l *InventoryLedger) Release(ctx context.Context, productID int64, qty int, reason string) (int, error) {
	remaining, err := l.store.ReleaseStock(ctx, productID, qty)
	if err != nil {
		return 0, err
	}

	l.RecordAdjustments(ctx, []store.StockAdjustment{
		{ProductID: productID, Delta: qty, Remaining: remaining},
	}, reason)
	return remaining, nil
}

// RecordAdjustments mirrors committed quantity changes into Redis and
// publishes a StockAdjusted event per product. Both are best-effort:
// the database already committed, so failures here are only logged.
func (l *InventoryLedger) RecordAdjustments(ctx context.Context, adjustments []store.StockAdjustment, reason string) {
	for _, adj := range adjustments {
		if l.mirror != nil {
			if _, err := l.mirror.MirrorStock(ctx, adj.ProductID, adj.Remaining, l.threshold); err != nil {
				l.logger.Warn("failed to mirror stock",
					zap.Int64("product_id", adj.ProductID), zap.Error(err))
			}
		}

		if l.events != nil {
			event := &models.StockAdjustedEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypeStockAdjusted,
					Timestamp: time.Now(),
				},
				ProductID: adj.ProductID,
				Delta:     adj.Delta,
				Remaining: adj.Remaining,
				Reason:    reason,
			}
			if err := l.events.PublishStockAdjusted(ctx, event); err != nil {
				l.logger.Warn("failed to publish StockAdjusted event",
					zap.Int64("product_id", adj.ProductID), zap.Error(err))
			}
		}
	}
}

// failureReason maps a reservation error to a metrics label
func failureReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindInsufficientStock:
		return "insufficient_stock"
	case apperr.KindNotFound:
		return "product_not_found"
	case apperr.KindInactive:
		return "product_inactive"
	default:
		return "db_error"
	}
}
