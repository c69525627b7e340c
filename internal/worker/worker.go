package worker

import (
	"context"
	"time"

	"apparel-service/internal/broker"
	"apparel-service/internal/models"
	"apparel-service/internal/util"

	"go.uber.org/zap"
)

// alertCooldown suppresses repeat alerts for the same product
const alertCooldown = 6 * time.Hour

// AlertMarker dedupes low-stock alerts across restarts and replayed
// events. Satisfied by redisclient.Client.
type AlertMarker interface {
	MarkLowStockAlerted(ctx context.Context, productID int64, ttl time.Duration) (bool, error)
}

// LowStockWorker consumes StockAdjusted events and raises an alert the
// first time a product drops to or below the threshold. Releases above
// the threshold clear nothing; the cooldown expiring re-arms the alert.
type LowStockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	marker       AlertMarker
	threshold    int
	logger       *zap.Logger
}

// NewLowStockWorker creates a new low-stock worker. marker may be nil;
// dedup is then skipped and every qualifying event alerts.
func NewLowStockWorker(consumer *broker.Consumer, marker AlertMarker, threshold int) *LowStockWorker {
	w := &LowStockWorker{
		consumer:  consumer,
		marker:    marker,
		threshold: threshold,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnStockAdjusted(w.handleStockAdjusted)
	w.eventHandler = eventHandler
	return w
}

// Start starts the worker
func (w *LowStockWorker) Start(ctx context.Context) error {
	w.logger.Info("starting low-stock worker", zap.Int("threshold", w.threshold))
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *LowStockWorker) Stop() error {
	w.logger.Info("stopping low-stock worker")
	return w.consumer.Close()
}

func (w *LowStockWorker) handleStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	if event.Remaining > w.threshold {
		return nil
	}

	if w.marker != nil {
		fresh, err := w.marker.MarkLowStockAlerted(ctx, event.ProductID, alertCooldown)
		if err != nil {
			w.logger.Warn("failed to mark low-stock alert, alerting anyway",
				zap.Int64("product_id", event.ProductID), zap.Error(err))
		} else if !fresh {
			return nil
		}
	}

	util.LowStockAlertsTotal.Inc()
	w.logger.Warn("product low on stock",
		zap.Int64("product_id", event.ProductID),
		zap.Int("remaining", event.Remaining),
		zap.Int("threshold", w.threshold),
		zap.String("reason", event.Reason))
	return nil
}
