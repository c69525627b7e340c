package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apparel-service/internal/models"
)

type fakeMarker struct {
	mu      sync.Mutex
	marked  map[int64]bool
	fail    bool
	calls   int
	lastTTL time.Duration
}

func newFakeMarker() *fakeMarker {
	return &fakeMarker{marked: map[int64]bool{}}
}

func (f *fakeMarker) MarkLowStockAlerted(ctx context.Context, productID int64, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastTTL = ttl
	if f.fail {
		return false, errors.New("redis down")
	}
	if f.marked[productID] {
		return false, nil
	}
	f.marked[productID] = true
	return true, nil
}

func stockAdjusted(productID int64, remaining int) *models.StockAdjustedEvent {
	return &models.StockAdjustedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeStockAdjusted,
			Timestamp: time.Now(),
		},
		ProductID: productID,
		Delta:     -1,
		Remaining: remaining,
		Reason:    "order_created",
	}
}

func TestHandleStockAdjustedAboveThreshold(t *testing.T) {
	marker := newFakeMarker()
	w := NewLowStockWorker(nil, marker, 3)

	err := w.handleStockAdjusted(context.Background(), stockAdjusted(1, 10))
	require.NoError(t, err)
	assert.Zero(t, marker.calls)
}

func TestHandleStockAdjustedAlertsOnce(t *testing.T) {
	marker := newFakeMarker()
	w := NewLowStockWorker(nil, marker, 3)

	require.NoError(t, w.handleStockAdjusted(context.Background(), stockAdjusted(7, 2)))
	require.NoError(t, w.handleStockAdjusted(context.Background(), stockAdjusted(7, 1)))

	// both events qualified but the second was deduped
	assert.Equal(t, 2, marker.calls)
	assert.Equal(t, alertCooldown, marker.lastTTL)
	assert.True(t, marker.marked[7])
}

func TestHandleStockAdjustedAtThreshold(t *testing.T) {
	marker := newFakeMarker()
	w := NewLowStockWorker(nil, marker, 3)

	require.NoError(t, w.handleStockAdjusted(context.Background(), stockAdjusted(9, 3)))
	assert.Equal(t, 1, marker.calls)
}

func TestHandleStockAdjustedMarkerFailureStillAlerts(t *testing.T) {
	marker := newFakeMarker()
	marker.fail = true
	w := NewLowStockWorker(nil, marker, 3)

	// a broken dedup store must not swallow the alert
	err := w.handleStockAdjusted(context.Background(), stockAdjusted(5, 0))
	assert.NoError(t, err)
}

func TestHandleStockAdjustedNilMarker(t *testing.T) {
	w := NewLowStockWorker(nil, nil, 3)
	assert.NoError(t, w.handleStockAdjusted(context.Background(), stockAdjusted(2, 1)))
}

func TestWorkerRoutesStockAdjustedMessages(t *testing.T) {
	marker := newFakeMarker()
	w := NewLowStockWorker(nil, marker, 3)

	payload, err := json.Marshal(stockAdjusted(11, 1))
	require.NoError(t, err)

	err = w.eventHandler.HandleMessage(context.Background(), kafka.Message{Value: payload})
	require.NoError(t, err)
	assert.True(t, marker.marked[11])
}
