package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apparel-service/internal/apperr"
	"apparel-service/internal/models"
)

func newPreOrderHarness() (*fakeStore, *fakePublisher, *PreOrderService) {
	st := newFakeStore()
	pub := &fakePublisher{}
	ledger := NewInventoryLedger(st, nil, pub, 3)
	orders := NewOrderService(st, ledger, newFakeIdempotency(), pub)
	return st, pub, NewPreOrderService(st, orders, ledger, pub)
}

func seedAvailablePreOrder(t *testing.T, st *fakeStore, svc *PreOrderService, customerID int64) *models.PreOrder {
	t.Helper()
	po, err := svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID: customerID,
		Items: []PreOrderItemInput{
			{Name: "Napoli Home 24/25", TeamName: "Napoli", Size: "L", Quantity: 1, EstimatedPrice: 275000},
		},
	})
	require.NoError(t, err)
	po, err = svc.UpdateStatus(context.Background(), po.ID, models.PreOrderStatusAvailable)
	require.NoError(t, err)
	return po
}

func TestCreatePreOrder(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Andi", "0811111111")

	po, err := svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID: customer.ID,
		Items: []PreOrderItemInput{
			{Name: "Napoli Home", TeamName: "Napoli", Size: "L", Quantity: 2, EstimatedPrice: 275000},
			{Name: "Napoli Away", TeamName: "Napoli", Size: "M", Quantity: 1, EstimatedPrice: 250000},
		},
		Deposit: 100000,
	})

	require.NoError(t, err)
	assert.Equal(t, models.PreOrderStatusWaiting, po.Status)
	assert.Equal(t, "PRE000001", po.Code)
	assert.Equal(t, int64(800000), po.TotalEstimatedAmount)
	assert.Len(t, po.Items, 2)
}

func TestCreatePreOrderNegativeDeposit(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Budi", "0822222222")

	_, err := svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID: customer.ID,
		Items:      []PreOrderItemInput{{Name: "X", TeamName: "X", Size: "M", Quantity: 1}},
		Deposit:    -1,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestConvertPreOrder(t *testing.T) {
	st, pub, svc := newPreOrderHarness()
	customer := st.seedCustomer("Citra", "0833333333")
	product := st.seedProduct("Napoli Home 24/25", 5, 275000)
	po := seedAvailablePreOrder(t, st, svc, customer.ID)

	order, err := svc.ConvertToOrder(context.Background(), po.ID, &ConvertRequest{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, customer.ID, order.CustomerID)
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.Equal(t, int64(275000), order.TotalAmount)
	assert.Equal(t, 4, st.quantity(product.ID))

	converted, err := svc.GetPreOrder(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PreOrderStatusDelivered, converted.Status)
	require.NotNil(t, converted.ConvertedToOrderID)
	assert.Equal(t, order.ID, *converted.ConvertedToOrderID)

	adjusted := pub.stockAdjusted()
	require.Len(t, adjusted, 1)
	assert.Equal(t, "pre_order_converted", adjusted[0].Reason)
}

func TestConvertPreOrderExactlyOnce(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Dewi", "0844444444")
	product := st.seedProduct("Napoli Home 24/25", 5, 275000)
	po := seedAvailablePreOrder(t, st, svc, customer.ID)

	req := &ConvertRequest{Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}}}
	_, err := svc.ConvertToOrder(context.Background(), po.ID, req)
	require.NoError(t, err)

	_, err = svc.ConvertToOrder(context.Background(), po.ID, req)
	assert.True(t, apperr.IsKind(err, apperr.KindAlreadyConverted))

	// the losing attempt reserved nothing
	assert.Equal(t, 4, st.quantity(product.ID))
}

func TestConvertPreOrderRequiresAvailable(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Eka", "0855555555")
	product := st.seedProduct("Napoli Home", 5, 275000)

	po, err := svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID: customer.ID,
		Items:      []PreOrderItemInput{{Name: "X", TeamName: "X", Size: "M", Quantity: 1}},
	})
	require.NoError(t, err)

	// still Waiting
	_, err = svc.ConvertToOrder(context.Background(), po.ID, &ConvertRequest{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestConvertPreOrderInsufficientStockLeavesPreOrderIntact(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Fajar", "0866666666")
	product := st.seedProduct("Napoli Home", 1, 275000)
	po := seedAvailablePreOrder(t, st, svc, customer.ID)

	_, err := svc.ConvertToOrder(context.Background(), po.ID, &ConvertRequest{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 3}},
	})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInsufficientStock))

	unchanged, err := svc.GetPreOrder(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PreOrderStatusAvailable, unchanged.Status)
	assert.Nil(t, unchanged.ConvertedToOrderID)
	assert.Equal(t, 1, st.quantity(product.ID))
}

func TestUpdatePreOrderStatusIllegalTransition(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Gita", "0877777777")

	po, err := svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID: customer.ID,
		Items:      []PreOrderItemInput{{Name: "X", TeamName: "X", Size: "M", Quantity: 1}},
	})
	require.NoError(t, err)

	// Waiting cannot jump straight to Delivered; that only happens via conversion
	_, err = svc.UpdateStatus(context.Background(), po.ID, models.PreOrderStatusDelivered)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestUpdateConvertedPreOrderRejected(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Hadi", "0888888888")
	product := st.seedProduct("Napoli Home 24/25", 5, 275000)
	po := seedAvailablePreOrder(t, st, svc, customer.ID)

	_, err := svc.ConvertToOrder(context.Background(), po.ID, &ConvertRequest{
		Items: []OrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	notes := "change of plans"
	_, err = svc.UpdatePreOrder(context.Background(), po.ID, &UpdatePreOrderRequest{Notes: &notes})
	assert.True(t, apperr.IsKind(err, apperr.KindAlreadyConverted))

	_, err = svc.UpdateStatus(context.Background(), po.ID, models.PreOrderStatusCancelled)
	assert.True(t, apperr.IsKind(err, apperr.KindAlreadyConverted))

	err = svc.DeletePreOrder(context.Background(), po.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindCannotDelete))
}

func TestUpdatePreOrderReplacesItems(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Indra", "0899999999")

	po, err := svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID: customer.ID,
		Items:      []PreOrderItemInput{{Name: "Old", TeamName: "X", Size: "M", Quantity: 1, EstimatedPrice: 100000}},
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePreOrder(context.Background(), po.ID, &UpdatePreOrderRequest{
		Items: []PreOrderItemInput{
			{Name: "New", TeamName: "Y", Size: "L", Quantity: 2, EstimatedPrice: 150000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(300000), updated.TotalEstimatedAmount)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "New", updated.Items[0].Name)
}

func TestDeletePreOrderCancels(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Joko", "0810101010")

	po, err := svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID: customer.ID,
		Items:      []PreOrderItemInput{{Name: "X", TeamName: "X", Size: "M", Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePreOrder(context.Background(), po.ID))
	cancelled, err := svc.GetPreOrder(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PreOrderStatusCancelled, cancelled.Status)

	// deleting a cancelled pre-order is a no-op
	assert.NoError(t, svc.DeletePreOrder(context.Background(), po.ID))
}

func TestOverduePreOrders(t *testing.T) {
	st, _, svc := newPreOrderHarness()
	customer := st.seedCustomer("Kiki", "0811212121")

	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)

	overdue, err := svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID:   customer.ID,
		Items:        []PreOrderItemInput{{Name: "Late", TeamName: "X", Size: "M", Quantity: 1}},
		ExpectedDate: &past,
	})
	require.NoError(t, err)
	_, err = svc.CreatePreOrder(context.Background(), &CreatePreOrderRequest{
		CustomerID:   customer.ID,
		Items:        []PreOrderItemInput{{Name: "OnTime", TeamName: "X", Size: "M", Quantity: 1}},
		ExpectedDate: &future,
	})
	require.NoError(t, err)

	got, err := svc.OverduePreOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)
}
