package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"storage-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stockWheat delivers kg of wheat into a fresh facility.
func stockWheat(t *testing.T, env *testEnv, kg float64) *models.StorageFacility {
	t.Helper()
	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, kg)
	request := env.submitted(t, farmer, facility, allocation, kg)
	driveToInTransit(t, env, request.ID)
	_, err := env.requests.MarkDelivered(context.Background(), request.ID)
	require.NoError(t, err)
	return facility
}

func TestMarketplace_ListProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	products, err := env.marketplace.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	facility := stockWheat(t, env, 30000)

	products, err = env.marketplace.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "wheat", products[0].CropType)
	assert.Equal(t, 20.0, products[0].MSP)
	assert.Equal(t, 30000.0, products[0].TotalQuantity)
	assert.Equal(t, 30000.0, products[0].AvailableQuantity)
	require.Len(t, products[0].Facilities, 1)
	assert.Equal(t, facility.ID, products[0].Facilities[0].FacilityID)
}

func TestMarketplace_PlaceOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stockWheat(t, env, 30000)

	order, err := env.marketplace.PlaceOrder(ctx, "buyer-1", models.PlaceOrderRequest{CropType: "Wheat", Quantity: 10000})
	require.NoError(t, err)
	assert.Equal(t, "wheat", order.CropType)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.InDelta(t, 200000, order.BasePrice, 1e-6)
	assert.InDelta(t, 10000, order.TransportCharge, 1e-6)
	assert.InDelta(t, 37800, order.GST, 1e-6)
	assert.InDelta(t, 247800, order.TotalPrice, 1e-6)

	_, err = env.marketplace.PlaceOrder(ctx, "buyer-2", models.PlaceOrderRequest{CropType: "wheat", Quantity: 25000})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	_, err = env.marketplace.PlaceOrder(ctx, "buyer-2", models.PlaceOrderRequest{CropType: "rice", Quantity: 1})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	_, err = env.marketplace.PlaceOrder(ctx, "buyer-2", models.PlaceOrderRequest{CropType: "wheat", Quantity: 0})
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	products, err := env.marketplace.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, products[0].OrderedQuantity)
	assert.Equal(t, 20000.0, products[0].AvailableQuantity)

	orders, err := env.marketplace.ListOrders(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestMarketplace_ConcurrentOrdersDoNotOversell(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stockWheat(t, env, 20000)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.marketplace.PlaceOrder(ctx, fmt.Sprintf("buyer-%d", i),
				models.PlaceOrderRequest{CropType: "wheat", Quantity: 10000})
		}(i)
	}
	wg.Wait()

	placed := 0
	for _, err := range errs {
		if err == nil {
			placed++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInsufficientStock)
	}
	assert.Equal(t, 2, placed)
}

func TestMarketplace_CompleteOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stockWheat(t, env, 5000)

	order, err := env.marketplace.PlaceOrder(ctx, "buyer-1", models.PlaceOrderRequest{CropType: "wheat", Quantity: 5000})
	require.NoError(t, err)

	completed, err := env.marketplace.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, completed.Status)

	again, err := env.marketplace.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, again.Status)

	_, err = env.marketplace.CompleteOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMarketplace_CancelOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stockWheat(t, env, 5000)

	order, err := env.marketplace.PlaceOrder(ctx, "buyer-1", models.PlaceOrderRequest{CropType: "wheat", Quantity: 5000})
	require.NoError(t, err)
	_, err = env.marketplace.PlaceOrder(ctx, "buyer-2", models.PlaceOrderRequest{CropType: "wheat", Quantity: 1})
	assert.ErrorIs(t, err, models.ErrInsufficientStock, "everything is ordered")

	_, err = env.marketplace.CancelOrder(ctx, "buyer-2", order.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	cancelled, err := env.marketplace.CancelOrder(ctx, "buyer-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)

	again, err := env.marketplace.CancelOrder(ctx, "buyer-1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, again.Status)

	_, err = env.marketplace.CompleteOrder(ctx, order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	products, err := env.marketplace.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 5000.0, products[0].AvailableQuantity, "cancelled kg is back on sale")

	_, err = env.marketplace.PlaceOrder(ctx, "buyer-2", models.PlaceOrderRequest{CropType: "wheat", Quantity: 5000})
	assert.NoError(t, err)
}

func TestMarketplace_CancelCompletedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stockWheat(t, env, 5000)

	order, err := env.marketplace.PlaceOrder(ctx, "buyer-1", models.PlaceOrderRequest{CropType: "wheat", Quantity: 1000})
	require.NoError(t, err)
	_, err = env.marketplace.CompleteOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = env.marketplace.CancelOrder(ctx, "buyer-1", order.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = env.marketplace.CancelOrder(ctx, "buyer-1", uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}
