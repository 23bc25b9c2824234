package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"storage-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// END TO END
// ============================================================================

func TestStorageRequestLifecycle_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 50000)
	assert.Equal(t, "wheat", request.CropType)

	approved, err := env.requests.Approve(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, approved.Status)
	assert.Equal(t, models.PaymentPending, *approved.PaymentStatus)
	// the farmer declared 400000 a year, so the payment is taxed from there
	assert.Equal(t, 1000000.0, *approved.PaymentAmount)
	assert.InDelta(t, 142500.0, *approved.TaxAmount, 1e-6)
	assert.InDelta(t, 857500.0, *approved.NetAmount, 1e-6)
	assert.Nil(t, approved.LogisticsStatus)
	assert.Equal(t, 50.0, env.availableSpace(t, facility))

	paid, err := env.requests.ProcessPayment(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, *paid.PaymentStatus)
	assert.True(t, strings.HasPrefix(*paid.PaymentReference, "PAY-"))
	assert.NotNil(t, paid.PaymentDate)
	assert.Equal(t, models.LogisticsPending, *paid.LogisticsStatus)
	assert.Equal(t, 1000000.0, *paid.PaymentAmount, "amount fixed at approval is not recomputed")
	assert.Len(t, env.receipts.objects, 1)

	requested, err := env.requests.RequestLogistics(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogisticsRequested, *requested.LogisticsStatus)

	carrier := env.provider(t, "Ludhiana", 4.5)
	inTransit, err := env.requests.AcceptOrder(ctx, request.ID, carrier.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogisticsInTransit, *inTransit.LogisticsStatus)
	assert.Equal(t, carrier.ID.String(), *inTransit.LogisticsProviderID)

	delivered, err := env.requests.MarkDelivered(ctx, request.ID)
	require.NoError(t, err)
	assert.Empty(t, delivered.Warning)
	assert.Equal(t, models.LogisticsDelivered, *delivered.Request.LogisticsStatus)
	require.NotNil(t, delivered.ReconciledBatchID)
	assert.Equal(t, allocation.ID, *delivered.ReconciledBatchID)
	assert.Equal(t, 30000.0, *delivered.RemainingHarvestKg)

	batch, err := env.allocations.Get(ctx, allocation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AllocationHarvested, batch.Status)
	assert.Equal(t, 30000.0, *batch.HarvestQuantity)

	inventory, err := env.facilities.Inventory(ctx, facility.ID)
	require.NoError(t, err)
	require.Len(t, inventory.Items, 1)
	assert.Equal(t, 50.0, inventory.CurrentStock)
	assert.Equal(t, 50.0, inventory.Facility.AvailableSpace)

	audit, err := env.facilities.AuditSpace(ctx, facility.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent())
	assert.Equal(t, 50.0, audit.DeliveredTons)

	assert.Contains(t, env.notifier.titles(), "Crop delivered")
}

func TestMarkDelivered_ExhaustedBatchBecomesStored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "rice", 2, 50000)
	request := env.submitted(t, farmer, facility, allocation, 50000)

	driveToInTransit(t, env, request.ID)
	result, err := env.requests.MarkDelivered(ctx, request.ID)
	require.NoError(t, err)
	assert.Empty(t, result.Warning)
	assert.Equal(t, 0.0, *result.RemainingHarvestKg)

	batch, err := env.allocations.Get(ctx, allocation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AllocationStored, batch.Status)
}

func TestMarkDelivered_WithoutAllocationWarns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	request := &models.StorageRequest{
		FarmerID: farmer.ID, StorageFacilityID: facility.ID,
		CropType: "cotton", Quantity: 1000, Status: models.RequestPending,
	}
	require.NoError(t, env.requestRepo.Create(ctx, request))

	driveToInTransit(t, env, request.ID)
	result, err := env.requests.MarkDelivered(ctx, request.ID)
	require.NoError(t, err, "a ledger gap does not block delivery")
	assert.NotEmpty(t, result.Warning)
	assert.Nil(t, result.ReconciledBatchID)
	assert.Equal(t, models.LogisticsDelivered, *result.Request.LogisticsStatus)
	assert.Contains(t, env.notifier.titles(), "Harvest ledger mismatch")

	inventory, err := env.facilities.Inventory(ctx, facility.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, inventory.CurrentStock)
}

func TestMarkDelivered_FallsBackToLatestHarvestedBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	first := env.harvested(t, farmer, "wheat", 2, 1000)
	second := env.harvested(t, farmer, "wheat", 2, 5000)

	a := env.submitted(t, farmer, facility, first, 1000)
	driveToInTransit(t, env, a.ID)
	_, err := env.requests.MarkDelivered(ctx, a.ID)
	require.NoError(t, err)

	// a row still pointing at the batch that is now stored
	b := &models.StorageRequest{
		FarmerID: farmer.ID, StorageFacilityID: facility.ID, CropAllocationID: &first.ID,
		CropType: "wheat", Quantity: 1000, Status: models.RequestPending,
	}
	require.NoError(t, env.requestRepo.Create(ctx, b))
	driveToInTransit(t, env, b.ID)

	result, err := env.requests.MarkDelivered(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, result.ReconciledBatchID)
	assert.Equal(t, second.ID, *result.ReconciledBatchID)
	assert.Equal(t, 4000.0, *result.RemainingHarvestKg)
}

func driveToInTransit(t *testing.T, env *testEnv, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := env.requests.Approve(ctx, id)
	require.NoError(t, err)
	_, err = env.requests.ProcessPayment(ctx, id)
	require.NoError(t, err)
	_, err = env.requests.RequestLogistics(ctx, id)
	require.NoError(t, err)
	_, err = env.requests.AcceptOrder(ctx, id, env.provider(t, "Ludhiana", 4).ID)
	require.NoError(t, err)
}

// ============================================================================
// APPROVAL & SPACE
// ============================================================================

func TestApprove_InsufficientCapacityChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 200000)

	first := env.submitted(t, farmer, facility, allocation, 70000)
	second := env.submitted(t, farmer, facility, allocation, 40000)

	_, err := env.requests.Approve(ctx, first.ID)
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, second.ID)
	assert.ErrorIs(t, err, models.ErrInsufficientCapacity)

	unchanged, err := env.requests.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, unchanged.Status)
	assert.Nil(t, unchanged.PaymentStatus)
	assert.Nil(t, unchanged.PaymentAmount)
	assert.Equal(t, 30.0, env.availableSpace(t, facility))
}

func TestApprove_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 50000)

	first, err := env.requests.Approve(ctx, request.ID)
	require.NoError(t, err)
	second, err := env.requests.Approve(ctx, request.ID)
	require.NoError(t, err)

	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
	assert.Equal(t, 50.0, env.availableSpace(t, facility), "space is decremented exactly once")
}

func TestApprove_InactiveFacility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 10000)

	_, err := env.facilities.SetStatus(ctx, facility.ID, models.FacilityInactive)
	require.NoError(t, err)

	_, err = env.requests.Approve(ctx, request.ID)
	assert.ErrorIs(t, err, models.ErrFacilityInactive)
	assert.Equal(t, 100.0, env.availableSpace(t, facility))
}

func TestApprove_ConcurrentOverCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 200000)
	a := env.submitted(t, farmer, facility, allocation, 60000)
	b := env.submitted(t, farmer, facility, allocation, 60000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.requests.Approve(ctx, id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInsufficientCapacity)
	}
	assert.Equal(t, 1, succeeded, "exactly one 60 t approval fits in 100 t")
	assert.Equal(t, 40.0, env.availableSpace(t, facility))
}

func TestApprove_ConcurrentSameRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 20000)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.requests.Approve(ctx, request.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 80.0, env.availableSpace(t, facility))
}

// ============================================================================
// TRANSITION GUARDS
// ============================================================================

func TestTransitions_OutOfOrderRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 10000)

	_, err := env.requests.ProcessPayment(ctx, request.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = env.requests.RequestLogistics(ctx, request.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = env.requests.AcceptOrder(ctx, request.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = env.requests.MarkDelivered(ctx, request.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = env.requests.Approve(ctx, request.ID)
	require.NoError(t, err)
	_, err = env.requests.Reject(ctx, request.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "approved requests cannot be rejected")

	paid, err := env.requests.ProcessPayment(ctx, request.ID)
	require.NoError(t, err)
	again, err := env.requests.ProcessPayment(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, *paid.PaymentReference, *again.PaymentReference, "paying twice keeps the first reference")
	assert.Len(t, env.receipts.objects, 1)

	_, err = env.requests.Approve(ctx, request.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 10000)

	rejected, err := env.requests.Reject(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)
	assert.Nil(t, rejected.PaymentStatus)
	assert.Nil(t, rejected.PaymentAmount)

	_, err = env.requests.Reject(ctx, request.ID)
	assert.NoError(t, err)
	_, err = env.requests.Approve(ctx, request.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 100.0, env.availableSpace(t, facility))
}

func TestGet_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.requests.Approve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

// ============================================================================
// SUBMIT
// ============================================================================

func TestSubmit_Preconditions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 10)
	farmer := env.farmer(t, 10)
	other := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)

	submit := func(farmerID uuid.UUID, allocationID uuid.UUID, kg float64) error {
		_, err := env.requests.Submit(ctx, models.SubmitStorageRequestRequest{
			FarmerID: farmerID, StorageFacilityID: facility.ID, CropAllocationID: allocationID, Quantity: kg,
		})
		return err
	}

	assert.ErrorIs(t, submit(farmer.ID, allocation.ID, 0), models.ErrInvalidQuantity)
	assert.ErrorIs(t, submit(farmer.ID, allocation.ID, 90000), models.ErrInvalidQuantity, "more than harvested")
	assert.ErrorIs(t, submit(other.ID, allocation.ID, 1000), models.ErrForbidden)
	assert.ErrorIs(t, submit(farmer.ID, allocation.ID, 20000), models.ErrInsufficientCapacity, "20 t into 10 t")
	assert.ErrorIs(t, submit(farmer.ID, uuid.New(), 1000), models.ErrNotFound)

	unharvested, err := env.allocations.Allocate(ctx, models.AllocateCropRequest{FarmerID: farmer.ID, CropName: "rice", Acres: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, submit(farmer.ID, unharvested.ID, 1000), models.ErrInvalidTransition)

	assert.NoError(t, submit(farmer.ID, allocation.ID, 5000))
}

func TestSubmit_CountsOpenRequestsOnBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 2, 1000)

	submit := func(kg float64) (*models.StorageRequest, error) {
		return env.requests.Submit(ctx, models.SubmitStorageRequestRequest{
			FarmerID: farmer.ID, StorageFacilityID: facility.ID, CropAllocationID: allocation.ID, Quantity: kg,
		})
	}

	first, err := submit(1000)
	require.NoError(t, err)
	_, err = submit(1000)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity, "the whole batch is already claimed")

	_, err = env.requests.Reject(ctx, first.ID)
	require.NoError(t, err)
	partial, err := submit(400)
	require.NoError(t, err, "rejected requests release their claim")

	driveToInTransit(t, env, partial.ID)
	_, err = env.requests.MarkDelivered(ctx, partial.ID)
	require.NoError(t, err)

	_, err = submit(601)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	_, err = submit(600)
	assert.NoError(t, err, "delivered kg has left the batch and no longer counts as claimed")
}

func TestSubmit_ConcurrentClaimsOnOneBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 2, 1000)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.requests.Submit(ctx, models.SubmitStorageRequestRequest{
				FarmerID: farmer.ID, StorageFacilityID: facility.ID, CropAllocationID: allocation.ID, Quantity: 500,
			})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, models.ErrInvalidQuantity)
	}
	assert.Equal(t, 2, accepted, "two 500 kg requests exhaust a 1000 kg batch")
}

func TestApprove_FillsFacilityExactly(t *testing.T) {
	cases := []struct {
		name     string
		capacity float64
		kg       float64
		count    int
	}{
		{"three 100 kg into 0.3 t", 0.3, 100, 3},
		{"ten 100 kg into 1 t", 1, 100, 10},
		{"seven 30 kg into 0.21 t", 0.21, 30, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			facility := env.facility(t, tc.capacity)
			farmer := env.farmer(t, 10)
			allocation := env.harvested(t, farmer, "wheat", 2, tc.kg*float64(tc.count+1))

			requests := make([]*models.StorageRequest, 0, tc.count+1)
			for i := 0; i <= tc.count; i++ {
				requests = append(requests, env.submitted(t, farmer, facility, allocation, tc.kg))
			}
			for _, request := range requests[:tc.count] {
				_, err := env.requests.Approve(ctx, request.ID)
				require.NoError(t, err)
			}
			assert.Zero(t, env.availableSpace(t, facility))

			_, err := env.requests.Approve(ctx, requests[tc.count].ID)
			assert.ErrorIs(t, err, models.ErrInsufficientCapacity)

			audit, err := env.facilities.AuditSpace(ctx, facility.ID)
			require.NoError(t, err)
			assert.True(t, audit.Consistent(), "drift %.12f", audit.Drift)
		})
	}
}

func TestApprove_TaxUsesAnnualIncome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	small := env.farmer(t, 10)
	income := 900000.0
	large, err := env.farmers.Update(ctx, env.farmer(t, 10).ID, models.UpdateFarmerRequest{AnnualIncome: &income})
	require.NoError(t, err)

	// 5000 kg of wheat is 100000 either way
	smallBatch := env.harvested(t, small, "wheat", 1, 5000)
	largeBatch := env.harvested(t, large, "wheat", 1, 5000)

	approved, err := env.requests.Approve(ctx, env.submitted(t, small, facility, smallBatch, 5000).ID)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, *approved.PaymentAmount)
	assert.Zero(t, *approved.TaxAmount, "400000 + 100000 stays within the exemption")

	approved, err = env.requests.Approve(ctx, env.submitted(t, large, facility, largeBatch, 5000).ID)
	require.NoError(t, err)
	assert.InDelta(t, 20000.0, *approved.TaxAmount, 1e-6, "the whole payment falls in the 20% slice")
	assert.InDelta(t, 80000.0, *approved.NetAmount, 1e-6)
}

func TestAcceptOrder_RequiresRegisteredProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 10000)

	_, err := env.requests.Approve(ctx, request.ID)
	require.NoError(t, err)
	_, err = env.requests.ProcessPayment(ctx, request.ID)
	require.NoError(t, err)
	_, err = env.requests.RequestLogistics(ctx, request.ID)
	require.NoError(t, err)

	_, err = env.requests.AcceptOrder(ctx, request.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	unchanged, err := env.requests.Get(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogisticsRequested, *unchanged.LogisticsStatus)
	assert.Nil(t, unchanged.LogisticsProviderID)

	carrier := env.provider(t, "Ludhiana", 3)
	accepted, err := env.requests.AcceptOrder(ctx, request.ID, carrier.ID)
	require.NoError(t, err)
	assert.Equal(t, carrier.ID.String(), *accepted.LogisticsProviderID)
}

func TestGetForFarmer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	other := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 10000)

	own, err := env.requests.GetForFarmer(ctx, request.ID, farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, own.ID)

	_, err = env.requests.GetForFarmer(ctx, request.ID, other.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.allocations.GetForFarmer(ctx, allocation.ID, other.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = env.allocations.GetForFarmer(ctx, allocation.ID, farmer.ID)
	assert.NoError(t, err)
}
