package services

import (
	"context"
	"testing"

	"storage-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacilityService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	assert.Equal(t, 100.0, facility.AvailableSpace)
	assert.Equal(t, models.FacilityActive, facility.Status)
	assert.Equal(t, "admin-1", facility.CreatedBy)

	_, err := env.facilities.Create(ctx, "admin-1", models.CreateFacilityRequest{Name: "x", State: "y", District: "z"})
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
}

func TestFacilityService_ClearInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	delivered := env.submitted(t, farmer, facility, allocation, 30000)
	reservedOnly := env.submitted(t, farmer, facility, allocation, 20000)

	driveToInTransit(t, env, delivered.ID)
	_, err := env.requests.MarkDelivered(ctx, delivered.ID)
	require.NoError(t, err)
	_, err = env.requests.Approve(ctx, reservedOnly.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, env.availableSpace(t, facility))

	cleared, err := env.facilities.ClearInventory(ctx, facility.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, cleared.AvailableSpace)

	inventory, err := env.facilities.Inventory(ctx, facility.ID)
	require.NoError(t, err)
	assert.Empty(t, inventory.Items)
	assert.Zero(t, inventory.CurrentStock)

	audit, err := env.facilities.AuditSpace(ctx, facility.ID)
	require.NoError(t, err)
	assert.True(t, audit.Consistent(), "cleared requests stop counting against space")

	again, err := env.requests.Get(ctx, delivered.ID)
	require.NoError(t, err)
	assert.True(t, again.InventoryCleared)

	_, err = env.facilities.ClearInventory(ctx, facility.ID)
	assert.NoError(t, err)
}

func TestFacilityService_AuditDetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 100)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)
	request := env.submitted(t, farmer, facility, allocation, 10000)
	_, err := env.requests.Approve(ctx, request.ID)
	require.NoError(t, err)

	tx, err := env.facilityRepo.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, env.facilityRepo.ResetSpaceTx(ctx, tx, facility.ID))
	require.NoError(t, tx.Commit())

	audits, err := env.facilities.AuditAll(ctx)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.False(t, audits[0].Consistent())
	assert.Equal(t, 10.0, audits[0].ReservedTons)
	assert.Equal(t, 90.0, audits[0].ExpectedAvailable)
	assert.Equal(t, 10.0, audits[0].Drift)
}

func TestFacilityService_SpaceNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	facility := env.facility(t, 6)
	farmer := env.farmer(t, 10)
	allocation := env.harvested(t, farmer, "wheat", 5, 80000)

	for i := 0; i < 3; i++ {
		request := env.submitted(t, farmer, facility, allocation, 2000)
		_, err := env.requests.Approve(ctx, request.ID)
		require.NoError(t, err)
	}
	assert.Zero(t, env.availableSpace(t, facility))

	request := &models.StorageRequest{
		FarmerID: farmer.ID, StorageFacilityID: facility.ID, CropAllocationID: &allocation.ID,
		CropType: "wheat", Quantity: 2000, Status: models.RequestPending,
	}
	require.NoError(t, env.requestRepo.Create(ctx, request))
	_, err := env.requests.Approve(ctx, request.ID)
	assert.ErrorIs(t, err, models.ErrInsufficientCapacity)

	facilities, err := env.facilities.List(ctx, models.FacilityFilters{})
	require.NoError(t, err)
	for _, f := range facilities {
		assert.GreaterOrEqual(t, f.AvailableSpace, 0.0)
		assert.LessOrEqual(t, f.AvailableSpace, f.Capacity)
	}
}

func TestFacilityService_SetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	facility := env.facility(t, 100)

	updated, err := env.facilities.SetStatus(ctx, facility.ID, models.FacilityInactive)
	require.NoError(t, err)
	assert.Equal(t, models.FacilityInactive, updated.Status)

	_, err = env.facilities.SetStatus(ctx, facility.ID, "closed")
	assert.Error(t, err)
}
