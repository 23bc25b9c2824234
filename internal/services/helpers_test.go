package services

import (
	"context"
	"sync"
	"testing"

	"storage-service/internal/database/sqlite"
	"storage-service/internal/models"
	"storage-service/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	titles := make([]string, 0, len(n.sent))
	for _, notification := range n.sent {
		titles = append(titles, notification.Title)
	}
	return titles
}

type recordingReceipts struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (r *recordingReceipts) StoreReceipt(_ context.Context, key string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.objects == nil {
		r.objects = map[string][]byte{}
	}
	r.objects[key] = body
	return nil
}

type testEnv struct {
	farmerRepo     *repository.FarmerRepository
	facilityRepo   *repository.StorageFacilityRepository
	requestRepo    *repository.StorageRequestRepository
	allocationRepo *repository.CropAllocationRepository
	orderRepo      *repository.MarketplaceOrderRepository
	providerRepo   *repository.LogisticsProviderRepository

	pricing     *PricingService
	farmers     *FarmerService
	facilities  *FacilityService
	allocations *CropAllocationService
	requests    *StorageRequestService
	marketplace *MarketplaceService
	logistics   *LogisticsService

	notifier *recordingNotifier
	receipts *recordingReceipts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		farmerRepo:     repository.NewFarmerRepository(db),
		facilityRepo:   repository.NewStorageFacilityRepository(db),
		requestRepo:    repository.NewStorageRequestRepository(db),
		allocationRepo: repository.NewCropAllocationRepository(db),
		orderRepo:      repository.NewMarketplaceOrderRepository(db),
		providerRepo:   repository.NewLogisticsProviderRepository(db),
		notifier:       &recordingNotifier{},
		receipts:       &recordingReceipts{},
	}
	env.pricing = NewPricingService(repository.NewCropMSPRepository(db, nil, 0))
	env.farmers = NewFarmerService(env.farmerRepo, env.allocationRepo)
	env.facilities = NewFacilityService(env.facilityRepo, env.requestRepo, nil)
	env.allocations = NewCropAllocationService(env.allocationRepo, env.farmerRepo)
	env.requests = NewStorageRequestService(env.requestRepo, env.facilityRepo, env.allocationRepo,
		env.farmerRepo, env.providerRepo, env.pricing, env.notifier, env.receipts, nil)
	env.marketplace = NewMarketplaceService(env.orderRepo, env.pricing)
	env.logistics = NewLogisticsService(env.providerRepo, env.requestRepo, env.facilityRepo)
	return env
}

func (env *testEnv) farmer(t *testing.T, landAcres float64) *models.Farmer {
	t.Helper()
	farmer, err := env.farmers.Register(context.Background(), models.RegisterFarmerRequest{
		Name:            "Ravi Kumar",
		CropsCultivated: []string{"Wheat", "Rice"},
		LandAcres:       landAcres,
		AnnualIncome:    400000,
	})
	require.NoError(t, err)
	return farmer
}

func (env *testEnv) facility(t *testing.T, capacity float64) *models.StorageFacility {
	t.Helper()
	facility, err := env.facilities.Create(context.Background(), "admin-1", models.CreateFacilityRequest{
		Name: "Ludhiana Depot", State: "Punjab", District: "Ludhiana", Capacity: capacity,
	})
	require.NoError(t, err)
	return facility
}

func (env *testEnv) harvested(t *testing.T, farmer *models.Farmer, crop string, acres, kg float64) *models.CropAllocation {
	t.Helper()
	ctx := context.Background()
	allocation, err := env.allocations.Allocate(ctx, models.AllocateCropRequest{
		FarmerID: farmer.ID, CropName: crop, Acres: acres,
	})
	require.NoError(t, err)
	allocation, err = env.allocations.Harvest(ctx, allocation.ID, kg)
	require.NoError(t, err)
	return allocation
}

func (env *testEnv) submitted(t *testing.T, farmer *models.Farmer, facility *models.StorageFacility, allocation *models.CropAllocation, kg float64) *models.StorageRequest {
	t.Helper()
	request, err := env.requests.Submit(context.Background(), models.SubmitStorageRequestRequest{
		FarmerID:          farmer.ID,
		StorageFacilityID: facility.ID,
		CropAllocationID:  allocation.ID,
		Quantity:          kg,
	})
	require.NoError(t, err)
	return request
}

func (env *testEnv) provider(t *testing.T, district string, rating float64) *models.LogisticsProvider {
	t.Helper()
	provider, err := env.logistics.Register(context.Background(), models.RegisterLogisticsProviderRequest{
		CompanyName:       "Punjab Haulers " + district,
		LicenseNumber:     "LIC-" + uuid.NewString(),
		State:             "Punjab",
		District:          district,
		AvailableVehicles: 4,
		Rating:            rating,
	})
	require.NoError(t, err)
	return provider
}

func (env *testEnv) availableSpace(t *testing.T, facility *models.StorageFacility) float64 {
	t.Helper()
	space, err := env.facilities.AvailableSpace(context.Background(), facility.ID)
	require.NoError(t, err)
	return space
}
