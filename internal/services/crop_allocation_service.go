package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storage-service/internal/models"
	"storage-service/internal/repository"
	"storage-service/internal/utils"

	"github.com/google/uuid"
)

// landEpsilon absorbs float error when comparing acreage sums.
const landEpsilon = 1e-9

type CropAllocationService struct {
	allocationRepo *repository.CropAllocationRepository
	farmerRepo     *repository.FarmerRepository
}

func NewCropAllocationService(
	allocationRepo *repository.CropAllocationRepository,
	farmerRepo *repository.FarmerRepository,
) *CropAllocationService {
	return &CropAllocationService{
		allocationRepo: allocationRepo,
		farmerRepo:     farmerRepo,
	}
}

// ExpiryFor is when a batch harvested at harvestedAt spoils:
// wheat keeps three months, rice two, anything else a week.
func ExpiryFor(cropName string, harvestedAt time.Time) time.Time {
	switch utils.NormalizeKey(cropName) {
	case "wheat":
		return harvestedAt.AddDate(0, 3, 0)
	case "rice":
		return harvestedAt.AddDate(0, 2, 0)
	default:
		return harvestedAt.AddDate(0, 0, 7)
	}
}

// Allocate assigns acres of the farmer's free land to a crop. The farmer row
// is locked first so concurrent allocations see each other's acreage.
func (s *CropAllocationService) Allocate(ctx context.Context, req models.AllocateCropRequest) (*models.CropAllocation, error) {
	if req.Acres <= 0 {
		return nil, fmt.Errorf("acres must be greater than 0: %w", models.ErrInvalidQuantity)
	}

	tx, err := s.allocationRepo.BeginTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	if err := s.farmerRepo.LockTx(ctx, tx, req.FarmerID); err != nil {
		tx.Rollback()
		return nil, err
	}
	farmer, err := s.farmerRepo.GetByIDTx(ctx, tx, req.FarmerID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	occupied, err := s.allocationRepo.OccupiedAcresTx(ctx, tx, req.FarmerID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	remaining := farmer.LandAcres - occupied
	if req.Acres > remaining+landEpsilon {
		tx.Rollback()
		return nil, fmt.Errorf("requested %.2f acres, %.2f remaining: %w", req.Acres, remaining, models.ErrInsufficientLand)
	}

	allocation := &models.CropAllocation{
		FarmerID:       req.FarmerID,
		CropName:       utils.NormalizeKey(req.CropName),
		AllocatedAcres: req.Acres,
		Status:         models.AllocationAllocated,
	}
	if err := s.allocationRepo.CreateTx(ctx, tx, allocation); err != nil {
		tx.Rollback()
		slog.Error("error creating crop allocation", "farmer_id", req.FarmerID, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error commiting transaction", "farmer_id", req.FarmerID, "error", err)
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}
	return allocation, nil
}

// Harvest records the yield of an allocated crop, starts its expiry clock and
// frees the acreage for the next allocation.
func (s *CropAllocationService) Harvest(ctx context.Context, id uuid.UUID, quantity float64) (*models.CropAllocation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be greater than 0: %w", models.ErrInvalidQuantity)
	}

	allocation, err := s.allocationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if allocation.Status != models.AllocationAllocated {
		return nil, fmt.Errorf("crop allocation %s is %s: %w", id, allocation.Status, models.ErrInvalidTransition)
	}

	now := time.Now()
	expiry := ExpiryFor(allocation.CropName, now)
	err = s.allocationRepo.MarkHarvested(ctx, id, quantity, now.Unix(), expiry.Unix())
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return nil, fmt.Errorf("crop allocation %s was harvested concurrently: %w", id, models.ErrInvalidTransition)
	}
	if err != nil {
		slog.Error("error recording harvest", "allocation_id", id, "error", err)
		return nil, err
	}
	return s.allocationRepo.GetByID(ctx, id)
}

func (s *CropAllocationService) Get(ctx context.Context, id uuid.UUID) (*models.CropAllocation, error) {
	return s.allocationRepo.GetByID(ctx, id)
}

func (s *CropAllocationService) GetForFarmer(ctx context.Context, id, farmerID uuid.UUID) (*models.CropAllocation, error) {
	allocation, err := s.allocationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if allocation.FarmerID != farmerID {
		return nil, fmt.Errorf("crop allocation %s belongs to another farmer: %w", id, models.ErrForbidden)
	}
	return allocation, nil
}

func (s *CropAllocationService) List(ctx context.Context, farmerID uuid.UUID, status *models.AllocationStatus) ([]models.CropAllocation, error) {
	return s.allocationRepo.List(ctx, farmerID, status)
}

func (s *CropAllocationService) RemainingAcres(ctx context.Context, farmerID uuid.UUID) (*models.LandSummary, error) {
	farmer, err := s.farmerRepo.GetByID(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	occupied, err := s.allocationRepo.OccupiedAcres(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	return &models.LandSummary{
		FarmerID:       farmerID,
		LandAcres:      farmer.LandAcres,
		OccupiedAcres:  occupied,
		RemainingAcres: farmer.LandAcres - occupied,
	}, nil
}

// ExpiringSoon lists harvested batches that expire within the given window.
func (s *CropAllocationService) ExpiringSoon(ctx context.Context, within time.Duration) ([]models.CropAllocation, error) {
	return s.allocationRepo.ListExpiring(ctx, time.Now().Add(within).Unix())
}
