package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storage-service/internal/models"
	"storage-service/internal/repository"
	"storage-service/internal/utils"

	"github.com/google/uuid"
)

const (
	passbookLength   = 10
	passbookAttempts = 5
)

type FarmerService struct {
	farmerRepo     *repository.FarmerRepository
	allocationRepo *repository.CropAllocationRepository
}

func NewFarmerService(farmerRepo *repository.FarmerRepository, allocationRepo *repository.CropAllocationRepository) *FarmerService {
	return &FarmerService{farmerRepo: farmerRepo, allocationRepo: allocationRepo}
}

// Register stores a new farmer under a freshly generated passbook number.
func (s *FarmerService) Register(ctx context.Context, req models.RegisterFarmerRequest) (*models.Farmer, error) {
	if req.LandAcres < 0 {
		return nil, fmt.Errorf("land_acres must be 0 or greater: %w", models.ErrInvalidQuantity)
	}

	passbook, err := s.newPassbookNumber(ctx)
	if err != nil {
		return nil, err
	}

	farmer := &models.Farmer{
		PassbookNumber:   passbook,
		Name:             strings.TrimSpace(req.Name),
		Mobile:           req.Mobile,
		State:            req.State,
		SelectedDistrict: req.SelectedDistrict,
		CropsCultivated:  normalizeCrops(req.CropsCultivated),
		LandAcres:        req.LandAcres,
		AnnualIncome:     req.AnnualIncome,
		BankAccount:      req.BankAccount,
		IFSCCode:         req.IFSCCode,
		BankName:         req.BankName,
	}
	if err := s.farmerRepo.Create(ctx, farmer); err != nil {
		slog.Error("error registering farmer", "error", err)
		return nil, err
	}
	return farmer, nil
}

func (s *FarmerService) newPassbookNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < passbookAttempts; attempt++ {
		candidate := utils.GenerateNumericCode(passbookLength)
		exists, err := s.farmerRepo.PassbookExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique passbook number: %w", models.ErrConflict)
}

func normalizeCrops(crops []string) models.StringList {
	normalized := models.StringList{}
	for _, crop := range crops {
		if key := utils.NormalizeKey(crop); key != "" {
			normalized = append(normalized, key)
		}
	}
	return normalized
}

func (s *FarmerService) Get(ctx context.Context, id uuid.UUID) (*models.Farmer, error) {
	return s.farmerRepo.GetByID(ctx, id)
}

// FindByPassbook looks a farmer up by passbook number and name. A name
// mismatch reads as not found.
func (s *FarmerService) FindByPassbook(ctx context.Context, passbook, name string) (*models.Farmer, error) {
	farmer, err := s.farmerRepo.GetByPassbook(ctx, strings.TrimSpace(passbook))
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(farmer.Name), strings.TrimSpace(name)) {
		return nil, fmt.Errorf("farmer: %w", models.ErrNotFound)
	}
	return farmer, nil
}

// Update applies a partial profile update. Land cannot shrink below the
// acreage currently allocated.
func (s *FarmerService) Update(ctx context.Context, id uuid.UUID, req models.UpdateFarmerRequest) (*models.Farmer, error) {
	tx, err := s.farmerRepo.BeginTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	if err := s.farmerRepo.LockTx(ctx, tx, id); err != nil {
		tx.Rollback()
		return nil, err
	}
	farmer, err := s.farmerRepo.GetByIDTx(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if req.Name != nil {
		farmer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Mobile != nil {
		farmer.Mobile = req.Mobile
	}
	if req.State != nil {
		farmer.State = req.State
	}
	if req.SelectedDistrict != nil {
		farmer.SelectedDistrict = req.SelectedDistrict
	}
	if req.CropsCultivated != nil {
		farmer.CropsCultivated = normalizeCrops(req.CropsCultivated)
	}
	if req.AnnualIncome != nil {
		farmer.AnnualIncome = *req.AnnualIncome
	}
	if req.BankAccount != nil {
		farmer.BankAccount = req.BankAccount
	}
	if req.IFSCCode != nil {
		farmer.IFSCCode = req.IFSCCode
	}
	if req.BankName != nil {
		farmer.BankName = req.BankName
	}
	if req.LandAcres != nil {
		occupied, err := s.allocationRepo.OccupiedAcresTx(ctx, tx, id)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if *req.LandAcres+landEpsilon < occupied {
			tx.Rollback()
			return nil, fmt.Errorf("land_acres %.2f is below %.2f allocated acres: %w",
				*req.LandAcres, occupied, models.ErrInsufficientLand)
		}
		farmer.LandAcres = *req.LandAcres
	}

	if err := s.farmerRepo.UpdateTx(ctx, tx, farmer); err != nil {
		tx.Rollback()
		slog.Error("error updating farmer", "farmer_id", id, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error commiting transaction", "farmer_id", id, "error", err)
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}
	return farmer, nil
}
