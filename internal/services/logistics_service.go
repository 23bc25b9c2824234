package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storage-service/internal/models"
	"storage-service/internal/repository"

	"github.com/google/uuid"
)

// LogisticsService keeps the registry of transport companies that carry paid
// requests from the farm to the facility.
type LogisticsService struct {
	providerRepo *repository.LogisticsProviderRepository
	requestRepo  *repository.StorageRequestRepository
	facilityRepo *repository.StorageFacilityRepository
}

func NewLogisticsService(
	providerRepo *repository.LogisticsProviderRepository,
	requestRepo *repository.StorageRequestRepository,
	facilityRepo *repository.StorageFacilityRepository,
) *LogisticsService {
	return &LogisticsService{
		providerRepo: providerRepo,
		requestRepo:  requestRepo,
		facilityRepo: facilityRepo,
	}
}

// Register creates a provider profile. License numbers are unique.
func (s *LogisticsService) Register(ctx context.Context, req models.RegisterLogisticsProviderRequest) (*models.LogisticsProvider, error) {
	license := strings.TrimSpace(req.LicenseNumber)
	exists, err := s.providerRepo.LicenseExists(ctx, license)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("license number %s is already registered: %w", license, models.ErrConflict)
	}

	provider := &models.LogisticsProvider{
		CompanyName:       strings.TrimSpace(req.CompanyName),
		LicenseNumber:     license,
		ContactPerson:     req.ContactPerson,
		Phone:             req.Phone,
		Email:             req.Email,
		State:             strings.TrimSpace(req.State),
		District:          strings.TrimSpace(req.District),
		AvailableVehicles: req.AvailableVehicles,
		Rating:            req.Rating,
	}
	if err := s.providerRepo.Create(ctx, provider); err != nil {
		slog.Error("error registering logistics provider", "company", provider.CompanyName, "error", err)
		return nil, err
	}

	slog.Info("logistics provider registered", "provider_id", provider.ID, "district", provider.District)
	return provider, nil
}

func (s *LogisticsService) Get(ctx context.Context, id uuid.UUID) (*models.LogisticsProvider, error) {
	return s.providerRepo.GetByID(ctx, id)
}

func (s *LogisticsService) Update(ctx context.Context, id uuid.UUID, req models.UpdateLogisticsProviderRequest) (*models.LogisticsProvider, error) {
	provider, err := s.providerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CompanyName != nil {
		provider.CompanyName = strings.TrimSpace(*req.CompanyName)
	}
	if req.ContactPerson != nil {
		provider.ContactPerson = req.ContactPerson
	}
	if req.Phone != nil {
		provider.Phone = req.Phone
	}
	if req.Email != nil {
		provider.Email = req.Email
	}
	if req.State != nil {
		provider.State = strings.TrimSpace(*req.State)
	}
	if req.District != nil {
		provider.District = strings.TrimSpace(*req.District)
	}
	if req.AvailableVehicles != nil {
		provider.AvailableVehicles = *req.AvailableVehicles
	}
	if req.Rating != nil {
		provider.Rating = *req.Rating
	}

	if err := s.providerRepo.Update(ctx, provider); err != nil {
		slog.Error("error updating logistics provider", "provider_id", id, "error", err)
		return nil, err
	}
	return provider, nil
}

func (s *LogisticsService) ListByDistrict(ctx context.Context, district string) ([]models.LogisticsProvider, error) {
	return s.providerRepo.ListByDistrict(ctx, strings.TrimSpace(district))
}

// ProvidersForRequest lists the providers in the district of the facility a
// request is bound for, best rated first.
func (s *LogisticsService) ProvidersForRequest(ctx context.Context, requestID uuid.UUID) ([]models.LogisticsProvider, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	facility, err := s.facilityRepo.GetByID(ctx, request.StorageFacilityID)
	if err != nil {
		return nil, err
	}
	return s.providerRepo.ListByDistrict(ctx, facility.District)
}
