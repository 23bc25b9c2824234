package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storage-service/internal/metrics"
	"storage-service/internal/models"
	"storage-service/internal/repository"

	"github.com/google/uuid"
)

// FacilityService owns the facility registry and its space counter.
// available_space moves only on approval (down) and clearInventory (reset).
type FacilityService struct {
	facilityRepo *repository.StorageFacilityRepository
	requestRepo  *repository.StorageRequestRepository
	metrics      *metrics.Metrics
}

func NewFacilityService(
	facilityRepo *repository.StorageFacilityRepository,
	requestRepo *repository.StorageRequestRepository,
	m *metrics.Metrics,
) *FacilityService {
	return &FacilityService{
		facilityRepo: facilityRepo,
		requestRepo:  requestRepo,
		metrics:      m,
	}
}

func (s *FacilityService) Create(ctx context.Context, adminID string, req models.CreateFacilityRequest) (*models.StorageFacility, error) {
	if req.Capacity <= 0 {
		return nil, fmt.Errorf("capacity must be greater than 0: %w", models.ErrInvalidQuantity)
	}

	facility := &models.StorageFacility{
		Name:           strings.TrimSpace(req.Name),
		State:          strings.TrimSpace(req.State),
		District:       strings.TrimSpace(req.District),
		Capacity:       req.Capacity,
		AvailableSpace: req.Capacity,
		Status:         models.FacilityActive,
		CreatedBy:      adminID,
	}
	if err := s.facilityRepo.Create(ctx, facility); err != nil {
		slog.Error("error creating storage facility", "admin_id", adminID, "error", err)
		return nil, err
	}
	return facility, nil
}

func (s *FacilityService) Get(ctx context.Context, id uuid.UUID) (*models.StorageFacility, error) {
	return s.facilityRepo.GetByID(ctx, id)
}

func (s *FacilityService) List(ctx context.Context, filters models.FacilityFilters) ([]models.StorageFacility, error) {
	return s.facilityRepo.List(ctx, filters)
}

func (s *FacilityService) SetStatus(ctx context.Context, id uuid.UUID, status models.FacilityStatus) (*models.StorageFacility, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid facility status=%s", status)
	}
	if err := s.facilityRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.facilityRepo.GetByID(ctx, id)
}

func (s *FacilityService) AvailableSpace(ctx context.Context, id uuid.UUID) (float64, error) {
	facility, err := s.facilityRepo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return facility.AvailableSpace, nil
}

func (s *FacilityService) Inventory(ctx context.Context, id uuid.UUID) (*models.FacilityInventory, error) {
	facility, err := s.facilityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.facilityRepo.ListInventory(ctx, id)
	if err != nil {
		return nil, err
	}

	inventory := &models.FacilityInventory{Facility: *facility, Items: items}
	for _, item := range items {
		inventory.CurrentStock += item.Quantity
	}
	return inventory, nil
}

// ClearInventory empties the facility: inventory rows go, its approved
// requests stop counting against space, and available_space returns to
// capacity. All in one transaction.
func (s *FacilityService) ClearInventory(ctx context.Context, id uuid.UUID) (*models.StorageFacility, error) {
	tx, err := s.facilityRepo.BeginTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	if _, err := s.facilityRepo.GetByIDTx(ctx, tx, id); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := s.facilityRepo.DeleteInventoryTx(ctx, tx, id); err != nil {
		tx.Rollback()
		slog.Error("error deleting storage inventory", "facility_id", id, "error", err)
		return nil, fmt.Errorf("error deleting storage inventory: %w", err)
	}

	cleared, err := s.requestRepo.MarkClearedTx(ctx, tx, id)
	if err != nil {
		tx.Rollback()
		slog.Error("error clearing storage requests", "facility_id", id, "error", err)
		return nil, err
	}

	if err := s.facilityRepo.ResetSpaceTx(ctx, tx, id); err != nil {
		tx.Rollback()
		slog.Error("error resetting available space", "facility_id", id, "error", err)
		return nil, fmt.Errorf("error resetting available space: %w", err)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error commiting transaction", "facility_id", id, "error", err)
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	slog.Info("storage facility inventory cleared", "facility_id", id, "requests_cleared", cleared)
	return s.facilityRepo.GetByID(ctx, id)
}

// AuditSpace recomputes available space from the request log and reports how
// far the stored counter has drifted from it.
func (s *FacilityService) AuditSpace(ctx context.Context, id uuid.UUID) (*models.SpaceAudit, error) {
	facility, err := s.facilityRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	totals, err := s.requestRepo.SpaceTotals(ctx, id)
	if err != nil {
		return nil, err
	}

	reserved := totals.ReservedKg / models.KgPerTon
	audit := &models.SpaceAudit{
		FacilityID:        facility.ID,
		Capacity:          facility.Capacity,
		AvailableSpace:    facility.AvailableSpace,
		ReservedTons:      reserved,
		DeliveredTons:     totals.DeliveredKg / models.KgPerTon,
		ExpectedAvailable: facility.Capacity - reserved,
	}
	audit.Drift = audit.AvailableSpace - audit.ExpectedAvailable
	return audit, nil
}

// AuditAll audits every facility, logging and recording any drift.
func (s *FacilityService) AuditAll(ctx context.Context) ([]models.SpaceAudit, error) {
	facilities, err := s.facilityRepo.List(ctx, models.FacilityFilters{})
	if err != nil {
		return nil, err
	}

	audits := make([]models.SpaceAudit, 0, len(facilities))
	for _, facility := range facilities {
		if err := ctx.Err(); err != nil {
			return audits, err
		}
		audit, err := s.AuditSpace(ctx, facility.ID)
		if err != nil {
			return audits, fmt.Errorf("audit facility %s: %w", facility.ID, err)
		}
		s.metrics.SpaceDrift(facility.ID.String(), audit.Drift)
		if !audit.Consistent() {
			slog.Warn("storage facility space drift detected",
				"facility_id", facility.ID, "available_space", audit.AvailableSpace,
				"expected_available", audit.ExpectedAvailable, "drift", audit.Drift)
		}
		audits = append(audits, *audit)
	}
	return audits, nil
}
