package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storage-service/internal/metrics"
	"storage-service/internal/models"
	"storage-service/internal/repository"
	"storage-service/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// harvestEpsilon absorbs float error when comparing kg sums against a batch.
const harvestEpsilon = 1e-6

type StorageRequestService struct {
	requestRepo    *repository.StorageRequestRepository
	facilityRepo   *repository.StorageFacilityRepository
	allocationRepo *repository.CropAllocationRepository
	farmerRepo     *repository.FarmerRepository
	providerRepo   *repository.LogisticsProviderRepository
	pricing        *PricingService
	notifier       Notifier
	receipts       ReceiptStore
	metrics        *metrics.Metrics
}

func NewStorageRequestService(
	requestRepo *repository.StorageRequestRepository,
	facilityRepo *repository.StorageFacilityRepository,
	allocationRepo *repository.CropAllocationRepository,
	farmerRepo *repository.FarmerRepository,
	providerRepo *repository.LogisticsProviderRepository,
	pricing *PricingService,
	notifier Notifier,
	receipts ReceiptStore,
	m *metrics.Metrics,
) *StorageRequestService {
	return &StorageRequestService{
		requestRepo:    requestRepo,
		facilityRepo:   facilityRepo,
		allocationRepo: allocationRepo,
		farmerRepo:     farmerRepo,
		providerRepo:   providerRepo,
		pricing:        pricing,
		notifier:       orNoopNotifier(notifier),
		receipts:       orNoopReceiptStore(receipts),
		metrics:        m,
	}
}

func (s *StorageRequestService) Get(ctx context.Context, id uuid.UUID) (*models.StorageRequest, error) {
	return s.requestRepo.GetByID(ctx, id)
}

// GetForFarmer returns a request only to the farmer who filed it.
func (s *StorageRequestService) GetForFarmer(ctx context.Context, id, farmerID uuid.UUID) (*models.StorageRequest, error) {
	request, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.FarmerID != farmerID {
		return nil, fmt.Errorf("storage request %s belongs to another farmer: %w", id, models.ErrForbidden)
	}
	return request, nil
}

func (s *StorageRequestService) List(ctx context.Context, filters models.StorageRequestFilters) ([]models.StorageRequest, error) {
	return s.requestRepo.List(ctx, filters)
}

// Submit files a pending request for part of a harvested batch. The batch
// row is locked so that the kg already claimed by other open requests on it
// is counted before this one is added. The space check here is advisory;
// space is only reserved by Approve.
func (s *StorageRequestService) Submit(ctx context.Context, req models.SubmitStorageRequestRequest) (*models.StorageRequest, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be greater than 0: %w", models.ErrInvalidQuantity)
	}

	tx, err := s.requestRepo.BeginTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	if err := s.allocationRepo.LockTx(ctx, tx, req.CropAllocationID); err != nil {
		tx.Rollback()
		return nil, err
	}

	allocation, err := s.allocationRepo.GetByIDTx(ctx, tx, req.CropAllocationID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if allocation.FarmerID != req.FarmerID {
		tx.Rollback()
		return nil, fmt.Errorf("crop allocation %s does not belong to farmer %s: %w",
			allocation.ID, req.FarmerID, models.ErrForbidden)
	}
	if allocation.Status != models.AllocationHarvested {
		tx.Rollback()
		return nil, fmt.Errorf("crop allocation %s is %s, not harvested: %w",
			allocation.ID, allocation.Status, models.ErrInvalidTransition)
	}

	committed, err := s.requestRepo.CommittedKgTx(ctx, tx, allocation.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	uncommitted := deref(allocation.HarvestQuantity) - committed
	if req.Quantity > uncommitted+harvestEpsilon {
		tx.Rollback()
		return nil, fmt.Errorf("requested %.2f kg, %.2f kg of the batch is not yet committed: %w",
			req.Quantity, max(uncommitted, 0), models.ErrInvalidQuantity)
	}

	facility, err := s.facilityRepo.GetByIDTx(ctx, tx, req.StorageFacilityID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if facility.Status != models.FacilityActive {
		tx.Rollback()
		return nil, fmt.Errorf("storage facility %s: %w", facility.ID, models.ErrFacilityInactive)
	}
	if !models.FitsSpace(req.Quantity/models.KgPerTon, facility.AvailableSpace) {
		tx.Rollback()
		return nil, fmt.Errorf("requested %.3f tons, %.3f available: %w",
			req.Quantity/models.KgPerTon, facility.AvailableSpace, models.ErrInsufficientCapacity)
	}

	request := &models.StorageRequest{
		FarmerID:          req.FarmerID,
		StorageFacilityID: facility.ID,
		CropAllocationID:  &allocation.ID,
		CropType:          allocation.CropName,
		Quantity:          req.Quantity,
		Status:            models.RequestPending,
	}
	if err := s.requestRepo.CreateTx(ctx, tx, request); err != nil {
		tx.Rollback()
		slog.Error("error creating storage request", "farmer_id", req.FarmerID, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error commiting transaction", "farmer_id", req.FarmerID, "error", err)
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}

	s.metrics.Transition("submit")
	return request, nil
}

// transition drives one lifecycle step. It reads the request, returns it
// unchanged when it already sits at the target stage, refuses anything that
// is not at the source stage, and otherwise runs apply. apply returning
// utils.ErrNoRowsAffected means a concurrent writer moved the row first, in
// which case the row is read again and judged afresh.
func (s *StorageRequestService) transition(
	ctx context.Context,
	name string,
	id uuid.UUID,
	from, to models.Stage,
	apply func(request *models.StorageRequest) error,
) (*models.StorageRequest, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		request, err := s.requestRepo.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		stage, err := request.Stage()
		if err != nil {
			s.metrics.TransitionError(name, "inconsistent_state")
			return nil, false, err
		}
		if stage == to {
			return request, false, nil
		}
		if stage != from {
			s.metrics.TransitionError(name, "invalid_transition")
			return nil, false, fmt.Errorf("cannot %s request %s at stage %s: %w",
				name, id, stage, models.ErrInvalidTransition)
		}

		err = apply(request)
		if errors.Is(err, utils.ErrNoRowsAffected) {
			slog.Info("storage request changed concurrently, re-reading", "request_id", id, "transition", name)
			continue
		}
		if err != nil {
			s.metrics.TransitionError(name, reasonOf(err))
			return nil, false, err
		}

		updated, err := s.requestRepo.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		s.metrics.Transition(name)
		return updated, true, nil
	}
	return nil, false, fmt.Errorf("request %s: %w", id, models.ErrConflict)
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientCapacity):
		return "insufficient_capacity"
	case errors.Is(err, models.ErrFacilityInactive):
		return "facility_inactive"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// Approve reserves facility space and fixes the payment amounts in one
// transaction. The tax withheld is what the payment adds to the farmer's
// declared annual income. Approving an approved request is a no-op.
func (s *StorageRequestService) Approve(ctx context.Context, id uuid.UUID) (*models.StorageRequest, error) {
	request, changed, err := s.transition(ctx, "approve", id, models.StageSubmitted, models.StageApproved,
		func(request *models.StorageRequest) error {
			rate, err := s.pricing.Rate(ctx, request.CropType)
			if err != nil {
				return err
			}
			farmer, err := s.farmerRepo.GetByID(ctx, request.FarmerID)
			if err != nil {
				return err
			}
			amount := request.Quantity * rate
			tax := CalculatePaymentTax(farmer.AnnualIncome, amount)

			tx, err := s.requestRepo.BeginTransaction(ctx)
			if err != nil {
				return fmt.Errorf("error starting transaction: %w", err)
			}

			if err := s.requestRepo.ApproveTx(ctx, tx, request.ID, amount, tax.Tax, tax.Net); err != nil {
				tx.Rollback()
				return err
			}

			err = s.facilityRepo.ReserveSpaceTx(ctx, tx, request.StorageFacilityID, request.QuantityTons())
			if err != nil {
				tx.Rollback()
				if errors.Is(err, utils.ErrNoRowsAffected) {
					return s.explainReservationFailure(ctx, request)
				}
				slog.Error("error reserving storage space", "request_id", request.ID, "error", err)
				return fmt.Errorf("error reserving storage space: %w", err)
			}

			if err := tx.Commit(); err != nil {
				slog.Error("error commiting transaction", "request_id", request.ID, "error", err)
				return fmt.Errorf("error commiting transaction: %w", err)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	if changed {
		slog.Info("storage request approved", "request_id", id,
			"facility_id", request.StorageFacilityID, "tons", request.QuantityTons())
		s.notify(ctx, request, "Storage request approved",
			fmt.Sprintf("Your request to store %.0f kg of %s was approved.", request.Quantity, request.CropType))
	}
	return request, nil
}

// explainReservationFailure runs after the rollback and distinguishes a
// missing or inactive facility from one that is simply full.
func (s *StorageRequestService) explainReservationFailure(ctx context.Context, request *models.StorageRequest) error {
	facility, err := s.facilityRepo.GetByID(ctx, request.StorageFacilityID)
	if err != nil {
		return err
	}
	if facility.Status != models.FacilityActive {
		return fmt.Errorf("storage facility %s: %w", facility.ID, models.ErrFacilityInactive)
	}
	return fmt.Errorf("requested %.3f tons, %.3f available: %w",
		request.QuantityTons(), facility.AvailableSpace, models.ErrInsufficientCapacity)
}

func (s *StorageRequestService) Reject(ctx context.Context, id uuid.UUID) (*models.StorageRequest, error) {
	request, changed, err := s.transition(ctx, "reject", id, models.StageSubmitted, models.StageRejected,
		func(request *models.StorageRequest) error {
			return s.requestRepo.Reject(ctx, request.ID)
		})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(ctx, request, "Storage request rejected",
			fmt.Sprintf("Your request to store %.0f kg of %s was rejected.", request.Quantity, request.CropType))
	}
	return request, nil
}

type paymentReceipt struct {
	RequestID        uuid.UUID `json:"request_id"`
	FarmerID         uuid.UUID `json:"farmer_id"`
	FacilityID       uuid.UUID `json:"storage_facility_id"`
	CropType         string    `json:"crop_type"`
	Quantity         float64   `json:"quantity"`
	PaymentReference string    `json:"payment_reference"`
	PaymentAmount    float64   `json:"payment_amount"`
	TaxAmount        float64   `json:"tax_amount"`
	NetAmount        float64   `json:"net_amount"`
	PaidAt           int64     `json:"paid_at"`
}

// ProcessPayment settles the amount fixed at approval and opens logistics.
func (s *StorageRequestService) ProcessPayment(ctx context.Context, id uuid.UUID) (*models.StorageRequest, error) {
	request, changed, err := s.transition(ctx, "pay", id, models.StageApproved, models.StagePaid,
		func(request *models.StorageRequest) error {
			reference := "PAY-" + uuid.NewString()
			return s.requestRepo.MarkPaid(ctx, request.ID, reference, time.Now().Unix())
		})
	if err != nil {
		return nil, err
	}
	if !changed {
		return request, nil
	}

	s.metrics.PaymentSettled(deref(request.PaymentAmount))
	s.archiveReceipt(ctx, request)
	s.notify(ctx, request, "Payment processed",
		fmt.Sprintf("Payment %s of Rs %.2f has been processed.", deref(request.PaymentReference), deref(request.NetAmount)))
	return request, nil
}

func (s *StorageRequestService) archiveReceipt(ctx context.Context, request *models.StorageRequest) {
	receipt := paymentReceipt{
		RequestID:        request.ID,
		FarmerID:         request.FarmerID,
		FacilityID:       request.StorageFacilityID,
		CropType:         request.CropType,
		Quantity:         request.Quantity,
		PaymentReference: deref(request.PaymentReference),
		PaymentAmount:    deref(request.PaymentAmount),
		TaxAmount:        deref(request.TaxAmount),
		NetAmount:        deref(request.NetAmount),
		PaidAt:           deref(request.PaymentDate),
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		slog.Error("failed to marshal payment receipt", "request_id", request.ID, "error", err)
		return
	}

	key := fmt.Sprintf("receipts/%s/%s.json", request.FarmerID, receipt.PaymentReference)
	if err := s.receipts.StoreReceipt(ctx, key, body); err != nil {
		slog.Error("failed to archive payment receipt", "request_id", request.ID, "key", key, "error", err)
	}
}

func (s *StorageRequestService) RequestLogistics(ctx context.Context, id uuid.UUID) (*models.StorageRequest, error) {
	request, _, err := s.transition(ctx, "request_logistics", id, models.StagePaid, models.StageLogisticsRequested,
		func(request *models.StorageRequest) error {
			return s.requestRepo.AdvanceLogistics(ctx, request.ID, models.LogisticsPending, models.LogisticsRequested, nil)
		})
	return request, err
}

// AcceptOrder is a registered logistics provider taking the job; the request
// goes in transit.
func (s *StorageRequestService) AcceptOrder(ctx context.Context, id, providerID uuid.UUID) (*models.StorageRequest, error) {
	request, changed, err := s.transition(ctx, "accept_order", id, models.StageLogisticsRequested, models.StageInTransit,
		func(request *models.StorageRequest) error {
			if _, err := s.providerRepo.GetByID(ctx, providerID); err != nil {
				return err
			}
			provider := providerID.String()
			return s.requestRepo.AdvanceLogistics(ctx, request.ID, models.LogisticsRequested, models.LogisticsInTransit, &provider)
		})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(ctx, request, "Crop in transit",
			fmt.Sprintf("Your %s is on its way to storage.", request.CropType))
	}
	return request, nil
}

// MarkDelivered completes the logistics leg. In the same transaction the
// facility inventory grows and the farmer's harvested batch is drawn down.
// A delivery with no batch to draw from still commits and carries a warning.
func (s *StorageRequestService) MarkDelivered(ctx context.Context, id uuid.UUID) (*models.DeliveryResult, error) {
	result := &models.DeliveryResult{}
	request, changed, err := s.transition(ctx, "deliver", id, models.StageInTransit, models.StageDelivered,
		func(request *models.StorageRequest) error {
			// reset in case the first attempt lost a race
			*result = models.DeliveryResult{}

			tx, err := s.requestRepo.BeginTransaction(ctx)
			if err != nil {
				return fmt.Errorf("error starting transaction: %w", err)
			}

			if err := s.requestRepo.MarkDeliveredTx(ctx, tx, request.ID, time.Now().Unix()); err != nil {
				tx.Rollback()
				return err
			}

			err = s.facilityRepo.AddInventoryTx(ctx, tx, request.StorageFacilityID, request.CropType, request.QuantityTons())
			if err != nil {
				tx.Rollback()
				slog.Error("error updating storage inventory", "request_id", request.ID, "error", err)
				return fmt.Errorf("error updating storage inventory: %w", err)
			}

			if err := s.reconcileHarvestTx(ctx, tx, request, result); err != nil {
				tx.Rollback()
				slog.Error("error reconciling harvest", "request_id", request.ID, "error", err)
				return fmt.Errorf("error reconciling harvest: %w", err)
			}

			if err := tx.Commit(); err != nil {
				slog.Error("error commiting transaction", "request_id", request.ID, "error", err)
				return fmt.Errorf("error commiting transaction: %w", err)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	result.Request = request
	if !changed {
		return result, nil
	}

	if result.Warning != "" {
		slog.Warn("delivery not reconciled against harvest ledger",
			"request_id", request.ID, "farmer_id", request.FarmerID, "crop", request.CropType, "warning", result.Warning)
		s.metrics.ReconcileWarning()
		s.notifyWith(ctx, request, "Harvest ledger mismatch", result.Warning,
			map[string]any{"type": "reconcile_warning", "request_id": request.ID.String()})
	}
	s.notify(ctx, request, "Crop delivered",
		fmt.Sprintf("%.0f kg of %s was delivered to storage.", request.Quantity, request.CropType))
	return result, nil
}

// reconcileHarvestTx draws the delivered kg from the batch the request was
// filed against, or failing that the farmer's latest harvested batch of the
// same crop.
func (s *StorageRequestService) reconcileHarvestTx(ctx context.Context, tx *sqlx.Tx, request *models.StorageRequest, result *models.DeliveryResult) error {
	var target *models.CropAllocation
	if request.CropAllocationID != nil {
		allocation, err := s.allocationRepo.GetByIDTx(ctx, tx, *request.CropAllocationID)
		switch {
		case err == nil && allocation.Status == models.AllocationHarvested:
			target = allocation
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return err
		}
	}

	if target == nil {
		allocation, err := s.allocationRepo.LatestHarvestedTx(ctx, tx, request.FarmerID, request.CropType)
		if errors.Is(err, models.ErrNotFound) {
			result.Warning = fmt.Sprintf("no harvested %s allocation found for farmer %s", request.CropType, request.FarmerID)
			return nil
		}
		if err != nil {
			return err
		}
		target = allocation
	}

	drawn, err := s.allocationRepo.DrawDownTx(ctx, tx, target.ID, request.Quantity)
	if errors.Is(err, models.ErrInvalidTransition) {
		result.Warning = fmt.Sprintf("crop allocation %s was no longer harvested", target.ID)
		return nil
	}
	if err != nil {
		return err
	}

	result.ReconciledBatchID = &drawn.ID
	result.RemainingHarvestKg = drawn.HarvestQuantity
	return nil
}

func (s *StorageRequestService) notify(ctx context.Context, request *models.StorageRequest, title, body string) {
	s.notifyWith(ctx, request, title, body, map[string]any{
		"type":       "storage_request",
		"request_id": request.ID.String(),
	})
}

func (s *StorageRequestService) notifyWith(ctx context.Context, request *models.StorageRequest, title, body string, data map[string]any) {
	notification := models.Notification{
		UserIDs: []string{request.FarmerID.String()},
		Title:   title,
		Body:    body,
		Data:    data,
	}
	if err := s.notifier.Notify(ctx, notification); err != nil {
		slog.Error("failed to send notification", "request_id", request.ID, "title", title, "error", err)
	}
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
