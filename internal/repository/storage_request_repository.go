package repository

import (
	"context"
	"fmt"

	"storage-service/internal/models"
	"storage-service/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const storageRequestColumns = `id, farmer_id, storage_facility_id, crop_allocation_id, crop_type, quantity,
	status, payment_status, payment_amount, tax_amount, net_amount, payment_reference, payment_date,
	logistics_status, logistics_provider_id, delivered_at, inventory_cleared, created_at, updated_at`

// Transition methods below are compare-and-swap updates: the WHERE clause
// names the state the caller expects. They return utils.ErrNoRowsAffected
// when the row has moved on, and the caller re-reads it to decide.
type StorageRequestRepository struct {
	db *sqlx.DB
}

func NewStorageRequestRepository(db *sqlx.DB) *StorageRequestRepository {
	return &StorageRequestRepository{db: db}
}

func (r *StorageRequestRepository) BeginTransaction(ctx context.Context) (*sqlx.Tx, error) {
	return beginTransaction(ctx, r.db, "storage_request")
}

func (r *StorageRequestRepository) Create(ctx context.Context, request *models.StorageRequest) error {
	return createStorageRequest(ctx, r.db, request)
}

func (r *StorageRequestRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, request *models.StorageRequest) error {
	return createStorageRequest(ctx, tx, request)
}

func createStorageRequest(ctx context.Context, e sqlx.ExtContext, request *models.StorageRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	if request.CreatedAt == 0 {
		request.CreatedAt = nowUnix()
	}
	request.UpdatedAt = request.CreatedAt

	query := `
		INSERT INTO storage_requests (
			id, farmer_id, storage_facility_id, crop_allocation_id, crop_type, quantity,
			status, payment_status, payment_amount, tax_amount, net_amount, payment_reference, payment_date,
			logistics_status, logistics_provider_id, delivered_at, inventory_cleared, created_at, updated_at
		) VALUES (
			:id, :farmer_id, :storage_facility_id, :crop_allocation_id, :crop_type, :quantity,
			:status, :payment_status, :payment_amount, :tax_amount, :net_amount, :payment_reference, :payment_date,
			:logistics_status, :logistics_provider_id, :delivered_at, :inventory_cleared, :created_at, :updated_at
		)`

	if _, err := sqlx.NamedExecContext(ctx, e, query, request); err != nil {
		return fmt.Errorf("failed to create storage request: %w", err)
	}
	return nil
}

// CommittedKgTx sums the kg of requests filed against an allocation that
// still claim part of its harvest: not rejected and not yet delivered.
// Delivered requests have already been drawn from harvest_quantity.
func (r *StorageRequestRepository) CommittedKgTx(ctx context.Context, tx *sqlx.Tx, allocationID uuid.UUID) (float64, error) {
	var kg float64
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM storage_requests
		WHERE crop_allocation_id = ? AND status != ?
		  AND (logistics_status IS NULL OR logistics_status != ?)`
	err := tx.GetContext(ctx, &kg, tx.Rebind(query), allocationID, models.RequestRejected, models.LogisticsDelivered)
	if err != nil {
		return 0, fmt.Errorf("failed to sum committed quantity: %w", err)
	}
	return kg, nil
}

func (r *StorageRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StorageRequest, error) {
	return getStorageRequest(ctx, r.db, id)
}

func (r *StorageRequestRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.StorageRequest, error) {
	return getStorageRequest(ctx, tx, id)
}

func getStorageRequest(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*models.StorageRequest, error) {
	var request models.StorageRequest
	query := `SELECT ` + storageRequestColumns + ` FROM storage_requests WHERE id = ?`
	if err := sqlx.GetContext(ctx, q, &request, q.Rebind(query), id); err != nil {
		return nil, getErr(err, "storage request")
	}
	return &request, nil
}

func (r *StorageRequestRepository) List(ctx context.Context, filters models.StorageRequestFilters) ([]models.StorageRequest, error) {
	requests := []models.StorageRequest{}
	query := `SELECT ` + storageRequestColumns + ` FROM storage_requests WHERE 1=1`
	args := []any{}

	if filters.FarmerID != nil {
		query += " AND farmer_id = ?"
		args = append(args, *filters.FarmerID)
	}
	if filters.FacilityID != nil {
		query += " AND storage_facility_id = ?"
		args = append(args, *filters.FacilityID)
	}
	if filters.Status != nil {
		query += " AND status = ?"
		args = append(args, *filters.Status)
	}
	if filters.PaymentStatus != nil {
		query += " AND payment_status = ?"
		args = append(args, *filters.PaymentStatus)
	}
	if filters.LogisticsStatus != nil {
		query += " AND logistics_status = ?"
		args = append(args, *filters.LogisticsStatus)
	}
	query += " ORDER BY created_at DESC"

	if err := r.db.SelectContext(ctx, &requests, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list storage requests: %w", err)
	}
	return requests, nil
}

// ApproveTx moves a pending request to approved with payment pending and the
// settlement amounts fixed.
func (r *StorageRequestRepository) ApproveTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, amount, tax, net float64) error {
	query := `
		UPDATE storage_requests
		SET status = ?, payment_status = ?, payment_amount = ?, tax_amount = ?, net_amount = ?, updated_at = ?
		WHERE id = ? AND status = ? AND payment_status IS NULL`
	return utils.ExecWithCheck(ctx, tx, query, utils.ExecUpdate,
		models.RequestApproved, models.PaymentPending, amount, tax, net, nowUnix(),
		id, models.RequestPending)
}

func (r *StorageRequestRepository) Reject(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE storage_requests
		SET status = ?, payment_status = NULL, payment_amount = NULL, tax_amount = NULL,
		    net_amount = NULL, payment_date = NULL, updated_at = ?
		WHERE id = ? AND status = ?`
	return utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate,
		models.RequestRejected, nowUnix(), id, models.RequestPending)
}

// MarkPaid settles an approved request and opens its logistics leg.
func (r *StorageRequestRepository) MarkPaid(ctx context.Context, id uuid.UUID, reference string, paidAt int64) error {
	query := `
		UPDATE storage_requests
		SET payment_status = ?, payment_reference = ?, payment_date = ?, logistics_status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND payment_status = ?`
	return utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate,
		models.PaymentPaid, reference, paidAt, models.LogisticsPending, nowUnix(),
		id, models.RequestApproved, models.PaymentPending)
}

// AdvanceLogistics moves a paid request's logistics status from one value to
// the next. providerID is recorded when non-nil.
func (r *StorageRequestRepository) AdvanceLogistics(ctx context.Context, id uuid.UUID, from, to models.LogisticsStatus, providerID *string) error {
	query := `
		UPDATE storage_requests
		SET logistics_status = ?, logistics_provider_id = COALESCE(?, logistics_provider_id), updated_at = ?
		WHERE id = ? AND status = ? AND payment_status = ? AND logistics_status = ?`
	return utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate,
		to, providerID, nowUnix(),
		id, models.RequestApproved, models.PaymentPaid, from)
}

func (r *StorageRequestRepository) MarkDeliveredTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, deliveredAt int64) error {
	query := `
		UPDATE storage_requests
		SET logistics_status = ?, delivered_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND payment_status = ? AND logistics_status = ?`
	return utils.ExecWithCheck(ctx, tx, query, utils.ExecUpdate,
		models.LogisticsDelivered, deliveredAt, nowUnix(),
		id, models.RequestApproved, models.PaymentPaid, models.LogisticsInTransit)
}

// MarkClearedTx flags every approved request of the facility as cleared so
// it no longer counts against the facility's space. Returns the row count.
func (r *StorageRequestRepository) MarkClearedTx(ctx context.Context, tx *sqlx.Tx, facilityID uuid.UUID) (int64, error) {
	query := `
		UPDATE storage_requests
		SET inventory_cleared = ?, updated_at = ?
		WHERE storage_facility_id = ? AND status = ? AND inventory_cleared = ?`
	result, err := tx.ExecContext(ctx, tx.Rebind(query), true, nowUnix(), facilityID, models.RequestApproved, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark requests cleared: %w", err)
	}
	return result.RowsAffected()
}

type SpaceTotals struct {
	ReservedKg  float64 `db:"reserved_kg"`
	DeliveredKg float64 `db:"delivered_kg"`
}

// SpaceTotals sums approved, uncleared request quantities for a facility.
func (r *StorageRequestRepository) SpaceTotals(ctx context.Context, facilityID uuid.UUID) (SpaceTotals, error) {
	var totals SpaceTotals
	query := `
		SELECT
			COALESCE(SUM(quantity), 0) AS reserved_kg,
			COALESCE(SUM(CASE WHEN logistics_status = ? THEN quantity ELSE 0 END), 0) AS delivered_kg
		FROM storage_requests
		WHERE storage_facility_id = ? AND status = ? AND inventory_cleared = ?`
	err := r.db.GetContext(ctx, &totals, r.db.Rebind(query),
		models.LogisticsDelivered, facilityID, models.RequestApproved, false)
	if err != nil {
		return totals, fmt.Errorf("failed to sum storage requests: %w", err)
	}
	return totals, nil
}
