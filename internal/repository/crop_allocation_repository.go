package repository

import (
	"context"
	"errors"
	"fmt"

	"storage-service/internal/models"
	"storage-service/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const cropAllocationColumns = `id, farmer_id, crop_name, allocated_acres, status, harvest_quantity,
	harvest_date, expiry_date, is_area_free, created_at, updated_at`

type CropAllocationRepository struct {
	db *sqlx.DB
}

func NewCropAllocationRepository(db *sqlx.DB) *CropAllocationRepository {
	return &CropAllocationRepository{db: db}
}

func (r *CropAllocationRepository) BeginTransaction(ctx context.Context) (*sqlx.Tx, error) {
	return beginTransaction(ctx, r.db, "crop_allocation")
}

func (r *CropAllocationRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, allocation *models.CropAllocation) error {
	if allocation.ID == uuid.Nil {
		allocation.ID = uuid.New()
	}
	if allocation.CreatedAt == 0 {
		allocation.CreatedAt = nowUnix()
	}
	allocation.UpdatedAt = allocation.CreatedAt

	query := `
		INSERT INTO crop_allocations (
			id, farmer_id, crop_name, allocated_acres, status, harvest_quantity,
			harvest_date, expiry_date, is_area_free, created_at, updated_at
		) VALUES (
			:id, :farmer_id, :crop_name, :allocated_acres, :status, :harvest_quantity,
			:harvest_date, :expiry_date, :is_area_free, :created_at, :updated_at
		)`

	if _, err := tx.NamedExecContext(ctx, query, allocation); err != nil {
		return fmt.Errorf("failed to create crop allocation in transaction: %w", err)
	}
	return nil
}

func (r *CropAllocationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CropAllocation, error) {
	return getCropAllocation(ctx, r.db, id)
}

func (r *CropAllocationRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.CropAllocation, error) {
	return getCropAllocation(ctx, tx, id)
}

func getCropAllocation(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*models.CropAllocation, error) {
	var allocation models.CropAllocation
	query := `SELECT ` + cropAllocationColumns + ` FROM crop_allocations WHERE id = ?`
	if err := sqlx.GetContext(ctx, q, &allocation, q.Rebind(query), id); err != nil {
		return nil, getErr(err, "crop allocation")
	}
	return &allocation, nil
}

// LockTx touches the allocation row so that concurrent submissions against
// the same batch queue behind this transaction.
func (r *CropAllocationRepository) LockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	err := utils.ExecWithCheck(ctx, tx, `UPDATE crop_allocations SET updated_at = ? WHERE id = ?`,
		utils.ExecUpdate, nowUnix(), id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("crop allocation: %w", models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock crop allocation: %w", err)
	}
	return nil
}

func (r *CropAllocationRepository) List(ctx context.Context, farmerID uuid.UUID, status *models.AllocationStatus) ([]models.CropAllocation, error) {
	allocations := []models.CropAllocation{}
	query := `SELECT ` + cropAllocationColumns + ` FROM crop_allocations WHERE farmer_id = ?`
	args := []any{farmerID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	if err := r.db.SelectContext(ctx, &allocations, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list crop allocations: %w", err)
	}
	return allocations, nil
}

// OccupiedAcres sums the acreage of allocations whose land is still in use.
func (r *CropAllocationRepository) OccupiedAcres(ctx context.Context, farmerID uuid.UUID) (float64, error) {
	return occupiedAcres(ctx, r.db, farmerID)
}

func (r *CropAllocationRepository) OccupiedAcresTx(ctx context.Context, tx *sqlx.Tx, farmerID uuid.UUID) (float64, error) {
	return occupiedAcres(ctx, tx, farmerID)
}

func occupiedAcres(ctx context.Context, q sqlx.ExtContext, farmerID uuid.UUID) (float64, error) {
	var acres float64
	query := `SELECT COALESCE(SUM(allocated_acres), 0) FROM crop_allocations WHERE farmer_id = ? AND is_area_free = ?`
	if err := sqlx.GetContext(ctx, q, &acres, q.Rebind(query), farmerID, false); err != nil {
		return 0, fmt.Errorf("failed to sum occupied acres: %w", err)
	}
	return acres, nil
}

// MarkHarvested records the harvest and frees the acreage, guarded on the
// allocation still being in the allocated state.
func (r *CropAllocationRepository) MarkHarvested(ctx context.Context, id uuid.UUID, quantity float64, harvestDate, expiryDate int64) error {
	query := `
		UPDATE crop_allocations
		SET status = ?, harvest_quantity = ?, harvest_date = ?, expiry_date = ?, is_area_free = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	return utils.ExecWithCheck(ctx, r.db, query, utils.ExecUpdate,
		models.AllocationHarvested, quantity, harvestDate, expiryDate, true, nowUnix(),
		id, models.AllocationAllocated)
}

// LatestHarvestedTx finds the farmer's most recently harvested batch of a
// crop. Crop names compare case-insensitively.
func (r *CropAllocationRepository) LatestHarvestedTx(ctx context.Context, tx *sqlx.Tx, farmerID uuid.UUID, cropName string) (*models.CropAllocation, error) {
	var allocation models.CropAllocation
	query := `
		SELECT ` + cropAllocationColumns + `
		FROM crop_allocations
		WHERE farmer_id = ? AND LOWER(crop_name) = LOWER(?) AND status = ?
		ORDER BY harvest_date DESC, created_at DESC
		LIMIT 1`
	err := tx.GetContext(ctx, &allocation, tx.Rebind(query), farmerID, cropName, models.AllocationHarvested)
	if err != nil {
		return nil, getErr(err, "crop allocation")
	}
	return &allocation, nil
}

// DrawDownTx subtracts kg from a harvested batch, clamping at zero. A batch
// drawn down to zero becomes stored. The arithmetic runs in the UPDATE so
// concurrent draws serialize on the row.
func (r *CropAllocationRepository) DrawDownTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, kg float64) (*models.CropAllocation, error) {
	query := `
		UPDATE crop_allocations
		SET harvest_quantity = CASE WHEN harvest_quantity - ? > 0 THEN harvest_quantity - ? ELSE 0 END,
		    status = CASE WHEN harvest_quantity - ? > 0 THEN ? ELSE ? END,
		    updated_at = ?
		WHERE id = ? AND status = ?`
	err := utils.ExecWithCheck(ctx, tx, query, utils.ExecUpdate,
		kg, kg, kg, models.AllocationHarvested, models.AllocationStored, nowUnix(),
		id, models.AllocationHarvested)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return nil, fmt.Errorf("crop allocation %s is not harvested: %w", id, models.ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to draw down harvest: %w", err)
	}
	return getCropAllocation(ctx, tx, id)
}

// ListExpiring returns harvested batches whose expiry_date is at or before the
// given unix time.
func (r *CropAllocationRepository) ListExpiring(ctx context.Context, before int64) ([]models.CropAllocation, error) {
	allocations := []models.CropAllocation{}
	query := `
		SELECT ` + cropAllocationColumns + `
		FROM crop_allocations
		WHERE status = ? AND expiry_date IS NOT NULL AND expiry_date <= ?
		ORDER BY expiry_date`
	if err := r.db.SelectContext(ctx, &allocations, r.db.Rebind(query), models.AllocationHarvested, before); err != nil {
		return nil, fmt.Errorf("failed to list expiring crop allocations: %w", err)
	}
	return allocations, nil
}
