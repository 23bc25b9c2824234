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

const facilityColumns = `id, name, state, district, capacity, available_space, status,
	created_by, created_at, updated_at`

type StorageFacilityRepository struct {
	db *sqlx.DB
}

func NewStorageFacilityRepository(db *sqlx.DB) *StorageFacilityRepository {
	return &StorageFacilityRepository{db: db}
}

func (r *StorageFacilityRepository) BeginTransaction(ctx context.Context) (*sqlx.Tx, error) {
	return beginTransaction(ctx, r.db, "storage_facility")
}

func (r *StorageFacilityRepository) Create(ctx context.Context, facility *models.StorageFacility) error {
	if facility.ID == uuid.Nil {
		facility.ID = uuid.New()
	}
	if facility.CreatedAt == 0 {
		facility.CreatedAt = nowUnix()
	}
	facility.UpdatedAt = facility.CreatedAt

	query := `
		INSERT INTO storage_facilities (
			id, name, state, district, capacity, available_space, status,
			created_by, created_at, updated_at
		) VALUES (
			:id, :name, :state, :district, :capacity, :available_space, :status,
			:created_by, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, facility); err != nil {
		return fmt.Errorf("failed to create storage facility: %w", err)
	}
	return nil
}

func (r *StorageFacilityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.StorageFacility, error) {
	return getFacility(ctx, r.db, id)
}

func (r *StorageFacilityRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.StorageFacility, error) {
	return getFacility(ctx, tx, id)
}

func getFacility(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*models.StorageFacility, error) {
	var facility models.StorageFacility
	query := `SELECT ` + facilityColumns + ` FROM storage_facilities WHERE id = ?`
	if err := sqlx.GetContext(ctx, q, &facility, q.Rebind(query), id); err != nil {
		return nil, getErr(err, "storage facility")
	}
	return &facility, nil
}

func (r *StorageFacilityRepository) List(ctx context.Context, filters models.FacilityFilters) ([]models.StorageFacility, error) {
	facilities := []models.StorageFacility{}
	query := `SELECT ` + facilityColumns + ` FROM storage_facilities WHERE 1=1`
	args := []any{}

	if filters.State != "" {
		query += " AND LOWER(state) = LOWER(?)"
		args = append(args, filters.State)
	}
	if filters.District != "" {
		query += " AND LOWER(district) = LOWER(?)"
		args = append(args, filters.District)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	query += " ORDER BY created_at DESC"

	if err := r.db.SelectContext(ctx, &facilities, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list storage facilities: %w", err)
	}
	return facilities, nil
}

func (r *StorageFacilityRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.FacilityStatus) error {
	err := utils.ExecWithCheck(ctx, r.db, `UPDATE storage_facilities SET status = ?, updated_at = ? WHERE id = ?`,
		utils.ExecUpdate, status, nowUnix(), id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("storage facility: %w", models.ErrNotFound)
	}
	return err
}

// ReserveSpaceTx decrements available_space by tons only if the facility is
// active and has that much space left, within models.SpaceEpsilon. A
// remainder smaller than the epsilon is stored as zero so repeated small
// reservations can fill a facility exactly. It returns utils.ErrNoRowsAffected
// when the guard fails.
func (r *StorageFacilityRepository) ReserveSpaceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, tons float64) error {
	query := `
		UPDATE storage_facilities
		SET available_space = CASE WHEN available_space - ? < ? THEN 0 ELSE available_space - ? END,
		    updated_at = ?
		WHERE id = ? AND status = ? AND available_space + ? >= ?`
	return utils.ExecWithCheck(ctx, tx, query, utils.ExecUpdate,
		tons, models.SpaceEpsilon, tons, nowUnix(),
		id, models.FacilityActive, models.SpaceEpsilon, tons)
}

func (r *StorageFacilityRepository) ResetSpaceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	err := utils.ExecWithCheck(ctx, tx, `UPDATE storage_facilities SET available_space = capacity, updated_at = ? WHERE id = ?`,
		utils.ExecUpdate, nowUnix(), id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("storage facility: %w", models.ErrNotFound)
	}
	return err
}

// ============================================================================
// INVENTORY
// ============================================================================

// AddInventoryTx adds tons of cropType to the facility's inventory row,
// creating the row on first delivery.
func (r *StorageFacilityRepository) AddInventoryTx(ctx context.Context, tx *sqlx.Tx, facilityID uuid.UUID, cropType string, tons float64) error {
	now := nowUnix()
	query := `
		INSERT INTO storage_inventory (id, facility_id, crop_type, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (facility_id, crop_type)
		DO UPDATE SET quantity = storage_inventory.quantity + excluded.quantity, updated_at = excluded.updated_at`
	return utils.ExecWithCheck(ctx, tx, query, utils.ExecInsert, uuid.New(), facilityID, cropType, tons, now, now)
}

func (r *StorageFacilityRepository) ListInventory(ctx context.Context, facilityID uuid.UUID) ([]models.StorageInventory, error) {
	items := []models.StorageInventory{}
	query := `
		SELECT id, facility_id, crop_type, quantity, created_at, updated_at
		FROM storage_inventory
		WHERE facility_id = ?
		ORDER BY crop_type`
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), facilityID); err != nil {
		return nil, fmt.Errorf("failed to list storage inventory: %w", err)
	}
	return items, nil
}

func (r *StorageFacilityRepository) DeleteInventoryTx(ctx context.Context, tx *sqlx.Tx, facilityID uuid.UUID) error {
	err := utils.ExecWithCheck(ctx, tx, `DELETE FROM storage_inventory WHERE facility_id = ?`, utils.ExecDelete, facilityID)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return nil
	}
	return err
}
