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

const farmerColumns = `id, passbook_number, name, mobile, state, selected_district,
	crops_cultivated, land_acres, annual_income, bank_account, ifsc_code, bank_name,
	created_at, updated_at`

type FarmerRepository struct {
	db *sqlx.DB
}

func NewFarmerRepository(db *sqlx.DB) *FarmerRepository {
	return &FarmerRepository{db: db}
}

func (r *FarmerRepository) BeginTransaction(ctx context.Context) (*sqlx.Tx, error) {
	return beginTransaction(ctx, r.db, "farmer")
}

func (r *FarmerRepository) Create(ctx context.Context, farmer *models.Farmer) error {
	if farmer.ID == uuid.Nil {
		farmer.ID = uuid.New()
	}
	if farmer.CreatedAt == 0 {
		farmer.CreatedAt = nowUnix()
	}
	farmer.UpdatedAt = farmer.CreatedAt

	query := `
		INSERT INTO farmers (
			id, passbook_number, name, mobile, state, selected_district,
			crops_cultivated, land_acres, annual_income, bank_account, ifsc_code, bank_name,
			created_at, updated_at
		) VALUES (
			:id, :passbook_number, :name, :mobile, :state, :selected_district,
			:crops_cultivated, :land_acres, :annual_income, :bank_account, :ifsc_code, :bank_name,
			:created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, farmer); err != nil {
		return fmt.Errorf("failed to create farmer: %w", err)
	}
	return nil
}

func (r *FarmerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Farmer, error) {
	return getFarmer(ctx, r.db, id)
}

func (r *FarmerRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Farmer, error) {
	return getFarmer(ctx, tx, id)
}

func getFarmer(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*models.Farmer, error) {
	var farmer models.Farmer
	query := `SELECT ` + farmerColumns + ` FROM farmers WHERE id = ?`
	if err := sqlx.GetContext(ctx, q, &farmer, q.Rebind(query), id); err != nil {
		return nil, getErr(err, "farmer")
	}
	return &farmer, nil
}

func (r *FarmerRepository) GetByPassbook(ctx context.Context, passbook string) (*models.Farmer, error) {
	var farmer models.Farmer
	query := `SELECT ` + farmerColumns + ` FROM farmers WHERE passbook_number = ?`
	if err := r.db.GetContext(ctx, &farmer, r.db.Rebind(query), passbook); err != nil {
		return nil, getErr(err, "farmer")
	}
	return &farmer, nil
}

func (r *FarmerRepository) PassbookExists(ctx context.Context, passbook string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM farmers WHERE passbook_number = ?)`
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(query), passbook); err != nil {
		return false, fmt.Errorf("failed to check passbook number: %w", err)
	}
	return exists, nil
}

// LockTx touches the farmer row so that concurrent writers to the farmer's
// land ledger queue behind this transaction.
func (r *FarmerRepository) LockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	err := utils.ExecWithCheck(ctx, tx, `UPDATE farmers SET updated_at = ? WHERE id = ?`,
		utils.ExecUpdate, nowUnix(), id)
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return fmt.Errorf("farmer: %w", models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock farmer: %w", err)
	}
	return nil
}

func (r *FarmerRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, farmer *models.Farmer) error {
	farmer.UpdatedAt = nowUnix()
	query := `
		UPDATE farmers SET
			name = :name,
			mobile = :mobile,
			state = :state,
			selected_district = :selected_district,
			crops_cultivated = :crops_cultivated,
			land_acres = :land_acres,
			annual_income = :annual_income,
			bank_account = :bank_account,
			ifsc_code = :ifsc_code,
			bank_name = :bank_name,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := tx.NamedExecContext(ctx, query, farmer)
	if err != nil {
		return fmt.Errorf("failed to update farmer in transaction: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("farmer: %w", models.ErrNotFound)
	}
	return nil
}
