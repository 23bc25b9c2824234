package repository

import (
	"context"
	"fmt"

	"storage-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const logisticsProviderColumns = `id, company_name, license_number, contact_person, phone, email,
	state, district, available_vehicles, rating, created_at, updated_at`

type LogisticsProviderRepository struct {
	db *sqlx.DB
}

func NewLogisticsProviderRepository(db *sqlx.DB) *LogisticsProviderRepository {
	return &LogisticsProviderRepository{db: db}
}

func (r *LogisticsProviderRepository) Create(ctx context.Context, provider *models.LogisticsProvider) error {
	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
	}
	if provider.CreatedAt == 0 {
		provider.CreatedAt = nowUnix()
	}
	provider.UpdatedAt = provider.CreatedAt

	query := `
		INSERT INTO logistics_providers (
			id, company_name, license_number, contact_person, phone, email,
			state, district, available_vehicles, rating, created_at, updated_at
		) VALUES (
			:id, :company_name, :license_number, :contact_person, :phone, :email,
			:state, :district, :available_vehicles, :rating, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, provider); err != nil {
		return fmt.Errorf("failed to create logistics provider: %w", err)
	}
	return nil
}

func (r *LogisticsProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LogisticsProvider, error) {
	var provider models.LogisticsProvider
	query := `SELECT ` + logisticsProviderColumns + ` FROM logistics_providers WHERE id = ?`
	if err := r.db.GetContext(ctx, &provider, r.db.Rebind(query), id); err != nil {
		return nil, getErr(err, "logistics provider")
	}
	return &provider, nil
}

func (r *LogisticsProviderRepository) LicenseExists(ctx context.Context, licenseNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM logistics_providers WHERE license_number = ?)`
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(query), licenseNumber); err != nil {
		return false, fmt.Errorf("failed to check license number: %w", err)
	}
	return exists, nil
}

// ListByDistrict returns the providers serving a district, best rated first.
// Districts compare case-insensitively.
func (r *LogisticsProviderRepository) ListByDistrict(ctx context.Context, district string) ([]models.LogisticsProvider, error) {
	providers := []models.LogisticsProvider{}
	query := `
		SELECT ` + logisticsProviderColumns + `
		FROM logistics_providers
		WHERE LOWER(district) = LOWER(?)
		ORDER BY rating DESC, company_name`
	if err := r.db.SelectContext(ctx, &providers, r.db.Rebind(query), district); err != nil {
		return nil, fmt.Errorf("failed to list logistics providers: %w", err)
	}
	return providers, nil
}

func (r *LogisticsProviderRepository) Update(ctx context.Context, provider *models.LogisticsProvider) error {
	provider.UpdatedAt = nowUnix()
	query := `
		UPDATE logistics_providers SET
			company_name = :company_name,
			contact_person = :contact_person,
			phone = :phone,
			email = :email,
			state = :state,
			district = :district,
			available_vehicles = :available_vehicles,
			rating = :rating,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, provider)
	if err != nil {
		return fmt.Errorf("failed to update logistics provider: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("logistics provider: %w", models.ErrNotFound)
	}
	return nil
}
