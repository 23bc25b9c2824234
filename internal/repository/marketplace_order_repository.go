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

const marketplaceOrderColumns = `id, buyer_id, crop_type, quantity, base_price, transport_charge,
	gst, total_price, status, created_at, updated_at`

type MarketplaceOrderRepository struct {
	db *sqlx.DB
}

func NewMarketplaceOrderRepository(db *sqlx.DB) *MarketplaceOrderRepository {
	return &MarketplaceOrderRepository{db: db}
}

func (r *MarketplaceOrderRepository) BeginTransaction(ctx context.Context) (*sqlx.Tx, error) {
	return beginTransaction(ctx, r.db, "marketplace_order")
}

func (r *MarketplaceOrderRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, order *models.MarketplaceOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt == 0 {
		order.CreatedAt = nowUnix()
	}
	order.UpdatedAt = order.CreatedAt

	query := `
		INSERT INTO marketplace_orders (
			id, buyer_id, crop_type, quantity, base_price, transport_charge,
			gst, total_price, status, created_at, updated_at
		) VALUES (
			:id, :buyer_id, :crop_type, :quantity, :base_price, :transport_charge,
			:gst, :total_price, :status, :created_at, :updated_at
		)`

	if _, err := tx.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("failed to create marketplace order in transaction: %w", err)
	}
	return nil
}

func (r *MarketplaceOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MarketplaceOrder, error) {
	var order models.MarketplaceOrder
	query := `SELECT ` + marketplaceOrderColumns + ` FROM marketplace_orders WHERE id = ?`
	if err := r.db.GetContext(ctx, &order, r.db.Rebind(query), id); err != nil {
		return nil, getErr(err, "marketplace order")
	}
	return &order, nil
}

func (r *MarketplaceOrderRepository) ListByBuyer(ctx context.Context, buyerID string) ([]models.MarketplaceOrder, error) {
	orders := []models.MarketplaceOrder{}
	query := `SELECT ` + marketplaceOrderColumns + ` FROM marketplace_orders WHERE buyer_id = ? ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &orders, r.db.Rebind(query), buyerID); err != nil {
		return nil, fmt.Errorf("failed to list marketplace orders: %w", err)
	}
	return orders, nil
}

func (r *MarketplaceOrderRepository) Complete(ctx context.Context, id uuid.UUID) error {
	return utils.ExecWithCheck(ctx, r.db, `UPDATE marketplace_orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		utils.ExecUpdate, models.OrderCompleted, nowUnix(), id, models.OrderPending)
}

// Cancel withdraws a pending order placed by buyerID. Its kg stop counting
// against delivered stock.
func (r *MarketplaceOrderRepository) Cancel(ctx context.Context, id uuid.UUID, buyerID string) error {
	return utils.ExecWithCheck(ctx, r.db,
		`UPDATE marketplace_orders SET status = ?, updated_at = ? WHERE id = ? AND buyer_id = ? AND status = ?`,
		utils.ExecUpdate, models.OrderCancelled, nowUnix(), id, buyerID, models.OrderPending)
}

// LockCropTx serializes order placement for one crop by touching its price
// row. Returns false when the crop has no price row to lock.
func (r *MarketplaceOrderRepository) LockCropTx(ctx context.Context, tx *sqlx.Tx, cropType string) (bool, error) {
	err := utils.ExecWithCheck(ctx, tx, `UPDATE crop_msp SET msp_price = msp_price WHERE crop_name = ?`,
		utils.ExecUpdate, utils.NormalizeKey(cropType))
	if errors.Is(err, utils.ErrNoRowsAffected) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock crop: %w", err)
	}
	return true, nil
}

// ============================================================================
// STOCK
// ============================================================================

// ListDeliveredStock groups delivered, uncleared storage by crop and facility.
func (r *MarketplaceOrderRepository) ListDeliveredStock(ctx context.Context) ([]models.CropStock, error) {
	stock := []models.CropStock{}
	query := `
		SELECT LOWER(r.crop_type) AS crop_type, r.storage_facility_id AS facility_id,
		       f.name AS facility_name, SUM(r.quantity) AS quantity
		FROM storage_requests r
		JOIN storage_facilities f ON f.id = r.storage_facility_id
		WHERE r.logistics_status = ? AND r.inventory_cleared = ?
		GROUP BY LOWER(r.crop_type), r.storage_facility_id, f.name
		ORDER BY crop_type, facility_name`
	if err := r.db.SelectContext(ctx, &stock, r.db.Rebind(query), models.LogisticsDelivered, false); err != nil {
		return nil, fmt.Errorf("failed to list delivered stock: %w", err)
	}
	return stock, nil
}

// OrderedByCrop sums kg already committed to pending or completed orders.
func (r *MarketplaceOrderRepository) OrderedByCrop(ctx context.Context) (map[string]float64, error) {
	var rows []struct {
		CropType string  `db:"crop_type"`
		Quantity float64 `db:"quantity"`
	}
	query := `
		SELECT LOWER(crop_type) AS crop_type, SUM(quantity) AS quantity
		FROM marketplace_orders
		WHERE status IN (?, ?)
		GROUP BY LOWER(crop_type)`
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), models.OrderPending, models.OrderCompleted); err != nil {
		return nil, fmt.Errorf("failed to sum ordered quantities: %w", err)
	}

	ordered := make(map[string]float64, len(rows))
	for _, row := range rows {
		ordered[row.CropType] = row.Quantity
	}
	return ordered, nil
}

// AvailableKgTx is delivered, uncleared kg of a crop minus kg already ordered.
func (r *MarketplaceOrderRepository) AvailableKgTx(ctx context.Context, tx *sqlx.Tx, cropType string) (float64, error) {
	var totals struct {
		Delivered float64 `db:"delivered"`
		Ordered   float64 `db:"ordered"`
	}
	query := `
		SELECT
			(SELECT COALESCE(SUM(quantity), 0) FROM storage_requests
			 WHERE LOWER(crop_type) = LOWER(?) AND logistics_status = ? AND inventory_cleared = ?) AS delivered,
			(SELECT COALESCE(SUM(quantity), 0) FROM marketplace_orders
			 WHERE LOWER(crop_type) = LOWER(?) AND status IN (?, ?)) AS ordered`
	err := tx.GetContext(ctx, &totals, tx.Rebind(query),
		cropType, models.LogisticsDelivered, false,
		cropType, models.OrderPending, models.OrderCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to compute available stock: %w", err)
	}
	return totals.Delivered - totals.Ordered, nil
}
