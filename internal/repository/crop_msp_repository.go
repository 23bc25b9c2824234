package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"storage-service/internal/database/redis"
	"storage-service/internal/models"
	"storage-service/internal/utils"

	"github.com/jmoiron/sqlx"
)

const mspCacheKeyPrefix = "storage:msp:"

// CropMSPRepository reads minimum support prices. When a redis client is
// configured prices are cached for ttl; cache failures fall through to the
// database.
type CropMSPRepository struct {
	db    *sqlx.DB
	cache *redis.Client
	ttl   time.Duration
}

func NewCropMSPRepository(db *sqlx.DB, cache *redis.Client, ttl time.Duration) *CropMSPRepository {
	return &CropMSPRepository{db: db, cache: cache, ttl: ttl}
}

// GetPrice returns the per-kg price for a crop and whether one is on record.
func (r *CropMSPRepository) GetPrice(ctx context.Context, cropName string) (float64, bool, error) {
	key := utils.NormalizeKey(cropName)

	if r.cache != nil {
		cached, ok, err := r.cache.GetString(ctx, mspCacheKeyPrefix+key)
		if err != nil {
			slog.Warn("msp cache read failed", "crop", key, "error", err)
		} else if ok {
			if price, err := strconv.ParseFloat(cached, 64); err == nil {
				return price, true, nil
			}
		}
	}

	var prices []float64
	query := `SELECT msp_price FROM crop_msp WHERE crop_name = ?`
	if err := r.db.SelectContext(ctx, &prices, r.db.Rebind(query), key); err != nil {
		return 0, false, fmt.Errorf("failed to get msp price: %w", err)
	}
	if len(prices) == 0 {
		return 0, false, nil
	}

	if r.cache != nil {
		value := strconv.FormatFloat(prices[0], 'f', -1, 64)
		if err := r.cache.SetString(ctx, mspCacheKeyPrefix+key, value, r.ttl); err != nil {
			slog.Warn("msp cache write failed", "crop", key, "error", err)
		}
	}
	return prices[0], true, nil
}

func (r *CropMSPRepository) List(ctx context.Context) ([]models.CropMSP, error) {
	prices := []models.CropMSP{}
	query := `SELECT crop_name, msp_price FROM crop_msp ORDER BY crop_name`
	if err := r.db.SelectContext(ctx, &prices, query); err != nil {
		return nil, fmt.Errorf("failed to list msp prices: %w", err)
	}
	return prices, nil
}

// Upsert sets a crop's price and evicts the cached value.
func (r *CropMSPRepository) Upsert(ctx context.Context, cropName string, price float64) error {
	key := utils.NormalizeKey(cropName)
	query := `
		INSERT INTO crop_msp (crop_name, msp_price) VALUES (?, ?)
		ON CONFLICT (crop_name) DO UPDATE SET msp_price = excluded.msp_price`
	if err := utils.ExecWithCheck(ctx, r.db, query, utils.ExecInsert, key, price); err != nil {
		return fmt.Errorf("failed to upsert msp price: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Delete(ctx, mspCacheKeyPrefix+key); err != nil {
			slog.Warn("msp cache evict failed", "crop", key, "error", err)
		}
	}
	return nil
}
