package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"storage-service/internal/models"
	"storage-service/internal/repository"
	"storage-service/internal/utils"

	"github.com/google/uuid"
)

// MarketplaceService sells delivered stock to buyers at MSP plus transport
// and GST.
type MarketplaceService struct {
	orderRepo *repository.MarketplaceOrderRepository
	pricing   *PricingService
}

func NewMarketplaceService(orderRepo *repository.MarketplaceOrderRepository, pricing *PricingService) *MarketplaceService {
	return &MarketplaceService{orderRepo: orderRepo, pricing: pricing}
}

func (s *MarketplaceService) ListProducts(ctx context.Context) ([]models.Product, error) {
	stock, err := s.orderRepo.ListDeliveredStock(ctx)
	if err != nil {
		return nil, err
	}
	ordered, err := s.orderRepo.OrderedByCrop(ctx)
	if err != nil {
		return nil, err
	}

	products := []models.Product{}
	index := map[string]int{}
	for _, row := range stock {
		i, ok := index[row.CropType]
		if !ok {
			rate, err := s.pricing.Rate(ctx, row.CropType)
			if err != nil {
				return nil, err
			}
			products = append(products, models.Product{
				CropType:        row.CropType,
				MSP:             rate,
				OrderedQuantity: ordered[row.CropType],
				Facilities:      []models.ProductFacility{},
			})
			i = len(products) - 1
			index[row.CropType] = i
		}
		products[i].TotalQuantity += row.Quantity
		products[i].Facilities = append(products[i].Facilities, models.ProductFacility{
			FacilityID:   row.FacilityID,
			FacilityName: row.FacilityName,
			Quantity:     row.Quantity,
		})
	}

	for i := range products {
		products[i].AvailableQuantity = max(products[i].TotalQuantity-products[i].OrderedQuantity, 0)
	}
	return products, nil
}

// PlaceOrder reserves stock for a buyer. Orders for one crop are serialized
// so two buyers cannot both take the last of it.
func (s *MarketplaceService) PlaceOrder(ctx context.Context, buyerID string, req models.PlaceOrderRequest) (*models.MarketplaceOrder, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be greater than 0: %w", models.ErrInvalidQuantity)
	}
	crop := utils.NormalizeKey(req.CropType)

	rate, err := s.pricing.Rate(ctx, crop)
	if err != nil {
		return nil, err
	}

	tx, err := s.orderRepo.BeginTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}

	if _, err := s.orderRepo.LockCropTx(ctx, tx, crop); err != nil {
		tx.Rollback()
		return nil, err
	}
	available, err := s.orderRepo.AvailableKgTx(ctx, tx, crop)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if req.Quantity > available {
		tx.Rollback()
		return nil, fmt.Errorf("requested %.0f kg of %s, %.0f available: %w",
			req.Quantity, crop, max(available, 0), models.ErrInsufficientStock)
	}

	charges := CalculateOrderCharges(req.Quantity, rate)
	order := &models.MarketplaceOrder{
		BuyerID:         buyerID,
		CropType:        crop,
		Quantity:        req.Quantity,
		BasePrice:       charges.BasePrice,
		TransportCharge: charges.TransportCharge,
		GST:             charges.GST,
		TotalPrice:      charges.TotalPrice,
		Status:          models.OrderPending,
	}
	if err := s.orderRepo.CreateTx(ctx, tx, order); err != nil {
		tx.Rollback()
		slog.Error("error creating marketplace order", "buyer_id", buyerID, "error", err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		slog.Error("error commiting transaction", "buyer_id", buyerID, "error", err)
		return nil, fmt.Errorf("error commiting transaction: %w", err)
	}
	return order, nil
}

func (s *MarketplaceService) CompleteOrder(ctx context.Context, id uuid.UUID) (*models.MarketplaceOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.OrderCompleted:
		return order, nil
	case models.OrderCancelled:
		return nil, fmt.Errorf("order %s was cancelled: %w", id, models.ErrInvalidTransition)
	}

	err = s.orderRepo.Complete(ctx, id)
	if err != nil && !errors.Is(err, utils.ErrNoRowsAffected) {
		return nil, err
	}
	// a lost race means someone else completed or cancelled it
	order, err = s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderCompleted {
		return nil, fmt.Errorf("order %s was %s: %w", id, order.Status, models.ErrInvalidTransition)
	}
	return order, nil
}

// CancelOrder lets a buyer withdraw their own pending order, releasing its
// kg back to the marketplace. Cancelling a cancelled order is a no-op.
func (s *MarketplaceService) CancelOrder(ctx context.Context, buyerID string, id uuid.UUID) (*models.MarketplaceOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, fmt.Errorf("order %s belongs to another buyer: %w", id, models.ErrForbidden)
	}
	switch order.Status {
	case models.OrderCancelled:
		return order, nil
	case models.OrderCompleted:
		return nil, fmt.Errorf("order %s is already completed: %w", id, models.ErrInvalidTransition)
	}

	err = s.orderRepo.Cancel(ctx, id, buyerID)
	if err != nil && !errors.Is(err, utils.ErrNoRowsAffected) {
		return nil, err
	}
	order, err = s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderCancelled {
		return nil, fmt.Errorf("order %s was %s: %w", id, order.Status, models.ErrInvalidTransition)
	}

	slog.Info("marketplace order cancelled", "order_id", id, "buyer_id", buyerID, "crop", order.CropType)
	return order, nil
}

func (s *MarketplaceService) ListOrders(ctx context.Context, buyerID string) ([]models.MarketplaceOrder, error) {
	return s.orderRepo.ListByBuyer(ctx, buyerID)
}
