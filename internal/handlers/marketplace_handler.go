package handlers

import (
	"net/http"

	"storage-service/internal/models"
	"storage-service/internal/services"
	"storage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type MarketplaceHandler struct {
	marketplaceService *services.MarketplaceService
}

func NewMarketplaceHandler(marketplaceService *services.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{marketplaceService: marketplaceService}
}

func (h *MarketplaceHandler) Register(app *fiber.App) {
	marketGroup := app.Group(apiPrefix + "/marketplace")

	marketGroup.Get("/products", h.ListProducts)
	marketGroup.Post("/orders", h.PlaceOrder)
	marketGroup.Get("/orders", h.ListOrders)
	marketGroup.Post("/orders/:id/complete", h.CompleteOrder)
	marketGroup.Post("/orders/:id/cancel", h.CancelOrder)
}

func (h *MarketplaceHandler) ListProducts(c fiber.Ctx) error {
	products, err := h.marketplaceService.ListProducts(c.Context())
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(products, len(products)))
}

func (h *MarketplaceHandler) PlaceOrder(c fiber.Ctx) error {
	buyerID := c.Get("X-User-ID")
	if buyerID == "" {
		return badRequest(c, "MISSING_BUYER", "X-User-ID header is required")
	}

	var req models.PlaceOrderRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	order, err := h.marketplaceService.PlaceOrder(c.Context(), buyerID, req)
	if err != nil {
		return writeError(c, err, "ORDER_FAILED")
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(order))
}

func (h *MarketplaceHandler) ListOrders(c fiber.Ctx) error {
	buyerID := c.Get("X-User-ID")
	if buyerID == "" {
		return badRequest(c, "MISSING_BUYER", "X-User-ID header is required")
	}

	orders, err := h.marketplaceService.ListOrders(c.Context(), buyerID)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(orders, len(orders)))
}

func (h *MarketplaceHandler) CompleteOrder(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid order id")
	}

	order, err := h.marketplaceService.CompleteOrder(c.Context(), id)
	if err != nil {
		return writeError(c, err, "COMPLETION_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(order))
}

// CancelOrder withdraws one of the caller's pending orders.
func (h *MarketplaceHandler) CancelOrder(c fiber.Ctx) error {
	buyerID := c.Get("X-User-ID")
	if buyerID == "" {
		return badRequest(c, "MISSING_BUYER", "X-User-ID header is required")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid order id")
	}

	order, err := h.marketplaceService.CancelOrder(c.Context(), buyerID, id)
	if err != nil {
		return writeError(c, err, "CANCELLATION_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(order))
}
