package handlers

import (
	"net/http"
	"strings"

	"storage-service/internal/services"
	"storage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type PricingHandler struct {
	pricingService *services.PricingService
}

func NewPricingHandler(pricingService *services.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: pricingService}
}

func (h *PricingHandler) Register(app *fiber.App) {
	pricingGroup := app.Group(apiPrefix + "/pricing")

	pricingGroup.Get("/msp", h.QuoteMSP)  // GET /pricing/msp?crop=&quantity=
	pricingGroup.Get("/tax", h.FarmerTax) // GET /pricing/tax?income=
}

func (h *PricingHandler) QuoteMSP(c fiber.Ctx) error {
	crop := strings.TrimSpace(c.Query("crop"))
	if crop == "" {
		return badRequest(c, "INVALID_CROP", "crop query parameter is required")
	}
	quantity, err := queryFloat(c, "quantity", 1)
	if err != nil || quantity < 0 {
		return badRequest(c, "INVALID_QUANTITY", "quantity must be a non-negative number")
	}

	quote, err := h.pricingService.Quote(c.Context(), quantity, crop)
	if err != nil {
		return writeError(c, err, "PRICING_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(quote))
}

func (h *PricingHandler) FarmerTax(c fiber.Ctx) error {
	income, err := queryFloat(c, "income", -1)
	if err != nil || income < 0 {
		return badRequest(c, "INVALID_INCOME", "income must be a non-negative number")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(services.CalculateFarmerTax(income)))
}
