package handlers

import (
	"fmt"
	"net/http"

	"storage-service/internal/models"
	"storage-service/internal/services"
	"storage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type LogisticsHandler struct {
	logisticsService *services.LogisticsService
}

func NewLogisticsHandler(logisticsService *services.LogisticsService) *LogisticsHandler {
	return &LogisticsHandler{logisticsService: logisticsService}
}

func (h *LogisticsHandler) Register(app *fiber.App) {
	providerGroup := app.Group(apiPrefix + "/logistics-providers")

	providerGroup.Post("/", h.RegisterProvider)
	providerGroup.Get("/", h.ListProviders)                      // GET /logistics-providers?district=
	providerGroup.Get("/for-request/:id", h.ProvidersForRequest) // GET /logistics-providers/for-request/:id
	providerGroup.Get("/:id", h.GetProvider)
	providerGroup.Put("/:id", h.UpdateProvider)
}

func (h *LogisticsHandler) RegisterProvider(c fiber.Ctx) error {
	var req models.RegisterLogisticsProviderRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	provider, err := h.logisticsService.Register(c.Context(), req)
	if err != nil {
		return writeError(c, err, "REGISTRATION_FAILED")
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(provider))
}

func (h *LogisticsHandler) ListProviders(c fiber.Ctx) error {
	district := c.Query("district")
	if district == "" {
		return badRequest(c, "MISSING_DISTRICT", "district query parameter is required")
	}

	providers, err := h.logisticsService.ListByDistrict(c.Context(), district)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(providers, len(providers)))
}

func (h *LogisticsHandler) ProvidersForRequest(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid storage request id")
	}

	providers, err := h.logisticsService.ProvidersForRequest(c.Context(), id)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(providers, len(providers)))
}

func (h *LogisticsHandler) GetProvider(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid logistics provider id")
	}

	provider, err := h.logisticsService.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(provider))
}

// UpdateProvider edits a profile; only the provider itself may do so.
func (h *LogisticsHandler) UpdateProvider(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid logistics provider id")
	}
	providerID, err := callerID(c)
	if err != nil {
		return writeCallerError(c, err, "PROVIDER")
	}
	if providerID != id {
		return writeError(c, fmt.Errorf("logistics provider %s: %w", id, models.ErrForbidden), "UPDATE_FAILED")
	}

	var req models.UpdateLogisticsProviderRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	provider, err := h.logisticsService.Update(c.Context(), id, req)
	if err != nil {
		return writeError(c, err, "UPDATE_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(provider))
}
