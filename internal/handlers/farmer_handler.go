package handlers

import (
	"net/http"

	"storage-service/internal/models"
	"storage-service/internal/services"
	"storage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type FarmerHandler struct {
	farmerService *services.FarmerService
}

func NewFarmerHandler(farmerService *services.FarmerService) *FarmerHandler {
	return &FarmerHandler{farmerService: farmerService}
}

func (h *FarmerHandler) Register(app *fiber.App) {
	farmerGroup := app.Group(apiPrefix + "/farmers")

	farmerGroup.Post("/", h.RegisterFarmer)
	farmerGroup.Post("/lookup", h.LookupFarmer) // POST /farmers/lookup - passbook + name credential check
	farmerGroup.Get("/:id", h.GetFarmer)
	farmerGroup.Put("/:id", h.UpdateFarmer)
}

func (h *FarmerHandler) RegisterFarmer(c fiber.Ctx) error {
	var req models.RegisterFarmerRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	farmer, err := h.farmerService.Register(c.Context(), req)
	if err != nil {
		return writeError(c, err, "REGISTRATION_FAILED")
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(farmer))
}

func (h *FarmerHandler) LookupFarmer(c fiber.Ctx) error {
	var req models.FarmerLookupRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	farmer, err := h.farmerService.FindByPassbook(c.Context(), req.PassbookNumber, req.Name)
	if err != nil {
		return writeError(c, err, "LOOKUP_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(farmer))
}

func (h *FarmerHandler) GetFarmer(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid farmer id")
	}

	farmer, err := h.farmerService.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(farmer))
}

func (h *FarmerHandler) UpdateFarmer(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid farmer id")
	}

	var req models.UpdateFarmerRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	farmer, err := h.farmerService.Update(c.Context(), id, req)
	if err != nil {
		return writeError(c, err, "UPDATE_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(farmer))
}
