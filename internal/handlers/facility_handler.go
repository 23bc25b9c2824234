package handlers

import (
	"net/http"

	"storage-service/internal/models"
	"storage-service/internal/services"
	"storage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type FacilityHandler struct {
	facilityService *services.FacilityService
}

func NewFacilityHandler(facilityService *services.FacilityService) *FacilityHandler {
	return &FacilityHandler{facilityService: facilityService}
}

func (h *FacilityHandler) Register(app *fiber.App) {
	facilityGroup := app.Group(apiPrefix + "/facilities")

	facilityGroup.Post("/", h.CreateFacility)
	facilityGroup.Get("/", h.ListFacilities)
	facilityGroup.Get("/:id", h.GetFacility)
	facilityGroup.Patch("/:id/status", h.UpdateStatus)
	facilityGroup.Get("/:id/inventory", h.GetInventory)
	facilityGroup.Post("/:id/clear", h.ClearInventory)
	facilityGroup.Get("/:id/audit", h.AuditSpace)
}

func (h *FacilityHandler) CreateFacility(c fiber.Ctx) error {
	var req models.CreateFacilityRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	facility, err := h.facilityService.Create(c.Context(), c.Get("X-User-ID"), req)
	if err != nil {
		return writeError(c, err, "CREATION_FAILED")
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(facility))
}

func (h *FacilityHandler) ListFacilities(c fiber.Ctx) error {
	filters := models.FacilityFilters{
		State:    c.Query("state"),
		District: c.Query("district"),
		Status:   models.FacilityStatus(c.Query("status")),
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return badRequest(c, "INVALID_STATUS", "status must be active or inactive")
	}

	facilities, err := h.facilityService.List(c.Context(), filters)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(facilities, len(facilities)))
}

func (h *FacilityHandler) GetFacility(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid facility id")
	}

	facility, err := h.facilityService.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(facility))
}

func (h *FacilityHandler) UpdateStatus(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid facility id")
	}

	var req models.UpdateFacilityStatusRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	facility, err := h.facilityService.SetStatus(c.Context(), id, req.Status)
	if err != nil {
		return writeError(c, err, "UPDATE_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(facility))
}

func (h *FacilityHandler) GetInventory(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid facility id")
	}

	inventory, err := h.facilityService.Inventory(c.Context(), id)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(inventory))
}

func (h *FacilityHandler) ClearInventory(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid facility id")
	}

	facility, err := h.facilityService.ClearInventory(c.Context(), id)
	if err != nil {
		return writeError(c, err, "CLEAR_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(facility))
}

func (h *FacilityHandler) AuditSpace(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid facility id")
	}

	audit, err := h.facilityService.AuditSpace(c.Context(), id)
	if err != nil {
		return writeError(c, err, "AUDIT_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(audit))
}
