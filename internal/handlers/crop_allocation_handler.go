package handlers

import (
	"net/http"
	"strconv"
	"time"

	"storage-service/internal/models"
	"storage-service/internal/services"
	"storage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

type CropAllocationHandler struct {
	allocationService *services.CropAllocationService
}

func NewCropAllocationHandler(allocationService *services.CropAllocationService) *CropAllocationHandler {
	return &CropAllocationHandler{allocationService: allocationService}
}

func (h *CropAllocationHandler) Register(app *fiber.App) {
	allocationGroup := app.Group(apiPrefix + "/allocations")

	allocationGroup.Post("/", h.Allocate)
	allocationGroup.Get("/", h.ListAllocations)         // GET /allocations?farmer_id=&status=
	allocationGroup.Get("/remaining", h.RemainingAcres) // GET /allocations/remaining?farmer_id=
	allocationGroup.Get("/expiring", h.ListExpiring)    // GET /allocations/expiring?days=
	allocationGroup.Get("/:id", h.GetAllocation)
	allocationGroup.Post("/:id/harvest", h.Harvest)

	// Farmer routes - read own allocations only
	ownGroup := allocationGroup.Group("/read-own")
	ownGroup.Get("/list", h.ListOwnAllocations)     // GET /allocations/read-own/list?status=
	ownGroup.Get("/remaining", h.OwnRemainingAcres) // GET /allocations/read-own/remaining
	ownGroup.Get("/detail/:id", h.GetOwnAllocation) // GET /allocations/read-own/detail/:id
}

func (h *CropAllocationHandler) Allocate(c fiber.Ctx) error {
	var req models.AllocateCropRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	allocation, err := h.allocationService.Allocate(c.Context(), req)
	if err != nil {
		return writeError(c, err, "ALLOCATION_FAILED")
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(allocation))
}

func (h *CropAllocationHandler) ListAllocations(c fiber.Ctx) error {
	farmerID, err := optionalUUID(c, "farmer_id")
	if err != nil || farmerID == nil {
		return badRequest(c, "INVALID_FARMER_ID", "farmer_id query parameter is required")
	}

	var status *models.AllocationStatus
	if raw := c.Query("status"); raw != "" {
		s := models.AllocationStatus(raw)
		status = &s
	}

	allocations, err := h.allocationService.List(c.Context(), *farmerID, status)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(allocations, len(allocations)))
}

func (h *CropAllocationHandler) ListOwnAllocations(c fiber.Ctx) error {
	farmerID, err := callerID(c)
	if err != nil {
		return writeCallerError(c, err, "FARMER")
	}

	var status *models.AllocationStatus
	if raw := c.Query("status"); raw != "" {
		s := models.AllocationStatus(raw)
		status = &s
	}

	allocations, err := h.allocationService.List(c.Context(), farmerID, status)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(allocations, len(allocations)))
}

func (h *CropAllocationHandler) OwnRemainingAcres(c fiber.Ctx) error {
	farmerID, err := callerID(c)
	if err != nil {
		return writeCallerError(c, err, "FARMER")
	}

	summary, err := h.allocationService.RemainingAcres(c.Context(), farmerID)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(summary))
}

func (h *CropAllocationHandler) GetOwnAllocation(c fiber.Ctx) error {
	farmerID, err := callerID(c)
	if err != nil {
		return writeCallerError(c, err, "FARMER")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid allocation id")
	}

	allocation, err := h.allocationService.GetForFarmer(c.Context(), id, farmerID)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(allocation))
}

func (h *CropAllocationHandler) RemainingAcres(c fiber.Ctx) error {
	farmerID, err := optionalUUID(c, "farmer_id")
	if err != nil || farmerID == nil {
		return badRequest(c, "INVALID_FARMER_ID", "farmer_id query parameter is required")
	}

	summary, err := h.allocationService.RemainingAcres(c.Context(), *farmerID)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(summary))
}

func (h *CropAllocationHandler) ListExpiring(c fiber.Ctx) error {
	days := 3
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return badRequest(c, "INVALID_DAYS", "days must be a non-negative integer")
		}
		days = parsed
	}

	allocations, err := h.allocationService.ExpiringSoon(c.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(allocations, len(allocations)))
}

func (h *CropAllocationHandler) GetAllocation(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid allocation id")
	}

	allocation, err := h.allocationService.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(allocation))
}

func (h *CropAllocationHandler) Harvest(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid allocation id")
	}

	var req models.HarvestRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	allocation, err := h.allocationService.Harvest(c.Context(), id, req.Quantity)
	if err != nil {
		return writeError(c, err, "HARVEST_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(allocation))
}
