package handlers

import (
	"context"
	"fmt"
	"net/http"

	"storage-service/internal/models"
	"storage-service/internal/services"
	"storage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type StorageRequestHandler struct {
	requestService *services.StorageRequestService
}

func NewStorageRequestHandler(requestService *services.StorageRequestService) *StorageRequestHandler {
	return &StorageRequestHandler{requestService: requestService}
}

func (h *StorageRequestHandler) Register(app *fiber.App) {
	requestGroup := app.Group(apiPrefix + "/requests")

	requestGroup.Post("/", h.SubmitRequest)

	// Farmer routes - read own requests only
	ownGroup := requestGroup.Group("/read-own")
	ownGroup.Get("/list", h.ListOwnRequests)     // GET /requests/read-own/list
	ownGroup.Get("/detail/:id", h.GetOwnRequest) // GET /requests/read-own/detail/:id

	requestGroup.Get("/", h.ListRequests)
	requestGroup.Get("/:id", h.GetRequest)

	// Lifecycle transitions
	requestGroup.Post("/:id/approve", h.transitionHandler(h.requestService.Approve, "APPROVAL_FAILED"))
	requestGroup.Post("/:id/reject", h.transitionHandler(h.requestService.Reject, "REJECTION_FAILED"))
	requestGroup.Post("/:id/pay", h.transitionHandler(h.requestService.ProcessPayment, "PAYMENT_FAILED"))
	requestGroup.Post("/:id/logistics", h.transitionHandler(h.requestService.RequestLogistics, "LOGISTICS_REQUEST_FAILED"))
	requestGroup.Post("/:id/accept", h.AcceptOrder)
	requestGroup.Post("/:id/deliver", h.MarkDelivered)
}

// SubmitRequest files a request for the farmer named by X-User-ID.
func (h *StorageRequestHandler) SubmitRequest(c fiber.Ctx) error {
	farmerID, err := callerID(c)
	if err != nil {
		return writeCallerError(c, err, "FARMER")
	}

	var req models.SubmitStorageRequestRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "INVALID_REQUEST", "Invalid request body")
	}
	if req.FarmerID != uuid.Nil && req.FarmerID != farmerID {
		return writeError(c, fmt.Errorf("farmer_id does not match the caller: %w", models.ErrForbidden), "SUBMISSION_FAILED")
	}
	req.FarmerID = farmerID
	if err := req.Validate(); err != nil {
		return badRequest(c, "VALIDATION_FAILED", err.Error())
	}

	request, err := h.requestService.Submit(c.Context(), req)
	if err != nil {
		return writeError(c, err, "SUBMISSION_FAILED")
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(request))
}

func (h *StorageRequestHandler) ListRequests(c fiber.Ctx) error {
	filters, err := requestFilters(c)
	if err != nil {
		return badRequest(c, "INVALID_FACILITY_ID", "invalid facility_id")
	}
	if filters.FarmerID, err = optionalUUID(c, "farmer_id"); err != nil {
		return badRequest(c, "INVALID_FARMER_ID", "invalid farmer_id")
	}

	requests, err := h.requestService.List(c.Context(), filters)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(requests, len(requests)))
}

// ListOwnRequests lists the caller's requests; the status filters of
// ListRequests apply.
func (h *StorageRequestHandler) ListOwnRequests(c fiber.Ctx) error {
	farmerID, err := callerID(c)
	if err != nil {
		return writeCallerError(c, err, "FARMER")
	}
	filters, err := requestFilters(c)
	if err != nil {
		return badRequest(c, "INVALID_FACILITY_ID", "invalid facility_id")
	}
	filters.FarmerID = &farmerID

	requests, err := h.requestService.List(c.Context(), filters)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateListResponse(requests, len(requests)))
}

func (h *StorageRequestHandler) GetOwnRequest(c fiber.Ctx) error {
	farmerID, err := callerID(c)
	if err != nil {
		return writeCallerError(c, err, "FARMER")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid storage request id")
	}

	request, err := h.requestService.GetForFarmer(c.Context(), id, farmerID)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(request))
}

// requestFilters reads the facility and status query filters. Only a
// malformed facility_id is an error.
func requestFilters(c fiber.Ctx) (models.StorageRequestFilters, error) {
	var filters models.StorageRequestFilters
	var err error
	if filters.FacilityID, err = optionalUUID(c, "facility_id"); err != nil {
		return filters, err
	}
	if raw := c.Query("status"); raw != "" {
		status := models.RequestStatus(raw)
		filters.Status = &status
	}
	if raw := c.Query("payment_status"); raw != "" {
		status := models.PaymentStatus(raw)
		filters.PaymentStatus = &status
	}
	if raw := c.Query("logistics_status"); raw != "" {
		status := models.LogisticsStatus(raw)
		filters.LogisticsStatus = &status
	}
	return filters, nil
}

func (h *StorageRequestHandler) GetRequest(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid storage request id")
	}

	request, err := h.requestService.Get(c.Context(), id)
	if err != nil {
		return writeError(c, err, "RETRIEVAL_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(request))
}

// transitionHandler wraps the lifecycle operations that take nothing but the
// request id.
func (h *StorageRequestHandler) transitionHandler(
	op func(ctx context.Context, id uuid.UUID) (*models.StorageRequest, error),
	failureCode string,
) fiber.Handler {
	return func(c fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return badRequest(c, "INVALID_ID", "invalid storage request id")
		}

		request, err := op(c.Context(), id)
		if err != nil {
			return writeError(c, err, failureCode)
		}
		return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(request))
	}
}

// AcceptOrder is called by the logistics provider; X-User-ID must be the id
// of a registered provider and is recorded on the request.
func (h *StorageRequestHandler) AcceptOrder(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid storage request id")
	}
	providerID, err := callerID(c)
	if err != nil {
		return writeCallerError(c, err, "PROVIDER")
	}

	request, err := h.requestService.AcceptOrder(c.Context(), id, providerID)
	if err != nil {
		return writeError(c, err, "ACCEPT_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(request))
}

func (h *StorageRequestHandler) MarkDelivered(c fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return badRequest(c, "INVALID_ID", "invalid storage request id")
	}

	result, err := h.requestService.MarkDelivered(c.Context(), id)
	if err != nil {
		return writeError(c, err, "DELIVERY_FAILED")
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(result))
}
