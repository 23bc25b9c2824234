package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"storage-service/internal/models"
	"storage-service/internal/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const apiPrefix = "storage/api/v1"

// writeError maps a service error onto a status code and the error envelope.
// Anything unrecognised is logged and reported as fallbackCode.
func writeError(c fiber.Ctx, err error, fallbackCode string) error {
	status, code := http.StatusInternalServerError, fallbackCode
	switch {
	case errors.Is(err, models.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrInsufficientCapacity):
		status, code = http.StatusConflict, "INSUFFICIENT_CAPACITY"
	case errors.Is(err, models.ErrFacilityInactive):
		status, code = http.StatusConflict, "FACILITY_INACTIVE"
	case errors.Is(err, models.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, models.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, models.ErrInsufficientStock):
		status, code = http.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, models.ErrInsufficientLand):
		status, code = http.StatusBadRequest, "INSUFFICIENT_LAND"
	case errors.Is(err, models.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "INVALID_QUANTITY"
	case errors.Is(err, models.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(utils.CreateErrorResponse(code, "internal server error"))
	}
	return c.Status(status).JSON(utils.CreateErrorResponse(code, err.Error()))
}

var errMissingCaller = errors.New("X-User-ID header is required")

// callerID reads X-User-ID for callers identified by a uuid: farmers and
// logistics providers. Marketplace buyers stay opaque strings.
func callerID(c fiber.Ctx) (uuid.UUID, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, errMissingCaller
	}
	return uuid.Parse(raw)
}

// writeCallerError reports an unusable X-User-ID as MISSING_<role> or
// INVALID_<role>_ID.
func writeCallerError(c fiber.Ctx, err error, role string) error {
	if errors.Is(err, errMissingCaller) {
		return badRequest(c, "MISSING_"+role, err.Error())
	}
	return badRequest(c, "INVALID_"+role+"_ID", "X-User-ID is not a valid id")
}

func badRequest(c fiber.Ctx, code, message string) error {
	return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse(code, message))
}

func paramID(c fiber.Ctx, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Params(name))
}

// optionalUUID parses a query value; an absent value yields nil.
func optionalUUID(c fiber.Ctx, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func queryFloat(c fiber.Ctx, key string, defaultValue float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(raw, 64)
}
