package models

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientCapacity = errors.New("insufficient storage capacity")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInsufficientLand     = errors.New("insufficient land")
	ErrFacilityInactive     = errors.New("storage facility is inactive")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("concurrent update conflict")
	ErrInsufficientStock    = errors.New("insufficient stock")
)
