package domain

import "errors"

// Common errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidID          = errors.New("invalid id format")
	ErrForbidden          = errors.New("access forbidden: you don't own this resource")
	ErrInvalidRequest     = errors.New("invalid assignment request")
	ErrBranchMismatch     = errors.New("branch mismatch: trainer, member, and request must belong to the same branch")
	ErrTrainerNotFound    = errors.New("trainer not found")
	ErrAssignmentNotFound = errors.New("trainer assignment not found")
	ErrSlotTaken          = errors.New("trainer is already booked for this time slot")
	ErrNoTrainerAvailable = errors.New("no trainer available for this request")
	ErrInvalidStatus      = errors.New("invalid assignment status")
)
