package domain

import (
	"errors"

	"slotbook/internal/models"
)

var (
	ErrLoadFailure    = errors.New("failed to load bookings")
	ErrPersistFailure = errors.New("failed to persist booking change")
)

var (
	ErrSlotFull          = errors.New("slot is full")
	ErrNotFound          = errors.New("booking not found")
	ErrUnknownSlot       = errors.New("time slot is not in the catalog")
	ErrInvalidDate       = errors.New("invalid date")
	ErrNoSelection       = errors.New("no time slot selected")
	ErrSelectionMismatch = errors.New("selected slot does not match the request")
	ErrCancelDeclined    = errors.New("cancellation was not confirmed")
)

var (
	ErrInvalidCustomer = errors.New("invalid customer details")
	ErrInvalidRecord   = models.ErrInvalidRecord
)
