package models

import "time"

const (
	// DefaultMaxCustomersPerSlot places per slot when config does not say otherwise
	DefaultMaxCustomersPerSlot = 4

	// DefaultSessionID is used when a client does not identify its session
	DefaultSessionID = "default"

	// DefaultSelectionTTL how long an unbooked selection is kept
	DefaultSelectionTTL = 30 * time.Minute

	// DateLayout is the calendar date format accepted at the API edge
	DateLayout = "2006-01-02"
)

const (
	CatalogQuarterHour = "quarter_hour"
	CatalogHourly      = "hourly"
)

const (
	MessageSelectSlot       = "Please select a time slot"
	MessageSlotFull         = "This slot is now full. Please select another time."
	MessageBookingSaveError = "Error saving booking. Please try again."
	MessageCancelConfirm    = "Are you sure you want to cancel this booking?"
	MessageCancelled        = "Booking cancelled successfully!"
	MessageCancelError      = "Error cancelling booking. Please try again."
	MessageLoadError        = "Error loading bookings"
)
