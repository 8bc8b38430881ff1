package domain

import (
	"context"

	"slotbook/internal/models"
)

// BookingStore is the persistence backend for booking records.
// RemoveByID of an unknown id is not an error.
type BookingStore interface {
	FetchAll(ctx context.Context) ([]models.BookingRecord, error)
	Insert(ctx context.Context, record models.BookingRecord) (string, error)
	RemoveByID(ctx context.Context, id string) error
}

type SelectionRepository interface {
	GetSelection(ctx context.Context, sessionID string) (*models.Selection, error)
	SetSelection(ctx context.Context, selection *models.Selection) error
	ClearSelection(ctx context.Context, sessionID string) error
}

// ConfirmationGate asks the visitor a yes/no question. It may block until
// the visitor answers or ctx is done.
type ConfirmationGate interface {
	Confirm(ctx context.Context, message string) bool
}

type ConfirmFunc func(ctx context.Context, message string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool {
	return f(ctx, message)
}

var (
	AlwaysConfirm ConfirmationGate = ConfirmFunc(func(context.Context, string) bool { return true })
	NeverConfirm  ConfirmationGate = ConfirmFunc(func(context.Context, string) bool { return false })
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notifier shows a short message to the visitor. Fire and forget.
type Notifier interface {
	Notify(ctx context.Context, message string, severity Severity)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// IndexStats summarizes the in-memory slot index.
type IndexStats struct {
	Slots       int `json:"slots"`
	Bookings    int `json:"bookings"`
	Quarantined int `json:"quarantined"`
}

type BookingManager interface {
	LoadIndex(ctx context.Context) error
	Catalog() []string
	Capacity() int
	Availability(date, timeLabel string) models.Availability
	DaySlots(date string) []models.Availability
	SelectSlot(ctx context.Context, sessionID, date, timeLabel string) (*models.Selection, error)
	CurrentSelection(ctx context.Context, sessionID string) (*models.Selection, error)
	ClearSelection(ctx context.Context, sessionID string) error
	CreateBooking(ctx context.Context, sessionID, date, timeLabel string, customer models.Customer) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID, date, timeLabel string, gate ConfirmationGate) error
	ListBookings() []models.Booking
	Stats() IndexStats
}
