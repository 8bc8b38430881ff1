package worker

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/events"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
)

// BookingWriter receives the full booking list on every sync.
type BookingWriter interface {
	ReplaceBookings(ctx context.Context, bookings []models.Booking) error
}

// SyncWorker mirrors the booking list to an external sheet. Booking events
// only mark the mirror dirty; bursts within the debounce window collapse into
// one write of the current list.
type SyncWorker struct {
	writer   BookingWriter
	source   func() []models.Booking
	retry    RetryPolicy
	debounce time.Duration
	trigger  chan struct{}
	logger   *zerolog.Logger
}

func NewSyncWorker(
	writer BookingWriter,
	source func() []models.Booking,
	retry RetryPolicy,
	debounce time.Duration,
	logger *zerolog.Logger,
) *SyncWorker {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SyncWorker{
		writer:   writer,
		source:   source,
		retry:    retry.WithDefaults(),
		debounce: debounce,
		trigger:  make(chan struct{}, 1),
		logger:   logger,
	}
}

func (w *SyncWorker) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(w.HandleEvent, events.EventBookingCreated, events.EventBookingCancelled)
}

func (w *SyncWorker) HandleEvent(*events.Event) error {
	w.Notify()
	return nil
}

// Notify schedules a sync without blocking.
func (w *SyncWorker) Notify() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start runs the sync loop until ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("debounce", w.debounce).Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
		}

		timer := time.NewTimer(w.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// events that arrived during the debounce are covered by this sync
		select {
		case <-w.trigger:
		default:
		}

		if err := w.SyncOnce(ctx); err != nil {
			w.logger.Error().Err(err).Msg("booking sync failed")
		}
	}
}

// SyncOnce writes the current booking list, retrying per the policy.
func (w *SyncWorker) SyncOnce(ctx context.Context) error {
	err := w.retry.Do(ctx, func(attempt int) error {
		bookings := w.source()
		if err := w.writer.ReplaceBookings(ctx, bookings); err != nil {
			w.logger.Warn().Err(err).Int("attempt", attempt).Msg("booking sync attempt failed")
			return err
		}
		w.logger.Info().Int("bookings", len(bookings)).Msg("booking sync completed")
		return nil
	})
	if err != nil {
		return fmt.Errorf("sync bookings: %w", err)
	}
	return nil
}
