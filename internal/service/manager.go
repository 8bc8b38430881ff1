package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/models"
	"slotbook/internal/repository"

	"github.com/rs/zerolog"
)

// Options configures capacity, the slot catalog and the clock.
type Options struct {
	MaxCustomersPerSlot int
	Catalog             *models.Catalog
	Now                 func() time.Time
}

// Manager owns the slot index shared by all widget sessions and is the only
// path through which bookings are created or cancelled.
//
// Writes hold mu across the store call, so two writes from this process never
// interleave. The capacity check only sees this process's index: other
// clients writing to the same store can push a slot past capacity until the
// next LoadIndex.
type Manager struct {
	store      domain.BookingStore
	selections domain.SelectionRepository
	notifier   domain.Notifier
	eventBus   domain.EventPublisher
	catalog    *models.Catalog
	maxPerSlot int
	now        func() time.Time
	logger     *zerolog.Logger

	mu          sync.RWMutex
	index       *SlotIndex
	quarantined int
}

func NewManager(
	store domain.BookingStore,
	selections domain.SelectionRepository,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	opts Options,
	logger *zerolog.Logger,
) *Manager {
	if opts.MaxCustomersPerSlot <= 0 {
		opts.MaxCustomersPerSlot = models.DefaultMaxCustomersPerSlot
	}
	if opts.Catalog == nil {
		opts.Catalog = models.MustCatalog(models.QuarterHourSlots)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if selections == nil {
		selections = repository.NewMemorySelectionRepository(models.DefaultSelectionTTL)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{
		store:      store,
		selections: selections,
		notifier:   notifier,
		eventBus:   eventBus,
		catalog:    opts.Catalog,
		maxPerSlot: opts.MaxCustomersPerSlot,
		now:        opts.Now,
		logger:     logger,
		index:      NewSlotIndex(),
	}
}

// LoadIndex replaces the index with the store contents. Malformed records are
// skipped. When the store fails the index is left empty and the manager keeps
// accepting bookings against that empty view.
func (m *Manager) LoadIndex(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.store.FetchAll(ctx)
	if err != nil {
		m.index = NewSlotIndex()
		m.quarantined = 0
		m.logger.Error().Err(err).Msg("load bookings")
		m.notify(ctx, models.MessageLoadError, domain.SeverityError)
		return fmt.Errorf("%w: %w", domain.ErrLoadFailure, err)
	}

	index := NewSlotIndex()
	quarantined := 0
	for _, rec := range records {
		booking, err := models.ParseRecord(rec)
		if err != nil {
			quarantined++
			m.logger.Warn().Err(err).Str("record_id", rec.String(models.FieldID)).Msg("skip malformed booking record")
			continue
		}
		index.Add(booking)
	}

	m.index = index
	m.quarantined = quarantined
	m.logger.Info().Int("bookings", index.Len()).Int("slots", index.Slots()).Int("quarantined", quarantined).Msg("booking index loaded")
	return nil
}

// Catalog returns the slot labels in display order.
func (m *Manager) Catalog() []string {
	return m.catalog.Labels()
}

// Capacity is the maximum number of bookings per slot.
func (m *Manager) Capacity() int {
	return m.maxPerSlot
}

func (m *Manager) Availability(date, timeLabel string) models.Availability {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.availabilityLocked(models.SlotKey{Date: date, Time: timeLabel})
}

// DaySlots returns availability for every catalog slot of date in catalog order.
func (m *Manager) DaySlots(date string) []models.Availability {
	m.mu.RLock()
	defer m.mu.RUnlock()

	labels := m.catalog.Labels()
	out := make([]models.Availability, 0, len(labels))
	for _, label := range labels {
		out = append(out, m.availabilityLocked(models.SlotKey{Date: date, Time: label}))
	}
	return out
}

func (m *Manager) availabilityLocked(key models.SlotKey) models.Availability {
	return models.NewAvailability(key, m.index.Count(key), m.maxPerSlot)
}

// SelectSlot points the session at a slot, replacing any earlier selection.
func (m *Manager) SelectSlot(ctx context.Context, sessionID, date, timeLabel string) (*models.Selection, error) {
	if err := m.checkSlot(date, timeLabel); err != nil {
		return nil, err
	}
	if m.Availability(date, timeLabel).IsFull() {
		return nil, fmt.Errorf("%w: %s", domain.ErrSlotFull, models.SlotKey{Date: date, Time: timeLabel})
	}

	sel := &models.Selection{
		SessionID:  sessionKey(sessionID),
		Date:       date,
		Time:       timeLabel,
		SelectedAt: m.now().UTC(),
	}
	if err := m.selections.SetSelection(ctx, sel); err != nil {
		return nil, fmt.Errorf("save selection: %w", err)
	}
	return sel, nil
}

func (m *Manager) CurrentSelection(ctx context.Context, sessionID string) (*models.Selection, error) {
	return m.selections.GetSelection(ctx, sessionKey(sessionID))
}

func (m *Manager) ClearSelection(ctx context.Context, sessionID string) error {
	return m.selections.ClearSelection(ctx, sessionKey(sessionID))
}

// CreateBooking books the session's selected slot for customer.
func (m *Manager) CreateBooking(
	ctx context.Context,
	sessionID, date, timeLabel string,
	customer models.Customer,
) (*models.Booking, error) {
	sessionID = sessionKey(sessionID)

	sel, err := m.selections.GetSelection(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get selection: %w", err)
	}
	if sel == nil {
		m.notify(ctx, models.MessageSelectSlot, domain.SeverityError)
		return nil, domain.ErrNoSelection
	}
	if !sel.Matches(date, timeLabel) {
		return nil, fmt.Errorf("%w: selected %s", domain.ErrSelectionMismatch, sel.Key())
	}

	customer = customer.Trimmed()
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}

	key := models.SlotKey{Date: date, Time: timeLabel}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another booking may have been accepted since the slot was selected.
	if booked := m.index.Count(key); booked >= m.maxPerSlot {
		m.clearSelection(ctx, sessionID)
		m.notify(ctx, models.MessageSlotFull, domain.SeverityError)
		m.publishEvent(events.EventBookingRejected, models.Booking{Date: date, Time: timeLabel}, booked, "slot_full")
		return nil, fmt.Errorf("%w: %s", domain.ErrSlotFull, key)
	}

	booking := models.Booking{
		Date:      date,
		Time:      timeLabel,
		Name:      customer.Name,
		Email:     customer.Email,
		Phone:     customer.Phone,
		CreatedAt: m.now().UTC(),
	}

	id, err := m.store.Insert(ctx, models.NewRecord(booking))
	if err == nil && strings.TrimSpace(id) == "" {
		err = fmt.Errorf("store returned an empty id")
	}
	if err != nil {
		m.logger.Error().Err(err).Str("slot", key.String()).Msg("save booking")
		m.notify(ctx, models.MessageBookingSaveError, domain.SeverityError)
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistFailure, err)
	}

	booking.ID = id
	m.index.Add(booking)
	m.clearSelection(ctx, sessionID)

	m.logger.Info().Str("booking_id", id).Str("slot", key.String()).Int("booked", m.index.Count(key)).Msg("booking created")
	m.notify(ctx, fmt.Sprintf("Appointment booked successfully! %s at %s", date, timeLabel), domain.SeveritySuccess)
	m.publishEvent(events.EventBookingCreated, booking, m.index.Count(key), "")

	return &booking, nil
}

// CancelBooking removes a booking after gate confirms it. A nil gate confirms.
func (m *Manager) CancelBooking(
	ctx context.Context,
	bookingID, date, timeLabel string,
	gate domain.ConfirmationGate,
) error {
	key := models.SlotKey{Date: date, Time: timeLabel}

	m.mu.RLock()
	_, ok := m.index.Find(key, bookingID)
	m.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}

	if gate == nil {
		gate = domain.AlwaysConfirm
	}
	// The gate may wait on the visitor, so it runs without holding mu.
	if !gate.Confirm(ctx, models.MessageCancelConfirm) {
		return domain.ErrCancelDeclined
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.index.Find(key, bookingID)
	if !ok {
		return domain.ErrNotFound
	}

	if err := m.store.RemoveByID(ctx, bookingID); err != nil {
		m.logger.Error().Err(err).Str("booking_id", bookingID).Msg("cancel booking")
		m.notify(ctx, models.MessageCancelError, domain.SeverityError)
		return fmt.Errorf("%w: %w", domain.ErrPersistFailure, err)
	}

	m.index.Remove(key, bookingID)

	m.logger.Info().Str("booking_id", bookingID).Str("slot", key.String()).Msg("booking cancelled")
	m.notify(ctx, models.MessageCancelled, domain.SeveritySuccess)
	m.publishEvent(events.EventBookingCancelled, booking, m.index.Count(key), "")
	return nil
}

// ListBookings returns every booking sorted by date and time label.
func (m *Manager) ListBookings() []models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index.Sorted()
}

// Stats summarizes the current index.
func (m *Manager) Stats() domain.IndexStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.IndexStats{
		Slots:       m.index.Slots(),
		Bookings:    m.index.Len(),
		Quarantined: m.quarantined,
	}
}

func (m *Manager) checkSlot(date, timeLabel string) error {
	if strings.TrimSpace(date) == "" {
		return fmt.Errorf("%w: date is required", domain.ErrInvalidDate)
	}
	if !m.catalog.Contains(timeLabel) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSlot, timeLabel)
	}
	return nil
}

func (m *Manager) clearSelection(ctx context.Context, sessionID string) {
	if err := m.selections.ClearSelection(ctx, sessionID); err != nil {
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("clear selection")
	}
}

func (m *Manager) notify(ctx context.Context, message string, severity domain.Severity) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, message, severity)
}

func (m *Manager) publishEvent(eventType string, booking models.Booking, booked int, reason string) {
	if m.eventBus == nil {
		return
	}

	remaining := m.maxPerSlot - booked
	if remaining < 0 {
		remaining = 0
	}
	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		Date:        booking.Date,
		Time:        booking.Time,
		Name:        booking.Name,
		Email:       booking.Email,
		Phone:       booking.Phone,
		BookedCount: booked,
		Remaining:   remaining,
		Reason:      reason,
		OccurredAt:  m.now().UTC(),
	}

	if err := m.eventBus.PublishJSON(eventType, payload); err != nil {
		m.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func validateCustomer(c models.Customer) error {
	var problems []string
	if c.Name == "" {
		problems = append(problems, "name is required")
	}
	if c.Email == "" {
		problems = append(problems, "email is required")
	} else if !strings.Contains(c.Email, "@") {
		problems = append(problems, "email is invalid")
	}
	if c.Phone == "" {
		problems = append(problems, "phone is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidCustomer, strings.Join(problems, "; "))
	}
	return nil
}

func sessionKey(sessionID string) string {
	if s := strings.TrimSpace(sessionID); s != "" {
		return s
	}
	return models.DefaultSessionID
}
