package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/models"
	"slotbook/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testDate = "2024-01-10"
	slot9    = "09:00 AM"
	slot10   = "10:00 AM"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookingRecord), args.Error(1)
}

func (m *mockStore) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	args := m.Called(ctx, record)
	return args.String(0), args.Error(1)
}

func (m *mockStore) RemoveByID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) Confirm(ctx context.Context, message string) bool {
	return m.Called(ctx, message).Bool(0)
}

type notice struct {
	message  string
	severity domain.Severity
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(_ context.Context, message string, severity domain.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{message, severity})
}

func (n *recordingNotifier) last() notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return notice{}
	}
	return n.notices[len(n.notices)-1]
}

var fixedNow = time.Date(2024, 1, 9, 15, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, store domain.BookingStore) (*Manager, *recordingNotifier, *events.EventBus) {
	t.Helper()
	notifier := &recordingNotifier{}
	bus := events.NewEventBus()
	m := NewManager(store, repository.NewMemorySelectionRepository(time.Hour), notifier, bus, Options{
		MaxCustomersPerSlot: 4,
		Catalog:             models.MustCatalog([]string{slot9, slot10}),
		Now:                 func() time.Time { return fixedNow },
	}, nil)
	return m, notifier, bus
}

func customer(name string) models.Customer {
	return models.Customer{Name: name, Email: name + "@example.com", Phone: "555-0100"}
}

func book(t *testing.T, m *Manager, session, date, slot, name string) *models.Booking {
	t.Helper()
	ctx := context.Background()
	_, err := m.SelectSlot(ctx, session, date, slot)
	require.NoError(t, err)
	b, err := m.CreateBooking(ctx, session, date, slot, customer(name))
	require.NoError(t, err)
	return b
}

func TestManager_CapacityScenario(t *testing.T) {
	m, notifier, _ := newTestManager(t, repository.NewMemoryBookingStore())
	ctx := context.Background()
	require.NoError(t, m.LoadIndex(ctx))

	var ids []string
	for i, name := range []string{"ann", "bob", "cid", "dee"} {
		b := book(t, m, "s", testDate, slot9, name)
		ids = append(ids, b.ID)
		assert.Equal(t, i+1, m.Availability(testDate, slot9).BookedCount)
	}
	assert.Equal(t, notice{"Appointment booked successfully! 2024-01-10 at 09:00 AM", domain.SeveritySuccess}, notifier.last())

	full := m.Availability(testDate, slot9)
	assert.Equal(t, models.SlotFull, full.Status)
	assert.Equal(t, "FULL", full.Label())

	t.Run("FifthSelectionRefused", func(t *testing.T) {
		_, err := m.SelectSlot(ctx, "late", testDate, slot9)
		assert.ErrorIs(t, err, domain.ErrSlotFull)
	})

	t.Run("CancelFreesOnePlace", func(t *testing.T) {
		require.NoError(t, m.CancelBooking(ctx, ids[1], testDate, slot9, domain.AlwaysConfirm))
		a := m.Availability(testDate, slot9)
		assert.Equal(t, 3, a.BookedCount)
		assert.Equal(t, models.SlotLimited, a.Status)
		assert.Equal(t, "1 spot left", a.Label())
		assert.Equal(t, notice{models.MessageCancelled, domain.SeveritySuccess}, notifier.last())
	})

	t.Run("CancelTwiceIsNotFound", func(t *testing.T) {
		err := m.CancelBooking(ctx, ids[1], testDate, slot9, domain.AlwaysConfirm)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("OtherSlotUnaffected", func(t *testing.T) {
		a := m.Availability(testDate, slot10)
		assert.Equal(t, 0, a.BookedCount)
		assert.Equal(t, models.SlotAvailable, a.Status)
	})
}

func TestManager_CreateBookingRejectsWhenFilledAfterSelection(t *testing.T) {
	m, notifier, bus := newTestManager(t, repository.NewMemoryBookingStore())
	ctx := context.Background()

	var rejected []events.BookingEventPayload
	bus.Subscribe(events.EventBookingRejected, func(e *events.Event) error {
		p, err := events.DecodeBookingPayload(e)
		rejected = append(rejected, p)
		return err
	})

	_, err := m.SelectSlot(ctx, "slow", testDate, slot9)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c", "d"} {
		book(t, m, name, testDate, slot9, name)
	}

	_, err = m.CreateBooking(ctx, "slow", testDate, slot9, customer("slow"))
	assert.ErrorIs(t, err, domain.ErrSlotFull)
	assert.Equal(t, notice{models.MessageSlotFull, domain.SeverityError}, notifier.last())
	assert.Equal(t, 4, m.Availability(testDate, slot9).BookedCount)

	sel, err := m.CurrentSelection(ctx, "slow")
	require.NoError(t, err)
	assert.Nil(t, sel, "selection is cleared after a full-slot rejection")

	require.Len(t, rejected, 1)
	assert.Equal(t, "slot_full", rejected[0].Reason)
	assert.Equal(t, 0, rejected[0].Remaining)
}

func TestManager_CreateBookingValidation(t *testing.T) {
	store := new(mockStore)
	m, notifier, _ := newTestManager(t, store)
	ctx := context.Background()

	t.Run("NoSelection", func(t *testing.T) {
		_, err := m.CreateBooking(ctx, "", testDate, slot9, customer("ann"))
		assert.ErrorIs(t, err, domain.ErrNoSelection)
		assert.Equal(t, notice{models.MessageSelectSlot, domain.SeverityError}, notifier.last())
	})

	t.Run("SelectionMismatch", func(t *testing.T) {
		_, err := m.SelectSlot(ctx, "s", testDate, slot10)
		require.NoError(t, err)
		_, err = m.CreateBooking(ctx, "s", testDate, slot9, customer("ann"))
		assert.ErrorIs(t, err, domain.ErrSelectionMismatch)
	})

	t.Run("InvalidCustomer", func(t *testing.T) {
		_, err := m.SelectSlot(ctx, "s", testDate, slot9)
		require.NoError(t, err)
		_, err = m.CreateBooking(ctx, "s", testDate, slot9, models.Customer{Name: "  ", Email: "nope", Phone: ""})
		require.ErrorIs(t, err, domain.ErrInvalidCustomer)
		assert.Contains(t, err.Error(), "name is required")
		assert.Contains(t, err.Error(), "email is invalid")
		assert.Contains(t, err.Error(), "phone is required")
	})

	t.Run("UnknownSlot", func(t *testing.T) {
		_, err := m.SelectSlot(ctx, "s", testDate, "03:00 AM")
		assert.ErrorIs(t, err, domain.ErrUnknownSlot)
		_, err = m.SelectSlot(ctx, "s", " ", slot9)
		assert.ErrorIs(t, err, domain.ErrInvalidDate)
	})

	store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestManager_PersistFailureKeepsSelection(t *testing.T) {
	store := new(mockStore)
	m, notifier, _ := newTestManager(t, store)
	ctx := context.Background()

	store.On("Insert", mock.Anything, mock.Anything).Return("", errors.New("disk full")).Once()

	_, err := m.SelectSlot(ctx, "s", testDate, slot9)
	require.NoError(t, err)
	_, err = m.CreateBooking(ctx, "s", testDate, slot9, customer("ann"))
	assert.ErrorIs(t, err, domain.ErrPersistFailure)
	assert.Equal(t, notice{models.MessageBookingSaveError, domain.SeverityError}, notifier.last())
	assert.Equal(t, 0, m.Availability(testDate, slot9).BookedCount)

	sel, err := m.CurrentSelection(ctx, "s")
	require.NoError(t, err)
	assert.True(t, sel.Matches(testDate, slot9))

	t.Run("EmptyIDIsAFailure", func(t *testing.T) {
		store.On("Insert", mock.Anything, mock.Anything).Return("  ", nil).Once()
		_, err := m.CreateBooking(ctx, "s", testDate, slot9, customer("ann"))
		assert.ErrorIs(t, err, domain.ErrPersistFailure)
	})

	t.Run("RetrySucceeds", func(t *testing.T) {
		store.On("Insert", mock.Anything, mock.MatchedBy(func(rec models.BookingRecord) bool {
			_, hasID := rec[models.FieldID]
			return !hasID && rec.String(models.FieldName) == "ann" && rec.String(models.FieldDate) == testDate
		})).Return("id-1", nil).Once()

		b, err := m.CreateBooking(ctx, "s", testDate, slot9, customer(" ann "))
		require.NoError(t, err)
		assert.Equal(t, "id-1", b.ID)
		assert.Equal(t, "ann", b.Name)
		assert.Equal(t, fixedNow, b.CreatedAt)
	})
	store.AssertExpectations(t)
}

func TestManager_CancelBooking(t *testing.T) {
	store := new(mockStore)
	m, notifier, bus := newTestManager(t, store)
	ctx := context.Background()

	store.On("FetchAll", mock.Anything).Return([]models.BookingRecord{
		{models.FieldID: "b1", models.FieldDate: testDate, models.FieldTime: slot9, models.FieldName: "ann"},
		{models.FieldID: "b2", models.FieldDate: testDate, models.FieldTime: slot9, models.FieldName: "bob"},
	}, nil).Once()
	require.NoError(t, m.LoadIndex(ctx))

	var cancelled []string
	bus.Subscribe(events.EventBookingCancelled, func(e *events.Event) error {
		p, err := events.DecodeBookingPayload(e)
		cancelled = append(cancelled, p.BookingID)
		return err
	})

	t.Run("UnknownIDNeverReachesStore", func(t *testing.T) {
		gate := new(mockGate)
		err := m.CancelBooking(ctx, "ghost", testDate, slot9, gate)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		gate.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)

		// right id, wrong slot
		err = m.CancelBooking(ctx, "b1", testDate, slot10, gate)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		store.AssertNotCalled(t, "RemoveByID", mock.Anything, mock.Anything)
	})

	t.Run("Declined", func(t *testing.T) {
		gate := new(mockGate)
		gate.On("Confirm", mock.Anything, models.MessageCancelConfirm).Return(false).Once()

		err := m.CancelBooking(ctx, "b1", testDate, slot9, gate)
		assert.ErrorIs(t, err, domain.ErrCancelDeclined)
		assert.Equal(t, 2, m.Availability(testDate, slot9).BookedCount)
		store.AssertNotCalled(t, "RemoveByID", mock.Anything, mock.Anything)
		gate.AssertExpectations(t)
	})

	t.Run("StoreFailureKeepsBooking", func(t *testing.T) {
		store.On("RemoveByID", mock.Anything, "b1").Return(errors.New("timeout")).Once()

		err := m.CancelBooking(ctx, "b1", testDate, slot9, nil)
		assert.ErrorIs(t, err, domain.ErrPersistFailure)
		assert.Equal(t, notice{models.MessageCancelError, domain.SeverityError}, notifier.last())
		assert.Equal(t, 2, m.Availability(testDate, slot9).BookedCount)
	})

	t.Run("Confirmed", func(t *testing.T) {
		store.On("RemoveByID", mock.Anything, "b1").Return(nil).Once()

		require.NoError(t, m.CancelBooking(ctx, "b1", testDate, slot9, domain.AlwaysConfirm))
		assert.Equal(t, 1, m.Availability(testDate, slot9).BookedCount)
		assert.Equal(t, []string{"b1"}, cancelled)
	})

	t.Run("GateRemovalRace", func(t *testing.T) {
		store.On("RemoveByID", mock.Anything, "b2").Return(nil).Once()

		// The booking disappears while the gate waits on the visitor.
		gate := domain.ConfirmFunc(func(ctx context.Context, _ string) bool {
			require.NoError(t, m.CancelBooking(ctx, "b2", testDate, slot9, domain.AlwaysConfirm))
			return true
		})
		err := m.CancelBooking(ctx, "b2", testDate, slot9, gate)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.False(t, m.index.Has(models.SlotKey{Date: testDate, Time: slot9}))
	})

	store.AssertExpectations(t)
}

func TestManager_LoadIndex(t *testing.T) {
	t.Run("QuarantinesMalformedRecords", func(t *testing.T) {
		store := new(mockStore)
		m, _, _ := newTestManager(t, store)
		store.On("FetchAll", mock.Anything).Return([]models.BookingRecord{
			{models.FieldID: "ok", models.FieldDate: testDate, models.FieldTime: slot9},
			{models.FieldDate: testDate, models.FieldTime: slot9},
			{models.FieldID: "no-time", models.FieldDate: testDate},
		}, nil).Once()

		require.NoError(t, m.LoadIndex(context.Background()))
		assert.Equal(t, domain.IndexStats{Slots: 1, Bookings: 1, Quarantined: 2}, m.Stats())
	})

	t.Run("FailureLeavesEmptyIndex", func(t *testing.T) {
		store := new(mockStore)
		m, notifier, _ := newTestManager(t, store)
		store.On("FetchAll", mock.Anything).Return([]models.BookingRecord{
			{models.FieldID: "b1", models.FieldDate: testDate, models.FieldTime: slot9},
		}, nil).Once()
		require.NoError(t, m.LoadIndex(context.Background()))

		store.On("FetchAll", mock.Anything).Return(nil, errors.New("offline")).Once()
		err := m.LoadIndex(context.Background())
		assert.ErrorIs(t, err, domain.ErrLoadFailure)
		assert.Equal(t, notice{models.MessageLoadError, domain.SeverityError}, notifier.last())
		assert.Equal(t, 0, m.Stats().Bookings)
		assert.Empty(t, m.ListBookings())
	})

	t.Run("StoreOrderIsKeptWithinSlot", func(t *testing.T) {
		store := repository.NewMemoryBookingStore(
			models.BookingRecord{models.FieldID: "z", models.FieldDate: testDate, models.FieldTime: slot10},
			models.BookingRecord{models.FieldID: "y", models.FieldDate: testDate, models.FieldTime: slot9},
			models.BookingRecord{models.FieldID: "x", models.FieldDate: testDate, models.FieldTime: slot10},
			models.BookingRecord{models.FieldID: "w", models.FieldDate: "2024-01-09", models.FieldTime: slot10},
		)
		m, _, _ := newTestManager(t, store)
		require.NoError(t, m.LoadIndex(context.Background()))

		var ids []string
		for _, b := range m.ListBookings() {
			ids = append(ids, b.ID)
		}
		assert.Equal(t, []string{"w", "y", "z", "x"}, ids)
	})
}

func TestManager_DaySlots(t *testing.T) {
	m, _, _ := newTestManager(t, repository.NewMemoryBookingStore())
	book(t, m, "s", testDate, slot10, "ann")

	slots := m.DaySlots(testDate)
	require.Len(t, slots, 2)
	assert.Equal(t, slot9, slots[0].Time)
	assert.Equal(t, 0, slots[0].BookedCount)
	assert.Equal(t, slot10, slots[1].Time)
	assert.Equal(t, 3, slots[1].Remaining)
	assert.Equal(t, []string{slot9, slot10}, m.Catalog())
	assert.Equal(t, 4, m.Capacity())
}

func TestManager_SelectionPerSession(t *testing.T) {
	m, _, _ := newTestManager(t, repository.NewMemoryBookingStore())
	ctx := context.Background()

	_, err := m.SelectSlot(ctx, "", testDate, slot9)
	require.NoError(t, err)
	_, err = m.SelectSlot(ctx, "other", testDate, slot10)
	require.NoError(t, err)

	sel, err := m.CurrentSelection(ctx, models.DefaultSessionID)
	require.NoError(t, err)
	assert.True(t, sel.Matches(testDate, slot9))

	sel, err = m.CurrentSelection(ctx, "other")
	require.NoError(t, err)
	assert.True(t, sel.Matches(testDate, slot10))

	require.NoError(t, m.ClearSelection(ctx, "other"))
	sel, err = m.CurrentSelection(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestManager_ConcurrentBookingsRespectCapacity(t *testing.T) {
	m, _, _ := newTestManager(t, repository.NewMemoryBookingStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		session := string(rune('a' + i))
		_, err := m.SelectSlot(ctx, session, testDate, slot9)
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.CreateBooking(ctx, session, testDate, slot9, customer(session)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, accepted)
	assert.Equal(t, 4, m.Availability(testDate, slot9).BookedCount)
}

// removeFailingStore accepts inserts but never deletes.
type removeFailingStore struct {
	*repository.MemoryBookingStore
}

func (s *removeFailingStore) RemoveByID(context.Context, string) error {
	return errors.New("primary unavailable")
}

func TestManager_CancelThroughFailoverKeepsIndexOnPrimaryFailure(t *testing.T) {
	ctx := context.Background()
	primary := &removeFailingStore{MemoryBookingStore: repository.NewMemoryBookingStore()}
	store := repository.NewFailoverBookingStore(primary, repository.NewMemoryBookingStore(), nil)
	m, _, _ := newTestManager(t, store)

	b := book(t, m, "s1", testDate, slot9, "ann")

	err := m.CancelBooking(ctx, b.ID, testDate, slot9, domain.AlwaysConfirm)
	assert.ErrorIs(t, err, domain.ErrPersistFailure)
	assert.Equal(t, 1, m.Availability(testDate, slot9).BookedCount)

	held, err := primary.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, held, 1)
}
