package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"slotbook/internal/domain"
	"slotbook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
	mu sync.Mutex
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	n := NewLogNotifier(&logger)

	n.Notify(context.Background(), "booked", domain.SeveritySuccess)
	n.Notify(context.Background(), "oops", domain.SeverityError)

	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"message":"oops"`)
}

func TestCollector(t *testing.T) {
	c := &Collector{}
	ctx := WithCollector(context.Background(), c)
	n := Multi(ContextNotifier{}, nil)

	n.Notify(ctx, "first", domain.SeveritySuccess)
	n.Notify(ctx, "second", domain.SeverityError)
	n.Notify(context.Background(), "lost", domain.SeverityError)

	assert.Equal(t, []Notice{
		{Message: "first", Severity: domain.SeveritySuccess},
		{Message: "second", Severity: domain.SeverityError},
	}, c.Notices())

	_, ok := CollectorFrom(context.Background())
	assert.False(t, ok)
}

func TestTelegramNotifier(t *testing.T) {
	sender := new(mockSender)
	logger := zerolog.Nop()
	n := NewTelegramNotifier(sender, []int64{10, 20}, &logger)
	bus := events.NewEventBus()
	n.Subscribe(bus)

	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 10
	})).Return(tgbotapi.Message{}, nil).Once()
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 20
	})).Return(tgbotapi.Message{}, errors.New("blocked")).Once()

	require.NoError(t, bus.PublishJSON(events.EventBookingCreated, events.BookingEventPayload{
		BookingID: "b1", Date: "2024-01-10", Time: "09:00 AM", Name: "Ann", BookedCount: 1, Remaining: 3,
	}))
	// rejected events are not forwarded
	require.NoError(t, bus.PublishJSON(events.EventBookingRejected, events.BookingEventPayload{}))
	n.Wait()

	sender.AssertExpectations(t)
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestFormatManagerMessage(t *testing.T) {
	msg := FormatManagerMessage(events.EventBookingCancelled, events.BookingEventPayload{
		Date: "2024-01-10", Time: "09:00 AM", Name: "Ann", Email: "ann@example.com", Phone: "555", BookedCount: 2, Remaining: 2,
	})
	assert.Contains(t, msg, "Booking cancelled")
	assert.Contains(t, msg, "Slot: 2024-01-10 09:00 AM")
	assert.Contains(t, msg, "Contact: ann@example.com 555")
	assert.Contains(t, msg, "Booked: 2, remaining: 2")
}
