package notify

import (
	"fmt"
	"strings"
	"sync"

	"slotbook/internal/config"
	"slotbook/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier tells manager chats about booking changes.
type TelegramNotifier struct {
	bot     Sender
	chatIDs []int64
	logger  *zerolog.Logger
	wg      sync.WaitGroup
}

func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return bot, nil
}

func NewTelegramNotifier(bot Sender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: append([]int64(nil), chatIDs...),
		logger:  logger,
	}
}

// Subscribe registers for created and cancelled events. Handlers run under the
// manager lock, so messages are sent in the background.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(n.handle, events.EventBookingCreated, events.EventBookingCancelled)
}

func (n *TelegramNotifier) handle(event *events.Event) error {
	p, err := events.DecodeBookingPayload(event)
	if err != nil {
		return err
	}
	text := FormatManagerMessage(event.Type, p)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.broadcast(text)
	}()
	return nil
}

func (n *TelegramNotifier) broadcast(text string) {
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to notify manager")
		}
	}
}

// Wait blocks until in-flight messages are sent.
func (n *TelegramNotifier) Wait() {
	n.wg.Wait()
}

func FormatManagerMessage(eventType string, p events.BookingEventPayload) string {
	var sb strings.Builder
	switch eventType {
	case events.EventBookingCreated:
		sb.WriteString("New booking\n")
	case events.EventBookingCancelled:
		sb.WriteString("Booking cancelled\n")
	default:
		sb.WriteString(eventType + "\n")
	}
	fmt.Fprintf(&sb, "Slot: %s %s\n", p.Date, p.Time)
	if p.Name != "" {
		fmt.Fprintf(&sb, "Customer: %s\n", p.Name)
	}
	if p.Email != "" || p.Phone != "" {
		fmt.Fprintf(&sb, "Contact: %s %s\n", p.Email, p.Phone)
	}
	fmt.Fprintf(&sb, "Booked: %d, remaining: %d", p.BookedCount, p.Remaining)
	return sb.String()
}
