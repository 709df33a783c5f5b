package service

import (
	"context"
	"fmt"
	"strings"

	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var statusTitles = map[string]string{
	models.StatusPending:   "⏳ Ожидает подтверждения",
	models.StatusConfirmed: "✅ Подтверждено",
	models.StatusCompleted: "🏁 Завершено",
	models.StatusCancelled: "❌ Отменено",
}

type notification struct {
	eventType string
	payload   events.BookingEventPayload
}

// NotificationService tells managers about new and changed bookings via Telegram.
// Messages are queued by event handlers and sent from Start.
type NotificationService struct {
	bot      domain.TelegramSender
	managers []int64
	queue    chan notification
	logger   *zerolog.Logger
}

func NewNotificationService(bot domain.TelegramSender, managers []int64, logger *zerolog.Logger) *NotificationService {
	return &NotificationService{
		bot:      bot,
		managers: managers,
		queue:    make(chan notification, models.WorkerQueueSize),
		logger:   logger,
	}
}

// Subscribe registers the booking event handlers on the bus.
func (s *NotificationService) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCreated, s.handle)
	bus.Subscribe(events.EventBookingStatusChanged, s.handle)
}

func (s *NotificationService) handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	select {
	case s.queue <- notification{eventType: event.Type, payload: payload}:
		return nil
	default:
		return fmt.Errorf("notification queue is full, booking %d dropped", payload.BookingID)
	}
}

// Start sends queued notifications until ctx is done.
func (s *NotificationService) Start(ctx context.Context) {
	s.logger.Info().Int("managers", len(s.managers)).Msg("Notification worker started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Notification worker stopped")
			return
		case n := <-s.queue:
			s.deliver(n)
		}
	}
}

func (s *NotificationService) deliver(n notification) {
	var text string
	switch n.eventType {
	case events.EventBookingCreated:
		text = FormatNewBooking(n.payload)
	case events.EventBookingStatusChanged:
		text = FormatStatusChange(n.payload)
	default:
		return
	}

	for _, chatID := range s.managers {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := s.bot.Send(msg); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Int64("booking_id", n.payload.BookingID).Msg("Failed to notify manager")
		}
	}
}

func FormatNewBooking(p events.BookingEventPayload) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🆕 Новая запись #%d\n\n", p.BookingID)
	fmt.Fprintf(&sb, "👤 Клиент: %s\n", p.ClientName)
	fmt.Fprintf(&sb, "📞 Телефон: %s\n", p.ClientPhone)
	fmt.Fprintf(&sb, "💇 Услуга: %s\n", p.ServiceName)
	fmt.Fprintf(&sb, "✂️ Мастер: %s\n", p.MasterName)
	fmt.Fprintf(&sb, "📅 Дата: %s %s", p.Date, shortTime(p.Time))
	return sb.String()
}

func FormatStatusChange(p events.BookingEventPayload) string {
	title := statusTitles[p.Status]
	if title == "" {
		title = p.Status
	}
	return fmt.Sprintf("Запись #%d (%s, %s %s): %s",
		p.BookingID, p.ClientName, p.Date, shortTime(p.Time), title)
}

func shortTime(t string) string {
	if len(t) == len(models.TimeLayout) {
		return t[:len(models.ShortTimeLayout)]
	}
	return t
}
