package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"salon/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
)

// BookingLister is the read side the daily digest needs.
type BookingLister interface {
	ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error)
}

// StartDigest sends managers the list of tomorrow's active bookings on the
// given cron schedule until ctx is done. An empty schedule disables it.
func (s *NotificationService) StartDigest(ctx context.Context, bookings BookingLister, schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return nil
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(schedule, func() {
		if err := s.SendDigest(ctx, bookings, time.Now().AddDate(0, 0, 1)); err != nil {
			s.logger.Error().Err(err).Msg("Daily digest failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", schedule, err)
	}

	s.logger.Info().Str("schedule", schedule).Msg("Daily digest scheduled")
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

// SendDigest sends the pending and confirmed bookings of day to every manager.
func (s *NotificationService) SendDigest(ctx context.Context, bookings BookingLister, day time.Time) error {
	date := day.Format(models.DateLayout)
	list, err := bookings.ListBookings(ctx, models.BookingFilter{From: date, To: date})
	if err != nil {
		return fmt.Errorf("list bookings for %s: %w", date, err)
	}

	active := list[:0:0]
	for _, b := range list {
		if models.IsActiveStatus(b.Status) {
			active = append(active, b)
		}
	}

	text := FormatDigest(date, active)
	for _, chatID := range s.managers {
		if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send digest")
		}
	}
	return nil
}

// FormatDigest lists bookings ordered by time.
func FormatDigest(date string, bookings []*models.Booking) string {
	if len(bookings) == 0 {
		return fmt.Sprintf("📋 На %s записей нет", date)
	}

	sorted := make([]*models.Booking, len(bookings))
	copy(sorted, bookings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Записи на %s (%d):\n", date, len(sorted))
	for _, b := range sorted {
		master := b.MasterName
		if master == "" {
			master = fmt.Sprintf("мастер #%d", b.MasterID)
		}
		fmt.Fprintf(&sb, "\n%s %s, %s (%s), %s", shortTime(b.Time), b.ClientName, b.ClientPhone, master, statusTitles[b.Status])
	}
	return sb.String()
}
