package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"salon/internal/config"
	"salon/internal/database"
	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/metrics"
	"salon/internal/models"

	"github.com/rs/zerolog"
)

// BookingRequest is the client-supplied booking form.
type BookingRequest struct {
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone"`
	Service     int64  `json:"service"`
	Master      int64  `json:"master"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Notes       string `json:"notes,omitempty"`
}

type BookingService struct {
	repo       domain.Repository
	limits     domain.CacheStore
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	cfg        config.BookingConfig
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewBookingService(
	repo domain.Repository,
	limits domain.CacheStore,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:       repo,
		limits:     limits,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateBooking validates the request and reserves the slot.
// Errors: *ValidationError, ErrRateLimited, database.ErrSlotTaken, or a wrapped storage fault.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	booking, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	if err := s.checkRateLimit(ctx, booking.ClientPhone); err != nil {
		return nil, err
	}

	service, err := s.repo.GetService(ctx, booking.ServiceID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, invalid("service", "unknown service %d", booking.ServiceID)
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if !service.IsActive {
		return nil, invalid("service", "service %d is not available", booking.ServiceID)
	}

	master, err := s.repo.GetMaster(ctx, booking.MasterID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, invalid("master", "unknown master %d", booking.MasterID)
		}
		return nil, fmt.Errorf("load master: %w", err)
	}
	if !master.IsActive {
		return nil, invalid("master", "master %d is not available", booking.MasterID)
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBookingConflict()
			s.logger.Info().
				Int64("master_id", booking.MasterID).
				Str("date", booking.Date).
				Str("time", booking.Time).
				Msg("Booking slot already taken")
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	booking.ServiceName = service.Name
	booking.MasterName = master.FullName()
	metrics.IncBookingCreated()

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("master_id", booking.MasterID).
		Str("date", booking.Date).
		Str("time", booking.Time).
		Msg("Booking created")

	s.publishEvent(events.EventBookingCreated, booking, "", "client")
	s.enqueueSync(ctx, booking, models.SyncTaskUpsert)

	return booking, nil
}

func (s *BookingService) validate(req BookingRequest) (*models.Booking, error) {
	name := strings.TrimSpace(req.ClientName)
	switch n := len([]rune(name)); {
	case n == 0:
		return nil, invalid("client_name", "is required")
	case n < models.MinClientNameLength:
		return nil, invalid("client_name", "must be at least %d characters", models.MinClientNameLength)
	case n > models.MaxClientNameLength:
		return nil, invalid("client_name", "must be at most %d characters", models.MaxClientNameLength)
	}

	email := strings.TrimSpace(req.ClientEmail)
	if email == "" {
		return nil, invalid("client_email", "is required")
	}
	if !validEmail(email) {
		return nil, invalid("client_email", "invalid email address")
	}

	phone := strings.TrimSpace(req.ClientPhone)
	if phone == "" {
		return nil, invalid("client_phone", "is required")
	}
	if !models.PhonePattern.MatchString(phone) {
		return nil, invalid("client_phone", "must contain 10 to 15 digits with optional leading +")
	}

	if req.Service <= 0 {
		return nil, invalid("service", "is required")
	}
	if req.Master <= 0 {
		return nil, invalid("master", "is required")
	}

	if strings.TrimSpace(req.Date) == "" {
		return nil, invalid("date", "is required")
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, invalid("date", "expected YYYY-MM-DD")
	}

	if strings.TrimSpace(req.Time) == "" {
		return nil, invalid("time", "is required")
	}
	clock, err := models.NormalizeTime(req.Time)
	if err != nil {
		return nil, invalid("time", "expected HH:MM or HH:MM:SS")
	}

	if len([]rune(req.Notes)) > models.MaxNotesLength {
		return nil, invalid("notes", "must be at most %d characters", models.MaxNotesLength)
	}

	if err := s.checkDatePolicy(date, clock); err != nil {
		return nil, err
	}

	return &models.Booking{
		ClientName:  name,
		ClientEmail: email,
		ClientPhone: phone,
		ServiceID:   req.Service,
		MasterID:    req.Master,
		Date:        date.Format(models.DateLayout),
		Time:        clock,
		Status:      models.StatusPending,
		Notes:       strings.TrimSpace(req.Notes),
	}, nil
}

func (s *BookingService) checkDatePolicy(date time.Time, clock string) error {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if s.cfg.RejectPast {
		t, _ := time.Parse(models.TimeLayout, clock)
		slot := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, now.Location())
		if slot.Before(now) {
			return invalid("date", "must not be in the past")
		}
	}
	if s.cfg.MaxAdvanceDays > 0 && date.After(today.AddDate(0, 0, s.cfg.MaxAdvanceDays)) {
		return invalid("date", "must be within %d days", s.cfg.MaxAdvanceDays)
	}
	return nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	domainPart := email[at+1:]
	return strings.Contains(domainPart, ".") && !strings.HasSuffix(domainPart, ".")
}

func (s *BookingService) checkRateLimit(ctx context.Context, phone string) error {
	if s.limits == nil || s.cfg.RateLimitCount <= 0 {
		return nil
	}
	window := time.Duration(s.cfg.RateLimitWindow) * time.Second
	allowed, err := s.limits.CheckRateLimit(ctx, "booking:"+phone, s.cfg.RateLimitCount, window)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Booking rate limit check failed")
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, previous, changedBy string) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, bookingPayload(booking, previous, changedBy)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.syncWorker == nil {
		return
	}
	if err := s.syncWorker.EnqueueTask(ctx, taskType, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

func bookingPayload(b *models.Booking, previous, changedBy string) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:      b.ID,
		ClientName:     b.ClientName,
		ClientPhone:    b.ClientPhone,
		ServiceID:      b.ServiceID,
		ServiceName:    b.ServiceName,
		MasterID:       b.MasterID,
		MasterName:     b.MasterName,
		Date:           b.Date,
		Time:           b.Time,
		Status:         b.Status,
		PreviousStatus: previous,
		ChangedBy:      changedBy,
	}
}
