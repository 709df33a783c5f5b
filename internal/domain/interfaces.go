package domain

import (
	"context"
	"time"

	"salon/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Repository is the storage surface used by the services.
type Repository interface {
	GetService(ctx context.Context, id int64) (*models.Service, error)
	GetActiveServices(ctx context.Context) ([]*models.Service, error)
	GetAllServices(ctx context.Context) ([]*models.Service, error)
	CreateService(ctx context.Context, s *models.Service) error
	UpdateService(ctx context.Context, s *models.Service) error
	UpsertService(ctx context.Context, s *models.Service) error
	SetServiceImage(ctx context.Context, id int64, path string) error

	GetMaster(ctx context.Context, id int64) (*models.Master, error)
	GetActiveMasters(ctx context.Context) ([]*models.Master, error)
	GetMasterActiveServices(ctx context.Context, masterID int64) ([]*models.Service, error)
	CreateMaster(ctx context.Context, m *models.Master) error
	UpdateMaster(ctx context.Context, m *models.Master) error
	UpsertMaster(ctx context.Context, m *models.Master) error
	SetMasterPhoto(ctx context.Context, id int64, path string) error
	GetMasterSchedule(ctx context.Context, masterID int64) ([]models.MasterSchedule, error)
	SetMasterSchedule(ctx context.Context, masterID int64, days []models.MasterSchedule) error

	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) (*models.Booking, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error)
	GetBookedTimes(ctx context.Context, masterID int64, date string) ([]string, error)
}

// CacheStore keeps short-lived projections and rate limit counters.
// Get returns nil, nil on a miss.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
}
