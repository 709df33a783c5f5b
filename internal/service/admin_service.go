package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"salon/internal/database"
	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/metrics"
	"salon/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// ServiceInput is the admin form for creating or editing a service.
type ServiceInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Duration    string          `json:"duration"`
	Price       decimal.Decimal `json:"price"`
	IsActive    *bool           `json:"is_active"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
}

// MasterInput is the admin form for creating or editing a master.
type MasterInput struct {
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	Specialization string           `json:"specialization"`
	Experience     int              `json:"experience"`
	Rating         *decimal.Decimal `json:"rating"`
	Description    string           `json:"description"`
	Services       []int64          `json:"services"`
	IsActive       *bool            `json:"is_active"`
	DisplayOrder   int              `json:"display_order"`
	Instagram      string           `json:"instagram"`
	Phone          string           `json:"phone"`
	WorkSchedule   json.RawMessage  `json:"work_schedule"`
	PhotoURL       string           `json:"photo_url"`
}

// BookingExporter renders a booking list into a file and returns its path.
type BookingExporter interface {
	Export(bookings []*models.Booking, from, to string) (string, error)
}

type AdminService struct {
	repo       domain.Repository
	catalog    *CatalogService
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	exporter   BookingExporter
	mediaPath  string
	maxUpload  int64
	logger     *zerolog.Logger
}

func NewAdminService(
	repo domain.Repository,
	catalog *CatalogService,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	exporter BookingExporter,
	mediaPath string,
	maxUpload int64,
	logger *zerolog.Logger,
) *AdminService {
	return &AdminService{
		repo:       repo,
		catalog:    catalog,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		exporter:   exporter,
		mediaPath:  mediaPath,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

// ChangeBookingStatus moves a booking along the status machine if its
// version still equals version.
func (s *AdminService) ChangeBookingStatus(ctx context.Context, id, version int64, status, changedBy string) (*models.Booking, error) {
	if !models.ValidStatus(status) {
		return nil, invalid("status", "unknown status %q", status)
	}

	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if current.Version != version {
		return nil, database.ErrConcurrentModification
	}

	updated, err := s.repo.UpdateBookingStatusWithVersion(ctx, id, version, status)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	metrics.IncStatusChange(status)
	s.logger.Info().
		Int64("booking_id", id).
		Str("from", current.Status).
		Str("to", status).
		Str("changed_by", changedBy).
		Msg("Booking status changed")

	if s.eventBus != nil {
		payload := bookingPayload(updated, current.Status, changedBy)
		if err := s.eventBus.PublishJSON(events.EventBookingStatusChanged, payload); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", id).Msg("publish event error")
		}
	}
	if s.syncWorker != nil {
		if err := s.syncWorker.EnqueueTask(ctx, models.SyncTaskUpdateStatus, updated); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", id).Msg("sheets enqueue error")
		}
	}
	return updated, nil
}

func (s *AdminService) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	return s.repo.ListBookings(ctx, f)
}

// ExportBookings writes the filtered bookings to an XLSX file.
func (s *AdminService) ExportBookings(ctx context.Context, f models.BookingFilter) (string, error) {
	bookings, err := s.ListBookings(ctx, f)
	if err != nil {
		return "", err
	}
	return s.exporter.Export(bookings, f.From, f.To)
}

func validateFilter(f models.BookingFilter) error {
	if f.From != "" {
		if _, err := models.ParseDate(f.From); err != nil {
			return invalid("from", "expected YYYY-MM-DD")
		}
	}
	if f.To != "" {
		if _, err := models.ParseDate(f.To); err != nil {
			return invalid("to", "expected YYYY-MM-DD")
		}
	}
	if f.Status != "" && !models.ValidStatus(f.Status) {
		return invalid("status", "unknown status %q", f.Status)
	}
	return nil
}

func (s *AdminService) CreateService(ctx context.Context, in ServiceInput) (*models.Service, error) {
	svc, err := in.toService(&models.Service{IsActive: true})
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	s.catalogChanged(ctx, "service", svc.ID, "created")
	return svc, nil
}

func (s *AdminService) UpdateService(ctx context.Context, id int64, in ServiceInput) (*models.Service, error) {
	existing, err := s.repo.GetService(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	svc, err := in.toService(existing)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}
	s.catalogChanged(ctx, "service", svc.ID, "updated")
	return svc, nil
}

func (in ServiceInput) toService(base *models.Service) (*models.Service, error) {
	svc := *base
	svc.Name = strings.TrimSpace(in.Name)
	svc.Description = strings.TrimSpace(in.Description)
	svc.Price = in.Price
	svc.Category = strings.TrimSpace(in.Category)
	if svc.Category == "" {
		svc.Category = models.DefaultCategory
	}
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	if in.ImageURL != "" {
		svc.Image.URL = strings.TrimSpace(in.ImageURL)
	}
	if strings.TrimSpace(in.Duration) == "" {
		return nil, invalid("duration", "is required")
	}
	d, err := models.ParseDuration(in.Duration)
	if err != nil {
		return nil, invalid("duration", "expected H:MM:SS")
	}
	svc.Duration = d
	if err := svc.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	return &svc, nil
}

func (s *AdminService) CreateMaster(ctx context.Context, in MasterInput) (*models.Master, error) {
	m, err := s.toMaster(ctx, in, &models.Master{IsActive: true, Rating: decimal.RequireFromString(models.DefaultRating)})
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateMaster(ctx, m); err != nil {
		return nil, fmt.Errorf("create master: %w", err)
	}
	s.catalogChanged(ctx, "master", m.ID, "created")
	return m, nil
}

func (s *AdminService) UpdateMaster(ctx context.Context, id int64, in MasterInput) (*models.Master, error) {
	existing, err := s.repo.GetMaster(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrMasterNotFound
		}
		return nil, fmt.Errorf("load master: %w", err)
	}
	m, err := s.toMaster(ctx, in, existing)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMaster(ctx, m); err != nil {
		return nil, fmt.Errorf("update master: %w", err)
	}
	s.catalogChanged(ctx, "master", m.ID, "updated")
	return m, nil
}

func (s *AdminService) toMaster(ctx context.Context, in MasterInput, base *models.Master) (*models.Master, error) {
	m := *base
	m.FirstName = in.FirstName
	m.LastName = in.LastName
	m.Specialization = models.Specialization(in.Specialization)
	m.Experience = in.Experience
	if in.Rating != nil {
		m.Rating = *in.Rating
	}
	m.Description = strings.TrimSpace(in.Description)
	m.DisplayOrder = in.DisplayOrder
	m.Instagram = in.Instagram
	m.Phone = in.Phone
	if len(in.WorkSchedule) > 0 {
		m.WorkSchedule = in.WorkSchedule
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if in.PhotoURL != "" {
		m.Photo.URL = strings.TrimSpace(in.PhotoURL)
	}
	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	m.ServiceIDs = m.ServiceIDs[:0:0]
	for _, id := range in.Services {
		if _, err := s.repo.GetService(ctx, id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, invalid("services", "unknown service %d", id)
			}
			return nil, fmt.Errorf("load service: %w", err)
		}
		m.ServiceIDs = append(m.ServiceIDs, id)
	}
	return &m, nil
}

func (s *AdminService) SetMasterSchedule(ctx context.Context, masterID int64, days []models.MasterSchedule) ([]models.MasterSchedule, error) {
	seen := make(map[int]bool, len(days))
	for i := range days {
		if err := days[i].Validate(); err != nil {
			return nil, &ValidationError{Field: "schedule", Message: err.Error()}
		}
		if seen[days[i].DayOfWeek] {
			return nil, invalid("schedule", "duplicate day_of_week %d", days[i].DayOfWeek)
		}
		seen[days[i].DayOfWeek] = true
		days[i].MasterID = masterID
	}

	if err := s.repo.SetMasterSchedule(ctx, masterID, days); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrMasterNotFound
		}
		return nil, fmt.Errorf("set schedule: %w", err)
	}
	s.catalogChanged(ctx, "schedule", masterID, "updated")
	return s.repo.GetMasterSchedule(ctx, masterID)
}

// UploadServiceImage stores the image under the media root and links it to the service.
func (s *AdminService) UploadServiceImage(ctx context.Context, id int64, filename string, r io.Reader) (string, error) {
	if _, err := s.repo.GetService(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrServiceNotFound
		}
		return "", fmt.Errorf("load service: %w", err)
	}
	rel, err := s.saveUpload(models.ServiceImagesDir, filename, r)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetServiceImage(ctx, id, rel); err != nil {
		return "", fmt.Errorf("set service image: %w", err)
	}
	s.catalogChanged(ctx, "service", id, "image")
	return rel, nil
}

func (s *AdminService) UploadMasterPhoto(ctx context.Context, id int64, filename string, r io.Reader) (string, error) {
	if _, err := s.repo.GetMaster(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", ErrMasterNotFound
		}
		return "", fmt.Errorf("load master: %w", err)
	}
	rel, err := s.saveUpload(models.MasterPhotosDir, filename, r)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetMasterPhoto(ctx, id, rel); err != nil {
		return "", fmt.Errorf("set master photo: %w", err)
	}
	s.catalogChanged(ctx, "master", id, "photo")
	return rel, nil
}

// saveUpload returns the stored file path relative to the media root.
func (s *AdminService) saveUpload(subdir, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExtensions[ext] {
		return "", invalid("file", "unsupported image type %q", ext)
	}

	dir := filepath.Join(s.mediaPath, filepath.FromSlash(subdir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}

	name := uuid.NewString() + ext
	full := filepath.Join(dir, name)
	out, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}

	limit := s.maxUpload
	if limit <= 0 {
		limit = 5 << 20
	}
	n, err := io.Copy(out, io.LimitReader(r, limit+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("write media file: %w", err)
	}
	if n > limit {
		_ = os.Remove(full)
		return "", invalid("file", "file exceeds %d bytes", limit)
	}
	if n == 0 {
		_ = os.Remove(full)
		return "", invalid("file", "file is empty")
	}

	return path.Join(subdir, name), nil
}

func (s *AdminService) catalogChanged(ctx context.Context, entity string, id int64, action string) {
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	s.logger.Info().Str("entity", entity).Int64("id", id).Str("action", action).Msg("Catalog changed")
	if s.eventBus == nil {
		return
	}
	payload := events.CatalogEventPayload{Entity: entity, ID: id, Action: action}
	if err := s.eventBus.PublishJSON(events.EventCatalogChanged, payload); err != nil {
		s.logger.Error().Err(err).Str("entity", entity).Msg("publish event error")
	}
}
