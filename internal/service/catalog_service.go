package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"salon/internal/database"
	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
)

const cacheVersionKey = "catalog:version"

type ServiceView struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       string  `json:"price"`
	Duration    string  `json:"duration"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       *string `json:"image"`
	IsActive    bool    `json:"is_active"`
}

type MasterUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type MasterView struct {
	ID                 int64      `json:"id"`
	User               MasterUser `json:"user"`
	Specialization     string     `json:"specialization"`
	SpecializationCode string     `json:"specialization_code"`
	Photo              *string    `json:"photo"`
	Experience         int        `json:"experience"`
	Rating             float64    `json:"rating"`
	Description        string     `json:"description"`
	Instagram          string     `json:"instagram"`
	Phone              string     `json:"phone"`
	Services           []int64    `json:"services"`
}

type MasterServiceView struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       string  `json:"price"`
	Duration    string  `json:"duration"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
}

type MasterDetailView struct {
	ID             int64               `json:"id"`
	User           MasterUser          `json:"user"`
	Specialization string              `json:"specialization"`
	Photo          *string             `json:"photo"`
	Experience     int                 `json:"experience"`
	Rating         float64             `json:"rating"`
	Description    string              `json:"description"`
	Instagram      string              `json:"instagram"`
	Phone          string              `json:"phone"`
	Services       []MasterServiceView `json:"services"`
}

type ScheduleDayView struct {
	DayOfWeek int    `json:"day_of_week"`
	DayName   string `json:"day_name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsWorking bool   `json:"is_working"`
}

// CatalogService builds the read projections of services and masters.
type CatalogService struct {
	repo        domain.Repository
	cache       domain.CacheStore
	ttl         time.Duration
	mediaPrefix string
	logger      *zerolog.Logger
}

func NewCatalogService(repo domain.Repository, cache domain.CacheStore, ttl time.Duration, mediaPrefix string, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:        repo,
		cache:       cache,
		ttl:         ttl,
		mediaPrefix: mediaPrefix,
		logger:      logger,
	}
}

// ListServices returns active services ordered by name.
func (s *CatalogService) ListServices(ctx context.Context) ([]ServiceView, error) {
	key := s.cacheKey(ctx, "services")
	var views []ServiceView
	if s.fromCache(ctx, key, &views) {
		return views, nil
	}

	services, err := s.repo.GetActiveServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	views = make([]ServiceView, 0, len(services))
	for _, svc := range services {
		views = append(views, s.serviceView(svc))
	}
	s.toCache(ctx, key, views)
	return views, nil
}

// ListMasters returns active masters ordered by display order and first name.
func (s *CatalogService) ListMasters(ctx context.Context) ([]MasterView, error) {
	key := s.cacheKey(ctx, "masters")
	var views []MasterView
	if s.fromCache(ctx, key, &views) {
		return views, nil
	}

	masters, err := s.repo.GetActiveMasters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list masters: %w", err)
	}

	views = make([]MasterView, 0, len(masters))
	for _, m := range masters {
		ids := m.ServiceIDs
		if ids == nil {
			ids = []int64{}
		}
		views = append(views, MasterView{
			ID:                 m.ID,
			User:               MasterUser{FirstName: m.FirstName, LastName: m.LastName},
			Specialization:     m.Specialization.Label(),
			SpecializationCode: string(m.Specialization),
			Photo:              m.Photo.Resolve(s.mediaPrefix),
			Experience:         m.Experience,
			Rating:             m.Rating.InexactFloat64(),
			Description:        m.Description,
			Instagram:          m.Instagram,
			Phone:              m.Phone,
			Services:           ids,
		})
	}
	s.toCache(ctx, key, views)
	return views, nil
}

// GetMaster returns the detail projection of an active master.
// Unknown and inactive masters both yield ErrMasterNotFound.
func (s *CatalogService) GetMaster(ctx context.Context, id int64) (*MasterDetailView, error) {
	key := s.cacheKey(ctx, "master:"+strconv.FormatInt(id, 10))
	var view MasterDetailView
	if s.fromCache(ctx, key, &view) {
		return &view, nil
	}

	m, err := s.activeMaster(ctx, id)
	if err != nil {
		return nil, err
	}

	services, err := s.repo.GetMasterActiveServices(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("master services: %w", err)
	}

	view = MasterDetailView{
		ID:             m.ID,
		User:           MasterUser{FirstName: m.FirstName, LastName: m.LastName},
		Specialization: m.Specialization.Label(),
		Photo:          m.Photo.Resolve(s.mediaPrefix),
		Experience:     m.Experience,
		Rating:         m.Rating.InexactFloat64(),
		Description:    m.Description,
		Instagram:      m.Instagram,
		Phone:          m.Phone,
		Services:       make([]MasterServiceView, 0, len(services)),
	}
	for _, svc := range services {
		view.Services = append(view.Services, MasterServiceView{
			ID:          svc.ID,
			Name:        svc.Name,
			Price:       svc.PriceString(),
			Duration:    models.FormatDuration(svc.Duration),
			Description: svc.Description,
			Image:       svc.Image.Resolve(s.mediaPrefix),
		})
	}
	s.toCache(ctx, key, view)
	return &view, nil
}

// GetMasterSchedule returns the weekly schedule of an active master.
func (s *CatalogService) GetMasterSchedule(ctx context.Context, id int64) ([]ScheduleDayView, error) {
	if _, err := s.activeMaster(ctx, id); err != nil {
		return nil, err
	}

	days, err := s.repo.GetMasterSchedule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("master schedule: %w", err)
	}

	views := make([]ScheduleDayView, 0, len(days))
	for _, d := range days {
		views = append(views, ScheduleDayView{
			DayOfWeek: d.DayOfWeek,
			DayName:   models.DayName(d.DayOfWeek),
			StartTime: d.StartTime,
			EndTime:   d.EndTime,
			IsWorking: d.IsWorking,
		})
	}
	return views, nil
}

// GetBookedTimes lists the held times of an active master on date (YYYY-MM-DD).
func (s *CatalogService) GetBookedTimes(ctx context.Context, masterID int64, date string) ([]string, error) {
	if _, err := models.ParseDate(date); err != nil {
		return nil, invalid("date", "expected YYYY-MM-DD")
	}
	if _, err := s.activeMaster(ctx, masterID); err != nil {
		return nil, err
	}
	times, err := s.repo.GetBookedTimes(ctx, masterID, date)
	if err != nil {
		return nil, fmt.Errorf("booked times: %w", err)
	}
	return times, nil
}

// Invalidate drops every cached projection.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	version := strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := s.cache.Set(ctx, cacheVersionKey, []byte(version), 0); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to invalidate catalog cache")
	}
}

func (s *CatalogService) activeMaster(ctx context.Context, id int64) (*models.Master, error) {
	m, err := s.repo.GetMaster(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrMasterNotFound
		}
		return nil, fmt.Errorf("get master: %w", err)
	}
	if !m.IsActive {
		return nil, ErrMasterNotFound
	}
	return m, nil
}

func (s *CatalogService) serviceView(svc *models.Service) ServiceView {
	return ServiceView{
		ID:          svc.ID,
		Name:        svc.Name,
		Price:       svc.PriceString(),
		Duration:    models.FormatDuration(svc.Duration),
		Description: svc.Description,
		Category:    svc.Category,
		Image:       svc.Image.Resolve(s.mediaPrefix),
		IsActive:    svc.IsActive,
	}
}

// cacheKey binds name to the current catalog version. A read resolves it once
// so a projection loaded before Invalidate is stored under the old version.
func (s *CatalogService) cacheKey(ctx context.Context, name string) string {
	if s.cache == nil || s.ttl <= 0 {
		return name
	}
	version := "0"
	if raw, err := s.cache.Get(ctx, cacheVersionKey); err == nil && len(raw) > 0 {
		version = string(raw)
	}
	return "catalog:v" + version + ":" + name
}

// fromCache decodes a cached projection into dst. Cache errors count as misses.
func (s *CatalogService) fromCache(ctx context.Context, key string, dst any) bool {
	if s.cache == nil || s.ttl <= 0 {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Catalog cache read failed")
		return false
	}
	if raw == nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Catalog cache entry is corrupt")
		return false
	}
	return true
}

func (s *CatalogService) toCache(ctx context.Context, key string, v any) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Catalog cache write failed")
	}
}
