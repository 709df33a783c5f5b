package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"salon/internal/domain"
	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// CatalogSeed is the on-disk catalog loaded at startup.
type CatalogSeed struct {
	Services []SeedService `yaml:"services"`
	Masters  []SeedMaster  `yaml:"masters"`
}

type SeedService struct {
	ID          int64           `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Duration    string          `yaml:"duration"`
	Price       string          `yaml:"price"`
	Category    string          `yaml:"category"`
	IsActive    *bool           `yaml:"is_active"`
	Image       models.ImageRef `yaml:"image"`
}

type SeedMaster struct {
	ID             int64           `yaml:"id"`
	FirstName      string          `yaml:"first_name"`
	LastName       string          `yaml:"last_name"`
	Specialization string          `yaml:"specialization"`
	Experience     int             `yaml:"experience"`
	Rating         string          `yaml:"rating"`
	Description    string          `yaml:"description"`
	Services       []int64         `yaml:"services"`
	IsActive       *bool           `yaml:"is_active"`
	DisplayOrder   int             `yaml:"display_order"`
	Instagram      string          `yaml:"instagram"`
	Phone          string          `yaml:"phone"`
	Photo          models.ImageRef `yaml:"photo"`
	Schedule       []SeedDay       `yaml:"schedule"`
}

type SeedDay struct {
	Day       int    `yaml:"day"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
	IsWorking *bool  `yaml:"is_working"`
}

func LoadCatalogSeed(path string) (*CatalogSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed CatalogSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &seed, nil
}

// ApplyCatalogSeed upserts seeded services, masters and schedules by id.
func ApplyCatalogSeed(ctx context.Context, repo domain.Repository, seed *CatalogSeed, logger *zerolog.Logger) error {
	for i := range seed.Services {
		svc, err := seed.Services[i].toModel()
		if err != nil {
			return fmt.Errorf("service %d: %w", seed.Services[i].ID, err)
		}
		if err := repo.UpsertService(ctx, svc); err != nil {
			return fmt.Errorf("upsert service %d: %w", svc.ID, err)
		}
	}

	for i := range seed.Masters {
		sm := &seed.Masters[i]
		m, err := sm.toModel()
		if err != nil {
			return fmt.Errorf("master %d: %w", sm.ID, err)
		}
		if err := repo.UpsertMaster(ctx, m); err != nil {
			return fmt.Errorf("upsert master %d: %w", m.ID, err)
		}
		if len(sm.Schedule) == 0 {
			continue
		}
		days, err := sm.days()
		if err != nil {
			return fmt.Errorf("master %d schedule: %w", m.ID, err)
		}
		if err := repo.SetMasterSchedule(ctx, m.ID, days); err != nil {
			return fmt.Errorf("set schedule for master %d: %w", m.ID, err)
		}
	}

	logger.Info().
		Int("services", len(seed.Services)).
		Int("masters", len(seed.Masters)).
		Msg("Catalog seed applied")
	return nil
}

func (s SeedService) toModel() (*models.Service, error) {
	if s.ID <= 0 {
		return nil, fmt.Errorf("id is required")
	}
	d, err := models.ParseDuration(s.Duration)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(strings.TrimSpace(s.Price))
	if err != nil {
		return nil, fmt.Errorf("invalid price %q", s.Price)
	}
	svc := &models.Service{
		ID:          s.ID,
		Name:        strings.TrimSpace(s.Name),
		Description: s.Description,
		Duration:    d,
		Price:       price,
		Category:    s.Category,
		IsActive:    s.IsActive == nil || *s.IsActive,
		Image:       s.Image,
	}
	if svc.Category == "" {
		svc.Category = models.DefaultCategory
	}
	return svc, svc.Validate()
}

func (s SeedMaster) toModel() (*models.Master, error) {
	if s.ID <= 0 {
		return nil, fmt.Errorf("id is required")
	}
	rating := models.DefaultRating
	if s.Rating != "" {
		rating = s.Rating
	}
	r, err := decimal.NewFromString(rating)
	if err != nil {
		return nil, fmt.Errorf("invalid rating %q", s.Rating)
	}
	m := &models.Master{
		ID:             s.ID,
		FirstName:      s.FirstName,
		LastName:       s.LastName,
		Specialization: models.Specialization(s.Specialization),
		Experience:     s.Experience,
		Rating:         r,
		Description:    s.Description,
		ServiceIDs:     s.Services,
		IsActive:       s.IsActive == nil || *s.IsActive,
		DisplayOrder:   s.DisplayOrder,
		Instagram:      s.Instagram,
		Phone:          s.Phone,
		Photo:          s.Photo,
	}
	m.Normalize()
	return m, m.Validate()
}

func (s SeedMaster) days() ([]models.MasterSchedule, error) {
	out := make([]models.MasterSchedule, 0, len(s.Schedule))
	for _, d := range s.Schedule {
		day := models.MasterSchedule{
			MasterID:  s.ID,
			DayOfWeek: d.Day,
			StartTime: d.Start,
			EndTime:   d.End,
			IsWorking: d.IsWorking == nil || *d.IsWorking,
		}
		if err := day.Validate(); err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, nil
}
