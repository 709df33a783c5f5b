package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Specialization string

const (
	SpecializationHair        Specialization = "hair"
	SpecializationNails       Specialization = "nails"
	SpecializationCosmetology Specialization = "cosmetology"
	SpecializationMassage     Specialization = "massage"
	SpecializationEyebrows    Specialization = "eyebrows"
	SpecializationMakeup      Specialization = "makeup"
)

var specializationLabels = map[Specialization]string{
	SpecializationHair:        "💇 Парикмахер",
	SpecializationNails:       "💅 Ногтевой сервис",
	SpecializationCosmetology: "✨ Косметология",
	SpecializationMassage:     "💆 Массаж",
	SpecializationEyebrows:    "✏️ Брови и ресницы",
	SpecializationMakeup:      "💄 Визаж",
}

func (s Specialization) Valid() bool {
	_, ok := specializationLabels[s]
	return ok
}

// Label returns the display label, or the raw code for unknown values.
func (s Specialization) Label() string {
	if l, ok := specializationLabels[s]; ok {
		return l
	}
	return string(s)
}

var (
	PhonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

	maxRating = decimal.NewFromInt(5)
)

type Master struct {
	ID             int64           `json:"id"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Specialization Specialization  `json:"specialization"`
	Photo          ImageRef        `json:"photo"`
	Experience     int             `json:"experience"`
	Rating         decimal.Decimal `json:"rating"`
	Description    string          `json:"description"`
	ServiceIDs     []int64         `json:"services"`
	IsActive       bool            `json:"is_active"`
	DisplayOrder   int             `json:"display_order"`
	Instagram      string          `json:"instagram"`
	Phone          string          `json:"phone"`
	WorkSchedule   json.RawMessage `json:"work_schedule"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (m *Master) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Normalize trims input and applies defaults before validation.
func (m *Master) Normalize() {
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	m.Instagram = strings.TrimPrefix(strings.TrimSpace(m.Instagram), "@")
	m.Phone = strings.TrimSpace(m.Phone)
	m.Rating = m.Rating.Round(1)
	if len(m.WorkSchedule) == 0 {
		m.WorkSchedule = json.RawMessage("{}")
	}
}

func (m *Master) Validate() error {
	if m.FirstName == "" {
		return errors.New("master first name is required")
	}
	if !m.Specialization.Valid() {
		return fmt.Errorf("unknown specialization %q", m.Specialization)
	}
	if m.Experience < 0 || m.Experience > MaxExperienceYears {
		return fmt.Errorf("experience must be between 0 and %d", MaxExperienceYears)
	}
	if m.Rating.IsNegative() || m.Rating.GreaterThan(maxRating) {
		return errors.New("rating must be between 0.0 and 5.0")
	}
	if m.Phone != "" && !PhonePattern.MatchString(m.Phone) {
		return errors.New("phone must contain 10 to 15 digits with optional leading +")
	}
	if len(m.WorkSchedule) > 0 && !json.Valid(m.WorkSchedule) {
		return errors.New("work schedule must be valid JSON")
	}
	return nil
}
