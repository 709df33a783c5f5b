package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Service struct {
	ID          int64           `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Duration    time.Duration   `json:"duration" yaml:"-"`
	Price       decimal.Decimal `json:"price" yaml:"-"`
	IsActive    bool            `json:"is_active" yaml:"is_active"`
	Category    string          `json:"category" yaml:"category"`
	Image       ImageRef        `json:"image" yaml:"image"`
	CreatedAt   time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time       `json:"updated_at" yaml:"-"`
}

func (s *Service) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return errors.New("service name is required")
	}
	if len([]rune(name)) > 200 {
		return errors.New("service name is too long")
	}
	if s.Duration <= 0 {
		return errors.New("service duration must be positive")
	}
	if s.Price.IsNegative() {
		return errors.New("service price must not be negative")
	}
	if !s.Price.Equal(s.Price.Round(2)) {
		return errors.New("service price allows at most 2 decimal places")
	}
	if len([]rune(s.Category)) > 100 {
		return errors.New("service category is too long")
	}
	return nil
}

// PriceString renders the price with exactly two decimals.
func (s *Service) PriceString() string {
	return s.Price.StringFixed(2)
}

// FormatDuration renders a duration as "H:MM:SS", prefixed with
// "N day(s), " for spans of a day or longer.
func FormatDuration(d time.Duration) string {
	neg := d < 0
	if neg {
		d = -d
	}
	total := int64(d / time.Second)
	days := total / 86400
	rest := total % 86400
	clock := fmt.Sprintf("%d:%02d:%02d", rest/3600, (rest%3600)/60, rest%60)

	var out string
	switch {
	case days == 1:
		out = "1 day, " + clock
	case days > 1:
		out = fmt.Sprintf("%d days, %s", days, clock)
	default:
		out = clock
	}
	if neg {
		out = "-" + out
	}
	return out
}

// ParseDuration accepts "H:MM", "H:MM:SS" or a Go duration string such as "90m".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if !strings.Contains(s, ":") {
		return time.ParseDuration(s)
	}

	var h, m, sec int
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
	case 3:
		if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
	default:
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}
