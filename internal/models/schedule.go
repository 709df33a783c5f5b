package models

import (
	"errors"
	"fmt"
	"time"
)

var weekdayNames = [7]string{
	"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье",
}

// MasterSchedule is one weekday of a master's working week. Day 0 is Monday.
type MasterSchedule struct {
	ID        int64  `json:"id"`
	MasterID  int64  `json:"master_id"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsWorking bool   `json:"is_working"`
}

func DayName(day int) string {
	if day < 0 || day > 6 {
		return ""
	}
	return weekdayNames[day]
}

// DayOfWeek maps a date to the Monday-based index used by schedules.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func (s *MasterSchedule) Validate() error {
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be in 0..6, got %d", s.DayOfWeek)
	}
	start, err := NormalizeTime(s.StartTime)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := NormalizeTime(s.EndTime)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	s.StartTime, s.EndTime = start, end
	if s.IsWorking && end <= start {
		return errors.New("end_time must be after start_time")
	}
	return nil
}
