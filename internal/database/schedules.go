package database

import (
	"context"
	"fmt"

	"salon/internal/models"
)

// GetMasterSchedule returns the configured weekdays of a master ordered by day.
func (db *DB) GetMasterSchedule(ctx context.Context, masterID int64) ([]models.MasterSchedule, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, master_id, day_of_week, start_time, end_time, is_working
		FROM master_schedules WHERE master_id = ? ORDER BY day_of_week ASC`, masterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query master schedule: %w", err)
	}
	defer rows.Close()

	days := []models.MasterSchedule{}
	for rows.Next() {
		var d models.MasterSchedule
		if err := rows.Scan(&d.ID, &d.MasterID, &d.DayOfWeek, &d.StartTime, &d.EndTime, &d.IsWorking); err != nil {
			return nil, fmt.Errorf("failed to scan schedule day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule: %w", err)
	}
	return days, nil
}

// SetMasterSchedule upserts the given weekdays; days not listed stay untouched.
func (db *DB) SetMasterSchedule(ctx context.Context, masterID int64, days []models.MasterSchedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM masters WHERE id = ?`, masterID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check master: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	query := `INSERT INTO master_schedules (master_id, day_of_week, start_time, end_time, is_working)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(master_id, day_of_week) DO UPDATE SET
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				is_working = excluded.is_working`
	for _, d := range days {
		if _, err := tx.ExecContext(ctx, query, masterID, d.DayOfWeek, d.StartTime, d.EndTime, d.IsWorking); err != nil {
			return fmt.Errorf("failed to save schedule day %d: %w", d.DayOfWeek, err)
		}
	}
	return tx.Commit()
}
