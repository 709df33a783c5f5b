package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salon/internal/models"
)

const bookingSelect = `SELECT b.id, b.client_name, b.client_email, b.client_phone,
	b.service_id, COALESCE(s.name, ''), b.master_id, COALESCE(TRIM(m.first_name || ' ' || m.last_name), ''),
	b.date, b.time, b.status, b.notes, b.created_at, b.updated_at, b.version
	FROM bookings b
	LEFT JOIN services s ON s.id = b.service_id
	LEFT JOIN masters m ON m.id = b.master_id`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.ClientName, &b.ClientEmail, &b.ClientPhone,
		&b.ServiceID, &b.ServiceName, &b.MasterID, &b.MasterName,
		&b.Date, &b.Time, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBooking inserts a pending booking if no pending or confirmed booking
// holds the same (master, date, time). The check and the insert share one
// write transaction; the partial unique index settles any remaining race.
// Returns ErrSlotTaken when the slot is held.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var taken int
	queryCheck := `SELECT COUNT(*) FROM bookings
		WHERE master_id = ? AND date = ? AND time = ? AND status IN (?, ?)`
	err = tx.QueryRowContext(ctx, queryCheck,
		booking.MasterID, booking.Date, booking.Time, models.StatusPending, models.StatusConfirmed).Scan(&taken)
	if err != nil {
		return fmt.Errorf("failed to check slot in tx: %w", err)
	}
	if taken > 0 {
		return ErrSlotTaken
	}

	queryInsert := `INSERT INTO bookings (
				client_name, client_email, client_phone, service_id, master_id,
				date, time, status, notes, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, queryInsert,
		booking.ClientName,
		booking.ClientEmail,
		booking.ClientPhone,
		booking.ServiceID,
		booking.MasterID,
		booking.Date,
		booking.Time,
		models.StatusPending,
		booking.Notes,
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.Status = models.StatusPending
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, notFound(err))
	}
	return b, nil
}

// UpdateBookingStatusWithVersion moves a booking to status if it is still at
// fromVersion and the transition is allowed. Re-activating a slot that another
// booking now holds yields ErrSlotTaken.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	var version int64
	err = tx.QueryRowContext(ctx, `SELECT status, version FROM bookings WHERE id = ?`, id).Scan(&current, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %d: %w", id, notFound(err))
	}
	if version != fromVersion {
		return nil, ErrConcurrentModification
	}
	if !models.CanTransition(current, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrConcurrentModification
	}

	updated, err := scanBooking(tx.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to reload booking %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}
	return updated, nil
}

// ListBookings returns bookings newest first.
func (db *DB) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.Booking, error) {
	var (
		where []string
		args  []any
	)
	if f.From != "" {
		where = append(where, "b.date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "b.date <= ?")
		args = append(args, f.To)
	}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, f.Status)
	}
	if f.MasterID != 0 {
		where = append(where, "b.master_id = ?")
		args = append(args, f.MasterID)
	}

	query := bookingSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.created_at DESC, b.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// GetBookedTimes returns the times held by pending or confirmed bookings of a master on a date.
func (db *DB) GetBookedTimes(ctx context.Context, masterID int64, date string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT time FROM bookings
		WHERE master_id = ? AND date = ? AND status IN (?, ?) ORDER BY time ASC`,
		masterID, date, models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked times: %w", err)
	}
	defer rows.Close()

	times := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan booked time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}
