package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"salon/internal/models"
)

const masterColumns = `id, first_name, last_name, specialization, photo_path, photo_url, experience, rating,
	description, is_active, display_order, instagram, phone, work_schedule, created_at, updated_at`

func scanMaster(row rowScanner) (*models.Master, error) {
	var (
		m        models.Master
		schedule string
	)
	err := row.Scan(
		&m.ID, &m.FirstName, &m.LastName, &m.Specialization, &m.Photo.File, &m.Photo.URL, &m.Experience, &m.Rating,
		&m.Description, &m.IsActive, &m.DisplayOrder, &m.Instagram, &m.Phone, &schedule, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.WorkSchedule = json.RawMessage(schedule)
	return &m, nil
}

func scheduleText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// CreateMaster inserts the master together with its service links.
func (db *DB) CreateMaster(ctx context.Context, m *models.Master) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	query := `INSERT INTO masters (first_name, last_name, specialization, photo_path, photo_url, experience, rating,
				description, is_active, display_order, instagram, phone, work_schedule, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		m.FirstName, m.LastName, string(m.Specialization), m.Photo.File, m.Photo.URL, m.Experience, m.Rating.StringFixed(1),
		m.Description, m.IsActive, m.DisplayOrder, m.Instagram, m.Phone, scheduleText(m.WorkSchedule), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create master: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := replaceMasterServices(ctx, tx, id, m.ServiceIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit master: %w", err)
	}

	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// UpsertMaster inserts the master with its given id or overwrites the existing row and links.
func (db *DB) UpsertMaster(ctx context.Context, m *models.Master) error {
	if m.ID == 0 {
		return db.CreateMaster(ctx, m)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	query := `INSERT INTO masters (id, first_name, last_name, specialization, photo_path, photo_url, experience, rating,
				description, is_active, display_order, instagram, phone, work_schedule, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				specialization = excluded.specialization,
				photo_path = excluded.photo_path,
				photo_url = excluded.photo_url,
				experience = excluded.experience,
				rating = excluded.rating,
				description = excluded.description,
				is_active = excluded.is_active,
				display_order = excluded.display_order,
				instagram = excluded.instagram,
				phone = excluded.phone,
				work_schedule = excluded.work_schedule,
				updated_at = excluded.updated_at`
	_, err = tx.ExecContext(ctx, query,
		m.ID, m.FirstName, m.LastName, string(m.Specialization), m.Photo.File, m.Photo.URL, m.Experience, m.Rating.StringFixed(1),
		m.Description, m.IsActive, m.DisplayOrder, m.Instagram, m.Phone, scheduleText(m.WorkSchedule), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert master %d: %w", m.ID, err)
	}
	if err := replaceMasterServices(ctx, tx, m.ID, m.ServiceIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit master: %w", err)
	}
	m.UpdatedAt = now
	return nil
}

func (db *DB) UpdateMaster(ctx context.Context, m *models.Master) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	query := `UPDATE masters SET first_name = ?, last_name = ?, specialization = ?, photo_path = ?, photo_url = ?,
				experience = ?, rating = ?, description = ?, is_active = ?, display_order = ?, instagram = ?,
				phone = ?, work_schedule = ?, updated_at = ?
			WHERE id = ?`
	result, err := tx.ExecContext(ctx, query,
		m.FirstName, m.LastName, string(m.Specialization), m.Photo.File, m.Photo.URL,
		m.Experience, m.Rating.StringFixed(1), m.Description, m.IsActive, m.DisplayOrder, m.Instagram,
		m.Phone, scheduleText(m.WorkSchedule), now, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update master: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := replaceMasterServices(ctx, tx, m.ID, m.ServiceIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit master: %w", err)
	}
	m.UpdatedAt = now
	return nil
}

func replaceMasterServices(ctx context.Context, tx *sql.Tx, masterID int64, serviceIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM master_services WHERE master_id = ?`, masterID); err != nil {
		return fmt.Errorf("failed to clear master services: %w", err)
	}
	for _, sid := range serviceIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO master_services (master_id, service_id) VALUES (?, ?)`, masterID, sid)
		if err != nil {
			return fmt.Errorf("failed to link service %d to master %d: %w", sid, masterID, err)
		}
	}
	return nil
}

func (db *DB) SetMasterPhoto(ctx context.Context, id int64, path string) error {
	result, err := db.ExecContext(ctx, `UPDATE masters SET photo_path = ?, updated_at = ? WHERE id = ?`, path, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set master photo: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMaster removes the master; bookings and schedules go with it.
func (db *DB) DeleteMaster(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM masters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete master: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetMaster(ctx context.Context, id int64) (*models.Master, error) {
	row := db.QueryRowContext(ctx, `SELECT `+masterColumns+` FROM masters WHERE id = ?`, id)
	m, err := scanMaster(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get master %d: %w", id, notFound(err))
	}

	ids, err := db.GetMasterServiceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	m.ServiceIDs = ids
	return m, nil
}

// GetActiveMasters returns active masters ordered by display order then first name,
// each with its linked service ids.
func (db *DB) GetActiveMasters(ctx context.Context) ([]*models.Master, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+masterColumns+` FROM masters WHERE is_active = 1 ORDER BY display_order ASC, first_name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query masters: %w", err)
	}
	defer rows.Close()

	var (
		masters []*models.Master
		byID    = make(map[int64]*models.Master)
	)
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan master: %w", err)
		}
		m.ServiceIDs = []int64{}
		masters = append(masters, m)
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate masters: %w", err)
	}
	rows.Close()

	if len(masters) == 0 {
		return masters, nil
	}

	links, err := db.QueryContext(ctx, `SELECT ms.master_id, ms.service_id
		FROM master_services ms
		JOIN masters m ON m.id = ms.master_id AND m.is_active = 1
		JOIN services s ON s.id = ms.service_id
		ORDER BY ms.master_id, s.name, s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query master services: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var masterID, serviceID int64
		if err := links.Scan(&masterID, &serviceID); err != nil {
			return nil, fmt.Errorf("failed to scan master service: %w", err)
		}
		if m, ok := byID[masterID]; ok {
			m.ServiceIDs = append(m.ServiceIDs, serviceID)
		}
	}
	if err := links.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate master services: %w", err)
	}
	return masters, nil
}

// GetMasterServiceIDs returns every linked service id, ordered by service name.
func (db *DB) GetMasterServiceIDs(ctx context.Context, masterID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT ms.service_id
		FROM master_services ms JOIN services s ON s.id = ms.service_id
		WHERE ms.master_id = ? ORDER BY s.name, s.id`, masterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query master services: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan master service: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetMasterActiveServices returns the active services linked to a master, ordered by name.
func (db *DB) GetMasterActiveServices(ctx context.Context, masterID int64) ([]*models.Service, error) {
	query := `SELECT s.id, s.name, s.description, s.duration_seconds, s.price, s.is_active, s.category,
				s.image_path, s.image_url, s.created_at, s.updated_at
			FROM services s JOIN master_services ms ON ms.service_id = s.id
			WHERE ms.master_id = ? AND s.is_active = 1
			ORDER BY s.name ASC, s.id ASC`
	return db.queryServices(ctx, query, masterID)
}
