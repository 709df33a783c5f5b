package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salon/internal/models"
)

const serviceColumns = `id, name, description, duration_seconds, price, is_active, category,
	image_path, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*models.Service, error) {
	var (
		s       models.Service
		seconds int64
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.Description, &seconds, &s.Price, &s.IsActive, &s.Category,
		&s.Image.File, &s.Image.URL, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Duration = time.Duration(seconds) * time.Second
	return &s, nil
}

func (db *DB) CreateService(ctx context.Context, s *models.Service) error {
	if strings.TrimSpace(s.Category) == "" {
		s.Category = models.DefaultCategory
	}
	now := time.Now()
	query := `INSERT INTO services (name, description, duration_seconds, price, is_active, category,
				image_path, image_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		s.Name, s.Description, int64(s.Duration/time.Second), s.Price.StringFixed(2), s.IsActive,
		s.Category, s.Image.File, s.Image.URL, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// UpsertService inserts the service with its given id or overwrites the existing row.
func (db *DB) UpsertService(ctx context.Context, s *models.Service) error {
	if s.ID == 0 {
		return db.CreateService(ctx, s)
	}
	if strings.TrimSpace(s.Category) == "" {
		s.Category = models.DefaultCategory
	}
	now := time.Now()
	query := `INSERT INTO services (id, name, description, duration_seconds, price, is_active, category,
				image_path, image_url, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				duration_seconds = excluded.duration_seconds,
				price = excluded.price,
				is_active = excluded.is_active,
				category = excluded.category,
				image_path = excluded.image_path,
				image_url = excluded.image_url,
				updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		s.ID, s.Name, s.Description, int64(s.Duration/time.Second), s.Price.StringFixed(2), s.IsActive,
		s.Category, s.Image.File, s.Image.URL, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert service %d: %w", s.ID, err)
	}
	s.UpdatedAt = now
	return nil
}

func (db *DB) UpdateService(ctx context.Context, s *models.Service) error {
	if strings.TrimSpace(s.Category) == "" {
		s.Category = models.DefaultCategory
	}
	now := time.Now()
	query := `UPDATE services SET name = ?, description = ?, duration_seconds = ?, price = ?, is_active = ?,
				category = ?, image_path = ?, image_url = ?, updated_at = ?
			WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		s.Name, s.Description, int64(s.Duration/time.Second), s.Price.StringFixed(2), s.IsActive,
		s.Category, s.Image.File, s.Image.URL, now, s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	s.UpdatedAt = now
	return nil
}

func (db *DB) SetServiceImage(ctx context.Context, id int64, path string) error {
	result, err := db.ExecContext(ctx, `UPDATE services SET image_path = ?, updated_at = ? WHERE id = ?`, path, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set service image: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	row := db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id)
	s, err := scanService(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get service %d: %w", id, notFound(err))
	}
	return s, nil
}

// GetActiveServices returns active services ordered by name.
func (db *DB) GetActiveServices(ctx context.Context) ([]*models.Service, error) {
	return db.queryServices(ctx, `SELECT `+serviceColumns+` FROM services WHERE is_active = 1 ORDER BY name ASC, id ASC`)
}

func (db *DB) GetAllServices(ctx context.Context) ([]*models.Service, error) {
	return db.queryServices(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY name ASC, id ASC`)
}

func (db *DB) queryServices(ctx context.Context, query string, args ...any) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}
	return services, nil
}
