package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "salon.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func countBookings(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bookings`).Scan(&n))
	return n
}

func countActiveSlotBookings(t *testing.T, db *DB, masterID int64, date, clock string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bookings WHERE master_id = ? AND date = ? AND time = ? AND status IN (?, ?)`,
		masterID, date, clock, models.StatusPending, models.StatusConfirmed).Scan(&n))
	return n
}

func seedService(t *testing.T, db *DB, name string, active bool) *models.Service {
	t.Helper()
	s := &models.Service{
		Name:     name,
		Duration: time.Hour,
		Price:    decimal.RequireFromString("1500"),
		IsActive: active,
	}
	require.NoError(t, db.CreateService(context.Background(), s))
	return s
}

func seedMaster(t *testing.T, db *DB, firstName string, active bool, serviceIDs ...int64) *models.Master {
	t.Helper()
	m := &models.Master{
		FirstName:      firstName,
		LastName:       "Иванова",
		Specialization: models.SpecializationHair,
		Experience:     3,
		Rating:         decimal.RequireFromString("4.8"),
		IsActive:       active,
		ServiceIDs:     serviceIDs,
	}
	m.Normalize()
	require.NoError(t, db.CreateMaster(context.Background(), m))
	return m
}

func newBooking(serviceID, masterID int64, date, clock string) *models.Booking {
	return &models.Booking{
		ClientName:  "Иван",
		ClientEmail: "ivan@example.com",
		ClientPhone: "+79001234567",
		ServiceID:   serviceID,
		MasterID:    masterID,
		Date:        date,
		Time:        clock,
	}
}

func TestNewDB_InMemory(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	n := countBookings(t, db)
	assert.Zero(t, n)
}

func TestNewDB_MigrationsIdempotent(t *testing.T) {
	logger := zerolog.New(io.Discard)
	path := filepath.Join(t.TempDir(), "twice.db")

	db, err := NewDB(path, &logger)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(path, &logger)
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())
	require.NoError(t, db.Close())
}

func TestServices(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	b := seedService(t, db, "Окрашивание", true)
	a := seedService(t, db, "Маникюр", true)
	seedService(t, db, "Архив", false)

	assert.Equal(t, models.DefaultCategory, a.Category)

	active, err := db.GetActiveServices(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, b.ID, active[1].ID)
	assert.Equal(t, time.Hour, active[0].Duration)
	assert.Equal(t, "1500.00", active[0].PriceString())

	all, err := db.GetAllServices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	a.Price = decimal.RequireFromString("1999.99")
	a.Image = models.ImageRef{URL: "https://cdn.example.com/nails.jpg"}
	require.NoError(t, db.UpdateService(ctx, a))

	got, err := db.GetService(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "1999.99", got.PriceString())
	assert.Equal(t, "https://cdn.example.com/nails.jpg", got.Image.URL)

	require.NoError(t, db.SetServiceImage(ctx, a.ID, "services/nails.jpg"))
	got, err = db.GetService(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImageFile, got.Image.Kind())

	_, err = db.GetService(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateService(ctx, &models.Service{ID: 999, Name: "x", Duration: time.Minute}), ErrNotFound)
	assert.ErrorIs(t, db.SetServiceImage(ctx, 999, "x.jpg"), ErrNotFound)
}

func TestUpsertService(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s := &models.Service{ID: 10, Name: "Стрижка", Duration: 45 * time.Minute, Price: decimal.NewFromInt(800), IsActive: true}
	require.NoError(t, db.UpsertService(ctx, s))

	s.Name = "Стрижка мужская"
	require.NoError(t, db.UpsertService(ctx, s))

	got, err := db.GetService(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Стрижка мужская", got.Name)
	assert.Equal(t, 45*time.Minute, got.Duration)
}

func TestMasters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	cut := seedService(t, db, "Стрижка", true)
	color := seedService(t, db, "Окрашивание", true)
	hidden := seedService(t, db, "Архивная", false)

	second := seedMaster(t, db, "Мария", true, cut.ID)
	second.DisplayOrder = 2
	require.NoError(t, db.UpdateMaster(ctx, second))

	first := seedMaster(t, db, "Ольга", true, cut.ID, color.ID, hidden.ID)
	tie := seedMaster(t, db, "Анна", true)
	seedMaster(t, db, "Скрытая", false, cut.ID)

	masters, err := db.GetActiveMasters(ctx)
	require.NoError(t, err)
	require.Len(t, masters, 3)
	// display_order 0 first, ties by first name
	assert.Equal(t, tie.ID, masters[0].ID)
	assert.Equal(t, first.ID, masters[1].ID)
	assert.Equal(t, second.ID, masters[2].ID)

	assert.Empty(t, masters[0].ServiceIDs)
	assert.Equal(t, []int64{hidden.ID, color.ID, cut.ID}, masters[1].ServiceIDs)
	assert.Equal(t, "4.8", masters[1].Rating.String())

	services, err := db.GetMasterActiveServices(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, color.ID, services[0].ID)
	assert.Equal(t, cut.ID, services[1].ID)

	got, err := db.GetMaster(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ольга Иванова", got.FullName())
	assert.JSONEq(t, "{}", string(got.WorkSchedule))

	require.NoError(t, db.SetMasterPhoto(ctx, first.ID, "masters/photos/olga.jpg"))
	got, err = db.GetMaster(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "masters/photos/olga.jpg", got.Photo.File)

	_, err = db.GetMaster(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateMaster(ctx, &models.Master{ID: 999}), ErrNotFound)
}

func TestUpsertMaster(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cut := seedService(t, db, "Стрижка", true)

	m := &models.Master{ID: 7, FirstName: "Ирина", Specialization: models.SpecializationMassage,
		Rating: decimal.RequireFromString("5.0"), IsActive: true, ServiceIDs: []int64{cut.ID}}
	require.NoError(t, db.UpsertMaster(ctx, m))

	m.ServiceIDs = nil
	m.Experience = 10
	require.NoError(t, db.UpsertMaster(ctx, m))

	got, err := db.GetMaster(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Experience)
	assert.Empty(t, got.ServiceIDs)
}

func TestMasterSchedule(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	m := seedMaster(t, db, "Ольга", true)

	days := []models.MasterSchedule{
		{DayOfWeek: 2, StartTime: "10:00:00", EndTime: "19:00:00", IsWorking: true},
		{DayOfWeek: 0, StartTime: "09:00:00", EndTime: "18:00:00", IsWorking: true},
	}
	require.NoError(t, db.SetMasterSchedule(ctx, m.ID, days))

	require.NoError(t, db.SetMasterSchedule(ctx, m.ID, []models.MasterSchedule{
		{DayOfWeek: 2, StartTime: "00:00:00", EndTime: "00:00:00", IsWorking: false},
	}))

	got, err := db.GetMasterSchedule(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].DayOfWeek)
	assert.Equal(t, 2, got[1].DayOfWeek)
	assert.False(t, got[1].IsWorking)

	assert.ErrorIs(t, db.SetMasterSchedule(ctx, 999, days), ErrNotFound)
}

func TestDeleteMasterCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := seedService(t, db, "Стрижка", true)
	m := seedMaster(t, db, "Ольга", true, s.ID)

	require.NoError(t, db.CreateBooking(ctx, newBooking(s.ID, m.ID, "2024-06-01", "14:00:00")))
	require.NoError(t, db.SetMasterSchedule(ctx, m.ID, []models.MasterSchedule{
		{DayOfWeek: 0, StartTime: "09:00:00", EndTime: "18:00:00", IsWorking: true},
	}))

	require.NoError(t, db.DeleteMaster(ctx, m.ID))

	n := countBookings(t, db)
	assert.Zero(t, n)

	days, err := db.GetMasterSchedule(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, days)

	assert.ErrorIs(t, db.DeleteMaster(ctx, m.ID), ErrNotFound)
}
