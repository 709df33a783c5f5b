package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"salon/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	storagePath := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(tempDir, "source.db"), &logger)
	require.NoError(t, err)
	seedService(t, db, "Стрижка", true)
	require.NoError(t, db.Close())

	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
		Schedule:      "0 3 * * *",
	}
	s := NewBackupService(filepath.Join(tempDir, "source.db"), cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, filepath.Join(storagePath, files[0].Name()), path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()
		services, err := restored.GetAllServices(context.Background())
		require.NoError(t, err)
		assert.Len(t, services, 1)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "salon_old.db")
		foreign := filepath.Join(storagePath, "keep.db")
		oldTime := time.Now().AddDate(0, 0, -2)
		for _, f := range []string{oldFile, foreign} {
			require.NoError(t, os.WriteFile(f, []byte("old"), 0o644))
			require.NoError(t, os.Chtimes(f, oldTime, oldTime))
		}

		assert.Equal(t, 1, s.CleanupOldBackups())

		_, err := os.Stat(oldFile)
		assert.True(t, os.IsNotExist(err))
		_, err = os.Stat(foreign)
		assert.NoError(t, err)
	})
}

func TestBackupService_Fallback(t *testing.T) {
	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "not-a-db.db")
	require.NoError(t, os.WriteFile(src, []byte("plain bytes"), 0o644))

	logger := zerolog.Nop()
	s := NewBackupService(src, config.BackupConfig{Enabled: true, StoragePath: filepath.Join(tempDir, "out")}, &logger)
	_, err := s.PerformBackup(context.Background())
	require.NoError(t, err)

	files, err := os.ReadDir(filepath.Join(tempDir, "out"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(filepath.Join(tempDir, "out", files[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "plain bytes", string(data))
}

func TestBackupService_Disabled(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService("any", config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Start(ctx))
}

func TestBackupService_InvalidSchedule(t *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService("any", config.BackupConfig{
		Enabled:     true,
		Schedule:    "every tuesday",
		StoragePath: t.TempDir(),
	}, &logger)

	assert.Error(t, s.Start(context.Background()))
}
