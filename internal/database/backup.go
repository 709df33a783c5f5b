package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"salon/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	backupPrefix     = "salon_"
	backupExt        = ".db"
	backupTimeLayout = "20060102_150405"
)

// BackupService snapshots the salon database on a cron schedule and keeps
// RetentionDays worth of snapshots.
type BackupService struct {
	dbPath string
	config config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{dbPath: dbPath, config: cfg, logger: logger, now: time.Now}
}

// Start takes a snapshot right away and then on every schedule tick until ctx
// is cancelled.
func (s *BackupService) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(s.config.Schedule, func() { s.runOnce(ctx, "scheduled") }); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", s.config.Schedule, err)
	}
	s.logger.Info().Str("schedule", s.config.Schedule).Int("retention_days", s.config.RetentionDays).Msg("Backup service started")

	s.runOnce(ctx, "initial")

	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func (s *BackupService) runOnce(ctx context.Context, kind string) {
	path, err := s.PerformBackup(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("Backup failed")
		return
	}
	removed := s.CleanupOldBackups()
	s.logger.Info().Str("kind", kind).Str("path", path).Int("removed", removed).Msg("Backup completed")
}

// PerformBackup writes a consistent snapshot with VACUUM INTO and returns its
// path. When the source cannot be vacuumed the file is copied as is.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	target := filepath.Join(s.config.StoragePath, backupPrefix+s.now().Format(backupTimeLayout)+backupExt)

	src, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return "", fmt.Errorf("open source database: %w", err)
	}
	defer src.Close()

	quoted := strings.ReplaceAll(target, "'", "''")
	if _, err := src.ExecContext(ctx, "VACUUM INTO '"+quoted+"'"); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, copying database file")
		if err := s.copyFile(target); err != nil {
			return "", err
		}
	}
	return target, nil
}

// copyFile is not consistent with concurrent writers. The copy goes to a
// temporary name first so a half-written snapshot never looks like a backup.
func (s *BackupService) copyFile(target string) error {
	in, err := os.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer in.Close()

	tmp := target + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy database: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close backup file: %w", err)
	}
	return os.Rename(tmp, target)
}

// CleanupOldBackups deletes snapshots older than the retention period and
// returns how many were removed. Unrelated files in the directory are kept.
func (s *BackupService) CleanupOldBackups() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, name)); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to delete old backup")
			continue
		}
		removed++
	}
	return removed
}
