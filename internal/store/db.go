package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DBStore implements Store on top of GORM, for deployments that outgrow the
// flat CSV file. It preserves the same upsert-by-filename semantics.
type DBStore struct {
	db *gorm.DB
}

// OpenDB initializes the database-backed store and runs migrations.
// Parameters:
//   - cfg: storage configuration including driver and connection settings.
// Returns:
//   - *DBStore: initialized store.
//   - error: non-nil if connection or migration fails.
func OpenDB(cfg *config.StorageConfig) (*DBStore, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var db *gorm.DB
	var err error

	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gormConfig)
	default:
		if cfg.DBPath != "" {
			if mkErr := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.DBPath), gormConfig)
		if err == nil {
			// WAL mode lets the dashboard read while the pipeline writes.
			db.Exec("PRAGMA journal_mode=WAL")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&domain.CallRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DBStore{db: db}, nil
}

// Upsert inserts or overwrites the record keyed by filename.
func (s *DBStore) Upsert(ctx context.Context, rec *domain.CallRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

// Get returns the record for filename, or ErrNotFound.
func (s *DBStore) Get(ctx context.Context, filename string) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	err := s.db.WithContext(ctx).First(&rec, "filename = ?", filename).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records, most recent first.
func (s *DBStore) List(ctx context.Context) ([]domain.CallRecord, error) {
	var recs []domain.CallRecord
	err := s.db.WithContext(ctx).Order("timestamp DESC").Find(&recs).Error
	return recs, err
}

// Delete removes the record for filename.
func (s *DBStore) Delete(ctx context.Context, filename string) error {
	res := s.db.WithContext(ctx).Delete(&domain.CallRecord{}, "filename = ?", filename)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Search matches query case-insensitively against transcription, summary,
// intent, agent name, and filename.
func (s *DBStore) Search(ctx context.Context, query string) ([]domain.CallRecord, error) {
	// LOWER on both sides keeps the match case-insensitive on sqlite and
	// postgres alike.
	like := "%" + strings.ToLower(query) + "%"
	var recs []domain.CallRecord
	err := s.db.WithContext(ctx).
		Where("LOWER(transcription) LIKE ? OR LOWER(summary) LIKE ? OR LOWER(intent) LIKE ? OR LOWER(agent_name) LIKE ? OR LOWER(filename) LIKE ?",
			like, like, like, like, like).
		Order("timestamp DESC").
		Find(&recs).Error
	return recs, err
}

// Count returns the number of stored records.
func (s *DBStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.CallRecord{}).Count(&n).Error
	return n, err
}

// Close closes the underlying connection pool.
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
