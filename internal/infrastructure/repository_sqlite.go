package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourusername/yuna-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteLibraryRepository implements LibraryRepository using SQLite
type SQLiteLibraryRepository struct {
	db *gorm.DB
}

// NewSQLiteLibraryRepository opens (and migrates) the library database
func NewSQLiteLibraryRepository(dbPath string) (*SQLiteLibraryRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.LibraryEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteLibraryRepository{db: db}, nil
}

// Create inserts a new entry
func (r *SQLiteLibraryRepository) Create(entry *domain.LibraryEntry) error {
	var count int64
	if err := r.db.Model(&domain.LibraryEntry{}).
		Where("kind = ? AND name = ?", entry.Kind, entry.Name).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", domain.ErrEntryExists, entry.Key())
	}

	if err := r.db.Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", domain.ErrEntryExists, entry.Key())
		}
		return err
	}
	return nil
}

// Update saves an existing entry
func (r *SQLiteLibraryRepository) Update(entry *domain.LibraryEntry) error {
	if entry.ID == 0 {
		return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, entry.Key())
	}
	return r.db.Save(entry).Error
}

// Upsert inserts or updates by kind+name
func (r *SQLiteLibraryRepository) Upsert(entry *domain.LibraryEntry) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider", "source_url", "media_id", "slug", "catalog_id", "language", "year",
			"episodes_downloaded", "episodes_total", "downloaded", "last_update",
			"poster_url", "rating", "genres", "synopsis", "updated_at",
		}),
	}).Create(entry).Error
}

// Delete removes an entry by kind and name
func (r *SQLiteLibraryRepository) Delete(kind domain.MediaKind, name string) error {
	result := r.db.Where("kind = ? AND name = ?", kind, name).Delete(&domain.LibraryEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrEntryNotFound, kind, name)
	}
	return nil
}

// Get finds an entry by kind and name
func (r *SQLiteLibraryRepository) Get(kind domain.MediaKind, name string) (*domain.LibraryEntry, error) {
	var entry domain.LibraryEntry
	err := r.db.Where("kind = ? AND name = ?", kind, name).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrEntryNotFound, kind, name)
		}
		return nil, err
	}
	return &entry, nil
}

// List returns every entry of a kind ordered by name
func (r *SQLiteLibraryRepository) List(kind domain.MediaKind) ([]*domain.LibraryEntry, error) {
	var entries []*domain.LibraryEntry
	err := r.db.Where("kind = ?", kind).Order("name ASC").Find(&entries).Error
	return entries, err
}

// ListAll returns every entry in scan order
func (r *SQLiteLibraryRepository) ListAll() ([]*domain.LibraryEntry, error) {
	var all []*domain.LibraryEntry
	for _, kind := range domain.ScanOrder {
		entries, err := r.List(kind)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

// Stats returns per-kind counters
func (r *SQLiteLibraryRepository) Stats() (*domain.LibraryStats, error) {
	stats := &domain.LibraryStats{}

	var kindCounts []struct {
		Kind  domain.MediaKind
		Count int64
	}
	if err := r.db.Model(&domain.LibraryEntry{}).
		Select("kind, COUNT(*) as count").
		Group("kind").
		Scan(&kindCounts).Error; err != nil {
		return nil, err
	}

	for _, kc := range kindCounts {
		switch kc.Kind {
		case domain.KindAnime:
			stats.Anime = kc.Count
		case domain.KindSeries:
			stats.Series = kc.Count
		case domain.KindFilm:
			stats.Films = kc.Count
		}
	}

	var episodes struct{ Total int64 }
	if err := r.db.Model(&domain.LibraryEntry{}).
		Select("COALESCE(SUM(episodes_downloaded), 0) as total").
		Scan(&episodes).Error; err != nil {
		return nil, err
	}
	stats.EpisodesDownloaded = episodes.Total

	if err := r.db.Model(&domain.LibraryEntry{}).
		Where("kind = ? AND downloaded = ?", domain.KindFilm, true).
		Count(&stats.FilmsDownloaded).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteLibraryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
