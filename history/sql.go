package history

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mhpenta/imagestudio"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// record is the row shape of the image_history table.
type record struct {
	ID            string    `gorm:"primaryKey;size:64"`
	UserID        string    `gorm:"index:idx_image_history_user_time,priority:1;size:128"`
	Timestamp     time.Time `gorm:"column:created_at;index:idx_image_history_user_time,priority:2"`
	Prompt        string    `gorm:"type:text"`
	ResultImage   string    `gorm:"type:text"`
	OriginalImage string    `gorm:"type:text"`
	Type          string    `gorm:"size:16"`
	Degraded      bool
}

func (record) TableName() string { return "image_history" }

func toRecord(item *imagestudio.HistoryItem) *record {
	return &record{
		ID:            item.ID,
		UserID:        item.UserID,
		Timestamp:     item.Timestamp.UTC(),
		Prompt:        item.Prompt,
		ResultImage:   item.ResultImage,
		OriginalImage: item.OriginalImage,
		Type:          string(item.Type),
		Degraded:      item.Degraded,
	}
}

func (r *record) toItem() *imagestudio.HistoryItem {
	return &imagestudio.HistoryItem{
		ID:            r.ID,
		UserID:        r.UserID,
		Timestamp:     r.Timestamp.UTC(),
		Prompt:        r.Prompt,
		ResultImage:   r.ResultImage,
		OriginalImage: r.OriginalImage,
		Type:          imagestudio.HistoryType(r.Type),
		Degraded:      r.Degraded,
	}
}

// SQLStore persists history rows with gorm.
type SQLStore struct {
	db *gorm.DB
}

var _ imagestudio.HistoryRecorder = (*SQLStore)(nil)

// OpenSQL connects to sqlite or postgres and migrates the history table.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("history %s driver requires a dsn", driver)
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return NewSQLStore(db)
}

// NewSQLStore wraps an open connection and migrates the history table.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate image_history: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Save(ctx context.Context, item *imagestudio.HistoryItem) error {
	if err := validateItem(item); err != nil {
		return err
	}
	// Insert only. A taken ID, whoever owns it, is a conflict.
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(toRecord(item))
	if res.Error != nil {
		return fmt.Errorf("failed to save history item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", imagestudio.ErrHistoryExists, item.ID)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, userID string) ([]*imagestudio.HistoryItem, error) {
	var rows []record
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	items := make([]*imagestudio.HistoryItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toItem())
	}
	return items, nil
}

func (s *SQLStore) DeleteOne(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&record{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete history item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return imagestudio.ErrHistoryNotFound
	}
	return nil
}

func (s *SQLStore) DeleteAll(ctx context.Context, userID string) error {
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&record{}).Error; err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
