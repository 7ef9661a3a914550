package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/daysentry/daysentry/internal/message"
)

// sqliteRecord is the relational shape of a daily message row. The composite
// primary key mirrors the (PK, SK) layout of the hosted store so the two
// backends stay interchangeable.
type sqliteRecord struct {
	PartitionKey     string `gorm:"column:pk;primaryKey;size:64;not null"`
	SortKey          string `gorm:"column:sk;primaryKey;size:64;not null"`
	Text             string `gorm:"column:text;type:text;not null"`
	Status           string `gorm:"column:status;size:16;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (sqliteRecord) TableName() string {
	return "daily_messages"
}

// SQLiteStore implements RecordStore on a local SQLite database. It is the
// development and test backend; the hosted deployment uses DynamoStore.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite establishes a SQLite connection, performs schema migration, and
// returns a record store bound to it.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store: sqlite path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&sqliteRecord{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("sqlite store initialized", zap.String("path", path))
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the record for the given date or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, date message.Date) (message.DailyMessage, error) {
	var row sqliteRecord
	err := s.db.WithContext(ctx).
		Where("pk = ? AND sk = ?", message.PartitionKey, date.SortKey()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return message.DailyMessage{}, ErrNotFound
	}
	if err != nil {
		return message.DailyMessage{}, fmt.Errorf("store: getting record for %s: %w", date, err)
	}

	status, err := message.ParseStatus(row.Status)
	if err != nil {
		return message.DailyMessage{}, fmt.Errorf("store: record %s: %w", date, err)
	}

	return message.DailyMessage{
		Date:      date,
		Text:      row.Text,
		Status:    status,
		CreatedAt: time.Unix(row.CreatedAtSeconds, 0).UTC(),
	}, nil
}

// Put unconditionally writes one record, overwriting any existing row.
func (s *SQLiteStore) Put(ctx context.Context, record message.DailyMessage) error {
	row := toSQLiteRecord(record)
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("store: putting record for %s: %w", record.Date, err)
	}
	return nil
}

// PutBatch writes all records in one transaction. SQLite has no partial-write
// failure mode, so the unprocessed result is always empty on success.
func (s *SQLiteStore) PutBatch(ctx context.Context, records []message.DailyMessage) ([]message.Date, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d items", ErrBatchTooLarge, len(records))
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			row := toSQLiteRecord(record)
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("store: putting record for %s: %w", record.Date, err)
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return nil, nil
}

func toSQLiteRecord(record message.DailyMessage) sqliteRecord {
	return sqliteRecord{
		PartitionKey:     message.PartitionKey,
		SortKey:          record.Date.SortKey(),
		Text:             record.Text,
		Status:           string(record.Status),
		CreatedAtSeconds: record.CreatedAt.UTC().Unix(),
	}
}
