// ABOUTME: SQLite-backed Store adapter over a single key-value table
// ABOUTME: Uses GORM with upsert-on-conflict so Set is insert-or-replace

package storage

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

type kvRecord struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value []byte `gorm:"column:value"`
}

func (kvRecord) TableName() string { return "kv_records" }

// SQLiteStore keeps every record in one SQLite table. SQLite makes each
// statement durable on commit, so no extra fsync handling is needed here.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database file at path and migrates
// the kv_records table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, fmt.Errorf("migrate kv_records: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get retrieves a value by key.
func (ss *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var rec kvRecord
	err := ss.db.First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read record: %w", err)
	}
	return rec.Value, true, nil
}

// Set inserts or replaces a value.
func (ss *SQLiteStore) Set(key string, value []byte) error {
	rec := kvRecord{Key: key, Value: value}
	err := ss.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (ss *SQLiteStore) Delete(key string) error {
	if err := ss.db.Delete(&kvRecord{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (ss *SQLiteStore) Close() error {
	sqlDB, err := ss.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
