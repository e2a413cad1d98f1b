package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/arnold/mandala-api/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntryStore persists tree entries in the tree_entries table.
type EntryStore struct {
	db *gorm.DB
}

func NewEntryStore(db *gorm.DB) *EntryStore {
	return &EntryStore{db: db}
}

func (s *EntryStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.TreeEntry
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database: get entry %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *EntryStore) Put(ctx context.Context, key string, value []byte) error {
	entry := models.TreeEntry{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("database: put entry %s: %w", key, err)
	}
	return nil
}
