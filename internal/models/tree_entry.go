package models

import "time"

// TreeEntry is one logical key of the persisted goal tree.
type TreeEntry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:191"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}
