package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Celebration is emitted once when a node first becomes achieved. It is also
// the row stored in the celebration history table.
type Celebration struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	NodeID    NodeID         `json:"nodeId" gorm:"index;not null"`
	GoalTitle string         `json:"goalTitle"`
	Tier      Tier           `json:"tier" gorm:"not null"` // major or middle
	Percent   int            `json:"percent"`
	At        time.Time      `json:"at" gorm:"column:celebrated_at;index"`
	CreatedAt time.Time      `json:"createdAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (c *Celebration) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
