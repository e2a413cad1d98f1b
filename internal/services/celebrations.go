package services

import (
	"context"
	"fmt"

	"github.com/arnold/mandala-api/internal/models"
	"gorm.io/gorm"
)

// CelebrationHistory records every celebration so the presentation layer
// can list past achievements.
type CelebrationHistory struct {
	db *gorm.DB
}

func NewCelebrationHistory(db *gorm.DB) *CelebrationHistory {
	return &CelebrationHistory{db: db}
}

func (h *CelebrationHistory) Celebrate(ctx context.Context, c models.Celebration) error {
	if err := h.db.WithContext(ctx).Create(&c).Error; err != nil {
		return fmt.Errorf("celebrations: record %s: %w", c.NodeID, err)
	}
	return nil
}

// List returns one page of celebrations, newest first, and the total count.
func (h *CelebrationHistory) List(ctx context.Context, page, limit int) ([]models.Celebration, int64, error) {
	offset := (page - 1) * limit

	var celebrations []models.Celebration
	if err := h.db.WithContext(ctx).
		Order("celebrated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&celebrations).Error; err != nil {
		return nil, 0, fmt.Errorf("celebrations: list: %w", err)
	}

	var total int64
	if err := h.db.WithContext(ctx).Model(&models.Celebration{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("celebrations: count: %w", err)
	}
	return celebrations, total, nil
}
