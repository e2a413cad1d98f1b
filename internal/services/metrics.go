package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnold/mandala-api/internal/models"
	"gorm.io/gorm"
)

// MetricsService stores planned and actual yearly financial figures.
type MetricsService struct {
	db *gorm.DB
}

func NewMetricsService(db *gorm.DB) *MetricsService {
	return &MetricsService{db: db}
}

func (s *MetricsService) PlannedYearlyMetrics(ctx context.Context) ([]models.PlannedYearlyMetrics, error) {
	var planned []models.PlannedYearlyMetrics
	if err := s.db.WithContext(ctx).Order("year ASC").Find(&planned).Error; err != nil {
		return nil, fmt.Errorf("metrics: load planned: %w", err)
	}
	return planned, nil
}

func (s *MetricsService) ActualYearlyMetrics(ctx context.Context) ([]models.ActualYearlyMetrics, error) {
	var actual []models.ActualYearlyMetrics
	if err := s.db.WithContext(ctx).Order("year ASC").Find(&actual).Error; err != nil {
		return nil, fmt.Errorf("metrics: load actual: %w", err)
	}
	return actual, nil
}

// UpsertPlanned merges req into the plan for year, creating it if needed.
func (s *MetricsService) UpsertPlanned(ctx context.Context, year int, req models.PlannedMetricsRequest) (*models.PlannedYearlyMetrics, error) {
	var plan models.PlannedYearlyMetrics
	err := s.db.WithContext(ctx).Where("year = ?", year).First(&plan).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("metrics: find plan %d: %w", year, err)
	}
	isNew := err != nil
	plan.Year = year
	req.ApplyTo(&plan)

	if isNew {
		err = s.db.WithContext(ctx).Create(&plan).Error
	} else {
		err = s.db.WithContext(ctx).Save(&plan).Error
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: save plan %d: %w", year, err)
	}
	return &plan, nil
}

// UpsertActual merges a partial update into the actuals for year.
func (s *MetricsService) UpsertActual(ctx context.Context, year int, update models.ActualMetricsUpdate) (*models.ActualYearlyMetrics, error) {
	var actual models.ActualYearlyMetrics
	err := s.db.WithContext(ctx).Where("year = ?", year).First(&actual).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("metrics: find actuals %d: %w", year, err)
	}
	isNew := err != nil
	actual.Year = year
	update.ApplyTo(&actual)

	if isNew {
		err = s.db.WithContext(ctx).Create(&actual).Error
	} else {
		err = s.db.WithContext(ctx).Save(&actual).Error
	}
	if err != nil {
		return nil, fmt.Errorf("metrics: save actuals %d: %w", year, err)
	}
	return &actual, nil
}
