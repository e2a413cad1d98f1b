package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlannedYearlyMetrics holds the financial targets for one year.
type PlannedYearlyMetrics struct {
	ID                    uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Year                  int       `json:"year" gorm:"uniqueIndex;not null"`
	RevenueTarget         float64   `json:"revenueTarget"`
	GrossProfitTarget     float64   `json:"grossProfitTarget"`
	OperatingProfitTarget float64   `json:"operatingProfitTarget"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (p *PlannedYearlyMetrics) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Target returns the planned value for kind.
func (p PlannedYearlyMetrics) Target(kind MetricKind) float64 {
	switch kind {
	case MetricRevenue:
		return p.RevenueTarget
	case MetricGrossProfit:
		return p.GrossProfitTarget
	case MetricOperatingProfit:
		return p.OperatingProfitTarget
	}
	return 0
}

// ActualYearlyMetrics holds the realized financial values for one year.
type ActualYearlyMetrics struct {
	ID                    uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Year                  int       `json:"year" gorm:"uniqueIndex;not null"`
	RevenueActual         float64   `json:"revenueActual"`
	GrossProfitActual     float64   `json:"grossProfitActual"`
	OperatingProfitActual float64   `json:"operatingProfitActual"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (a *ActualYearlyMetrics) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Metrics DTOs
type PlannedMetricsRequest struct {
	RevenueTarget         *float64 `json:"revenueTarget" validate:"omitempty,gte=0"`
	GrossProfitTarget     *float64 `json:"grossProfitTarget" validate:"omitempty,gte=0"`
	OperatingProfitTarget *float64 `json:"operatingProfitTarget" validate:"omitempty,gte=0"`
}

// ActualMetricsUpdate is a partial update; nil fields are left unchanged.
type ActualMetricsUpdate struct {
	RevenueActual         *float64 `json:"revenueActual" validate:"omitempty,gte=0"`
	GrossProfitActual     *float64 `json:"grossProfitActual" validate:"omitempty,gte=0"`
	OperatingProfitActual *float64 `json:"operatingProfitActual" validate:"omitempty,gte=0"`
}

// Values returns the metrics present in the update.
func (u ActualMetricsUpdate) Values() map[MetricKind]float64 {
	out := make(map[MetricKind]float64, 3)
	if u.RevenueActual != nil {
		out[MetricRevenue] = *u.RevenueActual
	}
	if u.GrossProfitActual != nil {
		out[MetricGrossProfit] = *u.GrossProfitActual
	}
	if u.OperatingProfitActual != nil {
		out[MetricOperatingProfit] = *u.OperatingProfitActual
	}
	return out
}

// Validate rejects negative and non-finite figures.
func (u ActualMetricsUpdate) Validate() error {
	values := u.Values()
	for _, kind := range []MetricKind{MetricRevenue, MetricGrossProfit, MetricOperatingProfit} {
		v, ok := values[kind]
		if ok && (v < 0 || math.IsNaN(v) || math.IsInf(v, 0)) {
			return fmt.Errorf("%s must be a finite non-negative number, got %v", kind, v)
		}
	}
	return nil
}

// ApplyTo merges the update into a.
func (u ActualMetricsUpdate) ApplyTo(a *ActualYearlyMetrics) {
	if u.RevenueActual != nil {
		a.RevenueActual = *u.RevenueActual
	}
	if u.GrossProfitActual != nil {
		a.GrossProfitActual = *u.GrossProfitActual
	}
	if u.OperatingProfitActual != nil {
		a.OperatingProfitActual = *u.OperatingProfitActual
	}
}

// ApplyTo merges the request into p.
func (r PlannedMetricsRequest) ApplyTo(p *PlannedYearlyMetrics) {
	if r.RevenueTarget != nil {
		p.RevenueTarget = *r.RevenueTarget
	}
	if r.GrossProfitTarget != nil {
		p.GrossProfitTarget = *r.GrossProfitTarget
	}
	if r.OperatingProfitTarget != nil {
		p.OperatingProfitTarget = *r.OperatingProfitTarget
	}
}
