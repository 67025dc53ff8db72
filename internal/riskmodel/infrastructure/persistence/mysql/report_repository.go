package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

// RiskReportModel MySQL 风险报告表映射
type RiskReportModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement;column:id"`
	Fingerprint string    `gorm:"column:fingerprint;type:varchar(64);index;not null"`
	Symbols     string    `gorm:"column:symbols;type:varchar(1024);not null"`
	TotalValue  float64   `gorm:"column:total_value;type:double;not null"`
	Confidence  float64   `gorm:"column:confidence;type:double;not null"`
	HorizonDays int       `gorm:"column:horizon_days;not null"`
	Payload     []byte    `gorm:"column:payload;type:mediumblob;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;index;not null"`
}

func (RiskReportModel) TableName() string { return "risk_reports" }

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository 创建并返回一个新的 ReportRepository 实例。
func NewReportRepository(db *gorm.DB) domain.ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Save(ctx context.Context, report *domain.RiskReport) error {
	if report == nil {
		return nil
	}
	model := &RiskReportModel{
		Fingerprint: report.Fingerprint,
		Symbols:     report.Symbols,
		TotalValue:  report.TotalValue,
		Confidence:  report.Confidence,
		HorizonDays: report.HorizonDays,
		Payload:     report.Payload,
		CreatedAt:   report.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save risk report: %w", err)
	}
	report.ID = model.ID
	return nil
}

func (r *reportRepository) FindRecent(ctx context.Context, limit int) ([]*domain.RiskReport, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []RiskReportModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list risk reports: %w", err)
	}
	out := make([]*domain.RiskReport, len(models))
	for i, m := range models {
		out[i] = &domain.RiskReport{
			ID:          m.ID,
			Fingerprint: m.Fingerprint,
			Symbols:     m.Symbols,
			TotalValue:  m.TotalValue,
			Confidence:  m.Confidence,
			HorizonDays: m.HorizonDays,
			Payload:     m.Payload,
			CreatedAt:   m.CreatedAt,
		}
	}
	return out, nil
}
