package domain

import (
	"context"
	"time"
)

// RiskReport 一次完整组合分析的持久化记录
type RiskReport struct {
	ID          uint64
	Fingerprint string // 请求指纹：标的、数量与参数的摘要
	Symbols     string // 逗号分隔的标的列表，便于检索
	TotalValue  float64
	Confidence  float64
	HorizonDays int
	Payload     []byte // 完整分析结果的 JSON
	CreatedAt   time.Time
}

// ReportRepository 分析报告仓储
type ReportRepository interface {
	Save(ctx context.Context, report *RiskReport) error
	FindRecent(ctx context.Context, limit int) ([]*RiskReport, error)
}

// EventPublisher 领域事件发布
type EventPublisher interface {
	// PublishReportComputed 发布 risk.report.computed 事件
	PublishReportComputed(ctx context.Context, report *RiskReport) error
}
