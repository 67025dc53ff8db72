// Package messaging 实现基于 Kafka 的领域事件发布
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/pkg/logging"

	"github.com/wyfcoding/riskengine/internal/riskmodel/domain"
)

// topicReportComputed 分析报告完成事件主题
const topicReportComputed = "risk.report.computed"

// reportComputedEvent 事件载荷（不含完整报告正文，消费方按指纹回查）
type reportComputedEvent struct {
	ReportID    uint64    `json:"report_id"`
	Fingerprint string    `json:"fingerprint"`
	Symbols     string    `json:"symbols"`
	TotalValue  float64   `json:"total_value"`
	Confidence  float64   `json:"confidence"`
	HorizonDays int       `json:"horizon_days"`
	ComputedAt  time.Time `json:"computed_at"`
}

// KafkaPublisher Kafka 事件发布器
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher 创建 Kafka 事件发布器
func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
	return &KafkaPublisher{writer: writer}
}

// PublishReportComputed 发布 risk.report.computed 事件
func (p *KafkaPublisher) PublishReportComputed(ctx context.Context, report *domain.RiskReport) error {
	event := reportComputedEvent{
		ReportID:    report.ID,
		Fingerprint: report.Fingerprint,
		Symbols:     report.Symbols,
		TotalValue:  report.TotalValue,
		Confidence:  report.Confidence,
		HorizonDays: report.HorizonDays,
		ComputedAt:  report.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal report event: %w", err)
	}

	msg := kafka.Message{
		Topic: topicReportComputed,
		Key:   []byte(report.Fingerprint),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish report event: %w", err)
	}

	logging.Debug(ctx, "report event published", "topic", topicReportComputed, "fingerprint", report.Fingerprint)
	return nil
}

// Close 关闭底层 writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
