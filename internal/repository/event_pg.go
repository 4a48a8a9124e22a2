// Package repository persists the vault's committed-operation journal and
// strategy-report history, and mirrors a bounded audit trail into redis.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/pkg/logger"
)

// OperationEvent is one committed vault operation.
type OperationEvent struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Op        string    `gorm:"index;size:64"`
	Payload   string    `gorm:"type:jsonb"`
	CreatedAt time.Time `gorm:"index"`
}

// StrategyReport is one harvest report, accepted or rejected.
type StrategyReport struct {
	ID        string `gorm:"primaryKey;size:36"`
	Strategy  string `gorm:"index;size:64"`
	PrevDebt  string `gorm:"size:78"`
	NewValue  string `gorm:"size:78"`
	Accepted  bool
	Reason    string
	CreatedAt time.Time `gorm:"index"`
}

type PostgresEventSink struct {
	db *gorm.DB
}

func NewPostgresEventSink(db *gorm.DB) (*PostgresEventSink, error) {
	if err := db.AutoMigrate(&OperationEvent{}, &StrategyReport{}); err != nil {
		return nil, err
	}
	return &PostgresEventSink{db: db}, nil
}

func (s *PostgresEventSink) RecordOperation(ctx context.Context, op string, payload any) error {
	body := "{}"
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = string(raw)
	}
	return s.db.WithContext(ctx).Create(&OperationEvent{
		ID:        uuid.NewString(),
		Op:        op,
		Payload:   body,
		CreatedAt: time.Now(),
	}).Error
}

func (s *PostgresEventSink) RecordReport(ctx context.Context, report model.PendingReport, accepted bool, reason string) error {
	return s.db.WithContext(ctx).Create(&StrategyReport{
		ID:        uuid.NewString(),
		Strategy:  report.Strategy,
		PrevDebt:  report.PrevDebt.String(),
		NewValue:  report.NewValue.String(),
		Accepted:  accepted,
		Reason:    reason,
		CreatedAt: time.Now(),
	}).Error
}

// RecentReports returns the latest reports for one strategy, newest first.
func (s *PostgresEventSink) RecentReports(ctx context.Context, strategy string, limit int) ([]StrategyReport, error) {
	var out []StrategyReport
	err := s.db.WithContext(ctx).
		Where("strategy = ?", strategy).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CleanupLoop runs Cleanup once a day until the process exits.
func (s *PostgresEventSink) CleanupLoop(retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if err := s.Cleanup(context.Background(), retention); err != nil {
			logger.Warn("journal cleanup failed", "error", err.Error())
		}
	}
}

// Cleanup drops journal rows older than the retention window.
func (s *PostgresEventSink) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	if err := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&OperationEvent{}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&StrategyReport{}).Error
}
