package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bankofchain/vaultd/internal/model"
)

// RedisAuditSink mirrors committed operations into a capped redis list so
// operators can tail recent vault activity without hitting postgres.
type RedisAuditSink struct {
	client  *redis.Client
	listKey string
	listMax int64
}

type auditEntry struct {
	Op        string    `json:"op"`
	Payload   any       `json:"payload,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
	Accepted  *bool     `json:"accepted,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"ts"`
}

func NewRedisAuditSink(client *redis.Client, listKey string, listMax int64) *RedisAuditSink {
	if listKey == "" {
		listKey = "vaultd:audit"
	}
	if listMax <= 0 {
		listMax = 10_000
	}
	return &RedisAuditSink{client: client, listKey: listKey, listMax: listMax}
}

func (s *RedisAuditSink) RecordOperation(ctx context.Context, op string, payload any) error {
	return s.push(ctx, auditEntry{Op: op, Payload: payload, Timestamp: time.Now()})
}

func (s *RedisAuditSink) RecordReport(ctx context.Context, report model.PendingReport, accepted bool, reason string) error {
	return s.push(ctx, auditEntry{
		Op:        "report",
		Strategy:  report.Strategy,
		Accepted:  &accepted,
		Reason:    reason,
		Payload:   report,
		Timestamp: time.Now(),
	})
}

// Recent returns up to limit raw audit entries, newest first.
func (s *RedisAuditSink) Recent(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 || limit > s.listMax {
		limit = 100
	}
	return s.client.LRange(ctx, s.listKey, 0, limit-1).Result()
}

func (s *RedisAuditSink) push(ctx context.Context, entry auditEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.client.LPush(ctx, s.listKey, raw).Err(); err != nil {
		return err
	}
	return s.client.LTrim(ctx, s.listKey, 0, s.listMax-1).Err()
}
