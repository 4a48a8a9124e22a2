package repository

import (
	"context"
	"sync"
	"time"

	"github.com/bankofchain/vaultd/internal/model"
)

// MemoryEventSink is the fallback journal used when no database is
// configured. Tests also use it to assert on recorded operations.
type MemoryEventSink struct {
	mu      sync.Mutex
	ops     []MemoryOperation
	reports []MemoryReport
}

type MemoryOperation struct {
	Op        string
	Payload   any
	Timestamp time.Time
}

type MemoryReport struct {
	Report    model.PendingReport
	Accepted  bool
	Reason    string
	Timestamp time.Time
}

func NewMemoryEventSink() *MemoryEventSink {
	return &MemoryEventSink{}
}

func (s *MemoryEventSink) RecordOperation(_ context.Context, op string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, MemoryOperation{Op: op, Payload: payload, Timestamp: time.Now()})
	return nil
}

func (s *MemoryEventSink) RecordReport(_ context.Context, report model.PendingReport, accepted bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, MemoryReport{Report: report, Accepted: accepted, Reason: reason, Timestamp: time.Now()})
	return nil
}

func (s *MemoryEventSink) Operations() []MemoryOperation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MemoryOperation(nil), s.ops...)
}

func (s *MemoryEventSink) Reports() []MemoryReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MemoryReport(nil), s.reports...)
}
