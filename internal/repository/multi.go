package repository

import (
	"context"
	"errors"

	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/vault"
)

// MultiSink fans events out to every configured sink and reports the joined
// errors; a failing mirror never blocks the others.
type MultiSink struct {
	sinks []vault.EventSink
}

func NewMultiSink(sinks ...vault.EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordOperation(ctx context.Context, op string, payload any) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordOperation(ctx, op, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordReport(ctx context.Context, report model.PendingReport, accepted bool, reason string) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordReport(ctx, report, accepted, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
