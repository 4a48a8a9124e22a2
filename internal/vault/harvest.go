package vault

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/oracle"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/pkg/metrics"
)

// Harvest claims a strategy's rewards, routes them into the dripper's
// settlement asset, and applies the strategy's candidate report against its
// change limits.
//
// Reward proceeds always commit. A report swing beyond the configured ratio
// is not an error of the harvest transaction: the report alone is rejected,
// parked for ForceReport, and the result carries Accepted=false.
func (v *Vault) Harvest(ctx context.Context, name string) (model.HarvestResult, error) {
	var res model.HarvestResult
	err := v.run(func() error {
		entry, ok := v.strategies[name]
		if !ok {
			return apperrors.Newf(apperrors.ErrNotFound, "strategy %s is not registered", name)
		}

		rewards, err := entry.impl.Harvest()
		if err != nil {
			return err
		}
		proceeds := decimal.Zero
		for _, reward := range rewards {
			if !reward.Amount.IsPositive() {
				continue
			}
			out := reward.Amount
			if reward.Asset != v.params.SettlementAsset {
				out, err = v.router.Swap(reward.Asset, v.params.SettlementAsset, reward.Amount, v.params.HarvestSlippageBps)
				if err != nil {
					return err
				}
			}
			if err := v.dripper.Fund(out); err != nil {
				return err
			}
			proceeds = proceeds.Add(out)
		}

		newValue, err := entry.impl.EstimatedTotalAssets()
		if err != nil {
			return err
		}
		poolTVL, err := entry.impl.ThirdPoolAssets()
		if err != nil {
			return err
		}
		if newValue.GreaterThan(poolTVL) {
			return apperrors.Newf(apperrors.ErrInvalidParameter,
				"reported value %s exceeds third-party pool TVL %s", newValue, poolTVL)
		}

		res = model.HarvestResult{
			Strategy: name,
			Proceeds: proceeds,
			PrevDebt: entry.record.TotalDebt,
			NewValue: newValue,
			Accepted: true,
		}

		if reason, rejected := v.reportRejected(entry, newValue); rejected {
			res.Accepted = false
			res.Reason = reason
			v.pending[name] = model.PendingReport{
				Strategy:  name,
				PrevDebt:  entry.record.TotalDebt,
				NewValue:  newValue,
				CreatedAt: v.now(),
			}
			return nil
		}

		entry.record.TotalDebt = newValue
		entry.record.LastReport = v.now()
		delete(v.pending, name)
		return nil
	})
	if err != nil {
		metrics.HarvestsTotal.WithLabelValues(name, "failed").Inc()
		return model.HarvestResult{}, err
	}

	if res.Accepted {
		metrics.HarvestsTotal.WithLabelValues(name, "reported").Inc()
	} else {
		metrics.HarvestsTotal.WithLabelValues(name, "report_rejected").Inc()
		v.log.Warn("harvest report rejected", "strategy", name, "reason", res.Reason,
			"prev_debt", res.PrevDebt.String(), "new_value", res.NewValue.String())
	}
	if err := v.events.RecordReport(ctx, model.PendingReport{
		Strategy: name, PrevDebt: res.PrevDebt, NewValue: res.NewValue, CreatedAt: v.now(),
	}, res.Accepted, res.Reason); err != nil {
		v.log.Warn("event sink rejected report", "strategy", name, "error", err.Error())
	}
	v.record(ctx, "harvest", res)
	return res, nil
}

// reportRejected checks a candidate report against the per-strategy swing
// limits. Callers hold the lock.
func (v *Vault) reportRejected(entry *strategyEntry, newValue decimal.Decimal) (string, bool) {
	rec := entry.record
	if !rec.EnforceChangeLimit || !rec.TotalDebt.IsPositive() {
		return "", false
	}
	delta := newValue.Sub(rec.TotalDebt)
	ratio := delta.Abs().Div(rec.TotalDebt)
	if delta.IsPositive() && ratio.GreaterThan(rec.ProfitLimitRatio) {
		metrics.ReportRejects.WithLabelValues(rec.Name, "profit").Inc()
		return "profit swing " + ratio.String() + " exceeds limit " + rec.ProfitLimitRatio.String(), true
	}
	if delta.IsNegative() && ratio.GreaterThan(rec.LossLimitRatio) {
		metrics.ReportRejects.WithLabelValues(rec.Name, "loss").Inc()
		return "loss swing " + ratio.String() + " exceeds limit " + rec.LossLimitRatio.String(), true
	}
	return "", false
}

// ForceReport applies a parked report past its change limit. Governance only.
func (v *Vault) ForceReport(ctx context.Context, name string) (model.PendingReport, error) {
	var applied model.PendingReport
	err := v.run(func() error {
		entry, ok := v.strategies[name]
		if !ok {
			return apperrors.Newf(apperrors.ErrNotFound, "strategy %s is not registered", name)
		}
		report, ok := v.pending[name]
		if !ok {
			return apperrors.Newf(apperrors.ErrNotFound, "no pending report for strategy %s", name)
		}
		entry.record.TotalDebt = report.NewValue
		entry.record.LastReport = v.now()
		delete(v.pending, name)
		applied = report
		return nil
	})
	if err != nil {
		return model.PendingReport{}, err
	}
	v.log.Warn("report force-applied", "strategy", name, "new_value", applied.NewValue.String())
	v.record(ctx, "force_report", applied)
	return applied, nil
}

// CollectDrip releases the dripper's matured balance into the vault's idle
// settlement-asset balance.
func (v *Vault) CollectDrip(ctx context.Context) (decimal.Decimal, error) {
	var released decimal.Decimal
	err := v.run(func() error {
		released = v.collectDripLocked()
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	if released.IsPositive() {
		v.record(ctx, "collect_drip", map[string]any{"released": released})
	}
	return released, nil
}

func (v *Vault) collectDripLocked() decimal.Decimal {
	released := v.dripper.Collect()
	if released.IsPositive() {
		v.idle[v.params.SettlementAsset] = v.idle[v.params.SettlementAsset].Add(released)
		f, _ := released.Float64()
		metrics.DripReleased.Add(f)
	}
	return released
}

// Rebase reconciles accounted value against outstanding share supply. Deltas
// at or below the threshold are a no-op, which keeps repeated tiny rebases
// from draining fees. Positive deltas are skimmed by the trustee fee before
// the supply moves; negative deltas apply unconditionally.
func (v *Vault) Rebase(ctx context.Context) (model.RebaseResult, error) {
	var res model.RebaseResult
	var total decimal.Decimal
	err := v.run(func() error {
		if v.adjusting {
			return apperrors.NewInvalidParameter("allocation window is open")
		}
		if v.buffer.IsDistributing() {
			return apperrors.NewInvalidParameter("buffer distribution in progress")
		}

		v.collectDripLocked()

		var err error
		total, err = v.totalAssetsLocked()
		if err != nil {
			return err
		}
		supply := v.token.TotalSupply()
		if supply.IsZero() {
			return nil
		}
		delta := total.Sub(supply)
		res = model.RebaseResult{Delta: delta, NewSupply: supply}
		if delta.Abs().LessThanOrEqual(v.params.RebaseThreshold) {
			return nil
		}

		target := total
		if delta.IsPositive() && v.params.TrusteeFeeBps > 0 {
			feeVal := delta.Mul(decimal.NewFromInt(v.params.TrusteeFeeBps)).Div(bpsDenominator)
			feeQty, err := oracle.AmountInAsset(v.oracle, v.params.SettlementAsset, feeVal)
			if err != nil {
				return err
			}
			// skim is bounded by idle settlement cash; the rest stays in
			// the supply until liquidity shows up
			if feeQty.GreaterThan(v.idle[v.params.SettlementAsset]) {
				feeQty = v.idle[v.params.SettlementAsset]
				feeVal, err = v.oracle.ValueInUSD(v.params.SettlementAsset, feeQty)
				if err != nil {
					return err
				}
			}
			if feeQty.IsPositive() {
				v.idle[v.params.SettlementAsset] = v.idle[v.params.SettlementAsset].Sub(feeQty)
				if err := v.treasury.ReceiveProfitFromVault("vault", v.params.SettlementAsset, feeQty); err != nil {
					return err
				}
				target = total.Sub(feeVal)
				res.FeeSkimmed = feeVal
			}
		}

		if err := v.token.ChangeSupply(target); err != nil {
			return err
		}
		// the skim already left idle, so the accounted total is the target
		total = target
		res.Applied = true
		res.NewSupply = v.token.TotalSupply()
		return nil
	})
	if err != nil {
		return model.RebaseResult{}, err
	}

	deltaF, _ := res.Delta.Float64()
	metrics.RebaseDelta.Set(deltaF)
	supplyF, _ := res.NewSupply.Float64()
	metrics.ShareSupply.Set(supplyF)
	totalF, _ := total.Float64()
	metrics.TotalAssets.Set(totalF)
	if res.Applied {
		v.log.Info("rebase applied", "delta", res.Delta.String(),
			"fee_skimmed", res.FeeSkimmed.String(), "new_supply", res.NewSupply.String())
		v.record(ctx, "rebase", res)
	}
	return res, nil
}
