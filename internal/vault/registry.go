package vault

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/strategy"
)

// Registration pairs a strategy implementation with its risk limits.
type Registration struct {
	Impl   strategy.Strategy
	Params model.StrategyParams
}

// AddStrategies registers strategies and appends them to the withdrawal
// queue. The whole list applies or none of it does.
func (v *Vault) AddStrategies(ctx context.Context, regs []Registration) error {
	if len(regs) == 0 {
		return apperrors.NewInvalidParameter("no strategies given")
	}
	err := v.run(func() error {
		for _, reg := range regs {
			name := reg.Impl.Name()
			if name == "" || name != reg.Params.Name {
				return apperrors.NewInvalidParameter("strategy name mismatch between implementation and params")
			}
			if _, ok := v.strategies[name]; ok {
				return apperrors.Newf(apperrors.ErrAlreadyExists, "strategy %s already registered", name)
			}
			if reg.Params.ProfitLimitRatio.IsNegative() || reg.Params.LossLimitRatio.IsNegative() {
				return apperrors.NewInvalidParameter("change limit ratios must not be negative")
			}
			v.strategies[name] = &strategyEntry{
				impl: reg.Impl,
				record: model.StrategyRecord{
					Name:               name,
					TotalDebt:          decimal.Zero,
					ProfitLimitRatio:   reg.Params.ProfitLimitRatio,
					LossLimitRatio:     reg.Params.LossLimitRatio,
					EnforceChangeLimit: reg.Params.EnforceChangeLimit,
				},
			}
			v.queue = append(v.queue, name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	names := make([]string, len(regs))
	for i, reg := range regs {
		names[i] = reg.Impl.Name()
	}
	v.log.Info("strategies registered", "strategies", names)
	v.record(ctx, "add_strategies", map[string]any{"strategies": names})
	return nil
}

// RemoveStrategies divests each named strategy in full, returns the funds to
// the vault's idle balance, and drops the records from registry and queue.
func (v *Vault) RemoveStrategies(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return apperrors.NewInvalidParameter("no strategies given")
	}
	err := v.run(func() error {
		for _, name := range names {
			entry, ok := v.strategies[name]
			if !ok {
				return apperrors.Newf(apperrors.ErrNotFound, "strategy %s is not registered", name)
			}
			est, err := entry.impl.EstimatedTotalAssets()
			if err != nil {
				return err
			}
			if est.IsPositive() {
				qty, err := entry.impl.Divest(est)
				if err != nil {
					return err
				}
				if qty.IsPositive() {
					asset := entry.impl.Asset()
					v.idle[asset] = v.idle[asset].Add(qty)
				}
			}
			delete(v.strategies, name)
			delete(v.pending, name)
			v.queue = removeFromQueue(v.queue, name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.log.Info("strategies removed", "strategies", names)
	v.record(ctx, "remove_strategies", map[string]any{"strategies": names})
	return nil
}

// SetWithdrawalQueue replaces the redemption drain order.
func (v *Vault) SetWithdrawalQueue(ctx context.Context, queue []string) error {
	err := v.run(func() error {
		seen := make(map[string]bool, len(queue))
		for _, name := range queue {
			if _, ok := v.strategies[name]; !ok {
				return apperrors.Newf(apperrors.ErrNotFound, "strategy %s is not registered", name)
			}
			if seen[name] {
				return apperrors.Newf(apperrors.ErrInvalidParameter, "strategy %s appears twice in queue", name)
			}
			seen[name] = true
		}
		v.queue = append([]string(nil), queue...)
		return nil
	})
	if err != nil {
		return err
	}
	v.record(ctx, "set_withdrawal_queue", map[string]any{"queue": queue})
	return nil
}

// AddAsset admits an asset for deposit. The oracle must already price it.
func (v *Vault) AddAsset(ctx context.Context, asset string) error {
	err := v.run(func() error {
		if v.assetSet[asset] {
			return apperrors.Newf(apperrors.ErrAlreadyExists, "asset %s already supported", asset)
		}
		if _, err := v.oracle.ValueInUSD(asset, decimal.NewFromInt(1)); err != nil {
			return err
		}
		v.assetSet[asset] = true
		v.assetList = append(v.assetList, asset)
		return nil
	})
	if err != nil {
		return err
	}
	v.record(ctx, "add_asset", map[string]any{"asset": asset})
	return nil
}

// RemoveAsset drops an asset from the registry. Refused while any balance
// remains, unless forced by governance.
func (v *Vault) RemoveAsset(ctx context.Context, asset string, force bool) error {
	err := v.run(func() error {
		if !v.assetSet[asset] {
			return apperrors.Newf(apperrors.ErrNotFound, "asset %s is not supported", asset)
		}
		if asset == v.params.SettlementAsset {
			return apperrors.NewInvalidParameter("cannot remove the settlement asset")
		}
		if !force && (v.idle[asset].IsPositive() || v.buffer.Cash(asset).IsPositive()) {
			return apperrors.Newf(apperrors.ErrInvalidParameter, "asset %s balance is non-zero", asset)
		}
		delete(v.assetSet, asset)
		v.assetList = removeFromQueue(v.assetList, asset)
		delete(v.idle, asset)
		return nil
	})
	if err != nil {
		return err
	}
	v.record(ctx, "remove_asset", map[string]any{"asset": asset, "force": force})
	return nil
}

// SetParams applies governance tunable updates; nil fields stay as they are.
func (v *Vault) SetParams(ctx context.Context, req model.ParamsRequest) error {
	err := v.run(func() error {
		if req.RebaseThreshold != nil {
			if req.RebaseThreshold.IsNegative() {
				return apperrors.NewInvalidParameter("rebase threshold must not be negative")
			}
			v.params.RebaseThreshold = *req.RebaseThreshold
		}
		if req.TrusteeFeeBps != nil {
			if *req.TrusteeFeeBps < 0 || *req.TrusteeFeeBps > 10_000 {
				return apperrors.NewInvalidParameter("trustee fee must be in [0, 10000] bps")
			}
			v.params.TrusteeFeeBps = *req.TrusteeFeeBps
		}
		if req.RedeemFeeBps != nil {
			if *req.RedeemFeeBps < 0 || *req.RedeemFeeBps > 10_000 {
				return apperrors.NewInvalidParameter("redeem fee must be in [0, 10000] bps")
			}
			v.params.RedeemFeeBps = *req.RedeemFeeBps
		}
		if req.DripDurationSec != nil {
			if err := v.dripper.SetDripDuration(time.Duration(*req.DripDurationSec) * time.Second); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	v.record(ctx, "set_params", req)
	return nil
}

// Pause is the emergency shutdown gate for mint, burn, and allocation.
func (v *Vault) Pause(ctx context.Context) error {
	err := v.run(func() error {
		v.paused = true
		return nil
	})
	if err != nil {
		return err
	}
	v.log.Warn("vault paused")
	v.record(ctx, "pause", nil)
	return nil
}

func (v *Vault) Unpause(ctx context.Context) error {
	err := v.run(func() error {
		v.paused = false
		return nil
	})
	if err != nil {
		return err
	}
	v.log.Info("vault unpaused")
	v.record(ctx, "unpause", nil)
	return nil
}

func removeFromQueue(list []string, name string) []string {
	out := list[:0]
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
