package vault

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/buffer"
	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
)

// StartAdjustPosition opens the allocation window: buffer cash moves into
// vault custody and the buffer's pending claims become the distribution
// epoch. Mint, burn, and rebase stay blocked until the window is closed and
// the epoch fully distributed.
func (v *Vault) StartAdjustPosition(ctx context.Context) error {
	err := v.run(func() error {
		if v.paused {
			return apperrors.NewInvalidParameter("vault is paused")
		}
		if v.adjusting {
			return apperrors.NewInvalidParameter("allocation window already open")
		}
		for asset, qty := range v.buffer.SweepCash() {
			v.idle[asset] = v.idle[asset].Add(qty)
		}
		v.buffer.BeginDistribution()
		v.adjusting = true
		return nil
	})
	if err != nil {
		return err
	}
	v.log.Info("allocation window opened")
	v.record(ctx, "start_adjust_position", nil)
	return nil
}

// Lend moves idle cash into one strategy inside an open allocation window,
// converting the asset through the router when the strategy is denominated
// differently. The strategy's debt grows by the value actually invested;
// realized slippage is reconciled at the next rebase, never dropped.
func (v *Vault) Lend(ctx context.Context, req model.LendRequest) (decimal.Decimal, error) {
	var invested decimal.Decimal
	err := v.run(func() error {
		if !v.adjusting {
			return apperrors.NewInvalidParameter("allocation window is not open")
		}
		entry, ok := v.strategies[req.Strategy]
		if !ok {
			return apperrors.Newf(apperrors.ErrInvalidParameter, "unknown strategy %s", req.Strategy)
		}
		if !req.Amount.IsPositive() {
			return apperrors.NewInvalidParameter("lend amount must be positive")
		}
		if v.idle[req.Asset].LessThan(req.Amount) {
			return apperrors.Newf(apperrors.ErrInsufficientLiquidity,
				"idle %s balance %s below requested %s", req.Asset, v.idle[req.Asset], req.Amount)
		}

		investQty := req.Amount
		if entry.impl.Asset() != req.Asset {
			out, err := v.router.Swap(req.Asset, entry.impl.Asset(), req.Amount, req.MaxSlippageBps)
			if err != nil {
				return err
			}
			investQty = out
		}

		actual, err := entry.impl.Invest(entry.impl.Asset(), investQty)
		if err != nil {
			return err
		}
		v.idle[req.Asset] = v.idle[req.Asset].Sub(req.Amount)
		entry.record.TotalDebt = entry.record.TotalDebt.Add(actual)
		invested = actual
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	v.log.Info("strategy funded", "strategy", req.Strategy, "asset", req.Asset,
		"amount", req.Amount.String(), "invested", invested.String())
	v.record(ctx, "lend", map[string]any{"strategy": req.Strategy, "asset": req.Asset,
		"amount": req.Amount, "invested": invested})
	return invested, nil
}

// EndAdjustPosition closes the allocation window.
func (v *Vault) EndAdjustPosition(ctx context.Context) error {
	err := v.run(func() error {
		if !v.adjusting {
			return apperrors.NewInvalidParameter("allocation window is not open")
		}
		v.adjusting = false
		return nil
	})
	if err != nil {
		return err
	}
	v.log.Info("allocation window closed")
	v.record(ctx, "end_adjust_position", nil)
	return nil
}

// DistributeWhenDistributing converts one bounded batch of pending claims
// into share balances at each claim's locked-in price. Call repeatedly until
// it reports the epoch closed; calling with nothing pending is a no-op.
func (v *Vault) DistributeWhenDistributing(ctx context.Context) (processed int, distributing bool, err error) {
	err = v.run(func() error {
		if v.adjusting {
			return apperrors.NewInvalidParameter("allocation window is open")
		}
		n, err := v.buffer.DistributeBatch(v.params.DistributeBatchSize, func(claim buffer.PendingClaim) error {
			return v.token.Mint(claim.Holder, claim.Shares)
		})
		processed = n
		distributing = v.buffer.IsDistributing()
		return err
	})
	if err != nil {
		return 0, false, err
	}
	if processed > 0 {
		v.log.Info("claims distributed", "claims", processed, "epoch_open", distributing)
		v.record(ctx, "distribute", map[string]any{"claims": processed, "epoch_open": distributing})
	}
	return processed, distributing, nil
}
