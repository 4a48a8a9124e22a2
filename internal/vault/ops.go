package vault

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/oracle"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/pkg/metrics"
)

// Mint values the deposited amounts through the oracle, records a pending
// claim in the buffer at the current share price, and takes the cash into
// buffer custody. Shares become visible only after the next distribution.
func (v *Vault) Mint(ctx context.Context, holder string, assets []string, amounts []decimal.Decimal, minShares decimal.Decimal) (model.MintResponse, error) {
	var resp model.MintResponse
	if holder == "" {
		return resp, apperrors.NewInvalidParameter("holder is required")
	}
	if len(assets) == 0 || len(assets) != len(amounts) {
		return resp, apperrors.NewInvalidParameter("assets and amounts must be non-empty and of equal length")
	}

	err := v.run(func() error {
		if err := v.checkOpen(); err != nil {
			return err
		}
		value := decimal.Zero
		for i, asset := range assets {
			if !v.assetSet[asset] {
				return apperrors.Newf(apperrors.ErrNotFound, "asset %s is not supported", asset)
			}
			if !amounts[i].IsPositive() {
				return apperrors.Newf(apperrors.ErrInvalidParameter, "amount for %s must be positive", asset)
			}
			usd, err := v.oracle.ValueInUSD(asset, amounts[i])
			if err != nil {
				return err
			}
			value = value.Add(usd)
		}

		price, err := v.sharePrice()
		if err != nil {
			return err
		}
		shares := value.Div(price)
		if shares.LessThan(minShares) {
			return apperrors.Newf(apperrors.ErrSlippageExceeded,
				"computed shares %s below minimum %s", shares, minShares)
		}

		v.buffer.AddClaim(holder, shares, value, assets, amounts, v.now())
		resp = model.MintResponse{Shares: shares, Value: value}
		return nil
	})
	if err != nil {
		metrics.DepositsTotal.WithLabelValues("rejected").Inc()
		return model.MintResponse{}, err
	}

	metrics.DepositsTotal.WithLabelValues("accepted").Inc()
	v.log.Info("deposit buffered", "holder", holder, "value", resp.Value.String(), "shares", resp.Shares.String())
	v.record(ctx, "mint", map[string]any{"holder": holder, "value": resp.Value, "shares": resp.Shares})
	return resp, nil
}

// Burn redeems shares for one underlying asset, draining the vault's idle
// balance first and then the withdrawal queue in order.
func (v *Vault) Burn(ctx context.Context, holder string, shares, minValue decimal.Decimal, asset string) (model.BurnResponse, error) {
	var resp model.BurnResponse
	if holder == "" {
		return resp, apperrors.NewInvalidParameter("holder is required")
	}
	if !shares.IsPositive() {
		return resp, apperrors.NewInvalidParameter("shares must be positive")
	}
	if asset == "" {
		asset = v.params.SettlementAsset
	}

	err := v.run(func() error {
		if err := v.checkOpen(); err != nil {
			return err
		}
		if !v.assetSet[asset] {
			return apperrors.Newf(apperrors.ErrNotFound, "asset %s is not supported", asset)
		}
		if v.token.BalanceOf(holder).LessThan(shares) {
			return apperrors.Newf(apperrors.ErrInvalidParameter,
				"balance %s below requested %s", v.token.BalanceOf(holder), shares)
		}

		price, err := v.sharePrice()
		if err != nil {
			return err
		}
		gross := shares.Mul(price)

		if err := v.raiseLiquidity(asset, gross); err != nil {
			return err
		}

		available, err := v.oracle.ValueInUSD(asset, v.idle[asset])
		if err != nil {
			return err
		}
		grossPaid := decimal.Min(gross, available)
		fee := grossPaid.Mul(decimal.NewFromInt(v.params.RedeemFeeBps)).Div(bpsDenominator)
		net := grossPaid.Sub(fee)
		if net.LessThan(minValue) {
			return apperrors.Newf(apperrors.ErrSlippageExceeded,
				"returned value %s below minimum %s", net, minValue)
		}

		netQty, err := oracle.AmountInAsset(v.oracle, asset, net)
		if err != nil {
			return err
		}
		feeQty, err := oracle.AmountInAsset(v.oracle, asset, fee)
		if err != nil {
			return err
		}

		if err := v.token.Burn(holder, shares); err != nil {
			return err
		}
		v.idle[asset] = v.idle[asset].Sub(netQty).Sub(feeQty)
		if fee.IsPositive() {
			if err := v.treasury.ReceiveManageFeeFromVault(holder, asset, feeQty); err != nil {
				return err
			}
		}

		resp = model.BurnResponse{Asset: asset, Amount: netQty, Value: net, Fee: fee}
		return nil
	})
	if err != nil {
		metrics.RedeemsTotal.WithLabelValues("rejected").Inc()
		return model.BurnResponse{}, err
	}

	metrics.RedeemsTotal.WithLabelValues("accepted").Inc()
	v.log.Info("redeem paid", "holder", holder, "asset", asset, "value", resp.Value.String(), "fee", resp.Fee.String())
	v.record(ctx, "burn", map[string]any{"holder": holder, "asset": asset, "value": resp.Value, "fee": resp.Fee})
	return resp, nil
}

// raiseLiquidity ensures idle[asset] covers `target` USD, divesting queued
// strategies front to back for the remaining shortfall. Queue position k+1 is
// never touched while position k still has spare capacity. Callers hold the
// lock.
func (v *Vault) raiseLiquidity(asset string, target decimal.Decimal) error {
	idleVal, err := v.oracle.ValueInUSD(asset, v.idle[asset])
	if err != nil {
		return err
	}
	needed := target.Sub(idleVal)

	for _, name := range v.queue {
		if !needed.IsPositive() {
			break
		}
		entry, ok := v.strategies[name]
		if !ok {
			continue
		}
		prevEst, err := entry.impl.EstimatedTotalAssets()
		if err != nil {
			return err
		}
		if !prevEst.IsPositive() {
			continue
		}

		qty, err := entry.impl.Divest(needed)
		if err != nil {
			return err
		}
		newEst, err := entry.impl.EstimatedTotalAssets()
		if err != nil {
			return err
		}
		// released capacity is measured at the strategy, not at the
		// post-haircut proceeds
		released := prevEst.Sub(newEst)
		needed = needed.Sub(decimal.Min(needed, released))
		entry.record.TotalDebt = newEst

		if qty.IsPositive() {
			out := qty
			if entry.impl.Asset() != asset {
				out, err = v.router.Swap(entry.impl.Asset(), asset, qty, v.params.DivestSwapSlippageBps)
				if err != nil {
					return err
				}
			}
			v.idle[asset] = v.idle[asset].Add(out)
		}
	}

	if needed.IsPositive() {
		return apperrors.Newf(apperrors.ErrInsufficientLiquidity,
			"withdrawal queue exhausted with %s still unraised", needed)
	}
	return nil
}

// checkOpen blocks user-facing flows while paused, while an allocation window
// is open, or while a buffer epoch is mid-distribution.
func (v *Vault) checkOpen() error {
	if v.paused {
		return apperrors.NewInvalidParameter("vault is paused")
	}
	if v.adjusting {
		return apperrors.NewInvalidParameter("allocation window is open")
	}
	if v.buffer.IsDistributing() {
		return apperrors.NewInvalidParameter("buffer distribution in progress")
	}
	return nil
}
