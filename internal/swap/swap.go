// Package swap is the multi-venue routing boundary. The vault only depends on
// the Router interface; the bundled implementation prices swaps off the
// oracle with a fixed spread, which is what paper deployments and tests use.
package swap

import (
	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/oracle"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
)

// Router converts one asset into another, bounded by a caller slippage limit.
type Router interface {
	Swap(fromAsset, toAsset string, amount decimal.Decimal, maxSlippageBps int64) (decimal.Decimal, error)
}

var bpsDenominator = decimal.NewFromInt(10_000)

// OracleRouter fills at oracle price minus a configured spread.
type OracleRouter struct {
	oracle    oracle.PriceOracle
	spreadBps int64
}

func NewOracleRouter(o oracle.PriceOracle, spreadBps int64) (*OracleRouter, error) {
	if spreadBps < 0 || spreadBps >= 10_000 {
		return nil, apperrors.NewInvalidParameter("spread must be in [0, 10000) bps")
	}
	return &OracleRouter{oracle: o, spreadBps: spreadBps}, nil
}

func (r *OracleRouter) Swap(fromAsset, toAsset string, amount decimal.Decimal, maxSlippageBps int64) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.NewInvalidParameter("swap amount must be positive")
	}
	if fromAsset == toAsset {
		return amount, nil
	}
	if r.spreadBps > maxSlippageBps {
		return decimal.Zero, apperrors.Newf(apperrors.ErrSlippageExceeded,
			"route spread %d bps exceeds limit %d bps", r.spreadBps, maxSlippageBps)
	}

	value, err := r.oracle.ValueInUSD(fromAsset, amount)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := oracle.AmountInAsset(r.oracle, toAsset, value)
	if err != nil {
		return decimal.Zero, err
	}
	spread := decimal.NewFromInt(r.spreadBps).Div(bpsDenominator)
	return out.Mul(decimal.NewFromInt(1).Sub(spread)), nil
}
