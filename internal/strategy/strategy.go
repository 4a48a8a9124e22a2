// Package strategy defines the narrow interface the vault consumes yield
// positions through. Strategy variants (lending markets, AMM ranges,
// leveraged positions) each implement it independently; the vault never
// depends on a concrete variant.
package strategy

import "github.com/shopspring/decimal"

// Reward is one claimed reward token amount.
type Reward struct {
	Asset  string
	Amount decimal.Decimal
}

// State is an opaque snapshot of a strategy's position, produced by Snapshot
// and understood only by the implementation that made it.
type State any

// Strategy wraps one yield-generating position.
//
// Invest takes asset units and returns the USD value actually invested, which
// may differ from the nominal value by realized slippage. Divest takes a USD
// value target and returns the asset units actually freed; the asset is the
// strategy's own denominating asset.
type Strategy interface {
	Name() string
	Asset() string
	EstimatedTotalAssets() (decimal.Decimal, error)
	Invest(asset string, amount decimal.Decimal) (decimal.Decimal, error)
	Divest(value decimal.Decimal) (decimal.Decimal, error)
	Harvest() ([]Reward, error)

	// Snapshot captures the position state; Restore puts it back.
	// Strategies run in-process, so the vault journals them around
	// multi-step operations and unwinds a half-drained position when a
	// later step fails.
	Snapshot() State
	Restore(State)

	// ThirdPoolAssets reports the external pool's TVL, used as a sanity
	// bound on reported strategy value.
	ThirdPoolAssets() (decimal.Decimal, error)
}
