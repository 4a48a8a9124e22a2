// Package oracle provides USD valuation for vault assets with per-asset
// staleness enforcement.
package oracle

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
)

// PriceOracle values an asset amount in USD reference units. Implementations
// must fail with STALE_PRICE when the backing feed exceeds its heartbeat.
type PriceOracle interface {
	ValueInUSD(asset string, amount decimal.Decimal) (decimal.Decimal, error)
}

// AmountInAsset inverts a USD value back into asset units at the oracle's
// current unit price.
func AmountInAsset(o PriceOracle, asset string, usd decimal.Decimal) (decimal.Decimal, error) {
	unit, err := o.ValueInUSD(asset, decimal.NewFromInt(1))
	if err != nil {
		return decimal.Zero, err
	}
	if !unit.IsPositive() {
		return decimal.Zero, apperrors.Newf(apperrors.ErrInvalidParameter, "non-positive price for %s", asset)
	}
	return usd.Div(unit), nil
}

type pricePoint struct {
	price     decimal.Decimal
	updatedAt time.Time
}

// FeedOracle is an in-process price table fed by pollers (or directly in
// tests), with a global heartbeat. Updates may come from a poller goroutine,
// so reads and writes are locked.
type FeedOracle struct {
	mu        sync.RWMutex
	prices    map[string]pricePoint
	heartbeat time.Duration
	now       func() time.Time
}

func NewFeedOracle(heartbeat time.Duration, now func() time.Time) *FeedOracle {
	if now == nil {
		now = time.Now
	}
	return &FeedOracle{
		prices:    make(map[string]pricePoint),
		heartbeat: heartbeat,
		now:       now,
	}
}

// SetPrice records a fresh unit price for an asset.
func (o *FeedOracle) SetPrice(asset string, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset] = pricePoint{price: price, updatedAt: o.now()}
}

func (o *FeedOracle) ValueInUSD(asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[asset]
	if !ok {
		return decimal.Zero, apperrors.Newf(apperrors.ErrNotFound, "no price feed for %s", asset)
	}
	if o.heartbeat > 0 && o.now().Sub(p.updatedAt) > o.heartbeat {
		return decimal.Zero, apperrors.Newf(apperrors.ErrStalePrice,
			"price for %s last updated %s ago", asset, o.now().Sub(p.updatedAt))
	}
	return amount.Mul(p.price), nil
}
