// Package dripper smooths lumpy harvest proceeds: funds arrive at arbitrary
// times and are released to the vault linearly over a configurable duration.
package dripper

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
)

// Dripper holds one settlement asset. The release rate is recomputed at every
// Collect from the currently held balance, not fixed at funding time: top-ups
// before a collect stack into the current curve, a top-up after a collect
// starts a fresh curve at the next collect.
type Dripper struct {
	asset       string
	balance     decimal.Decimal
	duration    time.Duration
	perSecond   decimal.Decimal
	lastCollect time.Time
	now         func() time.Time
}

func New(asset string, duration time.Duration, now func() time.Time) (*Dripper, error) {
	if duration <= 0 {
		return nil, apperrors.NewInvalidParameter("duration must be non-zero")
	}
	if now == nil {
		now = time.Now
	}
	return &Dripper{
		asset:       asset,
		balance:     decimal.Zero,
		duration:    duration,
		perSecond:   decimal.Zero,
		lastCollect: now(),
		now:         now,
	}, nil
}

// Asset returns the settlement asset the dripper holds.
func (d *Dripper) Asset() string {
	return d.asset
}

func (d *Dripper) Balance() decimal.Decimal {
	return d.balance
}

func (d *Dripper) Duration() time.Duration {
	return d.duration
}

// Fund adds settlement-asset proceeds. The release rate is not touched here;
// new funds enter the curve at the next Collect.
func (d *Dripper) Fund(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewInvalidParameter("fund amount must not be negative")
	}
	d.balance = d.balance.Add(amount)
	return nil
}

// Collect releases min(balance, elapsed * rate) and re-bases the rate against
// the remaining balance. Idempotent: back-to-back calls release zero.
func (d *Dripper) Collect() decimal.Decimal {
	ts := d.now()
	elapsed := ts.Sub(d.lastCollect)

	released := decimal.Zero
	if elapsed > 0 && d.balance.IsPositive() {
		released = decimal.Min(d.balance, d.perSecond.Mul(decimal.NewFromFloat(elapsed.Seconds())))
		d.balance = d.balance.Sub(released)
	}

	d.perSecond = d.balance.Div(decimal.NewFromFloat(d.duration.Seconds()))
	d.lastCollect = ts
	return released
}

// SetDripDuration changes the release window. The curve re-bases against the
// currently held balance at the next Collect.
func (d *Dripper) SetDripDuration(duration time.Duration) error {
	if duration <= 0 {
		return apperrors.NewInvalidParameter("duration must be non-zero")
	}
	d.duration = duration
	return nil
}

// State is a deep copy for write-ahead rollback.
type State struct {
	Balance     decimal.Decimal
	Duration    time.Duration
	PerSecond   decimal.Decimal
	LastCollect time.Time
}

func (d *Dripper) Snapshot() State {
	return State{
		Balance:     d.balance,
		Duration:    d.duration,
		PerSecond:   d.perSecond,
		LastCollect: d.lastCollect,
	}
}

func (d *Dripper) Restore(s State) {
	d.balance = s.Balance
	d.duration = s.Duration
	d.perSecond = s.PerSecond
	d.lastCollect = s.LastCollect
}
