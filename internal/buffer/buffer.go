// Package buffer holds freshly deposited capital and the share claims against
// it until a distribution epoch converts pending claims into final share
// balances. Each claim carries the share amount computed at its own deposit
// price, so later deposits in the same undistributed batch cannot dilute
// earlier ones.
package buffer

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
)

// PendingClaim is one depositor's claim in the current epoch.
type PendingClaim struct {
	ID        string
	Holder    string
	Shares    decimal.Decimal // locked at the share price that held when minted
	Value     decimal.Decimal // USD value at deposit time
	CreatedAt time.Time
}

type Buffer struct {
	claims       []PendingClaim // deposit order
	cash         map[string]decimal.Decimal
	distributing bool
}

func New() *Buffer {
	return &Buffer{cash: make(map[string]decimal.Decimal)}
}

// AddClaim records a pending claim plus the deposited cash backing it.
func (b *Buffer) AddClaim(holder string, shares, value decimal.Decimal, assets []string, amounts []decimal.Decimal, at time.Time) PendingClaim {
	claim := PendingClaim{
		ID:        uuid.NewString(),
		Holder:    holder,
		Shares:    shares,
		Value:     value,
		CreatedAt: at,
	}
	b.claims = append(b.claims, claim)
	for i, asset := range assets {
		b.cash[asset] = b.cash[asset].Add(amounts[i])
	}
	return claim
}

// SweepCash moves all held cash out (into vault custody for the allocation
// window) and returns what was moved.
func (b *Buffer) SweepCash() map[string]decimal.Decimal {
	out := b.cash
	b.cash = make(map[string]decimal.Decimal)
	return out
}

// BeginDistribution opens an epoch if there are claims to convert.
func (b *Buffer) BeginDistribution() {
	if len(b.claims) > 0 {
		b.distributing = true
	}
}

// DistributeBatch converts up to maxClaims pending claims through convert, in
// deposit order. A claim is removed only after convert succeeds, so a failing
// call leaves it (and everything after it) intact for the next attempt.
// Safe to call with nothing pending.
func (b *Buffer) DistributeBatch(maxClaims int, convert func(PendingClaim) error) (int, error) {
	if maxClaims <= 0 {
		return 0, apperrors.NewInvalidParameter("batch size must be positive")
	}
	processed := 0
	for processed < maxClaims && len(b.claims) > 0 {
		claim := b.claims[0]
		if err := convert(claim); err != nil {
			return processed, err
		}
		b.claims = b.claims[1:]
		processed++
	}
	if len(b.claims) == 0 {
		b.distributing = false
	}
	return processed, nil
}

func (b *Buffer) IsDistributing() bool {
	return b.distributing
}

func (b *Buffer) PendingClaims() int {
	return len(b.claims)
}

// PendingValue sums the USD value of undistributed claims.
func (b *Buffer) PendingValue() decimal.Decimal {
	total := decimal.Zero
	for _, c := range b.claims {
		total = total.Add(c.Value)
	}
	return total
}

// Cash returns the held balance of one asset.
func (b *Buffer) Cash(asset string) decimal.Decimal {
	return b.cash[asset]
}

// State is a deep copy for write-ahead rollback.
type State struct {
	Claims       []PendingClaim
	Cash         map[string]decimal.Decimal
	Distributing bool
}

func (b *Buffer) Snapshot() State {
	claims := make([]PendingClaim, len(b.claims))
	copy(claims, b.claims)
	cash := make(map[string]decimal.Decimal, len(b.cash))
	for k, v := range b.cash {
		cash[k] = v
	}
	return State{Claims: claims, Cash: cash, Distributing: b.distributing}
}

func (b *Buffer) Restore(s State) {
	b.claims = make([]PendingClaim, len(s.Claims))
	copy(b.claims, s.Claims)
	b.cash = make(map[string]decimal.Decimal, len(s.Cash))
	for k, v := range s.Cash {
		b.cash[k] = v
	}
	b.distributing = s.Distributing
}
