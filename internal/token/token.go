// Package token implements the rebasing share token: the fungible claim on
// vault net assets. Holder balances are stored as internal share units and
// converted to visible units through a single global factor, so a rebase
// adjusts every balance pro-rata without touching individual holders.
package token

import (
	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
)

// ShareToken keeps the invariant balanceOf(h) = sharesOf[h] / creditsPerToken
// for every holder at every observation point. It is not internally locked:
// the vault serializes all access behind its own mutex.
type ShareToken struct {
	totalShares     decimal.Decimal
	creditsPerToken decimal.Decimal
	sharesOf        map[string]decimal.Decimal
	version         uint64
}

func New() *ShareToken {
	return &ShareToken{
		totalShares:     decimal.Zero,
		creditsPerToken: decimal.NewFromInt(1),
		sharesOf:        make(map[string]decimal.Decimal),
	}
}

// TotalSupply is the externally visible supply.
func (t *ShareToken) TotalSupply() decimal.Decimal {
	return t.totalShares.Div(t.creditsPerToken)
}

// BalanceOf returns the externally visible balance of a holder.
func (t *ShareToken) BalanceOf(holder string) decimal.Decimal {
	return t.sharesOf[holder].Div(t.creditsPerToken)
}

// CreditsPerToken exposes the current conversion factor, bumped on every rebase.
func (t *ShareToken) CreditsPerToken() (decimal.Decimal, uint64) {
	return t.creditsPerToken, t.version
}

// Mint credits `amount` visible units to holder.
func (t *ShareToken) Mint(holder string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewInvalidParameter("mint amount must not be negative")
	}
	shares := amount.Mul(t.creditsPerToken)
	t.sharesOf[holder] = t.sharesOf[holder].Add(shares)
	t.totalShares = t.totalShares.Add(shares)
	return nil
}

// Burn debits `amount` visible units from holder.
func (t *ShareToken) Burn(holder string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewInvalidParameter("burn amount must not be negative")
	}
	shares := amount.Mul(t.creditsPerToken)
	have := t.sharesOf[holder]
	if have.LessThan(shares) {
		return apperrors.Newf(apperrors.ErrInvalidParameter,
			"burn %s exceeds balance %s", amount, have.Div(t.creditsPerToken))
	}
	rest := have.Sub(shares)
	if rest.IsZero() {
		delete(t.sharesOf, holder)
	} else {
		t.sharesOf[holder] = rest
	}
	t.totalShares = t.totalShares.Sub(shares)
	return nil
}

// Transfer moves `amount` visible units between holders.
func (t *ShareToken) Transfer(from, to string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewInvalidParameter("transfer amount must not be negative")
	}
	shares := amount.Mul(t.creditsPerToken)
	have := t.sharesOf[from]
	if have.LessThan(shares) {
		return apperrors.Newf(apperrors.ErrInvalidParameter,
			"transfer %s exceeds balance %s", amount, have.Div(t.creditsPerToken))
	}
	t.sharesOf[from] = have.Sub(shares)
	t.sharesOf[to] = t.sharesOf[to].Add(shares)
	return nil
}

// ChangeSupply rebases the visible supply to newSupply by moving the global
// conversion factor. Internal share balances are untouched, so every holder's
// visible balance scales by the same ratio.
func (t *ShareToken) ChangeSupply(newSupply decimal.Decimal) error {
	if !newSupply.IsPositive() {
		return apperrors.NewInvalidParameter("new supply must be positive")
	}
	if t.totalShares.IsZero() {
		return apperrors.NewInvalidParameter("cannot rebase with zero shares outstanding")
	}
	t.creditsPerToken = t.totalShares.Div(newSupply)
	t.version++
	return nil
}

// Holders returns the set of addresses with a non-zero balance.
func (t *ShareToken) Holders() []string {
	out := make([]string, 0, len(t.sharesOf))
	for h := range t.sharesOf {
		out = append(out, h)
	}
	return out
}

// State is a deep copy of the ledger, used for write-ahead rollback.
type State struct {
	TotalShares     decimal.Decimal
	CreditsPerToken decimal.Decimal
	SharesOf        map[string]decimal.Decimal
	Version         uint64
}

func (t *ShareToken) Snapshot() State {
	shares := make(map[string]decimal.Decimal, len(t.sharesOf))
	for h, s := range t.sharesOf {
		shares[h] = s
	}
	return State{
		TotalShares:     t.totalShares,
		CreditsPerToken: t.creditsPerToken,
		SharesOf:        shares,
		Version:         t.version,
	}
}

func (t *ShareToken) Restore(s State) {
	t.totalShares = s.TotalShares
	t.creditsPerToken = s.CreditsPerToken
	t.version = s.Version
	t.sharesOf = make(map[string]decimal.Decimal, len(s.SharesOf))
	for h, sh := range s.SharesOf {
		t.sharesOf[h] = sh
	}
}
