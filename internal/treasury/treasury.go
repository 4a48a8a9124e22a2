// Package treasury receives skimmed profit and management fees from the
// vault, keeps per-(source, asset) audit counters, and compensates the keeper
// role in the native settlement coin.
package treasury

import (
	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/swap"
)

var bpsDenominator = decimal.NewFromInt(10_000)

type Treasury struct {
	receivable map[string]bool
	balances   map[string]decimal.Decimal

	// cumulative audit counters, keyed source address then asset
	accVaultProfit map[string]map[string]decimal.Decimal
	accManageFee   map[string]map[string]decimal.Decimal

	nativeAsset     string
	keeperShareBps  int64
	keeperNativeFee decimal.Decimal

	router swap.Router
}

func New(nativeAsset string, keeperShareBps int64, router swap.Router, receivable []string) (*Treasury, error) {
	if keeperShareBps < 0 || keeperShareBps > 10_000 {
		return nil, apperrors.NewInvalidParameter("keeper share must be in [0, 10000] bps")
	}
	t := &Treasury{
		receivable:      make(map[string]bool),
		balances:        make(map[string]decimal.Decimal),
		accVaultProfit:  make(map[string]map[string]decimal.Decimal),
		accManageFee:    make(map[string]map[string]decimal.Decimal),
		nativeAsset:     nativeAsset,
		keeperShareBps:  keeperShareBps,
		keeperNativeFee: decimal.Zero,
		router:          router,
	}
	for _, a := range receivable {
		t.receivable[a] = true
	}
	return t, nil
}

func (t *Treasury) IsReceivable(asset string) bool {
	return t.receivable[asset]
}

func (t *Treasury) AddReceivable(asset string) error {
	if t.receivable[asset] {
		return apperrors.Newf(apperrors.ErrAlreadyExists, "asset %s already receivable", asset)
	}
	t.receivable[asset] = true
	return nil
}

func (t *Treasury) RemoveReceivable(asset string) error {
	if !t.receivable[asset] {
		return apperrors.Newf(apperrors.ErrNotFound, "asset %s is not receivable", asset)
	}
	delete(t.receivable, asset)
	return nil
}

func (t *Treasury) Balance(asset string) decimal.Decimal {
	return t.balances[asset]
}

// AccVaultProfit returns the cumulative profit received from one source in one asset.
func (t *Treasury) AccVaultProfit(source, asset string) decimal.Decimal {
	return t.accVaultProfit[source][asset]
}

// AccManageFee returns the cumulative management fee received from one source in one asset.
func (t *Treasury) AccManageFee(source, asset string) decimal.Decimal {
	return t.accManageFee[source][asset]
}

// KeeperNativeFee is the aggregate native-coin compensation owed to the keeper.
func (t *Treasury) KeeperNativeFee() decimal.Decimal {
	return t.keeperNativeFee
}

// ReceiveProfitFromVault books skimmed profit against the whitelist.
func (t *Treasury) ReceiveProfitFromVault(source, asset string, amount decimal.Decimal) error {
	if err := t.receive(asset, amount); err != nil {
		return err
	}
	bump(t.accVaultProfit, source, asset, amount)
	return nil
}

// ReceiveManageFeeFromVault books a management fee and converts the keeper's
// share into the native settlement coin.
func (t *Treasury) ReceiveManageFeeFromVault(source, asset string, amount decimal.Decimal) error {
	if err := t.receive(asset, amount); err != nil {
		return err
	}
	bump(t.accManageFee, source, asset, amount)

	if t.keeperShareBps == 0 {
		return nil
	}
	keeperCut := amount.Mul(decimal.NewFromInt(t.keeperShareBps)).Div(bpsDenominator)
	if !keeperCut.IsPositive() {
		return nil
	}
	native := keeperCut
	if asset != t.nativeAsset {
		out, err := t.router.Swap(asset, t.nativeAsset, keeperCut, 10_000-1)
		if err != nil {
			return err
		}
		native = out
	}
	t.balances[asset] = t.balances[asset].Sub(keeperCut)
	t.keeperNativeFee = t.keeperNativeFee.Add(native)
	return nil
}

// WithdrawToken is a privileged sink; the caller's role is checked upstream.
func (t *Treasury) WithdrawToken(asset string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewInvalidParameter("withdraw amount must be positive")
	}
	have := t.balances[asset]
	if have.LessThan(amount) {
		return apperrors.Newf(apperrors.ErrInsufficientLiquidity,
			"treasury holds %s %s, requested %s", have, asset, amount)
	}
	t.balances[asset] = have.Sub(amount)
	return nil
}

// WithdrawNative drains accumulated keeper compensation.
func (t *Treasury) WithdrawNative(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewInvalidParameter("withdraw amount must be positive")
	}
	if t.keeperNativeFee.LessThan(amount) {
		return apperrors.Newf(apperrors.ErrInsufficientLiquidity,
			"keeper fee balance %s, requested %s", t.keeperNativeFee, amount)
	}
	t.keeperNativeFee = t.keeperNativeFee.Sub(amount)
	return nil
}

func (t *Treasury) receive(asset string, amount decimal.Decimal) error {
	if !t.receivable[asset] {
		return apperrors.Newf(apperrors.ErrNotReceivableToken, "asset %s is not receivable", asset)
	}
	if amount.IsNegative() {
		return apperrors.NewInvalidParameter("amount must not be negative")
	}
	t.balances[asset] = t.balances[asset].Add(amount)
	return nil
}

func bump(m map[string]map[string]decimal.Decimal, source, asset string, amount decimal.Decimal) {
	inner, ok := m[source]
	if !ok {
		inner = make(map[string]decimal.Decimal)
		m[source] = inner
	}
	inner[asset] = inner[asset].Add(amount)
}

// State is a deep copy for write-ahead rollback.
type State struct {
	Receivable      map[string]bool
	Balances        map[string]decimal.Decimal
	AccVaultProfit  map[string]map[string]decimal.Decimal
	AccManageFee    map[string]map[string]decimal.Decimal
	KeeperNativeFee decimal.Decimal
}

func (t *Treasury) Snapshot() State {
	return State{
		Receivable:      copyBoolMap(t.receivable),
		Balances:        copyDecMap(t.balances),
		AccVaultProfit:  copyNested(t.accVaultProfit),
		AccManageFee:    copyNested(t.accManageFee),
		KeeperNativeFee: t.keeperNativeFee,
	}
}

func (t *Treasury) Restore(s State) {
	t.receivable = copyBoolMap(s.Receivable)
	t.balances = copyDecMap(s.Balances)
	t.accVaultProfit = copyNested(s.AccVaultProfit)
	t.accManageFee = copyNested(s.AccManageFee)
	t.keeperNativeFee = s.KeeperNativeFee
}

func copyBoolMap(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyDecMap(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyNested(in map[string]map[string]decimal.Decimal) map[string]map[string]decimal.Decimal {
	out := make(map[string]map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = copyDecMap(v)
	}
	return out
}
