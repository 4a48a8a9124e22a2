// Package vault is the ledger and orchestration engine: asset registry,
// strategy registry with per-strategy risk limits, the ordered withdrawal
// queue, deposit buffering, harvest income smoothing, and the periodic rebase
// that reconciles accounted value against outstanding share supply.
//
// Every public operation is a single-writer critical section: it takes the
// vault mutex, records the pre-state, and rolls the whole ledger back if any
// step fails, so a failed call leaves balances and counters exactly as they
// were.
package vault

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/buffer"
	"github.com/bankofchain/vaultd/internal/dripper"
	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/oracle"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/pkg/logger"
	"github.com/bankofchain/vaultd/internal/strategy"
	"github.com/bankofchain/vaultd/internal/swap"
	"github.com/bankofchain/vaultd/internal/token"
	"github.com/bankofchain/vaultd/internal/treasury"
)

var bpsDenominator = decimal.NewFromInt(10_000)

// Params are the vault-level tunables. Fee and slippage fields are basis
// points; RebaseThreshold is an absolute USD delta.
type Params struct {
	SettlementAsset       string
	RebaseThreshold       decimal.Decimal
	TrusteeFeeBps         int64
	RedeemFeeBps          int64
	HarvestSlippageBps    int64
	DivestSwapSlippageBps int64
	DistributeBatchSize   int
}

type strategyEntry struct {
	impl   strategy.Strategy
	record model.StrategyRecord
}

// EventSink receives committed operations and harvest reports for the audit
// trail. Implementations must not block the ledger; failures are logged and
// dropped.
type EventSink interface {
	RecordOperation(ctx context.Context, op string, payload any) error
	RecordReport(ctx context.Context, report model.PendingReport, accepted bool, reason string) error
}

type nopSink struct{}

func (nopSink) RecordOperation(context.Context, string, any) error { return nil }
func (nopSink) RecordReport(context.Context, model.PendingReport, bool, string) error {
	return nil
}

// NopSink discards all events.
func NopSink() EventSink { return nopSink{} }

type Vault struct {
	mu sync.Mutex

	params Params

	assetSet  map[string]bool
	assetList []string // explicit order, not map iteration
	idle      map[string]decimal.Decimal

	strategies map[string]*strategyEntry
	queue      []string // withdrawal order, drained front to back
	pending    map[string]model.PendingReport

	token    *token.ShareToken
	buffer   *buffer.Buffer
	dripper  *dripper.Dripper
	treasury *treasury.Treasury

	oracle oracle.PriceOracle
	router swap.Router

	adjusting bool
	paused    bool

	events EventSink
	now    func() time.Time
	log    *slog.Logger
}

type Deps struct {
	Token    *token.ShareToken
	Buffer   *buffer.Buffer
	Dripper  *dripper.Dripper
	Treasury *treasury.Treasury
	Oracle   oracle.PriceOracle
	Router   swap.Router
	Events   EventSink
	Now      func() time.Time
}

func New(params Params, deps Deps) (*Vault, error) {
	if params.SettlementAsset == "" {
		return nil, apperrors.NewInvalidParameter("settlement asset is required")
	}
	if params.TrusteeFeeBps < 0 || params.TrusteeFeeBps > 10_000 {
		return nil, apperrors.NewInvalidParameter("trustee fee must be in [0, 10000] bps")
	}
	if params.RedeemFeeBps < 0 || params.RedeemFeeBps > 10_000 {
		return nil, apperrors.NewInvalidParameter("redeem fee must be in [0, 10000] bps")
	}
	if params.RebaseThreshold.IsNegative() {
		return nil, apperrors.NewInvalidParameter("rebase threshold must not be negative")
	}
	if params.DistributeBatchSize <= 0 {
		params.DistributeBatchSize = 32
	}
	if deps.Events == nil {
		deps.Events = nopSink{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	v := &Vault{
		params:     params,
		assetSet:   map[string]bool{params.SettlementAsset: true},
		assetList:  []string{params.SettlementAsset},
		idle:       make(map[string]decimal.Decimal),
		strategies: make(map[string]*strategyEntry),
		pending:    make(map[string]model.PendingReport),
		token:      deps.Token,
		buffer:     deps.Buffer,
		dripper:    deps.Dripper,
		treasury:   deps.Treasury,
		oracle:     deps.Oracle,
		router:     deps.Router,
		events:     deps.Events,
		now:        deps.Now,
		log:        logger.ForComponent("vault"),
	}
	return v, nil
}

// sharePrice is totalAssets / totalSupply, defined as 1 on first deposit.
// Callers hold the lock.
func (v *Vault) sharePrice() (decimal.Decimal, error) {
	supply := v.token.TotalSupply()
	if supply.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	total, err := v.totalAssetsLocked()
	if err != nil {
		return decimal.Zero, err
	}
	return total.Div(supply), nil
}

// totalAssetsLocked sums idle balances at oracle value plus every strategy's
// current estimated value. Buffer-held cash is excluded: its claims are not
// yet part of the share supply.
func (v *Vault) totalAssetsLocked() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, asset := range v.assetList {
		qty := v.idle[asset]
		if qty.IsZero() {
			continue
		}
		value, err := v.oracle.ValueInUSD(asset, qty)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(value)
	}
	for _, name := range v.strategyNames() {
		est, err := v.strategies[name].impl.EstimatedTotalAssets()
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(est)
	}
	return total, nil
}

func (v *Vault) strategyNames() []string {
	names := make([]string, 0, len(v.strategies))
	for name := range v.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StrategyNames returns the registered strategy names in sorted order.
func (v *Vault) StrategyNames() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.strategyNames()
}

// TotalAssets returns the vault's accounted value in USD.
func (v *Vault) TotalAssets() (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalAssetsLocked()
}

// BalanceOf returns a holder's visible share balance.
func (v *Vault) BalanceOf(holder string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.token.BalanceOf(holder)
}

// Detail reports the vault's full accounted state.
func (v *Vault) Detail() (model.VaultDetail, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	total, err := v.totalAssetsLocked()
	if err != nil {
		return model.VaultDetail{}, err
	}
	price, err := v.sharePrice()
	if err != nil {
		return model.VaultDetail{}, err
	}

	idle := make(map[string]decimal.Decimal, len(v.idle))
	for asset, qty := range v.idle {
		if !qty.IsZero() {
			idle[asset] = qty
		}
	}
	strategies := make([]model.StrategyRecord, 0, len(v.strategies))
	for _, name := range v.strategyNames() {
		strategies = append(strategies, v.strategies[name].record)
	}

	return model.VaultDetail{
		TotalAssets:     total,
		TotalSupply:     v.token.TotalSupply(),
		SharePrice:      price,
		IdleBalances:    idle,
		BufferValue:     v.buffer.PendingValue(),
		Strategies:      strategies,
		WithdrawalQueue: append([]string(nil), v.queue...),
		Assets:          append([]string(nil), v.assetList...),
		Adjusting:       v.adjusting,
		Distributing:    v.buffer.IsDistributing(),
		Paused:          v.paused,
		RebaseThreshold: v.params.RebaseThreshold,
		TrusteeFeeBps:   v.params.TrusteeFeeBps,
		RedeemFeeBps:    v.params.RedeemFeeBps,
	}, nil
}

func (v *Vault) record(ctx context.Context, op string, payload any) {
	if err := v.events.RecordOperation(ctx, op, payload); err != nil {
		v.log.Warn("event sink rejected operation", "op", op, "error", err.Error())
	}
}
