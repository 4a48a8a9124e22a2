package vault

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankofchain/vaultd/internal/buffer"
	"github.com/bankofchain/vaultd/internal/dripper"
	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/oracle"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/pkg/metrics"
	"github.com/bankofchain/vaultd/internal/strategy"
	"github.com/bankofchain/vaultd/internal/swap"
	"github.com/bankofchain/vaultd/internal/token"
	"github.com/bankofchain/vaultd/internal/treasury"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var epsilon = decimal.New(1, -9)

// assertApprox absorbs the rounding of decimal division after a supply change.
func assertApprox(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	diff := got.Sub(d(want)).Abs()
	assert.True(t, diff.LessThan(epsilon), "want %s, got %s", want, got)
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(dur time.Duration) { c.t = c.t.Add(dur) }

// stubStrategy gives tests direct control over reported value and rewards.
type stubStrategy struct {
	name    string
	asset   string
	price   decimal.Decimal // USD per asset unit
	value   decimal.Decimal
	rewards []strategy.Reward
	tvl     decimal.Decimal
	frozen  bool // divest releases nothing
}

func newStub(name, asset string, price decimal.Decimal) *stubStrategy {
	return &stubStrategy{name: name, asset: asset, price: price, value: decimal.Zero}
}

func (s *stubStrategy) Name() string  { return s.name }
func (s *stubStrategy) Asset() string { return s.asset }

func (s *stubStrategy) EstimatedTotalAssets() (decimal.Decimal, error) {
	return s.value, nil
}

func (s *stubStrategy) Invest(asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	usd := amount.Mul(s.price)
	s.value = s.value.Add(usd)
	return usd, nil
}

func (s *stubStrategy) Divest(value decimal.Decimal) (decimal.Decimal, error) {
	if s.frozen {
		return decimal.Zero, nil
	}
	take := decimal.Min(s.value, value)
	s.value = s.value.Sub(take)
	return take.Div(s.price), nil
}

func (s *stubStrategy) Harvest() ([]strategy.Reward, error) {
	out := s.rewards
	s.rewards = nil
	return out, nil
}

type stubState struct {
	value   decimal.Decimal
	rewards []strategy.Reward
}

func (s *stubStrategy) Snapshot() strategy.State {
	return stubState{value: s.value, rewards: append([]strategy.Reward(nil), s.rewards...)}
}

func (s *stubStrategy) Restore(st strategy.State) {
	prev := st.(stubState)
	s.value = prev.value
	s.rewards = prev.rewards
}

func (s *stubStrategy) ThirdPoolAssets() (decimal.Decimal, error) {
	if s.tvl.IsPositive() {
		return s.tvl, nil
	}
	return s.value.Add(decimal.NewFromInt(1_000_000_000)), nil
}

type fixture struct {
	v     *Vault
	feed  *oracle.FeedOracle
	drip  *dripper.Dripper
	tre   *treasury.Treasury
	clock *fakeClock
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}

	feed := oracle.NewFeedOracle(0, clock.now)
	feed.SetPrice("USDT", d("1"))
	feed.SetPrice("WETH", d("2000"))

	router, err := swap.NewOracleRouter(feed, 0)
	require.NoError(t, err)
	tre, err := treasury.New("USDT", 0, router, []string{"USDT", "WETH"})
	require.NoError(t, err)
	drip, err := dripper.New("USDT", 48*time.Hour, clock.now)
	require.NoError(t, err)

	v, err := New(Params{
		SettlementAsset:       "USDT",
		RebaseThreshold:       d("1"),
		TrusteeFeeBps:         2000,
		RedeemFeeBps:          0,
		HarvestSlippageBps:    100,
		DivestSwapSlippageBps: 100,
		DistributeBatchSize:   32,
	}, Deps{
		Token:    token.New(),
		Buffer:   buffer.New(),
		Dripper:  drip,
		Treasury: tre,
		Oracle:   feed,
		Router:   router,
		Now:      clock.now,
	})
	require.NoError(t, err)
	require.NoError(t, v.AddAsset(context.Background(), "WETH"))

	return &fixture{v: v, feed: feed, drip: drip, tre: tre, clock: clock, ctx: context.Background()}
}

// deposit runs the whole mint-allocate-distribute cycle so the holder ends up
// with visible shares and the cash sits idle.
func (f *fixture) deposit(t *testing.T, holder string, amount string) {
	t.Helper()
	_, err := f.v.Mint(f.ctx, holder, []string{"USDT"}, []decimal.Decimal{d(amount)}, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))
	for {
		_, distributing, err := f.v.DistributeWhenDistributing(f.ctx)
		require.NoError(t, err)
		if !distributing {
			return
		}
	}
}

func (f *fixture) addStub(t *testing.T, stub *stubStrategy, params model.StrategyParams) {
	t.Helper()
	params.Name = stub.name
	require.NoError(t, f.v.AddStrategies(f.ctx, []Registration{{Impl: stub, Params: params}}))
}

func TestMintBuffersDeposit(t *testing.T) {
	f := newFixture(t)

	resp, err := f.v.Mint(f.ctx, "alice", []string{"USDT", "WETH"}, []decimal.Decimal{d("1000"), d("1")}, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, resp.Value.Equal(d("3000")))
	assert.True(t, resp.Shares.Equal(d("3000")))

	// shares are pending, not visible, and buffer cash is outside totalAssets
	assert.True(t, f.v.BalanceOf("alice").IsZero())
	detail, err := f.v.Detail()
	require.NoError(t, err)
	assert.True(t, detail.TotalAssets.IsZero())
	assert.True(t, detail.BufferValue.Equal(d("3000")))
	assert.True(t, detail.TotalSupply.IsZero())
}

func TestMintValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.v.Mint(f.ctx, "alice", []string{"DOGE"}, []decimal.Decimal{d("1")}, decimal.Zero)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))

	_, err = f.v.Mint(f.ctx, "alice", []string{"USDT"}, []decimal.Decimal{d("0")}, decimal.Zero)
	assert.Error(t, err)

	_, err = f.v.Mint(f.ctx, "alice", []string{"USDT"}, nil, decimal.Zero)
	assert.Error(t, err)

	// min-shares guard
	_, err = f.v.Mint(f.ctx, "alice", []string{"USDT"}, []decimal.Decimal{d("100")}, d("101"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrSlippageExceeded))

	// a failed mint leaves no claim behind
	detail, err := f.v.Detail()
	require.NoError(t, err)
	assert.True(t, detail.BufferValue.IsZero())
}

func TestAllocationWindowLifecycle(t *testing.T) {
	f := newFixture(t)
	stub := newStub("alpha", "USDT", d("1"))
	f.addStub(t, stub, model.StrategyParams{})

	_, err := f.v.Mint(f.ctx, "alice", []string{"USDT"}, []decimal.Decimal{d("1000")}, decimal.Zero)
	require.NoError(t, err)

	// lend is only legal inside the window
	_, err = f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("600")})
	assert.Error(t, err)

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	assert.Error(t, f.v.StartAdjustPosition(f.ctx))

	// user flows are blocked while the window is open
	_, err = f.v.Mint(f.ctx, "bob", []string{"USDT"}, []decimal.Decimal{d("1")}, decimal.Zero)
	assert.Error(t, err)

	invested, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("600")})
	require.NoError(t, err)
	assert.True(t, invested.Equal(d("600")))

	// over-lending the idle balance is refused
	_, err = f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("500")})
	assert.True(t, apperrors.IsType(err, apperrors.ErrInsufficientLiquidity))

	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	// epoch is still open: user flows stay blocked until claims distribute
	_, err = f.v.Mint(f.ctx, "bob", []string{"USDT"}, []decimal.Decimal{d("1")}, decimal.Zero)
	assert.Error(t, err)

	processed, distributing, err := f.v.DistributeWhenDistributing(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.False(t, distributing)

	assert.True(t, f.v.BalanceOf("alice").Equal(d("1000")))
	total, err := f.v.TotalAssets()
	require.NoError(t, err)
	assert.True(t, total.Equal(d("1000")))

	detail, err := f.v.Detail()
	require.NoError(t, err)
	assert.True(t, detail.SharePrice.Equal(d("1")))
}

func TestDistributionLocksInDepositPrice(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", "1000")

	// vault value doubles before bob deposits: the share price is 2
	f.v.mu.Lock()
	f.v.idle["USDT"] = f.v.idle["USDT"].Add(d("1000"))
	f.v.mu.Unlock()

	_, err := f.v.Mint(f.ctx, "bob", []string{"USDT"}, []decimal.Decimal{d("500")}, decimal.Zero)
	require.NoError(t, err)

	// bob's claim carries the shares computed at his deposit price
	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))
	_, _, err = f.v.DistributeWhenDistributing(f.ctx)
	require.NoError(t, err)

	assert.True(t, f.v.BalanceOf("bob").Equal(d("250")), "got %s", f.v.BalanceOf("bob"))
	assert.True(t, f.v.BalanceOf("alice").Equal(d("1000")))
}

func TestBurnDrainsIdleThenQueue(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	beta := newStub("beta", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{})
	f.addStub(t, beta, model.StrategyParams{})

	f.deposit(t, "alice", "1000")
	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("400")})
	require.NoError(t, err)
	_, err = f.v.Lend(f.ctx, model.LendRequest{Strategy: "beta", Asset: "USDT", Amount: d("400")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	// idle 200 covers a 150 burn without touching the queue
	resp, err := f.v.Burn(f.ctx, "alice", d("150"), decimal.Zero, "")
	require.NoError(t, err)
	assert.True(t, resp.Value.Equal(d("150")))
	assert.True(t, alpha.value.Equal(d("400")))
	assert.True(t, beta.value.Equal(d("400")))

	// 250 more: 50 idle, then alpha covers the remaining 200 in full
	// before beta is touched
	_, err = f.v.Burn(f.ctx, "alice", d("250"), decimal.Zero, "")
	require.NoError(t, err)
	assert.True(t, alpha.value.Equal(d("200")), "got %s", alpha.value)
	assert.True(t, beta.value.Equal(d("400")))

	// draining past alpha spills into beta
	_, err = f.v.Burn(f.ctx, "alice", d("300"), decimal.Zero, "")
	require.NoError(t, err)
	assert.True(t, alpha.value.IsZero())
	assert.True(t, beta.value.Equal(d("300")), "got %s", beta.value)

	assert.True(t, f.v.BalanceOf("alice").Equal(d("300")))
	total, err := f.v.TotalAssets()
	require.NoError(t, err)
	assert.True(t, total.Equal(d("300")))
}

func TestBurnBelowMinValueRollsBack(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", "1000")

	// strip the backing: the share price collapses with it
	f.v.mu.Lock()
	f.v.idle["USDT"] = d("100")
	f.v.mu.Unlock()

	_, err := f.v.Burn(f.ctx, "alice", d("1000"), d("200"), "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrSlippageExceeded))

	// the failed burn rolled everything back
	assert.True(t, f.v.BalanceOf("alice").Equal(d("1000")))
}

func TestBurnInsufficientLiquidity(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{})
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("1000")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	// the strategy still reports its value but cannot free any of it
	alpha.frozen = true

	_, err = f.v.Burn(f.ctx, "alice", d("500"), decimal.Zero, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrInsufficientLiquidity))
	assert.True(t, f.v.BalanceOf("alice").Equal(d("1000")))
}

func TestBurnSlippageAfterDivestRestoresStrategies(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{})
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("1000")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	// the min-value guard trips only after the queue was already drained
	_, err = f.v.Burn(f.ctx, "alice", d("500"), d("600"), "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrSlippageExceeded))

	// the divested position went back with the rest of the ledger
	assert.True(t, alpha.value.Equal(d("1000")), "got %s", alpha.value)
	assert.True(t, f.v.BalanceOf("alice").Equal(d("1000")))
	total, err := f.v.TotalAssets()
	require.NoError(t, err)
	assert.True(t, total.Equal(d("1000")), "got %s", total)
}

func TestBurnQueueExhaustionRestoresPartialDrain(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	beta := newStub("beta", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{})
	f.addStub(t, beta, model.StrategyParams{})
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("400")})
	require.NoError(t, err)
	_, err = f.v.Lend(f.ctx, model.LendRequest{Strategy: "beta", Asset: "USDT", Amount: d("600")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	// alpha drains in full before beta turns out to be stuck
	beta.frozen = true
	_, err = f.v.Burn(f.ctx, "alice", d("500"), decimal.Zero, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrInsufficientLiquidity))

	assert.True(t, alpha.value.Equal(d("400")), "got %s", alpha.value)
	assert.True(t, beta.value.Equal(d("600")))
	total, err := f.v.TotalAssets()
	require.NoError(t, err)
	assert.True(t, total.Equal(d("1000")), "got %s", total)
}

func TestBurnChargesRedeemFee(t *testing.T) {
	f := newFixture(t)
	f.v.params.RedeemFeeBps = 100
	f.deposit(t, "alice", "1000")

	resp, err := f.v.Burn(f.ctx, "alice", d("200"), decimal.Zero, "")
	require.NoError(t, err)
	assert.True(t, resp.Fee.Equal(d("2")))
	assert.True(t, resp.Value.Equal(d("198")))
	assert.True(t, resp.Amount.Equal(d("198")))

	// the fee landed in the treasury as a management fee
	assert.True(t, f.tre.Balance("USDT").Equal(d("2")))
	assert.True(t, f.tre.AccManageFee("alice", "USDT").Equal(d("2")))
}

func TestHarvestFundsDripperAndRebaseSkimsFee(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{})
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("600")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	// 1. Harvest routes rewards into the dripper, not into idle
	alpha.rewards = []strategy.Reward{{Asset: "USDT", Amount: d("6")}}
	res, err := f.v.Harvest(f.ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, res.Proceeds.Equal(d("6")))
	assert.True(t, f.drip.Balance().Equal(d("6")))

	total, err := f.v.TotalAssets()
	require.NoError(t, err)
	assert.True(t, total.Equal(d("1000")), "dripper balance must stay outside totalAssets")

	// 2. Rebase right away: drip has released nothing, delta 0, no-op
	reb, err := f.v.Rebase(f.ctx)
	require.NoError(t, err)
	assert.False(t, reb.Applied)

	// 3. Two full windows later the whole 6 has matured
	f.clock.advance(96 * time.Hour)
	reb, err = f.v.Rebase(f.ctx)
	require.NoError(t, err)
	require.True(t, reb.Applied)
	assert.True(t, reb.Delta.Equal(d("6")), "got %s", reb.Delta)
	// 20% trustee skim on the 6 delta
	assert.True(t, reb.FeeSkimmed.Equal(d("1.2")), "got %s", reb.FeeSkimmed)
	assertApprox(t, "1004.8", reb.NewSupply)

	// conservation: supply tracks accounted value after the skim
	total, err = f.v.TotalAssets()
	require.NoError(t, err)
	assert.True(t, total.Sub(reb.NewSupply).Abs().LessThan(epsilon))
	assertApprox(t, "1004.8", f.v.BalanceOf("alice"))
	assert.True(t, f.tre.Balance("USDT").Equal(d("1.2")))

	// 4. Immediately rebasing again is a no-op
	reb, err = f.v.Rebase(f.ctx)
	require.NoError(t, err)
	assert.False(t, reb.Applied)
}

func TestRebaseThresholdTieIsNoop(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", "1000")

	// delta of exactly the threshold (1) stays put
	f.v.mu.Lock()
	f.v.idle["USDT"] = d("1001")
	f.v.mu.Unlock()

	reb, err := f.v.Rebase(f.ctx)
	require.NoError(t, err)
	assert.False(t, reb.Applied)
	assert.True(t, reb.Delta.Equal(d("1")))

	// one past it applies
	f.v.mu.Lock()
	f.v.idle["USDT"] = d("1002")
	f.v.mu.Unlock()

	reb, err = f.v.Rebase(f.ctx)
	require.NoError(t, err)
	assert.True(t, reb.Applied)
}

func TestNegativeRebaseAppliesUnconditionally(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", "1000")

	f.feed.SetPrice("USDT", d("0.9"))

	reb, err := f.v.Rebase(f.ctx)
	require.NoError(t, err)
	require.True(t, reb.Applied)
	assert.True(t, reb.Delta.Equal(d("-100")))
	assert.True(t, reb.FeeSkimmed.IsZero(), "no skim on losses")
	assertApprox(t, "900", reb.NewSupply)
	assertApprox(t, "900", f.v.BalanceOf("alice"))
}

func TestRebaseSkipsZeroSupply(t *testing.T) {
	f := newFixture(t)
	reb, err := f.v.Rebase(f.ctx)
	require.NoError(t, err)
	assert.False(t, reb.Applied)
}

func TestRebaseGaugeTracksPostSkimTotal(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", "1000")

	f.v.mu.Lock()
	f.v.idle["USDT"] = d("1010")
	f.v.mu.Unlock()

	reb, err := f.v.Rebase(f.ctx)
	require.NoError(t, err)
	require.True(t, reb.Applied)

	// the gauge carries the total captured inside the rebase itself
	gauge := decimal.NewFromFloat(testutil.ToFloat64(metrics.TotalAssets))
	assert.True(t, gauge.Sub(reb.NewSupply).Abs().LessThan(epsilon), "got %s", gauge)
}

func TestHarvestChangeLimitParksReport(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{
		ProfitLimitRatio:   d("0.1"),
		LossLimitRatio:     d("0.1"),
		EnforceChangeLimit: true,
	})
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("600")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	// a 20% jump breaches the 10% profit limit
	alpha.value = d("720")
	alpha.rewards = []strategy.Reward{{Asset: "USDT", Amount: d("3")}}

	res, err := f.v.Harvest(f.ctx, "alpha")
	require.NoError(t, err, "a rejected report is not a failed harvest")
	assert.False(t, res.Accepted)
	assert.NotEmpty(t, res.Reason)

	// proceeds committed even though the report did not
	assert.True(t, f.drip.Balance().Equal(d("3")))

	// debt untouched; the report is parked
	detail, err := f.v.Detail()
	require.NoError(t, err)
	require.Len(t, detail.Strategies, 1)
	assert.True(t, detail.Strategies[0].TotalDebt.Equal(d("600")))

	// governance pushes it through
	applied, err := f.v.ForceReport(f.ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, applied.NewValue.Equal(d("720")))

	detail, err = f.v.Detail()
	require.NoError(t, err)
	assert.True(t, detail.Strategies[0].TotalDebt.Equal(d("720")))

	// nothing left to force
	_, err = f.v.ForceReport(f.ctx, "alpha")
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))
}

func TestHarvestWithinLimitUpdatesDebt(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{
		ProfitLimitRatio:   d("0.1"),
		LossLimitRatio:     d("0.1"),
		EnforceChangeLimit: true,
	})
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("600")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	alpha.value = d("630") // 5%, inside the limit

	res, err := f.v.Harvest(f.ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	detail, err := f.v.Detail()
	require.NoError(t, err)
	assert.True(t, detail.Strategies[0].TotalDebt.Equal(d("630")))
}

func TestHarvestRejectsValueBeyondPoolTVL(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	alpha.tvl = d("100")
	f.addStub(t, alpha, model.StrategyParams{})

	alpha.value = d("200")
	_, err := f.v.Harvest(f.ctx, "alpha")
	assert.Error(t, err)
}

func TestHarvestUnknownStrategy(t *testing.T) {
	f := newFixture(t)
	_, err := f.v.Harvest(f.ctx, "ghost")
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))
}

func TestRemoveStrategiesDivestsToIdle(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{})
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("600")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	require.NoError(t, f.v.RemoveStrategies(f.ctx, []string{"alpha"}))
	assert.True(t, alpha.value.IsZero())

	detail, err := f.v.Detail()
	require.NoError(t, err)
	assert.Empty(t, detail.Strategies)
	assert.Empty(t, detail.WithdrawalQueue)
	assert.True(t, detail.TotalAssets.Equal(d("1000")), "funds returned to idle")

	assert.Error(t, f.v.RemoveStrategies(f.ctx, []string{"alpha"}))
}

func TestRemoveStrategiesMidListFailureRestoresDivested(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{})
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.StartAdjustPosition(f.ctx))
	_, err := f.v.Lend(f.ctx, model.LendRequest{Strategy: "alpha", Asset: "USDT", Amount: d("600")})
	require.NoError(t, err)
	require.NoError(t, f.v.EndAdjustPosition(f.ctx))

	// alpha divests before the unknown name aborts the batch
	err = f.v.RemoveStrategies(f.ctx, []string{"alpha", "ghost"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))

	assert.True(t, alpha.value.Equal(d("600")), "got %s", alpha.value)
	detail, derr := f.v.Detail()
	require.NoError(t, derr)
	assert.Len(t, detail.Strategies, 1)
	assert.True(t, detail.TotalAssets.Equal(d("1000")))
}

func TestAddStrategiesAllOrNothing(t *testing.T) {
	f := newFixture(t)
	alpha := newStub("alpha", "USDT", d("1"))
	f.addStub(t, alpha, model.StrategyParams{})

	dup := newStub("alpha", "USDT", d("1"))
	fresh := newStub("beta", "USDT", d("1"))
	err := f.v.AddStrategies(f.ctx, []Registration{
		{Impl: fresh, Params: model.StrategyParams{Name: "beta"}},
		{Impl: dup, Params: model.StrategyParams{Name: "alpha"}},
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrAlreadyExists))

	// beta was rolled back with the failing batch
	detail, derr := f.v.Detail()
	require.NoError(t, derr)
	assert.Len(t, detail.Strategies, 1)
	assert.Equal(t, []string{"alpha"}, detail.WithdrawalQueue)
}

func TestSetWithdrawalQueue(t *testing.T) {
	f := newFixture(t)
	f.addStub(t, newStub("alpha", "USDT", d("1")), model.StrategyParams{})
	f.addStub(t, newStub("beta", "USDT", d("1")), model.StrategyParams{})

	require.NoError(t, f.v.SetWithdrawalQueue(f.ctx, []string{"beta", "alpha"}))
	detail, err := f.v.Detail()
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "alpha"}, detail.WithdrawalQueue)

	assert.Error(t, f.v.SetWithdrawalQueue(f.ctx, []string{"beta", "ghost"}))
	assert.Error(t, f.v.SetWithdrawalQueue(f.ctx, []string{"beta", "beta"}))
}

func TestAssetRegistry(t *testing.T) {
	f := newFixture(t)

	// unpriced assets are refused
	err := f.v.AddAsset(f.ctx, "DOGE")
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))

	f.feed.SetPrice("DOGE", d("0.1"))
	require.NoError(t, f.v.AddAsset(f.ctx, "DOGE"))
	assert.True(t, apperrors.IsType(f.v.AddAsset(f.ctx, "DOGE"), apperrors.ErrAlreadyExists))

	// the settlement asset can never be removed
	assert.Error(t, f.v.RemoveAsset(f.ctx, "USDT", true))

	// non-zero balances block removal unless forced
	f.v.mu.Lock()
	f.v.idle["DOGE"] = d("5")
	f.v.mu.Unlock()
	assert.Error(t, f.v.RemoveAsset(f.ctx, "DOGE", false))
	require.NoError(t, f.v.RemoveAsset(f.ctx, "DOGE", true))

	// removed assets can come back
	require.NoError(t, f.v.AddAsset(f.ctx, "DOGE"))
	detail, err := f.v.Detail()
	require.NoError(t, err)
	assert.Contains(t, detail.Assets, "DOGE")
}

func TestSetParams(t *testing.T) {
	f := newFixture(t)

	threshold := d("2.5")
	trustee := int64(1000)
	require.NoError(t, f.v.SetParams(f.ctx, model.ParamsRequest{
		RebaseThreshold: &threshold,
		TrusteeFeeBps:   &trustee,
	}))
	detail, err := f.v.Detail()
	require.NoError(t, err)
	assert.True(t, detail.RebaseThreshold.Equal(d("2.5")))
	assert.Equal(t, int64(1000), detail.TrusteeFeeBps)

	bad := int64(10_001)
	assert.Error(t, f.v.SetParams(f.ctx, model.ParamsRequest{TrusteeFeeBps: &bad}))

	negative := d("-1")
	assert.Error(t, f.v.SetParams(f.ctx, model.ParamsRequest{RebaseThreshold: &negative}))

	zeroDur := int64(0)
	assert.Error(t, f.v.SetParams(f.ctx, model.ParamsRequest{DripDurationSec: &zeroDur}))

	dur := int64(3600)
	require.NoError(t, f.v.SetParams(f.ctx, model.ParamsRequest{DripDurationSec: &dur}))
	assert.Equal(t, time.Hour, f.drip.Duration())
}

func TestPauseBlocksFlows(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, "alice", "1000")

	require.NoError(t, f.v.Pause(f.ctx))

	_, err := f.v.Mint(f.ctx, "bob", []string{"USDT"}, []decimal.Decimal{d("1")}, decimal.Zero)
	assert.Error(t, err)
	_, err = f.v.Burn(f.ctx, "alice", d("1"), decimal.Zero, "")
	assert.Error(t, err)
	assert.Error(t, f.v.StartAdjustPosition(f.ctx))

	require.NoError(t, f.v.Unpause(f.ctx))
	_, err = f.v.Burn(f.ctx, "alice", d("1"), decimal.Zero, "")
	assert.NoError(t, err)
}
