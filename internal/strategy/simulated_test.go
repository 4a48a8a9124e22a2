package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankofchain/vaultd/internal/oracle"
)

func newTestSimulated(t *testing.T, cfg SimulatedConfig) (*Simulated, *oracle.FeedOracle, func(time.Duration)) {
	t.Helper()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg.Now = func() time.Time { return now }

	o := oracle.NewFeedOracle(0, nil)
	o.SetPrice("USDT", decimal.NewFromInt(1))
	o.SetPrice("WETH", decimal.NewFromInt(2000))
	o.SetPrice("RWD", decimal.NewFromInt(5))

	s, err := NewSimulated(cfg, o)
	require.NoError(t, err)
	return s, o, func(d time.Duration) { now = now.Add(d) }
}

func TestInvestAppliesEntryHaircut(t *testing.T) {
	s, _, _ := newTestSimulated(t, SimulatedConfig{Name: "aave", Asset: "USDT", InvestFeeBps: 100})

	actual, err := s.Invest("USDT", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, actual.Equal(decimal.NewFromInt(990)), "got %s", actual)

	est, err := s.EstimatedTotalAssets()
	require.NoError(t, err)
	assert.True(t, est.Equal(decimal.NewFromInt(990)))

	// denominating asset is enforced
	_, err = s.Invest("WETH", decimal.NewFromInt(1))
	assert.Error(t, err)
	_, err = s.Invest("USDT", decimal.Zero)
	assert.Error(t, err)
}

func TestDivestCapsAtPositionAndCharges(t *testing.T) {
	s, _, _ := newTestSimulated(t, SimulatedConfig{Name: "aave", Asset: "USDT", DivestFeeBps: 100})
	_, err := s.Invest("USDT", decimal.NewFromInt(1000))
	require.NoError(t, err)

	qty, err := s.Divest(decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(495)), "got %s", qty)

	est, _ := s.EstimatedTotalAssets()
	assert.True(t, est.Equal(decimal.NewFromInt(500)))

	// asking for more than the position drains it, never overdrafts
	qty, err = s.Divest(decimal.NewFromInt(9999))
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(495)), "got %s", qty)
	est, _ = s.EstimatedTotalAssets()
	assert.True(t, est.IsZero())
}

func TestHarvestAccruesDailyYield(t *testing.T) {
	s, _, advance := newTestSimulated(t, SimulatedConfig{
		Name:        "aave",
		Asset:       "USDT",
		RewardAsset: "RWD",
		YieldPerDay: decimal.NewFromFloat(0.01),
	})
	_, err := s.Invest("USDT", decimal.NewFromInt(1000))
	require.NoError(t, err)

	// nothing accrued yet
	rewards, err := s.Harvest()
	require.NoError(t, err)
	assert.Empty(t, rewards)

	advance(24 * time.Hour)
	rewards, err = s.Harvest()
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, "RWD", rewards[0].Asset)
	// 1% of 1000 = 10 USD at 5 USD per RWD
	assert.True(t, rewards[0].Amount.Equal(decimal.NewFromInt(2)), "got %s", rewards[0].Amount)

	// accrual was reset by the claim
	rewards, err = s.Harvest()
	require.NoError(t, err)
	assert.Empty(t, rewards)
}

func TestThirdPoolAssets(t *testing.T) {
	s, _, _ := newTestSimulated(t, SimulatedConfig{Name: "aave", Asset: "USDT", PoolTVL: decimal.NewFromInt(500)})
	tvl, err := s.ThirdPoolAssets()
	require.NoError(t, err)
	assert.True(t, tvl.Equal(decimal.NewFromInt(500)))

	unbounded, _, _ := newTestSimulated(t, SimulatedConfig{Name: "aave", Asset: "USDT"})
	tvl, err = unbounded.ThirdPoolAssets()
	require.NoError(t, err)
	assert.True(t, tvl.GreaterThan(decimal.NewFromInt(1_000_000)))
}

func TestSimulatedSnapshotRestore(t *testing.T) {
	s, _, _ := newTestSimulated(t, SimulatedConfig{Name: "aave", Asset: "USDT"})

	_, err := s.Invest("USDT", decimal.NewFromInt(1000))
	require.NoError(t, err)

	st := s.Snapshot()
	_, err = s.Divest(decimal.NewFromInt(400))
	require.NoError(t, err)

	s.Restore(st)
	est, err := s.EstimatedTotalAssets()
	require.NoError(t, err)
	assert.True(t, est.Equal(decimal.NewFromInt(1000)), "got %s", est)
}

func TestNewSimulatedValidation(t *testing.T) {
	o := oracle.NewFeedOracle(0, nil)
	_, err := NewSimulated(SimulatedConfig{Asset: "USDT"}, o)
	assert.Error(t, err)
	_, err = NewSimulated(SimulatedConfig{Name: "x", Asset: "USDT", InvestFeeBps: 10_000}, o)
	assert.Error(t, err)
}
