package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/oracle"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
)

var bpsDenominator = decimal.NewFromInt(10_000)

// Simulated is a paper strategy: it tracks an invested USD value, charges a
// fixed entry/exit haircut, and accrues reward tokens at a configured daily
// rate. It backs tests and paper deployments the same way a live adapter
// would back production.
type Simulated struct {
	name  string
	asset string

	oracle oracle.PriceOracle
	value  decimal.Decimal // invested USD value

	investFeeBps int64
	divestFeeBps int64

	rewardAsset string
	yieldPerDay decimal.Decimal // fraction of value accrued per day
	accruedUSD  decimal.Decimal
	lastAccrue  time.Time

	poolTVL decimal.Decimal
	now     func() time.Time
}

type SimulatedConfig struct {
	Name         string
	Asset        string
	InvestFeeBps int64
	DivestFeeBps int64
	RewardAsset  string
	YieldPerDay  decimal.Decimal
	PoolTVL      decimal.Decimal
	Now          func() time.Time
}

func NewSimulated(cfg SimulatedConfig, o oracle.PriceOracle) (*Simulated, error) {
	if cfg.Name == "" || cfg.Asset == "" {
		return nil, apperrors.NewInvalidParameter("strategy name and asset are required")
	}
	if cfg.InvestFeeBps < 0 || cfg.InvestFeeBps >= 10_000 || cfg.DivestFeeBps < 0 || cfg.DivestFeeBps >= 10_000 {
		return nil, apperrors.NewInvalidParameter("fee must be in [0, 10000) bps")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rewardAsset := cfg.RewardAsset
	if rewardAsset == "" {
		rewardAsset = cfg.Asset
	}
	return &Simulated{
		name:         cfg.Name,
		asset:        cfg.Asset,
		oracle:       o,
		value:        decimal.Zero,
		investFeeBps: cfg.InvestFeeBps,
		divestFeeBps: cfg.DivestFeeBps,
		rewardAsset:  rewardAsset,
		yieldPerDay:  cfg.YieldPerDay,
		accruedUSD:   decimal.Zero,
		lastAccrue:   now(),
		poolTVL:      cfg.PoolTVL,
		now:          now,
	}, nil
}

func (s *Simulated) Name() string  { return s.name }
func (s *Simulated) Asset() string { return s.asset }

func (s *Simulated) EstimatedTotalAssets() (decimal.Decimal, error) {
	return s.value, nil
}

func (s *Simulated) Invest(asset string, amount decimal.Decimal) (decimal.Decimal, error) {
	if asset != s.asset {
		return decimal.Zero, apperrors.Newf(apperrors.ErrInvalidParameter,
			"strategy %s invests %s, got %s", s.name, s.asset, asset)
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.NewInvalidParameter("invest amount must be positive")
	}
	s.accrue()

	value, err := s.oracle.ValueInUSD(asset, amount)
	if err != nil {
		return decimal.Zero, err
	}
	fee := decimal.NewFromInt(s.investFeeBps).Div(bpsDenominator)
	actual := value.Mul(decimal.NewFromInt(1).Sub(fee))
	s.value = s.value.Add(actual)
	return actual, nil
}

func (s *Simulated) Divest(value decimal.Decimal) (decimal.Decimal, error) {
	if !value.IsPositive() {
		return decimal.Zero, apperrors.NewInvalidParameter("divest value must be positive")
	}
	s.accrue()

	take := decimal.Min(s.value, value)
	if take.IsZero() {
		return decimal.Zero, nil
	}
	s.value = s.value.Sub(take)
	fee := decimal.NewFromInt(s.divestFeeBps).Div(bpsDenominator)
	out := take.Mul(decimal.NewFromInt(1).Sub(fee))
	return oracle.AmountInAsset(s.oracle, s.asset, out)
}

func (s *Simulated) Harvest() ([]Reward, error) {
	s.accrue()
	if !s.accruedUSD.IsPositive() {
		return nil, nil
	}
	amount, err := oracle.AmountInAsset(s.oracle, s.rewardAsset, s.accruedUSD)
	if err != nil {
		return nil, err
	}
	s.accruedUSD = decimal.Zero
	return []Reward{{Asset: s.rewardAsset, Amount: amount}}, nil
}

type simulatedState struct {
	value      decimal.Decimal
	accruedUSD decimal.Decimal
	lastAccrue time.Time
}

func (s *Simulated) Snapshot() State {
	return simulatedState{value: s.value, accruedUSD: s.accruedUSD, lastAccrue: s.lastAccrue}
}

func (s *Simulated) Restore(st State) {
	prev, ok := st.(simulatedState)
	if !ok {
		return
	}
	s.value = prev.value
	s.accruedUSD = prev.accruedUSD
	s.lastAccrue = prev.lastAccrue
}

func (s *Simulated) ThirdPoolAssets() (decimal.Decimal, error) {
	if s.poolTVL.IsPositive() {
		return s.poolTVL, nil
	}
	// unbounded pool for paper runs that don't configure a TVL
	return s.value.Add(decimal.NewFromInt(1_000_000_000)), nil
}

func (s *Simulated) accrue() {
	ts := s.now()
	elapsed := ts.Sub(s.lastAccrue)
	s.lastAccrue = ts
	if elapsed <= 0 || !s.yieldPerDay.IsPositive() || !s.value.IsPositive() {
		return
	}
	days := decimal.NewFromFloat(elapsed.Hours() / 24)
	s.accruedUSD = s.accruedUSD.Add(s.value.Mul(s.yieldPerDay).Mul(days))
}
