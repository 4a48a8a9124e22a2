package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyRecord is the vault's ledger view of one registered strategy.
type StrategyRecord struct {
	Name               string          `json:"name"`
	TotalDebt          decimal.Decimal `json:"total_debt"`
	LastReport         time.Time       `json:"last_report"`
	ProfitLimitRatio   decimal.Decimal `json:"profit_limit_ratio"`
	LossLimitRatio     decimal.Decimal `json:"loss_limit_ratio"`
	EnforceChangeLimit bool            `json:"enforce_change_limit"`
}

// PendingReport holds a harvest report that tripped the change limit and
// awaits an explicit governance override.
type PendingReport struct {
	Strategy  string          `json:"strategy"`
	PrevDebt  decimal.Decimal `json:"prev_debt"`
	NewValue  decimal.Decimal `json:"new_value"`
	CreatedAt time.Time       `json:"created_at"`
}

// HarvestResult reports one harvest run: reward proceeds routed into the
// dripper plus the outcome of the strategy's candidate report.
type HarvestResult struct {
	Strategy string          `json:"strategy"`
	Proceeds decimal.Decimal `json:"proceeds"`
	PrevDebt decimal.Decimal `json:"prev_debt"`
	NewValue decimal.Decimal `json:"new_value"`
	Accepted bool            `json:"accepted"`
	Reason   string          `json:"reason,omitempty"`
}

// RebaseResult reports one rebase attempt.
type RebaseResult struct {
	Delta      decimal.Decimal `json:"delta"`
	FeeSkimmed decimal.Decimal `json:"fee_skimmed"`
	NewSupply  decimal.Decimal `json:"new_supply"`
	Applied    bool            `json:"applied"`
}

// VaultDetail is the public report of the vault's accounted state.
type VaultDetail struct {
	TotalAssets     decimal.Decimal            `json:"total_assets"`
	TotalSupply     decimal.Decimal            `json:"total_supply"`
	SharePrice      decimal.Decimal            `json:"share_price"`
	IdleBalances    map[string]decimal.Decimal `json:"idle_balances"`
	BufferValue     decimal.Decimal            `json:"buffer_value"`
	Strategies      []StrategyRecord           `json:"strategies"`
	WithdrawalQueue []string                   `json:"withdrawal_queue"`
	Assets          []string                   `json:"assets"`
	Adjusting       bool                       `json:"adjusting"`
	Distributing    bool                       `json:"distributing"`
	Paused          bool                       `json:"paused"`
	RebaseThreshold decimal.Decimal            `json:"rebase_threshold"`
	TrusteeFeeBps   int64                      `json:"trustee_fee_bps"`
	RedeemFeeBps    int64                      `json:"redeem_fee_bps"`
}
