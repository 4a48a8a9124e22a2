package model

import "github.com/shopspring/decimal"

// MintRequest represents the incoming deposit body
type MintRequest struct {
	Assets    []string          `json:"assets" binding:"required"`
	Amounts   []decimal.Decimal `json:"amounts" binding:"required"`
	MinShares decimal.Decimal   `json:"min_shares"`
}

type MintResponse struct {
	Shares decimal.Decimal `json:"shares"`
	Value  decimal.Decimal `json:"value"`
}

// BurnRequest redeems shares for one underlying asset.
type BurnRequest struct {
	Shares   decimal.Decimal `json:"shares" binding:"required"`
	MinValue decimal.Decimal `json:"min_value"`
	Asset    string          `json:"asset,omitempty"` // defaults to the settlement asset
}

type BurnResponse struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
	Value  decimal.Decimal `json:"value"`
	Fee    decimal.Decimal `json:"fee"`
}

// LendRequest funds one strategy inside an open allocation window.
type LendRequest struct {
	Strategy       string          `json:"strategy" binding:"required"`
	Asset          string          `json:"asset" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	MaxSlippageBps int64           `json:"max_slippage_bps"`
}

type StrategyParams struct {
	Name               string          `json:"name" binding:"required"`
	ProfitLimitRatio   decimal.Decimal `json:"profit_limit_ratio"`
	LossLimitRatio     decimal.Decimal `json:"loss_limit_ratio"`
	EnforceChangeLimit bool            `json:"enforce_change_limit"`
}

type QueueRequest struct {
	Queue []string `json:"queue" binding:"required"`
}

type AssetRequest struct {
	Asset string `json:"asset" binding:"required"`
	Force bool   `json:"force,omitempty"`
}

// ParamsRequest updates vault-level tunables; nil fields are left unchanged.
type ParamsRequest struct {
	RebaseThreshold *decimal.Decimal `json:"rebase_threshold,omitempty"`
	TrusteeFeeBps   *int64           `json:"trustee_fee_bps,omitempty"`
	RedeemFeeBps    *int64           `json:"redeem_fee_bps,omitempty"`
	DripDurationSec *int64           `json:"drip_duration_sec,omitempty"`
}

type TreasuryWithdrawRequest struct {
	Asset  string          `json:"asset" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	To     string          `json:"to" binding:"required"`
}
