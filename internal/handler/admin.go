package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/oracle"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/strategy"
	"github.com/bankofchain/vaultd/internal/treasury"
	"github.com/bankofchain/vaultd/internal/vault"
)

// AdminHandler covers the governance surface: strategy and asset registry,
// tunables, forced reports, the pause switch, and treasury withdrawals.
type AdminHandler struct {
	vault    *vault.Vault
	treasury *treasury.Treasury
	oracle   oracle.PriceOracle
}

func NewAdminHandler(v *vault.Vault, t *treasury.Treasury, o oracle.PriceOracle) *AdminHandler {
	return &AdminHandler{vault: v, treasury: t, oracle: o}
}

// AddStrategyRequest describes one strategy to register. Only the simulated
// type can be built over the wire; on-chain adapters would ship as plugins.
type AddStrategyRequest struct {
	Name               string          `json:"name" binding:"required"`
	Type               string          `json:"type"`
	Asset              string          `json:"asset" binding:"required"`
	RewardAsset        string          `json:"reward_asset"`
	InvestFeeBps       int64           `json:"invest_fee_bps"`
	DivestFeeBps       int64           `json:"divest_fee_bps"`
	YieldPerDay        decimal.Decimal `json:"yield_per_day"`
	PoolTVL            decimal.Decimal `json:"pool_tvl"`
	ProfitLimitRatio   decimal.Decimal `json:"profit_limit_ratio"`
	LossLimitRatio     decimal.Decimal `json:"loss_limit_ratio"`
	EnforceChangeLimit bool            `json:"enforce_change_limit"`
}

type addStrategiesBody struct {
	Strategies []AddStrategyRequest `json:"strategies" binding:"required"`
}

func (h *AdminHandler) AddStrategies(c *gin.Context) {
	var body addStrategiesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}

	regs := make([]vault.Registration, 0, len(body.Strategies))
	for _, req := range body.Strategies {
		if req.Type != "" && req.Type != "simulated" {
			_ = c.Error(apperrors.Newf(apperrors.ErrInvalidParameter, "unknown strategy type %q", req.Type))
			return
		}
		impl, err := strategy.NewSimulated(strategy.SimulatedConfig{
			Name:         req.Name,
			Asset:        req.Asset,
			RewardAsset:  req.RewardAsset,
			InvestFeeBps: req.InvestFeeBps,
			DivestFeeBps: req.DivestFeeBps,
			YieldPerDay:  req.YieldPerDay,
			PoolTVL:      req.PoolTVL,
		}, h.oracle)
		if err != nil {
			_ = c.Error(err)
			return
		}
		regs = append(regs, vault.Registration{
			Impl: impl,
			Params: model.StrategyParams{
				Name:               req.Name,
				ProfitLimitRatio:   req.ProfitLimitRatio,
				LossLimitRatio:     req.LossLimitRatio,
				EnforceChangeLimit: req.EnforceChangeLimit,
			},
		})
	}

	if err := h.vault.AddStrategies(c.Request.Context(), regs); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": len(regs)})
}

type strategyNamesBody struct {
	Strategies []string `json:"strategies" binding:"required"`
}

func (h *AdminHandler) RemoveStrategies(c *gin.Context) {
	var body strategyNamesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}
	if err := h.vault.RemoveStrategies(c.Request.Context(), body.Strategies); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": len(body.Strategies)})
}

func (h *AdminHandler) SetQueue(c *gin.Context) {
	var req model.QueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}
	if err := h.vault.SetWithdrawalQueue(c.Request.Context(), req.Queue); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": req.Queue})
}

func (h *AdminHandler) AddAsset(c *gin.Context) {
	var req model.AssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}
	if err := h.vault.AddAsset(c.Request.Context(), req.Asset); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"asset": req.Asset})
}

func (h *AdminHandler) RemoveAsset(c *gin.Context) {
	var req model.AssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}
	if err := h.vault.RemoveAsset(c.Request.Context(), req.Asset, req.Force); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": req.Asset})
}

func (h *AdminHandler) SetParams(c *gin.Context) {
	var req model.ParamsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}
	if err := h.vault.SetParams(c.Request.Context(), req); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *AdminHandler) ForceReport(c *gin.Context) {
	name := c.Param("name")
	report, err := h.vault.ForceReport(c.Request.Context(), name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) Pause(c *gin.Context) {
	if err := h.vault.Pause(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (h *AdminHandler) Unpause(c *gin.Context) {
	if err := h.vault.Unpause(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

func (h *AdminHandler) TreasuryWithdraw(c *gin.Context) {
	var req model.TreasuryWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}
	if err := h.treasury.WithdrawToken(req.Asset, req.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": req.Asset, "amount": req.Amount, "to": req.To})
}

type nativeWithdrawBody struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	To     string          `json:"to" binding:"required"`
}

// TreasuryWithdrawNative pays out the keeper compensation pool.
func (h *AdminHandler) TreasuryWithdrawNative(c *gin.Context) {
	var body nativeWithdrawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}
	if err := h.treasury.WithdrawNative(body.Amount); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": body.Amount, "to": body.To})
}
