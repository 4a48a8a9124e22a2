package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankofchain/vaultd/internal/middleware"
	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/vault"
)

type VaultHandler struct {
	vault *vault.Vault
}

func NewVaultHandler(v *vault.Vault) *VaultHandler {
	return &VaultHandler{vault: v}
}

func (h *VaultHandler) Mint(c *gin.Context) {
	holder := middleware.Account(c)
	if holder == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing account context"})
		return
	}

	var req model.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}

	resp, err := h.vault.Mint(c.Request.Context(), holder, req.Assets, req.Amounts, req.MinShares)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VaultHandler) Burn(c *gin.Context) {
	holder := middleware.Account(c)
	if holder == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing account context"})
		return
	}

	var req model.BurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}

	resp, err := h.vault.Burn(c.Request.Context(), holder, req.Shares, req.MinValue, req.Asset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VaultHandler) Detail(c *gin.Context) {
	detail, err := h.vault.Detail()
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *VaultHandler) Balance(c *gin.Context) {
	holder := middleware.Account(c)
	if holder == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing account context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"holder": holder, "balance": h.vault.BalanceOf(holder)})
}
