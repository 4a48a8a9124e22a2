package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/pkg/apperrors"
	"github.com/bankofchain/vaultd/internal/vault"
)

// KeeperHandler exposes the allocation and settlement operations driven by
// the keeper role, either by the cron scheduler or by hand.
type KeeperHandler struct {
	vault *vault.Vault
}

func NewKeeperHandler(v *vault.Vault) *KeeperHandler {
	return &KeeperHandler{vault: v}
}

func (h *KeeperHandler) StartAdjustPosition(c *gin.Context) {
	if err := h.vault.StartAdjustPosition(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjusting": true})
}

func (h *KeeperHandler) Lend(c *gin.Context) {
	var req model.LendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidParameter(err.Error()))
		return
	}

	invested, err := h.vault.Lend(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": req.Strategy, "invested_value": invested})
}

func (h *KeeperHandler) EndAdjustPosition(c *gin.Context) {
	if err := h.vault.EndAdjustPosition(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adjusting": false})
}

func (h *KeeperHandler) Distribute(c *gin.Context) {
	processed, distributing, err := h.vault.DistributeWhenDistributing(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed, "distributing": distributing})
}

func (h *KeeperHandler) Harvest(c *gin.Context) {
	name := c.Param("name")
	result, err := h.vault.Harvest(c.Request.Context(), name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !result.Accepted {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *KeeperHandler) CollectDrip(c *gin.Context) {
	released, err := h.vault.CollectDrip(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}

func (h *KeeperHandler) Rebase(c *gin.Context) {
	result, err := h.vault.Rebase(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
