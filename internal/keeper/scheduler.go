package keeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/bankofchain/vaultd/internal/config"
	"github.com/bankofchain/vaultd/internal/pkg/logger"
	"github.com/bankofchain/vaultd/internal/vault"
)

// Scheduler drives the periodic keeper duties: drip collection, rebase,
// strategy harvests, and claim distribution while an epoch is open.
type Scheduler struct {
	cron  *cron.Cron
	vault *vault.Vault
	ctx   context.Context
	log   *slog.Logger
}

func NewScheduler(ctx context.Context, v *vault.Vault) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		vault: v,
		ctx:   ctx,
		log:   logger.ForComponent("keeper"),
	}
}

// Register wires the configured cron expressions. Empty expressions skip the
// corresponding duty so operators can run it by hand over HTTP instead.
func (s *Scheduler) Register(cfg config.KeeperConfig) error {
	if cfg.CollectCron != "" {
		if _, err := s.cron.AddFunc(cfg.CollectCron, s.collectTask); err != nil {
			return fmt.Errorf("register collect task: %w", err)
		}
	}
	if cfg.RebaseCron != "" {
		if _, err := s.cron.AddFunc(cfg.RebaseCron, s.rebaseTask); err != nil {
			return fmt.Errorf("register rebase task: %w", err)
		}
	}
	if cfg.HarvestCron != "" {
		if _, err := s.cron.AddFunc(cfg.HarvestCron, s.harvestTask); err != nil {
			return fmt.Errorf("register harvest task: %w", err)
		}
	}
	if cfg.DistributeCron != "" {
		if _, err := s.cron.AddFunc(cfg.DistributeCron, s.distributeTask); err != nil {
			return fmt.Errorf("register distribute task: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("keeper scheduler started")
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("keeper scheduler stopped")
}

func (s *Scheduler) collectTask() {
	released, err := s.vault.CollectDrip(s.ctx)
	if err != nil {
		s.log.Error("drip collect failed", "error", err.Error())
		return
	}
	if released.IsPositive() {
		s.log.Info("drip collected", "released", released.String())
	}
}

func (s *Scheduler) rebaseTask() {
	result, err := s.vault.Rebase(s.ctx)
	if err != nil {
		s.log.Error("rebase failed", "error", err.Error())
		return
	}
	if result.Applied {
		s.log.Info("rebase applied",
			"delta", result.Delta.String(),
			"fee_skimmed", result.FeeSkimmed.String(),
			"new_supply", result.NewSupply.String())
	}
}

func (s *Scheduler) harvestTask() {
	for _, name := range s.vault.StrategyNames() {
		result, err := s.vault.Harvest(s.ctx, name)
		if err != nil {
			s.log.Error("harvest failed", "strategy", name, "error", err.Error())
			continue
		}
		if !result.Accepted {
			s.log.Warn("harvest report held for review", "strategy", name, "reason", result.Reason)
			continue
		}
		s.log.Info("harvested", "strategy", name, "proceeds", result.Proceeds.String())
	}
}

func (s *Scheduler) distributeTask() {
	processed, distributing, err := s.vault.DistributeWhenDistributing(s.ctx)
	if err != nil {
		s.log.Error("distribute failed", "error", err.Error())
		return
	}
	if processed > 0 {
		s.log.Info("claims distributed", "processed", processed, "epoch_open", distributing)
	}
}
