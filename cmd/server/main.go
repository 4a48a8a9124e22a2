package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/buffer"
	"github.com/bankofchain/vaultd/internal/config"
	"github.com/bankofchain/vaultd/internal/dripper"
	"github.com/bankofchain/vaultd/internal/handler"
	"github.com/bankofchain/vaultd/internal/keeper"
	"github.com/bankofchain/vaultd/internal/middleware"
	"github.com/bankofchain/vaultd/internal/model"
	"github.com/bankofchain/vaultd/internal/oracle"
	"github.com/bankofchain/vaultd/internal/pkg/logger"
	"github.com/bankofchain/vaultd/internal/repository"
	"github.com/bankofchain/vaultd/internal/strategy"
	"github.com/bankofchain/vaultd/internal/swap"
	"github.com/bankofchain/vaultd/internal/token"
	"github.com/bankofchain/vaultd/internal/treasury"
	"github.com/bankofchain/vaultd/internal/vault"
)

func main() {
	// 0. Initialize Logger
	logger.Init("info")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Event Persistence (Postgres > Memory, Redis mirror optional)
	var sinks []vault.EventSink
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg.Database.DSN)
		if err == nil {
			pgSink, err := repository.NewPostgresEventSink(db)
			if err != nil {
				log.Fatalf("Failed to migrate event tables: %v", err)
			}
			logger.Info("✅ Connected to PostgreSQL")
			sinks = append(sinks, pgSink)
			go pgSink.CleanupLoop(time.Duration(cfg.Database.JournalRetentionDays) * 24 * time.Hour)
		} else {
			logger.Error("⚠️ Failed to connect to DB, events will not be persisted", "error", err)
		}
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err == nil {
			logger.Info("✅ Connected to Redis")
			sinks = append(sinks, repository.NewRedisAuditSink(client, cfg.Redis.AuditListKey, cfg.Redis.AuditListMax))
		} else {
			logger.Error("⚠️ Failed to connect to Redis, audit mirror disabled", "error", err)
		}
	}
	var events vault.EventSink
	switch len(sinks) {
	case 0:
		events = repository.NewMemoryEventSink()
	case 1:
		events = sinks[0]
	default:
		events = repository.NewMultiSink(sinks...)
	}

	// 3. Initialize Pricing
	feed := oracle.NewFeedOracle(time.Duration(cfg.Oracle.HeartbeatSeconds)*time.Second, nil)
	for asset, price := range cfg.Oracle.StaticPrices {
		feed.SetPrice(asset, decimal.NewFromFloat(price))
	}
	var poller *oracle.Poller
	if cfg.Oracle.FeedURL != "" {
		poller = oracle.NewPoller(feed, cfg.Oracle.FeedURL, time.Duration(cfg.Oracle.PollIntervalSeconds)*time.Second)
		poller.Start()
	}

	router, err := swap.NewOracleRouter(feed, cfg.Vault.RouterSpreadBps)
	if err != nil {
		log.Fatalf("Failed to initialize swap router: %v", err)
	}

	// 4. Initialize the Ledger
	treasurySvc, err := treasury.New(cfg.Treasury.NativeAsset, cfg.Treasury.KeeperShareBps, router, cfg.Treasury.Receivable)
	if err != nil {
		log.Fatalf("Failed to initialize treasury: %v", err)
	}
	// fee skims land in the settlement asset; it must be receivable even
	// when the configured whitelist omits it
	if !treasurySvc.IsReceivable(cfg.Vault.SettlementAsset) {
		if err := treasurySvc.AddReceivable(cfg.Vault.SettlementAsset); err != nil {
			log.Fatalf("Failed to whitelist settlement asset: %v", err)
		}
	}
	drip, err := dripper.New(cfg.Vault.SettlementAsset, time.Duration(cfg.Dripper.DurationHours)*time.Hour, nil)
	if err != nil {
		log.Fatalf("Failed to initialize dripper: %v", err)
	}

	v, err := vault.New(vault.Params{
		SettlementAsset:       cfg.Vault.SettlementAsset,
		RebaseThreshold:       decimal.NewFromFloat(cfg.Vault.RebaseThreshold),
		TrusteeFeeBps:         cfg.Vault.TrusteeFeeBps,
		RedeemFeeBps:          cfg.Vault.RedeemFeeBps,
		HarvestSlippageBps:    cfg.Vault.HarvestSlippageBps,
		DivestSwapSlippageBps: cfg.Vault.DivestSwapSlippageBps,
		DistributeBatchSize:   cfg.Vault.DistributeBatchSize,
	}, vault.Deps{
		Token:    token.New(),
		Buffer:   buffer.New(),
		Dripper:  drip,
		Treasury: treasurySvc,
		Oracle:   feed,
		Router:   router,
		Events:   events,
	})
	if err != nil {
		log.Fatalf("Failed to initialize vault: %v", err)
	}

	bootCtx := context.Background()
	for _, asset := range cfg.Vault.Assets {
		if asset == cfg.Vault.SettlementAsset {
			continue
		}
		if err := v.AddAsset(bootCtx, asset); err != nil {
			log.Fatalf("Failed to register asset %s: %v", asset, err)
		}
	}
	if regs := buildStrategies(cfg, feed); len(regs) > 0 {
		if err := v.AddStrategies(bootCtx, regs); err != nil {
			log.Fatalf("Failed to register strategies: %v", err)
		}
	}

	// 5. Initialize Handlers
	vaultHandler := handler.NewVaultHandler(v)
	keeperHandler := handler.NewKeeperHandler(v)
	adminHandler := handler.NewAdminHandler(v, treasurySvc, feed)
	idempotencyStore := middleware.NewInMemIdempotencyStore()

	// 6. Setup Router
	r := gin.Default()

	// Global Middleware
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())

	// Health Check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "vaultd"})
	})

	// Metrics Endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API V1 Routes
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg))
	{
		v1.GET("/vault", vaultHandler.Detail)
		v1.GET("/balance", vaultHandler.Balance)

		deposits := v1.Group("")
		deposits.Use(middleware.IdempotencyMiddleware(idempotencyStore))
		{
			deposits.POST("/mint", vaultHandler.Mint)
			deposits.POST("/burn", vaultHandler.Burn)
		}

		keeperRoutes := v1.Group("/keeper")
		keeperRoutes.Use(middleware.RequireRole(middleware.RoleKeeper))
		{
			keeperRoutes.POST("/adjust/start", keeperHandler.StartAdjustPosition)
			keeperRoutes.POST("/lend", keeperHandler.Lend)
			keeperRoutes.POST("/adjust/end", keeperHandler.EndAdjustPosition)
			keeperRoutes.POST("/harvest/:name", keeperHandler.Harvest)
			keeperRoutes.POST("/rebase", keeperHandler.Rebase)
			keeperRoutes.POST("/distribute", keeperHandler.Distribute)
			keeperRoutes.POST("/collect", keeperHandler.CollectDrip)
		}

		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.RequireRole(middleware.RoleGovernance))
		{
			adminRoutes.POST("/strategies", adminHandler.AddStrategies)
			adminRoutes.DELETE("/strategies", adminHandler.RemoveStrategies)
			adminRoutes.PUT("/queue", adminHandler.SetQueue)
			adminRoutes.POST("/assets", adminHandler.AddAsset)
			adminRoutes.DELETE("/assets", adminHandler.RemoveAsset)
			adminRoutes.PUT("/params", adminHandler.SetParams)
			adminRoutes.POST("/force-report/:name", adminHandler.ForceReport)
			adminRoutes.POST("/pause", adminHandler.Pause)
			adminRoutes.POST("/unpause", adminHandler.Unpause)
			adminRoutes.POST("/treasury/withdraw", adminHandler.TreasuryWithdraw)
			adminRoutes.POST("/treasury/withdraw-native", adminHandler.TreasuryWithdrawNative)
		}
	}

	// 7. Keeper Scheduler
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	var sched *keeper.Scheduler
	if cfg.Keeper.Enabled {
		sched = keeper.NewScheduler(schedCtx, v)
		if err := sched.Register(cfg.Keeper); err != nil {
			log.Fatalf("Failed to register keeper tasks: %v", err)
		}
		sched.Start()
	}

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("🚀 vaultd started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if sched != nil {
		sched.Stop()
	}
	if poller != nil {
		poller.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

func buildStrategies(cfg *config.Config, feed oracle.PriceOracle) []vault.Registration {
	regs := make([]vault.Registration, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		if sc.Type != "" && sc.Type != "simulated" {
			log.Fatalf("Unknown strategy type %q for %s", sc.Type, sc.Name)
		}
		impl, err := strategy.NewSimulated(strategy.SimulatedConfig{
			Name:         sc.Name,
			Asset:        sc.Asset,
			RewardAsset:  sc.RewardAsset,
			InvestFeeBps: sc.InvestFeeBps,
			DivestFeeBps: sc.DivestFeeBps,
			YieldPerDay:  decimal.NewFromFloat(sc.YieldPerDay),
			PoolTVL:      decimal.NewFromFloat(sc.PoolTVL),
		}, feed)
		if err != nil {
			log.Fatalf("Failed to build strategy %s: %v", sc.Name, err)
		}
		regs = append(regs, vault.Registration{
			Impl: impl,
			Params: model.StrategyParams{
				Name:               sc.Name,
				ProfitLimitRatio:   decimal.NewFromFloat(sc.ProfitLimitRatio),
				LossLimitRatio:     decimal.NewFromFloat(sc.LossLimitRatio),
				EnforceChangeLimit: sc.EnforceChangeLimit,
			},
		})
	}
	return regs
}
