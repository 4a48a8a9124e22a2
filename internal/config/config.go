package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Dripper    DripperConfig    `mapstructure:"dripper"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Treasury   TreasuryConfig   `mapstructure:"treasury"`
	Keeper     KeeperConfig     `mapstructure:"keeper"`
	Strategies []StrategyConfig `mapstructure:"strategies"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type AuthConfig struct {
	GovernanceKey string            `mapstructure:"governance_key"`
	KeeperKey     string            `mapstructure:"keeper_key"`
	Depositors    []DepositorConfig `mapstructure:"depositors"`
}

// DepositorConfig binds one API key to one share-holder account.
type DepositorConfig struct {
	Account string `mapstructure:"account"`
	APIKey  string `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	DSN                  string `mapstructure:"dsn"`
	JournalRetentionDays int    `mapstructure:"journal_retention_days"`
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	AuditListKey string `mapstructure:"audit_list_key"`
	AuditListMax int64  `mapstructure:"audit_list_max"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type VaultConfig struct {
	SettlementAsset       string   `mapstructure:"settlement_asset"`
	Assets                []string `mapstructure:"assets"`
	RebaseThreshold       float64  `mapstructure:"rebase_threshold"`        // absolute USD delta
	TrusteeFeeBps         int64    `mapstructure:"trustee_fee_bps"`         // skim on positive rebase
	RedeemFeeBps          int64    `mapstructure:"redeem_fee_bps"`          // fee on gross redemption value
	HarvestSlippageBps    int64    `mapstructure:"harvest_slippage_bps"`    // reward-to-settlement swaps
	DivestSwapSlippageBps int64    `mapstructure:"divest_slippage_bps"`     // divest-proceeds swaps
	DistributeBatchSize   int      `mapstructure:"distribute_batch_size"`   // claims converted per call
	RouterSpreadBps       int64    `mapstructure:"router_spread_bps"`       // simulated route spread
}

type DripperConfig struct {
	DurationHours int `mapstructure:"duration_hours"`
}

type OracleConfig struct {
	HeartbeatSeconds    int                `mapstructure:"heartbeat_seconds"`
	FeedURL             string             `mapstructure:"feed_url"`
	PollIntervalSeconds int                `mapstructure:"poll_interval_seconds"`
	StaticPrices        map[string]float64 `mapstructure:"static_prices"`
}

type TreasuryConfig struct {
	NativeAsset    string   `mapstructure:"native_asset"`
	KeeperShareBps int64    `mapstructure:"keeper_share_bps"`
	Receivable     []string `mapstructure:"receivable"`
}

type KeeperConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	CollectCron    string `mapstructure:"collect_cron"`
	RebaseCron     string `mapstructure:"rebase_cron"`
	HarvestCron    string `mapstructure:"harvest_cron"`
	DistributeCron string `mapstructure:"distribute_cron"`
}

type StrategyConfig struct {
	Name               string  `mapstructure:"name"`
	Type               string  `mapstructure:"type"` // only "simulated" ships in-tree
	Asset              string  `mapstructure:"asset"`
	RewardAsset        string  `mapstructure:"reward_asset"`
	InvestFeeBps       int64   `mapstructure:"invest_fee_bps"`
	DivestFeeBps       int64   `mapstructure:"divest_fee_bps"`
	YieldPerDay        float64 `mapstructure:"yield_per_day"`
	PoolTVL            float64 `mapstructure:"pool_tvl"`
	ProfitLimitRatio   float64 `mapstructure:"profit_limit_ratio"`
	LossLimitRatio     float64 `mapstructure:"loss_limit_ratio"`
	EnforceChangeLimit bool    `mapstructure:"enforce_change_limit"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. VAULTD_DATABASE_DSN
	viper.SetEnvPrefix("vaultd")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("database.journal_retention_days", 30)
	viper.SetDefault("redis.audit_list_key", "vaultd:audit")
	viper.SetDefault("redis.audit_list_max", 10000)
	viper.SetDefault("vault.settlement_asset", "USDT")
	viper.SetDefault("vault.rebase_threshold", 1.0)
	viper.SetDefault("vault.trustee_fee_bps", 2000)
	viper.SetDefault("vault.redeem_fee_bps", 0)
	viper.SetDefault("vault.harvest_slippage_bps", 100)
	viper.SetDefault("vault.divest_slippage_bps", 100)
	viper.SetDefault("vault.distribute_batch_size", 32)
	viper.SetDefault("vault.router_spread_bps", 5)
	viper.SetDefault("dripper.duration_hours", 168)
	viper.SetDefault("oracle.heartbeat_seconds", 3600)
	viper.SetDefault("oracle.poll_interval_seconds", 60)
	viper.SetDefault("treasury.native_asset", "USDT")
	viper.SetDefault("treasury.keeper_share_bps", 1000)
	// the settlement asset must be receivable or the first fee-bearing
	// rebase fails in the treasury
	viper.SetDefault("treasury.receivable", []string{"USDT"})
	// six-field expressions, seconds first
	viper.SetDefault("keeper.collect_cron", "0 0 * * * *")
	viper.SetDefault("keeper.rebase_cron", "0 30 0 * * *")
	viper.SetDefault("keeper.harvest_cron", "0 0 0 * * *")
	viper.SetDefault("keeper.distribute_cron", "0 */5 * * * *")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
