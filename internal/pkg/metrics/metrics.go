package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DepositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultd_deposits_total",
		Help: "The total number of mint operations processed",
	}, []string{"status"})

	RedeemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultd_redeems_total",
		Help: "The total number of burn operations processed",
	}, []string{"status"})

	HarvestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultd_harvests_total",
		Help: "Harvest runs per strategy and outcome",
	}, []string{"strategy", "status"})

	ReportRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaultd_report_rejects_total",
		Help: "Strategy reports rejected by the change limit",
	}, []string{"strategy", "direction"})

	RebaseDelta = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultd_rebase_delta_usd",
		Help: "Value delta applied by the last rebase, in USD",
	})

	TotalAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultd_total_assets_usd",
		Help: "Vault total accounted assets, in USD",
	})

	ShareSupply = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaultd_share_supply",
		Help: "Externally visible share token supply",
	})

	DripReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaultd_drip_released_total",
		Help: "Cumulative settlement-asset value released by the dripper",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vaultd_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
