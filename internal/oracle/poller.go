package oracle

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankofchain/vaultd/internal/pkg/logger"
)

var pollerLogger = logger.ForComponent("oracle_poller")

type feedResponse struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

// Poller periodically refreshes a FeedOracle from an HTTP price endpoint.
// The endpoint returns {"prices": {"<asset>": "<unit price in USD>", ...}}.
type Poller struct {
	target   *FeedOracle
	url      string
	interval time.Duration
	client   *http.Client
	stop     chan struct{}
}

func NewPoller(target *FeedOracle, url string, interval time.Duration) *Poller {
	return &Poller{
		target:   target,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		stop:     make(chan struct{}),
	}
}

func (p *Poller) Start() {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			if err := p.refresh(); err != nil {
				pollerLogger.Warn("price refresh failed", "url", p.url, "error", err.Error())
			}
			select {
			case <-ticker.C:
			case <-p.stop:
				return
			}
		}
	}()
}

func (p *Poller) Stop() {
	close(p.stop)
}

func (p *Poller) refresh() error {
	resp, err := p.client.Get(p.url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	for asset, price := range body.Prices {
		p.target.SetPrice(asset, price)
	}
	return nil
}
