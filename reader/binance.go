package reader

import (
	"context"
	"fmt"
	"net/url"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"

	appconfig "depthflow/config"
	"depthflow/logger"
	"depthflow/models"
)

// BinanceFetcher fetches futures order book snapshots from Binance.
type BinanceFetcher struct {
	config *appconfig.Config
	client *futures.Client
	log    *logger.Log
}

// NewBinanceFetcher creates a fetcher backed by the binance-go futures client.
func NewBinanceFetcher(cfg *appconfig.Config) *BinanceFetcher {
	log := logger.GetLogger()

	client := futures.NewClient("", "")
	client.HTTPClient = newHTTPClient(cfg)

	if parsed, err := url.Parse(cfg.Capture.URL); err == nil && parsed.Host != "" {
		client.SetApiEndpoint(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host))
	}

	log.WithComponent("binance_fetcher").WithFields(logger.Fields{
		"max_idle_conns":     cfg.Capture.ConnectionPool.MaxIdleConns,
		"max_conns_per_host": cfg.Capture.ConnectionPool.MaxConnsPerHost,
		"timeout":            cfg.Capture.Timeout,
	}).Info("binance fetcher initialized")

	return &BinanceFetcher{config: cfg, client: client, log: log}
}

func (bf *BinanceFetcher) Source() string { return "binance" }

// Fetch requests one depth snapshot and converts both sides into validated
// price levels.
func (bf *BinanceFetcher) Fetch(ctx context.Context, symbol string) (bids, asks []models.PriceLevel, err error) {
	log := bf.log.WithComponent("binance_fetcher").WithFields(logger.Fields{
		"symbol":    symbol,
		"operation": "fetch_depth",
	})

	start := time.Now()
	res, err := bf.client.NewDepthService().
		Symbol(symbol).
		Limit(bf.config.Capture.Limit).
		Do(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("binance depth request for %s: %w", symbol, err)
	}
	log.WithFields(logger.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"bids":        len(res.Bids),
		"asks":        len(res.Asks),
	}).Debug("depth snapshot fetched")

	rawBids := make([][]string, len(res.Bids))
	for i, b := range res.Bids {
		rawBids[i] = []string{b.Price, b.Quantity}
	}
	rawAsks := make([][]string, len(res.Asks))
	for i, a := range res.Asks {
		rawAsks[i] = []string{a.Price, a.Quantity}
	}

	bids, err = parseLevels(rawBids)
	if err != nil {
		return nil, nil, fmt.Errorf("binance bids for %s: %w", symbol, err)
	}
	asks, err = parseLevels(rawAsks)
	if err != nil {
		return nil, nil, fmt.Errorf("binance asks for %s: %w", symbol, err)
	}
	return bids, asks, nil
}
