package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	appconfig "depthflow/config"
	"depthflow/logger"
	"depthflow/models"
)

// bybitOrderbook mirrors the v5 market/orderbook result payload.
type bybitOrderbook struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

// BybitFetcher fetches linear futures order book snapshots from Bybit.
type BybitFetcher struct {
	config *appconfig.Config
	client *bybit.Client
	log    *logger.Log
}

// NewBybitFetcher creates a fetcher backed by the bybit.go.api client.
func NewBybitFetcher(cfg *appconfig.Config) *BybitFetcher {
	log := logger.GetLogger()

	base := cfg.Capture.URL
	if parsed, err := url.Parse(cfg.Capture.URL); err == nil && parsed.Host != "" {
		base = fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	}

	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	client.HTTPClient = newHTTPClient(cfg)

	log.WithComponent("bybit_fetcher").WithFields(logger.Fields{
		"timeout": cfg.Capture.Timeout,
	}).Info("bybit fetcher initialized")

	return &BybitFetcher{config: cfg, client: client, log: log}
}

func (bf *BybitFetcher) Source() string { return "bybit" }

// Fetch requests one orderbook snapshot for the linear category and converts
// both sides into validated price levels.
func (bf *BybitFetcher) Fetch(ctx context.Context, symbol string) (bids, asks []models.PriceLevel, err error) {
	log := bf.log.WithComponent("bybit_fetcher").WithFields(logger.Fields{
		"symbol":    symbol,
		"operation": "fetch_orderbook",
	})

	params := map[string]interface{}{
		"category": "linear",
		"symbol":   symbol,
		"limit":    bf.config.Capture.Limit,
	}

	start := time.Now()
	resp, err := bf.client.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("bybit orderbook request for %s: %w", symbol, err)
	}

	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, nil, fmt.Errorf("bybit orderbook result for %s: %w", symbol, err)
	}
	var book bybitOrderbook
	if err := json.Unmarshal(payload, &book); err != nil {
		return nil, nil, fmt.Errorf("bybit orderbook result for %s: %w", symbol, err)
	}
	log.WithFields(logger.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"bids":        len(book.Bids),
		"asks":        len(book.Asks),
	}).Debug("orderbook snapshot fetched")

	bids, err = parseLevels(book.Bids)
	if err != nil {
		return nil, nil, fmt.Errorf("bybit bids for %s: %w", symbol, err)
	}
	asks, err = parseLevels(book.Asks)
	if err != nil {
		return nil, nil, fmt.Errorf("bybit asks for %s: %w", symbol, err)
	}
	return bids, asks, nil
}
