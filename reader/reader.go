// Package reader fetches order book snapshots from exchange REST APIs and
// converts them into validated price levels.
package reader

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	appconfig "depthflow/config"
	"depthflow/internal/errs"
	"depthflow/models"
)

// DepthFetcher is the capture pipeline's view of an exchange: one blocking
// snapshot fetch per call.
type DepthFetcher interface {
	Fetch(ctx context.Context, symbol string) (bids, asks []models.PriceLevel, err error)
	Source() string
}

// NewFetcher returns the fetcher for the configured exchange.
func NewFetcher(cfg *appconfig.Config) (DepthFetcher, error) {
	switch cfg.Capture.Exchange {
	case "binance":
		return NewBinanceFetcher(cfg), nil
	case "bybit":
		return NewBybitFetcher(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", cfg.Capture.Exchange)
	}
}

func newHTTPClient(cfg *appconfig.Config) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:       cfg.Capture.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:    cfg.Capture.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:    cfg.Capture.ConnectionPool.IdleConnTimeout,
		DisableCompression: false,
	}
	return &http.Client{Transport: transport, Timeout: cfg.Capture.Timeout}
}

// parseLevel converts one [price, quantity] string pair into a PriceLevel,
// rejecting malformed or non-finite values instead of propagating NaNs.
func parseLevel(price, qty string) (models.PriceLevel, error) {
	p, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return models.PriceLevel{}, errs.Validationf("malformed price %q: %v", price, err)
	}
	q, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return models.PriceLevel{}, errs.Validationf("malformed quantity %q: %v", qty, err)
	}
	level := models.PriceLevel{Price: p, Quantity: q}
	if !level.Finite() {
		return models.PriceLevel{}, errs.Validationf("non-finite level [%s, %s]", price, qty)
	}
	if p <= 0 || q < 0 || math.Signbit(q) {
		return models.PriceLevel{}, errs.Validationf("out-of-range level [%s, %s]", price, qty)
	}
	return level, nil
}

// parseLevels converts a [[price, quantity], ...] side. A single bad entry
// fails the whole side so a corrupt snapshot is never partially ingested.
func parseLevels(raw [][]string) ([]models.PriceLevel, error) {
	levels := make([]models.PriceLevel, 0, len(raw))
	for i, pair := range raw {
		if len(pair) < 2 {
			return nil, errs.Validationf("level %d has %d fields, want 2", i, len(pair))
		}
		level, err := parseLevel(pair[0], pair[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}
