// Package aggregate compresses a raw price ladder into coarser buckets.
package aggregate

import (
	"math"
	"sort"
	"time"

	"depthflow/internal/errs"
	"depthflow/models"
)

// Snapshot aggregates both sides of a raw depth ladder into bucketed levels
// using the current wall clock as the creation time.
func Snapshot(symbol string, delta float64, bids, asks []models.PriceLevel) (models.Snapshot, error) {
	return SnapshotAt(symbol, delta, bids, asks, time.Now())
}

// SnapshotAt is Snapshot with an explicit creation time.
//
// Each raw level contributes its notional volume (price * quantity) to the
// bucket keyed by trunc(price/delta). Keys are quantized to int64 before
// grouping so that float noise near bucket boundaries can never merge
// distinct buckets or split equal ones. Both sides come back sorted by
// bucket price descending.
func SnapshotAt(symbol string, delta float64, bids, asks []models.PriceLevel, at time.Time) (models.Snapshot, error) {
	if delta <= 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return models.Snapshot{}, errs.Validationf("bucket width must be a positive finite number, got %v", delta)
	}

	aggBids, err := side(symbol, "bids", delta, bids)
	if err != nil {
		return models.Snapshot{}, err
	}
	aggAsks, err := side(symbol, "asks", delta, asks)
	if err != nil {
		return models.Snapshot{}, err
	}

	return models.Snapshot{
		Symbol:  symbol,
		Created: at.Unix(),
		Asks:    aggAsks,
		Bids:    aggBids,
	}, nil
}

func side(symbol, name string, delta float64, levels []models.PriceLevel) ([]models.AggregatedLevel, error) {
	buckets := make(map[int64]float64, len(levels))
	for _, l := range levels {
		if !l.Finite() {
			return nil, errs.Validationf("%s %s level has non-finite price=%v quantity=%v", symbol, name, l.Price, l.Quantity)
		}
		ratio := math.Trunc(l.Price / delta)
		// The key conversion is undefined outside int64 range, which a tiny
		// bucket width can reach even for ordinary prices.
		if ratio >= math.MaxInt64 || ratio <= math.MinInt64 {
			return nil, errs.Validationf("%s %s price=%v with bucket width %v overflows the bucket key range", symbol, name, l.Price, delta)
		}
		key := int64(ratio)
		buckets[key] += l.Notional()
	}

	out := make([]models.AggregatedLevel, 0, len(buckets))
	for key, volume := range buckets {
		out = append(out, models.AggregatedLevel{
			Price:  float64(key) * delta,
			Volume: volume,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out, nil
}
