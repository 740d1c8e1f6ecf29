package models

import "math"

// PriceLevel is one side entry of an exchange's native depth response.
// Quantity is expressed in base-asset units.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Finite reports whether both fields are usable numbers. Exchange payloads
// occasionally decode to NaN or Inf and those must never reach a bucket.
func (l PriceLevel) Finite() bool {
	return !math.IsNaN(l.Price) && !math.IsInf(l.Price, 0) &&
		!math.IsNaN(l.Quantity) && !math.IsInf(l.Quantity, 0)
}

// Notional returns the level's volume in quote-currency terms.
func (l PriceLevel) Notional() float64 {
	return l.Price * l.Quantity
}

// AggregatedLevel is a price bucket after aggregation. Price is the bucket's
// lower bound (raw price truncated toward zero to a multiple of the bucket
// width) and Volume the summed notional volume of all levels in the bucket.
type AggregatedLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// Snapshot is one aggregated depth capture for a symbol. Both sides are
// sorted by bucket price descending. Immutable after construction.
type Snapshot struct {
	Symbol  string            `json:"symbol"`
	Created int64             `json:"created"`
	Asks    []AggregatedLevel `json:"asks"`
	Bids    []AggregatedLevel `json:"bids"`
}

// StoredRecord is the durable form of a Snapshot as held by the partition
// store. Source tags provenance, e.g. the exchange the snapshot came from.
type StoredRecord struct {
	Asks    []AggregatedLevel `json:"asks"`
	Bids    []AggregatedLevel `json:"bids"`
	Created int64             `json:"created"`
	Source  string            `json:"source"`
}

// Record converts a Snapshot into its stored form.
func (s Snapshot) Record(source string) StoredRecord {
	return StoredRecord{
		Asks:    s.Asks,
		Bids:    s.Bids,
		Created: s.Created,
		Source:  source,
	}
}

// LevelCount returns the number of columnar rows the record flattens to.
func (r StoredRecord) LevelCount() int {
	return len(r.Bids) + len(r.Asks)
}
