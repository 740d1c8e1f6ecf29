package aggregate

import (
	"math"
	"testing"
	"time"

	"depthflow/internal/errs"
	"depthflow/models"
)

func TestSnapshotBucketsAdjacentLevels(t *testing.T) {
	bids := []models.PriceLevel{
		{Price: 30050, Quantity: 0.1},
		{Price: 30060, Quantity: 0.2},
	}

	snap, err := SnapshotAt("BTCUSDT", 100, bids, nil, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if len(snap.Bids) != 1 {
		t.Fatalf("expected one bucket, got %d: %+v", len(snap.Bids), snap.Bids)
	}
	if snap.Bids[0].Price != 30000 {
		t.Fatalf("expected bucket price 30000, got %v", snap.Bids[0].Price)
	}
	want := 30050*0.1 + 30060*0.2
	if math.Abs(snap.Bids[0].Volume-want) > 1e-9 {
		t.Fatalf("expected volume %v, got %v", want, snap.Bids[0].Volume)
	}
	if snap.Created != 1700000000 {
		t.Fatalf("expected created 1700000000, got %d", snap.Created)
	}
}

func TestSnapshotConservesNotionalVolume(t *testing.T) {
	asks := []models.PriceLevel{
		{Price: 100.3, Quantity: 1.5},
		{Price: 100.7, Quantity: 0.25},
		{Price: 101.1, Quantity: 3},
		{Price: 250.9, Quantity: 0.01},
		{Price: 99.99, Quantity: 12},
	}

	var want float64
	for _, l := range asks {
		want += l.Price * l.Quantity
	}

	snap, err := Snapshot("ETHUSDT", 0.5, nil, asks)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	var got float64
	for _, l := range snap.Asks {
		got += l.Volume
	}
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("volume not conserved: want %v got %v", want, got)
	}
}

func TestSnapshotSortsBothSidesDescending(t *testing.T) {
	levels := []models.PriceLevel{
		{Price: 10, Quantity: 1},
		{Price: 310, Quantity: 1},
		{Price: 110, Quantity: 1},
		{Price: 210, Quantity: 1},
		{Price: 215, Quantity: 1},
	}

	snap, err := Snapshot("BTCUSDT", 100, levels, levels)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	for name, side := range map[string][]models.AggregatedLevel{"bids": snap.Bids, "asks": snap.Asks} {
		if len(side) != 4 {
			t.Fatalf("%s: expected 4 buckets, got %d", name, len(side))
		}
		for i := 1; i < len(side); i++ {
			if side[i-1].Price <= side[i].Price {
				t.Fatalf("%s not strictly descending at %d: %+v", name, i, side)
			}
		}
	}
}

func TestSnapshotQuantizesBoundaryPrices(t *testing.T) {
	// 0.1+0.2 style float noise must not split a bucket.
	bids := []models.PriceLevel{
		{Price: 300.00000000000006, Quantity: 1},
		{Price: 300, Quantity: 1},
	}

	snap, err := Snapshot("BTCUSDT", 100, bids, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(snap.Bids) != 1 {
		t.Fatalf("expected a single bucket, got %+v", snap.Bids)
	}
}

func TestSnapshotRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		delta float64
		bids  []models.PriceLevel
	}{
		{"zero delta", 0, nil},
		{"negative delta", -1, nil},
		{"nan delta", math.NaN(), nil},
		{"nan price", 100, []models.PriceLevel{{Price: math.NaN(), Quantity: 1}}},
		{"inf quantity", 100, []models.PriceLevel{{Price: 100, Quantity: math.Inf(1)}}},
		{"key overflow", 1e-300, []models.PriceLevel{{Price: 1e9, Quantity: 1}}},
		{"tiny delta", 1e-15, []models.PriceLevel{{Price: 1e9, Quantity: 1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Snapshot("BTCUSDT", tc.delta, tc.bids, nil)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errs.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSnapshotEmptySides(t *testing.T) {
	snap, err := Snapshot("BTCUSDT", 100, nil, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatalf("expected empty sides, got %+v", snap)
	}
}
