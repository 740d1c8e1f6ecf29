package reader

import (
	"testing"

	appconfig "depthflow/config"
	"depthflow/internal/errs"
)

func TestParseLevels(t *testing.T) {
	levels, err := parseLevels([][]string{
		{"30050.5", "0.1"},
		{"30060.0", "0.2"},
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price != 30050.5 || levels[0].Quantity != 0.1 {
		t.Fatalf("unexpected first level: %+v", levels[0])
	}
	if got, want := levels[0].Notional(), 30050.5*0.1; got != want {
		t.Fatalf("notional = %v, want %v", got, want)
	}
}

func TestParseLevelsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		raw  [][]string
	}{
		{"malformed price", [][]string{{"not-a-number", "1.0"}}},
		{"malformed quantity", [][]string{{"100.0", ""}}},
		{"nan price", [][]string{{"NaN", "1.0"}}},
		{"infinite quantity", [][]string{{"100.0", "Inf"}}},
		{"zero price", [][]string{{"0", "1.0"}}},
		{"negative price", [][]string{{"-100.0", "1.0"}}},
		{"negative quantity", [][]string{{"100.0", "-1.0"}}},
		{"short pair", [][]string{{"100.0"}}},
		{"bad entry among good", [][]string{{"100.0", "1.0"}, {"bogus", "1.0"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseLevels(tc.raw); err == nil {
				t.Fatalf("expected %s to be rejected", tc.name)
			} else if !errs.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestParseLevelsEmptySide(t *testing.T) {
	levels, err := parseLevels(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(levels) != 0 {
		t.Fatalf("expected empty side, got %v", levels)
	}
}

func TestNewFetcherSelectsExchange(t *testing.T) {
	cfg := &appconfig.Config{}
	cfg.Capture.Exchange = "binance"
	f, err := NewFetcher(cfg)
	if err != nil {
		t.Fatalf("binance: %v", err)
	}
	if f.Source() != "binance" {
		t.Fatalf("expected binance source, got %q", f.Source())
	}

	cfg.Capture.Exchange = "bybit"
	f, err = NewFetcher(cfg)
	if err != nil {
		t.Fatalf("bybit: %v", err)
	}
	if f.Source() != "bybit" {
		t.Fatalf("expected bybit source, got %q", f.Source())
	}

	cfg.Capture.Exchange = "okx"
	if _, err := NewFetcher(cfg); err == nil {
		t.Fatalf("expected unsupported exchange to be rejected")
	}
}
