package config

import "testing"

func TestParseSymbolSpec(t *testing.T) {
	spec, err := ParseSymbolSpec("btcusdt=100.0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if spec.Symbol != "BTCUSDT" {
		t.Fatalf("symbol must be uppercased, got %q", spec.Symbol)
	}
	if spec.Delta != 100.0 {
		t.Fatalf("expected delta 100.0, got %v", spec.Delta)
	}
}

func TestParseSymbolSpecRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"BTCUSDT",
		"=100.0",
		"BTCUSDT=",
		"BTCUSDT=abc",
		"BTCUSDT=0",
		"BTCUSDT=-5",
		"BTCUSDT=NaN",
		"BTCUSDT=+Inf",
		"BTC/USDT=100",
	}
	for _, s := range bad {
		if _, err := ParseSymbolSpec(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestParseSymbolSpecsFailsFast(t *testing.T) {
	specs, err := ParseSymbolSpecs([]string{"BTCUSDT=100.0", "ETHUSDT=10.0"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}

	if _, err := ParseSymbolSpecs([]string{"BTCUSDT=100.0", "bad"}); err == nil {
		t.Fatalf("expected error on malformed entry")
	}
}
