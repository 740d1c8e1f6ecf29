package config

import (
	"math"
	"strconv"
	"strings"

	"depthflow/internal/errs"
	"depthflow/internal/partition"
)

// SymbolSpec pairs a traded symbol with its aggregation bucket width.
type SymbolSpec struct {
	Symbol string
	Delta  float64
}

// ParseSymbolSpec parses a "SYMBOL=bucketWidth" pair, e.g. "BTCUSDT=100.0".
// The symbol is uppercased; the bucket width must be a positive finite float.
func ParseSymbolSpec(s string) (SymbolSpec, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" {
		return SymbolSpec{}, errs.Validationf("symbol spec %q: format is BTCUSDT=100.0", s)
	}

	symbol := strings.ToUpper(strings.TrimSpace(parts[0]))
	if !partition.ValidSymbol(symbol) {
		return SymbolSpec{}, errs.Validationf("symbol spec %q: symbol contains unsafe characters", s)
	}

	delta, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return SymbolSpec{}, errs.Validationf("symbol spec %q: %v", s, err)
	}
	if delta <= 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return SymbolSpec{}, errs.Validationf("symbol spec %q: bucket width must be a positive finite number", s)
	}

	return SymbolSpec{Symbol: symbol, Delta: delta}, nil
}

// ParseSymbolSpecs parses a list of pairs, failing on the first bad entry.
func ParseSymbolSpecs(specs []string) ([]SymbolSpec, error) {
	out := make([]SymbolSpec, 0, len(specs))
	for _, s := range specs {
		spec, err := ParseSymbolSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// Symbols returns just the symbol names of the parsed specs.
func Symbols(specs []SymbolSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Symbol
	}
	return out
}
