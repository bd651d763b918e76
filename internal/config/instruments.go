package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Instrument carries the per-symbol rounding increments every ladder and
// stop order must respect.
type Instrument struct {
	PriceIncrement float64 `yaml:"price_increment"`
	QtyIncrement   float64 `yaml:"qty_increment"`
}

// InstrumentTable maps symbol → increments. Unknown symbols fall back to the
// BTCUSDT increments the original tool hard-coded.
type InstrumentTable map[string]Instrument

// DefaultInstruments returns the built-in table.
func DefaultInstruments() InstrumentTable {
	return InstrumentTable{
		"BTCUSDT": {PriceIncrement: 0.5, QtyIncrement: 0.001},
	}
}

// LoadInstruments reads a yaml symbol table. A missing file is not an
// error; the built-in table applies.
func LoadInstruments(path string) (InstrumentTable, error) {
	table := DefaultInstruments()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return table, nil
		}
		return nil, fmt.Errorf("reading instrument table failed: %w", err)
	}
	var loaded InstrumentTable
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("parsing instrument table failed: %w", err)
	}
	for symbol, inst := range loaded {
		if inst.PriceIncrement <= 0 || inst.QtyIncrement <= 0 {
			return nil, fmt.Errorf("instrument %s needs positive increments", symbol)
		}
		table[strings.ToUpper(symbol)] = inst
	}
	return table, nil
}

// Lookup resolves the increments for symbol, defaulting to BTCUSDT's.
func (t InstrumentTable) Lookup(symbol string) (priceInc, qtyInc float64) {
	if inst, ok := t[strings.ToUpper(symbol)]; ok {
		return inst.PriceIncrement, inst.QtyIncrement
	}
	return 0.5, 0.001
}
