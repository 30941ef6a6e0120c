package pipeline

import (
	"fmt"
	"sort"

	"github.com/sawpanic/factorrun/internal/characteristic"
	"github.com/sawpanic/factorrun/internal/config"
)

// Factor binds a named sorting characteristic to the measures the sort and
// aggregation stages read.
type Factor struct {
	Name           string
	Characteristic characteristic.Characteristic
	ReturnMeasure  string // periodic return used for portfolio returns
	SizeMeasure    string // sizing field for value weighting
}

// Presets returns the standard long-short factors keyed by name. The
// momentum window comes from the configuration; the accounting lags are the
// conventional one-quarter and one-year offsets.
func Presets(cfg config.Config) map[string]Factor {
	return map[string]Factor{
		"momentum": {
			Name: "momentum",
			Characteristic: characteristic.TrailingReturn{
				ReturnMeasure: MeasureReturn,
				Lookback:      cfg.LookbackMonths,
				Skip:          cfg.SkipMonths,
			},
			ReturnMeasure: MeasureReturn,
			SizeMeasure:   MeasureMarketCap,
		},
		"profitability": {
			Name: "profitability",
			Characteristic: characteristic.RatioToLagged{
				Numerator:   MeasureNetIncome,
				Denominator: MeasureBookEquity,
				LagMonths:   3,
			},
			ReturnMeasure: MeasureReturn,
			SizeMeasure:   MeasureMarketCap,
		},
		"value": {
			Name:           "value",
			Characteristic: characteristic.RawField{Measure: MeasureBookToMarket},
			ReturnMeasure:  MeasureReturn,
			SizeMeasure:    MeasureMarketCap,
		},
		"size": {
			Name:           "size",
			Characteristic: characteristic.RawField{Measure: MeasureMarketCap},
			ReturnMeasure:  MeasureReturn,
			SizeMeasure:    MeasureMarketCap,
		},
		"investment": {
			Name: "investment",
			Characteristic: characteristic.RatioToLagged{
				Numerator:   MeasureTotalAssets,
				Denominator: MeasureTotalAssets,
				LagMonths:   12,
			},
			ReturnMeasure: MeasureReturn,
			SizeMeasure:   MeasureMarketCap,
		},
	}
}

// Preset resolves a factor by name with a descriptive error listing the
// available presets.
func Preset(cfg config.Config, name string) (Factor, error) {
	presets := Presets(cfg)
	f, ok := presets[name]
	if !ok {
		names := make([]string, 0, len(presets))
		for n := range presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return Factor{}, fmt.Errorf("unknown factor %q (available: %v)", name, names)
	}
	return f, nil
}
