// Package characteristic derives per-entity sorting characteristics from the
// aligned panel at a formation date.
package characteristic

import (
	"time"

	"github.com/sawpanic/factorrun/internal/panel"
)

// Characteristic computes a sorting value per eligible entity as of one
// formation date. Entities failing eligibility are absent from the result,
// never mapped to NaN.
type Characteristic interface {
	Compute(g *panel.Grid, formation time.Time) map[string]float64
}

// TrailingReturn is the cumulative product of (1 + periodic return) over the
// half-open window (d - Skip - Lookback, d - Skip] months. Entities must have
// exactly Lookback non-missing returns in the window; gaps exclude the entity
// rather than producing a partial product.
type TrailingReturn struct {
	ReturnMeasure string
	Lookback      int
	Skip          int
}

// Compute implements Characteristic.
func (t TrailingReturn) Compute(g *panel.Grid, formation time.Time) map[string]float64 {
	idx, ok := g.MonthIndex(formation)
	if !ok {
		return nil
	}
	end := idx - t.Skip       // window end, inclusive
	start := end - t.Lookback // window start, exclusive
	if start < -1 || end < 0 {
		return nil
	}

	out := make(map[string]float64)
	for _, e := range g.Entities() {
		series := g.Series(e, t.ReturnMeasure)
		if series == nil {
			continue
		}
		cum := 1.0
		complete := true
		for i := start + 1; i <= end; i++ {
			r := series[i]
			if panel.IsMissing(r) {
				complete = false
				break
			}
			cum *= 1 + r
		}
		if complete {
			out[e] = cum
		}
	}
	return out
}

// RatioToLagged divides a field at the formation date by a lagged field, e.g.
// earnings over book equity one quarter back. When Adjust is set, its lagged
// value is subtracted from the denominator before dividing. Entities with an
// undefined numerator or a non-positive or undefined denominator are excluded.
type RatioToLagged struct {
	Numerator   string
	Denominator string
	Adjust      string // optional subtrahend on the lagged denominator
	LagMonths   int
}

// Compute implements Characteristic.
func (r RatioToLagged) Compute(g *panel.Grid, formation time.Time) map[string]float64 {
	idx, ok := g.MonthIndex(formation)
	if !ok {
		return nil
	}
	lagIdx := idx - r.LagMonths
	if lagIdx < 0 {
		return nil
	}
	months := g.Months()
	lagged := months[lagIdx]

	out := make(map[string]float64)
	for _, e := range g.Entities() {
		num := g.Value(e, r.Numerator, formation)
		den := g.Value(e, r.Denominator, lagged)
		if panel.IsMissing(num) || panel.IsMissing(den) {
			continue
		}
		if r.Adjust != "" {
			adj := g.Value(e, r.Adjust, lagged)
			if panel.IsMissing(adj) {
				continue
			}
			den -= adj
		}
		if den <= 0 {
			continue
		}
		out[e] = num / den
	}
	return out
}

// RawField reads a measure directly at the formation date, e.g. market
// capitalization for a size sort.
type RawField struct {
	Measure string
}

// Compute implements Characteristic.
func (r RawField) Compute(g *panel.Grid, formation time.Time) map[string]float64 {
	out := make(map[string]float64)
	for _, e := range g.Entities() {
		v := g.Value(e, r.Measure, formation)
		if panel.IsMissing(v) {
			continue
		}
		out[e] = v
	}
	return out
}
